package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

// dialect holds the engine specific statements and time encoding.
type dialect struct {
	name            string
	getLedger       string
	getLatestBefore string
	upsertLedger    string
	encodeTime      func(time.Time) interface{}
}

const ledgerColumns = `owner_id, month, year, class_name, teacher_name, school_name, location, students, standard_meals, signature_date, updated_at`

var sqliteDialect = dialect{
	name: "sqlite",
	getLedger: `SELECT ` + ledgerColumns + ` FROM ledgers
WHERE owner_id = ? AND month = ? AND year = ?`,
	getLatestBefore: `SELECT ` + ledgerColumns + ` FROM ledgers
WHERE owner_id = ? AND (year < ? OR (year = ? AND month < ?))
ORDER BY year DESC, month DESC
LIMIT 1`,
	upsertLedger: `INSERT INTO ledgers (` + ledgerColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (owner_id, month, year) DO UPDATE SET
    class_name = excluded.class_name,
    teacher_name = excluded.teacher_name,
    school_name = excluded.school_name,
    location = excluded.location,
    students = excluded.students,
    standard_meals = excluded.standard_meals,
    signature_date = excluded.signature_date,
    updated_at = excluded.updated_at`,
	encodeTime: func(t time.Time) interface{} { return t.UTC().Format(time.RFC3339Nano) },
}

var postgresDialect = dialect{
	name: "postgres",
	getLedger: `SELECT ` + ledgerColumns + ` FROM ledgers
WHERE owner_id = $1 AND month = $2 AND year = $3`,
	getLatestBefore: `SELECT ` + ledgerColumns + ` FROM ledgers
WHERE owner_id = $1 AND (year < $2 OR (year = $3 AND month < $4))
ORDER BY year DESC, month DESC
LIMIT 1`,
	upsertLedger: `INSERT INTO ledgers (` + ledgerColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8::jsonb, $9::jsonb, $10::jsonb, $11)
ON CONFLICT (owner_id, month, year) DO UPDATE SET
    class_name = EXCLUDED.class_name,
    teacher_name = EXCLUDED.teacher_name,
    school_name = EXCLUDED.school_name,
    location = EXCLUDED.location,
    students = EXCLUDED.students,
    standard_meals = EXCLUDED.standard_meals,
    signature_date = EXCLUDED.signature_date,
    updated_at = EXCLUDED.updated_at`,
	encodeTime: func(t time.Time) interface{} { return t.UTC() },
}

type Queries struct {
	db DBTX
	d  dialect
}

func newQueries(db DBTX, d dialect) *Queries {
	return &Queries{db: db, d: d}
}

type GetLedgerParams struct {
	OwnerID string
	Month   int64
	Year    int64
}

func (q *Queries) GetLedger(ctx context.Context, arg GetLedgerParams) (Record, error) {
	row := q.db.QueryRowContext(ctx, q.d.getLedger, arg.OwnerID, arg.Month, arg.Year)
	return scanRecord(row)
}

func (q *Queries) GetLatestLedgerBefore(ctx context.Context, arg GetLedgerParams) (Record, error) {
	row := q.db.QueryRowContext(ctx, q.d.getLatestBefore, arg.OwnerID, arg.Year, arg.Year, arg.Month)
	return scanRecord(row)
}

func (q *Queries) UpsertLedger(ctx context.Context, r Record) error {
	_, err := q.db.ExecContext(ctx, q.d.upsertLedger,
		r.OwnerID,
		r.Month,
		r.Year,
		r.ClassName,
		r.TeacherName,
		r.SchoolName,
		r.Location,
		r.Students,
		r.StandardMeals,
		r.SignatureDate,
		q.d.encodeTime(r.UpdatedAt),
	)
	return err
}

func scanRecord(row *sql.Row) (Record, error) {
	var (
		r       Record
		updated interface{}
	)
	err := row.Scan(
		&r.OwnerID,
		&r.Month,
		&r.Year,
		&r.ClassName,
		&r.TeacherName,
		&r.SchoolName,
		&r.Location,
		&r.Students,
		&r.StandardMeals,
		&r.SignatureDate,
		&updated,
	)
	if err != nil {
		return Record{}, err
	}
	r.UpdatedAt, err = decodeTime(updated)
	return r, err
}

func decodeTime(v interface{}) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t, nil
	case string:
		return parseTime(t)
	case []byte:
		return parseTime(string(t))
	case int64:
		return time.UnixMilli(t).UTC(), nil
	case nil:
		return time.Time{}, nil
	default:
		return time.Time{}, fmt.Errorf("unsupported updated_at type %T", v)
	}
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05.999999999-07:00", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("parse updated_at %q", s)
}
