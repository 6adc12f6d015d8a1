package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"mealbook/internal/ledger"
	"mealbook/internal/log"
)

// repository implements LedgerStore over any database/sql engine.
type repository struct {
	db      *sql.DB
	queries *Queries
	logger  *log.Logger
	now     func() time.Time
}

func newRepository(db *sql.DB, d dialect) repository {
	return repository{
		db:      db,
		queries: newQueries(db, d),
		logger:  log.NewLogger(log.ComponentStorage),
		now:     time.Now,
	}
}

func (r *repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping checks the database connection.
func (r *repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *repository) Fetch(ctx context.Context, key ledger.Key) (ledger.Ledger, error) {
	rec, err := r.queries.GetLedger(ctx, GetLedgerParams{
		OwnerID: key.OwnerID,
		Month:   int64(key.Month),
		Year:    int64(key.Year),
	})
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Ledger{}, ErrNotFound
	}
	if err != nil {
		return ledger.Ledger{}, fmt.Errorf("get ledger %s: %w", key, err)
	}
	return rec.toLedger()
}

func (r *repository) FetchLatestBefore(ctx context.Context, owner string, month, year int) (ledger.Ledger, error) {
	rec, err := r.queries.GetLatestLedgerBefore(ctx, GetLedgerParams{
		OwnerID: owner,
		Month:   int64(month),
		Year:    int64(year),
	})
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Ledger{}, ErrNotFound
	}
	if err != nil {
		return ledger.Ledger{}, fmt.Errorf("get latest ledger before %04d-%02d: %w", year, month+1, err)
	}
	return rec.toLedger()
}

func (r *repository) Upsert(ctx context.Context, l ledger.Ledger) (ledger.Ledger, error) {
	if err := l.Key.Validate(); err != nil {
		return ledger.Ledger{}, fmt.Errorf("upsert ledger: %w", err)
	}
	saved := l.Clone()
	saved.UpdatedAt = r.now().UTC()

	rec, err := toRecord(saved)
	if err != nil {
		return ledger.Ledger{}, err
	}
	if err := r.queries.UpsertLedger(ctx, rec); err != nil {
		return ledger.Ledger{}, fmt.Errorf("upsert ledger %s: %w", l.Key, err)
	}

	r.logger.DebugContext(ctx, "Ledger saved",
		log.FieldOwnerID, l.OwnerID,
		log.FieldMonth, l.Month,
		log.FieldYear, l.Year,
		log.FieldCount, len(l.Students))
	return saved, nil
}
