package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"mealbook/internal/ledger"
)

// Record is the stored row of a ledger. Students, StandardMeals and
// SignatureDate are JSON documents.
type Record struct {
	OwnerID       string
	Month         int64
	Year          int64
	ClassName     string
	TeacherName   string
	SchoolName    string
	Location      string
	Students      string
	StandardMeals string
	SignatureDate string
	UpdatedAt     time.Time
}

func toRecord(l ledger.Ledger) (Record, error) {
	students := l.Students
	if students == nil {
		students = []ledger.Student{}
	}
	sj, err := json.Marshal(students)
	if err != nil {
		return Record{}, fmt.Errorf("encode students: %w", err)
	}
	qj, err := json.Marshal(l.StandardMeals)
	if err != nil {
		return Record{}, fmt.Errorf("encode standard meals: %w", err)
	}
	dj, err := json.Marshal(l.SignatureDate)
	if err != nil {
		return Record{}, fmt.Errorf("encode signature date: %w", err)
	}
	return Record{
		OwnerID:       l.OwnerID,
		Month:         int64(l.Month),
		Year:          int64(l.Year),
		ClassName:     l.ClassName,
		TeacherName:   l.TeacherName,
		SchoolName:    l.SchoolName,
		Location:      l.Location,
		Students:      string(sj),
		StandardMeals: string(qj),
		SignatureDate: string(dj),
		UpdatedAt:     l.UpdatedAt,
	}, nil
}

func (r Record) toLedger() (ledger.Ledger, error) {
	l := ledger.New(ledger.Key{OwnerID: r.OwnerID, Month: int(r.Month), Year: int(r.Year)})
	l.Details = ledger.Details{
		SchoolName:  r.SchoolName,
		ClassName:   r.ClassName,
		TeacherName: r.TeacherName,
		Location:    r.Location,
	}
	if r.Students != "" {
		if err := json.Unmarshal([]byte(r.Students), &l.Students); err != nil {
			return ledger.Ledger{}, fmt.Errorf("decode students: %w", err)
		}
	}
	for i := range l.Students {
		if l.Students[i].Meals == nil {
			l.Students[i].Meals = ledger.DayMarks{}
		}
	}
	if l.Students == nil {
		l.Students = []ledger.Student{}
	}
	if r.StandardMeals != "" {
		if err := json.Unmarshal([]byte(r.StandardMeals), &l.StandardMeals); err != nil {
			return ledger.Ledger{}, fmt.Errorf("decode standard meals: %w", err)
		}
	}
	if r.SignatureDate != "" {
		if err := json.Unmarshal([]byte(r.SignatureDate), &l.SignatureDate); err != nil {
			return ledger.Ledger{}, fmt.Errorf("decode signature date: %w", err)
		}
	}
	l.UpdatedAt = r.UpdatedAt
	return l, nil
}
