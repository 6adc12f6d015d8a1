// Package ledger models a class's monthly meal attendance book and the pure
// transformations applied to it.
//
// Every mutation returns a new Ledger that shares no student or marks storage
// with its receiver, so callers can hold on to older snapshots safely.
package ledger

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type (
	// Key identifies a ledger. Month is 0-indexed (0 = January).
	Key struct {
		OwnerID string
		Month   int
		Year    int
	}

	// Quota is the standard number of each meal a student is expected to
	// take in the month.
	Quota struct {
		S  int `json:"S"`
		T1 int `json:"T1"`
		T2 int `json:"T2"`
	}

	// SignatureDate is printed in the export footer. Month is 1-12 here
	// because it is shown verbatim.
	SignatureDate struct {
		Day   int `json:"day"`
		Month int `json:"month"`
		Year  int `json:"year"`
	}

	// Details are the free-text header fields of the book.
	Details struct {
		SchoolName  string
		ClassName   string
		TeacherName string
		Location    string
	}

	Student struct {
		ID    string   `json:"id"`
		Name  string   `json:"name"`
		Meals DayMarks `json:"meals"`
	}

	Ledger struct {
		Key
		Details
		Students      []Student
		StandardMeals Quota
		SignatureDate SignatureDate
		UpdatedAt     time.Time
	}
)

// PlaceholderName is the name prefix given to students added from the editor.
const PlaceholderName = "Học sinh"

// New returns an empty ledger for key.
func New(key Key) Ledger {
	return Ledger{Key: key, Students: []Student{}}
}

// NewStudentID generates a fresh, never reused student identity token.
func NewStudentID() string {
	return uuid.NewString()
}

// Validate checks the key ranges.
func (k Key) Validate() error {
	if strings.TrimSpace(k.OwnerID) == "" {
		return fmt.Errorf("empty owner id")
	}
	if k.Month < 0 || k.Month > 11 {
		return fmt.Errorf("%w: %d", ErrInvalidMonth, k.Month)
	}
	if k.Year < 1900 || k.Year > 9999 {
		return fmt.Errorf("invalid year: %d", k.Year)
	}
	return nil
}

// Before reports whether k's month comes strictly before other's.
func (k Key) Before(other Key) bool {
	if k.Year != other.Year {
		return k.Year < other.Year
	}
	return k.Month < other.Month
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%04d-%02d", k.OwnerID, k.Year, k.Month+1)
}

// DaysInMonth returns the number of days of the ledger's month.
func (l Ledger) DaysInMonth() int {
	return DaysInMonth(l.Month, l.Year)
}

// Clone returns a deep copy of the ledger.
func (l Ledger) Clone() Ledger {
	out := l
	out.Students = make([]Student, len(l.Students))
	for i, s := range l.Students {
		out.Students[i] = s.Clone()
	}
	return out
}

// Clone returns a deep copy of the student.
func (s Student) Clone() Student {
	s.Meals = s.Meals.Clone()
	return s
}

// Index returns the roster position of the student with id, or -1.
func (l Ledger) Index(id string) int {
	for i, s := range l.Students {
		if s.ID == id {
			return i
		}
	}
	return -1
}

// Student returns the student with id.
func (l Ledger) Student(id string) (Student, bool) {
	if i := l.Index(id); i >= 0 {
		return l.Students[i], true
	}
	return Student{}, false
}

// ValidDay reports an error when day is outside 1..DaysInMonth.
func (l Ledger) ValidDay(day int) error {
	if day < 1 || day > l.DaysInMonth() {
		return fmt.Errorf("%w: %d (month has %d days)", ErrInvalidDay, day, l.DaysInMonth())
	}
	return nil
}

// AddStudent appends a student with empty marks and a placeholder name.
// The new student is returned along with the new ledger.
func (l Ledger) AddStudent() (Ledger, Student) {
	out := l.Clone()
	s := Student{
		ID:    NewStudentID(),
		Name:  fmt.Sprintf("%s %d", PlaceholderName, len(out.Students)+1),
		Meals: DayMarks{},
	}
	out.Students = append(out.Students, s)
	return out, s.Clone()
}

// RemoveStudent drops the student with id. Removing an unknown id is a no-op.
func (l Ledger) RemoveStudent(id string) Ledger {
	out := l.Clone()
	if i := out.Index(id); i >= 0 {
		out.Students = append(out.Students[:i], out.Students[i+1:]...)
	}
	return out
}

// RenameStudent replaces the student's name. Any string is accepted.
func (l Ledger) RenameStudent(id, name string) (Ledger, error) {
	i := l.Index(id)
	if i < 0 {
		return l, fmt.Errorf("%w: %s", ErrUnknownStudent, id)
	}
	out := l.Clone()
	out.Students[i].Name = name
	return out, nil
}

// ReplaceRoster discards every student and their marks and builds a new
// roster from names, in order, with fresh identities.
func (l Ledger) ReplaceRoster(names []string) Ledger {
	out := l.Clone()
	out.Students = make([]Student, 0, len(names))
	for _, n := range names {
		out.Students = append(out.Students, Student{ID: NewStudentID(), Name: n, Meals: DayMarks{}})
	}
	return out
}

// UpdateDetails replaces the header fields.
func (l Ledger) UpdateDetails(d Details) Ledger {
	out := l.Clone()
	out.Details = d
	return out
}

// SetQuota replaces the standard meal quota.
func (l Ledger) SetQuota(q Quota) Ledger {
	out := l.Clone()
	out.StandardMeals = q
	return out
}

// SetSignatureDate replaces the footer date.
func (l Ledger) SetSignatureDate(d SignatureDate) Ledger {
	out := l.Clone()
	out.SignatureDate = d
	return out
}

// EffectiveSignatureDate returns the footer date, defaulting to the last day
// of the ledger's month when none was set.
func (l Ledger) EffectiveSignatureDate() SignatureDate {
	if l.SignatureDate.Day > 0 && l.SignatureDate.Month > 0 && l.SignatureDate.Year > 0 {
		return l.SignatureDate
	}
	return SignatureDate{Day: l.DaysInMonth(), Month: l.Month + 1, Year: l.Year}
}
