package ledger

import (
	"fmt"
	"strings"
)

// Meal identifies one of the three daily meals tracked per student.
type Meal int

const (
	Breakfast Meal = iota // Sáng
	Lunch                 // Trưa
	Dinner                // Tối
)

// Meals lists the meals in column order.
var Meals = []Meal{Breakfast, Lunch, Dinner}

// String returns the storage key used for the meal: S, T1 or T2.
func (m Meal) String() string {
	switch m {
	case Breakfast:
		return "S"
	case Lunch:
		return "T1"
	case Dinner:
		return "T2"
	default:
		return fmt.Sprintf("Meal(%d)", int(m))
	}
}

// Label returns the single-letter column label printed on the paper form.
func (m Meal) Label() string {
	switch m {
	case Breakfast:
		return "S"
	case Lunch, Dinner:
		return "T"
	default:
		return "?"
	}
}

// Valid reports whether m is one of the three known meals.
func (m Meal) Valid() bool {
	return m >= Breakfast && m <= Dinner
}

// ParseMeal accepts S/T1/T2 (case-insensitive) as well as the Vietnamese
// names sang/trua/toi.
func ParseMeal(s string) (Meal, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "s", "sang", "sáng", "breakfast":
		return Breakfast, nil
	case "t1", "trua", "trưa", "lunch":
		return Lunch, nil
	case "t2", "toi", "tối", "dinner":
		return Dinner, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidMeal, s)
}

// Marks holds the three meal flags for a single day.
type Marks struct {
	S  bool `json:"S"`
	T1 bool `json:"T1"`
	T2 bool `json:"T2"`
}

// Get returns the flag for meal m.
func (mk Marks) Get(m Meal) bool {
	switch m {
	case Breakfast:
		return mk.S
	case Lunch:
		return mk.T1
	case Dinner:
		return mk.T2
	}
	return false
}

// With returns a copy of mk with the flag for meal m set to v.
func (mk Marks) With(m Meal, v bool) Marks {
	switch m {
	case Breakfast:
		mk.S = v
	case Lunch:
		mk.T1 = v
	case Dinner:
		mk.T2 = v
	}
	return mk
}

// Any reports whether at least one meal is marked.
func (mk Marks) Any() bool {
	return mk.S || mk.T1 || mk.T2
}

// DayMarks maps day-of-month to that day's marks. A missing day reads as all
// false; presence still matters to ClearDay and AutoFillMonth.
type DayMarks map[int]Marks

// Get returns the marks for day, synthesizing the zero value when absent.
func (dm DayMarks) Get(day int) Marks {
	return dm[day]
}

// Has reports whether an entry exists for day.
func (dm DayMarks) Has(day int) bool {
	_, ok := dm[day]
	return ok
}

// Clone returns a deep copy. A nil receiver clones to an empty, non-nil map.
func (dm DayMarks) Clone() DayMarks {
	out := make(DayMarks, len(dm))
	for d, m := range dm {
		out[d] = m
	}
	return out
}

// Count returns how many days have meal m marked.
func (dm DayMarks) Count(m Meal) int {
	n := 0
	for _, mk := range dm {
		if mk.Get(m) {
			n++
		}
	}
	return n
}
