package ledger

import (
	"fmt"
	"time"
)

// Toggle flips one mark, creating the day entry from all-false when absent.
func (l Ledger) Toggle(id string, day int, m Meal) (Ledger, error) {
	i, err := l.cell(id, day, m)
	if err != nil {
		return l, err
	}
	out := l.Clone()
	marks := out.Students[i].Meals
	marks[day] = marks.Get(day).With(m, !marks.Get(day).Get(m))
	return out, nil
}

// SetMark sets one mark to v, creating the day entry when absent.
func (l Ledger) SetMark(id string, day int, m Meal, v bool) (Ledger, error) {
	i, err := l.cell(id, day, m)
	if err != nil {
		return l, err
	}
	out := l.Clone()
	marks := out.Students[i].Meals
	marks[day] = marks.Get(day).With(m, v)
	return out, nil
}

func (l Ledger) cell(id string, day int, m Meal) (int, error) {
	if !m.Valid() {
		return -1, fmt.Errorf("%w: %d", ErrInvalidMeal, int(m))
	}
	if err := l.ValidDay(day); err != nil {
		return -1, err
	}
	i := l.Index(id)
	if i < 0 {
		return -1, fmt.Errorf("%w: %s", ErrUnknownStudent, id)
	}
	return i, nil
}

// FillColumn marks meal m on day for every student.
func (l Ledger) FillColumn(day int, m Meal) (Ledger, error) {
	return l.setColumn(day, m, func(int) bool { return true })
}

// ClearColumn unmarks meal m on day for every student. Other meals of the
// day are left alone.
func (l Ledger) ClearColumn(day int, m Meal) (Ledger, error) {
	return l.setColumn(day, m, func(int) bool { return false })
}

func (l Ledger) setColumn(day int, m Meal, value func(pos int) bool) (Ledger, error) {
	if !m.Valid() {
		return l, fmt.Errorf("%w: %d", ErrInvalidMeal, int(m))
	}
	if err := l.ValidDay(day); err != nil {
		return l, err
	}
	out := l.Clone()
	for i := range out.Students {
		marks := out.Students[i].Meals
		marks[day] = marks.Get(day).With(m, value(i))
	}
	return out, nil
}

// ClearDay removes the day entry for every student.
func (l Ledger) ClearDay(day int) (Ledger, error) {
	if err := l.ValidDay(day); err != nil {
		return l, err
	}
	out := l.Clone()
	for i := range out.Students {
		delete(out.Students[i].Meals, day)
	}
	return out, nil
}

// ClearMonth resets every student's marks. Names and order are kept.
func (l Ledger) ClearMonth() Ledger {
	out := l.Clone()
	for i := range out.Students {
		out.Students[i].Meals = DayMarks{}
	}
	return out
}

// ClearRoster removes every student.
func (l Ledger) ClearRoster() Ledger {
	out := l.Clone()
	out.Students = []Student{}
	return out
}

// AutoFillMonth marks the usual boarding schedule for every student:
// Monday to Thursday all three meals, Friday breakfast and lunch only.
// Weekend days are not touched and no entry is created for them; weekdays
// are overwritten even when already marked.
func (l Ledger) AutoFillMonth() Ledger {
	out := l.Clone()
	n := out.DaysInMonth()
	for day := 1; day <= n; day++ {
		var mk Marks
		switch Weekday(day, out.Month, out.Year) {
		case time.Saturday, time.Sunday:
			continue
		case time.Friday:
			mk = Marks{S: true, T1: true, T2: false}
		default:
			mk = Marks{S: true, T1: true, T2: true}
		}
		for i := range out.Students {
			out.Students[i].Meals[day] = mk
		}
	}
	return out
}
