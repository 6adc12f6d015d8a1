package ledger

import "fmt"

// Clipboard holds one copied row (a student's marks) and one copied column
// (a day/meal vector in roster order). It belongs to an editing session and
// is never persisted.
//
// The column is pasted back by position, not by student identity: if the
// roster was reordered or resized after the copy, values land on whoever now
// occupies each position, and missing positions paste as false.
type Clipboard struct {
	row       DayMarks
	hasRow    bool
	column    []bool
	hasColumn bool
}

// HasRow reports whether a row has been copied.
func (c *Clipboard) HasRow() bool { return c.hasRow }

// HasColumn reports whether a column has been copied.
func (c *Clipboard) HasColumn() bool { return c.hasColumn }

// Column returns a copy of the stored column vector.
func (c *Clipboard) Column() []bool {
	return append([]bool(nil), c.column...)
}

// CopyRow stores a deep copy of the student's marks.
func (c *Clipboard) CopyRow(l Ledger, id string) error {
	s, ok := l.Student(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownStudent, id)
	}
	c.row = s.Meals.Clone()
	c.hasRow = true
	return nil
}

// PasteRow replaces the target student's marks with the stored row.
func (c *Clipboard) PasteRow(l Ledger, id string) (Ledger, error) {
	if !c.hasRow {
		return l, ErrEmptyClipboard
	}
	i := l.Index(id)
	if i < 0 {
		return l, fmt.Errorf("%w: %s", ErrUnknownStudent, id)
	}
	out := l.Clone()
	out.Students[i].Meals = c.row.Clone()
	return out, nil
}

// PasteRowToAll replaces every student's marks with the stored row.
func (c *Clipboard) PasteRowToAll(l Ledger) (Ledger, error) {
	if !c.hasRow {
		return l, ErrEmptyClipboard
	}
	out := l.Clone()
	for i := range out.Students {
		out.Students[i].Meals = c.row.Clone()
	}
	return out, nil
}

// CopyColumn stores the value of (day, m) for every student in current order.
func (c *Clipboard) CopyColumn(l Ledger, day int, m Meal) error {
	if !m.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidMeal, int(m))
	}
	if err := l.ValidDay(day); err != nil {
		return err
	}
	col := make([]bool, len(l.Students))
	for i, s := range l.Students {
		col[i] = s.Meals.Get(day).Get(m)
	}
	c.column = col
	c.hasColumn = true
	return nil
}

// PasteColumn writes the stored vector into (day, m) by roster position.
func (c *Clipboard) PasteColumn(l Ledger, day int, m Meal) (Ledger, error) {
	if !c.hasColumn {
		return l, ErrEmptyClipboard
	}
	col := c.column
	return l.setColumn(day, m, func(pos int) bool {
		return pos < len(col) && col[pos]
	})
}
