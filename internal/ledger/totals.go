package ledger

// Counts holds per-meal counts for a student's month.
type Counts struct {
	S  int `json:"S"`
	T1 int `json:"T1"`
	T2 int `json:"T2"`
}

// Get returns the count for meal m.
func (c Counts) Get(m Meal) int {
	switch m {
	case Breakfast:
		return c.S
	case Lunch:
		return c.T1
	case Dinner:
		return c.T2
	}
	return 0
}

// StudentTotals is the derived monthly summary of one student.
type StudentTotals struct {
	StudentID   string `json:"studentId"`
	Fulfilled   Counts `json:"fulfilled"`
	Unfulfilled Counts `json:"unfulfilled"`
}

// CountMeals counts the marked days of each meal. Absent days and explicit
// all-false entries contribute nothing.
func CountMeals(dm DayMarks) Counts {
	return Counts{
		S:  dm.Count(Breakfast),
		T1: dm.Count(Lunch),
		T2: dm.Count(Dinner),
	}
}

// Shortfall returns quota minus counts. The result may be negative.
func Shortfall(q Quota, c Counts) Counts {
	return Counts{S: q.S - c.S, T1: q.T1 - c.T1, T2: q.T2 - c.T2}
}

// CalculateStudentTotals derives the totals for a student under quota q.
func CalculateStudentTotals(s Student, q Quota) StudentTotals {
	c := CountMeals(s.Meals)
	return StudentTotals{StudentID: s.ID, Fulfilled: c, Unfulfilled: Shortfall(q, c)}
}

// Totals returns the totals of every student in roster order.
func (l Ledger) Totals() []StudentTotals {
	out := make([]StudentTotals, len(l.Students))
	for i, s := range l.Students {
		out[i] = CalculateStudentTotals(s, l.StandardMeals)
	}
	return out
}

// Headcount returns how many students have meal m marked on day.
func (l Ledger) Headcount(day int, m Meal) int {
	n := 0
	for _, s := range l.Students {
		if s.Meals.Get(day).Get(m) {
			n++
		}
	}
	return n
}

// DailyHeadcounts returns, for every day of the month, the headcount of each
// meal. Index 0 is day 1.
func (l Ledger) DailyHeadcounts() []Counts {
	n := l.DaysInMonth()
	out := make([]Counts, n)
	for d := 1; d <= n; d++ {
		out[d-1] = Counts{
			S:  l.Headcount(d, Breakfast),
			T1: l.Headcount(d, Lunch),
			T2: l.Headcount(d, Dinner),
		}
	}
	return out
}
