package ledger

import "testing"

func TestCountMealsSparseAndDenseAgree(t *testing.T) {
	sparse := DayMarks{3: {S: true}, 7: {S: true, T1: true}}
	dense := DayMarks{}
	for d := 31; d >= 1; d-- {
		dense[d] = Marks{}
	}
	dense[7] = Marks{S: true, T1: true}
	dense[3] = Marks{S: true}

	if CountMeals(sparse) != CountMeals(dense) {
		t.Fatalf("sparse %+v and dense %+v counts differ", CountMeals(sparse), CountMeals(dense))
	}
	if got := CountMeals(sparse); got != (Counts{S: 2, T1: 1}) {
		t.Fatalf("unexpected counts %+v", got)
	}
}

func TestShortfallMayBeNegative(t *testing.T) {
	s := Student{ID: "a", Meals: DayMarks{1: {S: true, T1: true}, 2: {S: true}}}
	got := CalculateStudentTotals(s, Quota{S: 1, T1: 20, T2: 0})
	if got.Fulfilled != (Counts{S: 2, T1: 1}) {
		t.Fatalf("fulfilled: %+v", got.Fulfilled)
	}
	if got.Unfulfilled != (Counts{S: -1, T1: 19, T2: 0}) {
		t.Fatalf("unfulfilled: %+v", got.Unfulfilled)
	}
}

func TestHeadcounts(t *testing.T) {
	l := testLedger("Linh", "Mai", "An")
	l.Students[0].Meals[1] = Marks{S: true, T1: true}
	l.Students[1].Meals[1] = Marks{S: true}
	l.Students[2].Meals[2] = Marks{T2: true}

	if got := l.Headcount(1, Breakfast); got != 2 {
		t.Fatalf("headcount day 1 S = %d, want 2", got)
	}
	daily := l.DailyHeadcounts()
	if len(daily) != 31 {
		t.Fatalf("expected 31 days, got %d", len(daily))
	}
	if daily[0] != (Counts{S: 2, T1: 1}) || daily[1] != (Counts{T2: 1}) || daily[2] != (Counts{}) {
		t.Fatalf("unexpected daily headcounts: %+v", daily[:3])
	}
}
