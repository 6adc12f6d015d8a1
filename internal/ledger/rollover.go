package ledger

// Seed builds the first ledger of a month from the most recent prior one.
// Header details and the quota are copied, students keep their identity and
// name, and every student starts with no marks. The signature date is not
// carried because it belongs to the prior month.
func Seed(key Key, prior Ledger) Ledger {
	out := New(key)
	out.Details = prior.Details
	out.StandardMeals = prior.StandardMeals
	for _, ps := range prior.Students {
		out.Students = append(out.Students, Student{ID: ps.ID, Name: ps.Name, Meals: DayMarks{}})
	}
	return out
}

// SyncResult describes what Reconcile changed.
type SyncResult struct {
	Added   []string `json:"added"`
	Renamed []string `json:"renamed"`
}

// Changed reports whether the reconciliation altered the roster.
func (r SyncResult) Changed() bool {
	return len(r.Added) > 0 || len(r.Renamed) > 0
}

// Reconcile merges the prior month's roster into current without touching
// current marks or order. Students missing by id are appended with no marks;
// students present by id take the prior name.
func Reconcile(current, prior Ledger) (Ledger, SyncResult) {
	out := current.Clone()
	var res SyncResult
	for _, ps := range prior.Students {
		i := out.Index(ps.ID)
		if i < 0 {
			out.Students = append(out.Students, Student{ID: ps.ID, Name: ps.Name, Meals: DayMarks{}})
			res.Added = append(res.Added, ps.ID)
			continue
		}
		if out.Students[i].Name != ps.Name {
			out.Students[i].Name = ps.Name
			res.Renamed = append(res.Renamed, ps.ID)
		}
	}
	return out, res
}
