package session

import (
	"context"
	"errors"
	"fmt"

	"mealbook/internal/ledger"
	"mealbook/internal/log"
	"mealbook/internal/storage"
)

// AddStudent appends a placeholder student and returns it.
func (e *Editor) AddStudent() (ledger.Ledger, ledger.Student, error) {
	var added ledger.Student
	l, err := e.mutate(func(l ledger.Ledger) (ledger.Ledger, error) {
		next, s := l.AddStudent()
		added = s
		return next, nil
	})
	return l, added, err
}

func (e *Editor) RemoveStudent(id string) (ledger.Ledger, error) {
	return e.mutate(func(l ledger.Ledger) (ledger.Ledger, error) {
		return l.RemoveStudent(id), nil
	})
}

func (e *Editor) RenameStudent(id, name string) (ledger.Ledger, error) {
	return e.mutate(func(l ledger.Ledger) (ledger.Ledger, error) {
		return l.RenameStudent(id, name)
	})
}

// ReplaceRoster swaps the roster for fresh students named names.
func (e *Editor) ReplaceRoster(names []string) (ledger.Ledger, error) {
	return e.mutate(func(l ledger.Ledger) (ledger.Ledger, error) {
		return l.ReplaceRoster(names), nil
	})
}

func (e *Editor) UpdateDetails(d ledger.Details) (ledger.Ledger, error) {
	return e.mutate(func(l ledger.Ledger) (ledger.Ledger, error) {
		return l.UpdateDetails(d), nil
	})
}

func (e *Editor) SetQuota(q ledger.Quota) (ledger.Ledger, error) {
	return e.mutate(func(l ledger.Ledger) (ledger.Ledger, error) {
		return l.SetQuota(q), nil
	})
}

func (e *Editor) SetSignatureDate(d ledger.SignatureDate) (ledger.Ledger, error) {
	return e.mutate(func(l ledger.Ledger) (ledger.Ledger, error) {
		return l.SetSignatureDate(d), nil
	})
}

func (e *Editor) Toggle(id string, day int, m ledger.Meal) (ledger.Ledger, error) {
	return e.mutate(func(l ledger.Ledger) (ledger.Ledger, error) {
		return l.Toggle(id, day, m)
	})
}

func (e *Editor) SetMark(id string, day int, m ledger.Meal, v bool) (ledger.Ledger, error) {
	return e.mutate(func(l ledger.Ledger) (ledger.Ledger, error) {
		return l.SetMark(id, day, m, v)
	})
}

func (e *Editor) FillColumn(day int, m ledger.Meal) (ledger.Ledger, error) {
	return e.mutate(func(l ledger.Ledger) (ledger.Ledger, error) {
		return l.FillColumn(day, m)
	})
}

func (e *Editor) ClearColumn(day int, m ledger.Meal) (ledger.Ledger, error) {
	return e.mutate(func(l ledger.Ledger) (ledger.Ledger, error) {
		return l.ClearColumn(day, m)
	})
}

func (e *Editor) ClearDay(day int) (ledger.Ledger, error) {
	return e.mutate(func(l ledger.Ledger) (ledger.Ledger, error) {
		return l.ClearDay(day)
	})
}

func (e *Editor) ClearMonth() (ledger.Ledger, error) {
	return e.mutate(func(l ledger.Ledger) (ledger.Ledger, error) {
		return l.ClearMonth(), nil
	})
}

func (e *Editor) ClearRoster() (ledger.Ledger, error) {
	return e.mutate(func(l ledger.Ledger) (ledger.Ledger, error) {
		return l.ClearRoster(), nil
	})
}

func (e *Editor) AutoFillMonth() (ledger.Ledger, error) {
	return e.mutate(func(l ledger.Ledger) (ledger.Ledger, error) {
		return l.AutoFillMonth(), nil
	})
}

// CopyRow stores the student's marks in the row clipboard.
func (e *Editor) CopyRow(id string) error {
	return e.read(func(l ledger.Ledger) error {
		return e.clip.CopyRow(l, id)
	})
}

func (e *Editor) PasteRow(id string) (ledger.Ledger, error) {
	return e.mutate(func(l ledger.Ledger) (ledger.Ledger, error) {
		return e.clip.PasteRow(l, id)
	})
}

func (e *Editor) PasteRowToAll() (ledger.Ledger, error) {
	return e.mutate(func(l ledger.Ledger) (ledger.Ledger, error) {
		return e.clip.PasteRowToAll(l)
	})
}

// CopyColumn stores one day/meal column in roster order.
func (e *Editor) CopyColumn(day int, m ledger.Meal) error {
	return e.read(func(l ledger.Ledger) error {
		return e.clip.CopyColumn(l, day, m)
	})
}

func (e *Editor) PasteColumn(day int, m ledger.Meal) (ledger.Ledger, error) {
	return e.mutate(func(l ledger.Ledger) (ledger.Ledger, error) {
		return e.clip.PasteColumn(l, day, m)
	})
}

// Sync merges roster changes from the latest earlier month into the open
// ledger. Marks of the open month are never touched.
func (e *Editor) Sync(ctx context.Context) (ledger.SyncResult, error) {
	var key ledger.Key
	if err := e.read(func(l ledger.Ledger) error {
		key = l.Key
		return nil
	}); err != nil {
		return ledger.SyncResult{}, err
	}

	prior, err := e.store.FetchLatestBefore(ctx, key.OwnerID, key.Month, key.Year)
	if errors.Is(err, storage.ErrNotFound) {
		return ledger.SyncResult{}, ErrNoPriorLedger
	}
	if err != nil {
		return ledger.SyncResult{}, fmt.Errorf("%w: fetch prior to %s: %v", ErrStorageFailure, key, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.open || e.current.Key != key {
		return ledger.SyncResult{}, ErrNoLedger
	}
	next, res := ledger.Reconcile(e.current, prior)
	if !res.Changed() {
		return res, nil
	}
	e.current = next
	e.markDirtyLocked()

	e.logger.InfoContext(ctx, "Roster synced from prior month",
		log.FieldOperation, log.OpSync,
		"added", len(res.Added),
		"renamed", len(res.Renamed))
	return res, nil
}
