package session

import (
	"errors"
	"fmt"
	"time"

	"mealbook/internal/ledger"
)

var (
	// ErrNoLedger is returned by edits issued before Open or after Close.
	ErrNoLedger = errors.New("no ledger open")
	// ErrNoPriorLedger is returned by Sync when no earlier month exists.
	ErrNoPriorLedger = errors.New("no prior ledger to sync from")
	// ErrStorageFailure wraps every read or upsert failure of the store.
	ErrStorageFailure = errors.New("storage failure")
)

// SaveState is the persistence state of the open ledger.
type SaveState int

const (
	// Clean means the stored copy matches the ledger in memory.
	Clean SaveState = iota
	// Dirty means there are edits that have not been persisted yet.
	Dirty
	// Saving means an upsert is in flight.
	Saving
)

func (s SaveState) String() string {
	switch s {
	case Clean:
		return "clean"
	case Dirty:
		return "dirty"
	case Saving:
		return "saving"
	default:
		return "unknown"
	}
}

func (s SaveState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *SaveState) UnmarshalText(b []byte) error {
	switch string(b) {
	case "clean":
		*s = Clean
	case "dirty":
		*s = Dirty
	case "saving":
		*s = Saving
	default:
		return fmt.Errorf("unknown save state %q", b)
	}
	return nil
}

// Status is a point in time view of the editor.
type Status struct {
	Open      bool       `json:"open"`
	Key       ledger.Key `json:"-"`
	State     SaveState  `json:"state"`
	Revision  uint64     `json:"revision"`
	LastError string     `json:"lastError,omitempty"`
	LastSaved time.Time  `json:"lastSaved,omitempty"`
	HasRow    bool       `json:"hasRowClipboard"`
	HasColumn bool       `json:"hasColumnClipboard"`
}

// OpenResult describes how Open obtained the ledger.
type OpenResult struct {
	Ledger ledger.Ledger
	// Seeded is true when the roster was carried over from an earlier month.
	Seeded bool
	// Created is true when nothing was stored for the month.
	Created bool
}
