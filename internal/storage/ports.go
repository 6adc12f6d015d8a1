package storage

import (
	"context"
	"errors"

	"mealbook/internal/ledger"
)

// ErrNotFound is returned when no ledger is stored for the requested key.
var ErrNotFound = errors.New("ledger not found")

// LedgerStore persists whole ledgers, one row per owner and month.
type LedgerStore interface {
	// Fetch returns the ledger stored for key or ErrNotFound.
	Fetch(ctx context.Context, key ledger.Key) (ledger.Ledger, error)
	// FetchLatestBefore returns the most recent ledger of owner strictly
	// before the given month, or ErrNotFound.
	FetchLatestBefore(ctx context.Context, owner string, month, year int) (ledger.Ledger, error)
	// Upsert inserts or overwrites the ledger and returns it with UpdatedAt set.
	Upsert(ctx context.Context, l ledger.Ledger) (ledger.Ledger, error)
	Close() error
}
