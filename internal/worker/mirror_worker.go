// Package worker consumes ledger save announcements and mirrors the saved
// ledgers into the configured spreadsheet.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"mealbook/internal/amqp"
	"mealbook/internal/cache"
	"mealbook/internal/ledger"
	"mealbook/internal/log"
	"mealbook/internal/sheets"
	"mealbook/internal/storage"
)

// Fetcher loads the stored copy of a ledger.
type Fetcher interface {
	Fetch(ctx context.Context, key ledger.Key) (ledger.Ledger, error)
}

// Mirrored versions are remembered for the most recently saved ledgers only.
// A forgotten version costs one redundant mirror write.
const (
	mirroredCapacity = 4096
	mirroredTTL      = 24 * time.Hour
)

// MirrorWorker mirrors every announced ledger at most once per stored version.
type MirrorWorker struct {
	store    Fetcher
	mirror   sheets.LedgerMirror
	logger   *log.Logger
	mirrored *cache.LRUCache[time.Time]
}

func NewMirrorWorker(store Fetcher, mirror sheets.LedgerMirror) *MirrorWorker {
	return &MirrorWorker{
		store:    store,
		mirror:   mirror,
		logger:   log.NewLogger(log.ComponentWorker),
		mirrored: cache.NewLRUCache[time.Time](mirroredCapacity, mirroredTTL),
	}
}

// HandleLedgerSaved mirrors the current stored ledger named by msg. Returning
// an error requeues the message.
func (w *MirrorWorker) HandleLedgerSaved(ctx context.Context, msg *amqp.LedgerSavedMessage) error {
	key := msg.Key()
	fields := log.NewFields().WithLedger(key.OwnerID, key.Month, key.Year).WithOperation(log.OpMirror)

	l, err := w.store.Fetch(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		w.logger.WarnContext(ctx, "Announced ledger not found, skipping", fields.ToSlice()...)
		return nil
	}
	if err != nil {
		return fmt.Errorf("fetch ledger %s: %w", key, err)
	}

	if w.alreadyMirrored(key, l.UpdatedAt) {
		w.logger.DebugContext(ctx, "Ledger version already mirrored", fields.ToSlice()...)
		return nil
	}

	if err := w.mirror.Mirror(ctx, l); err != nil {
		return fmt.Errorf("mirror ledger %s: %w", key, err)
	}

	w.mirrored.Set(key.String(), l.UpdatedAt)

	w.logger.InfoContext(ctx, "Ledger mirrored", append(fields.ToSlice(), log.FieldCount, len(l.Students))...)
	return nil
}

func (w *MirrorWorker) alreadyMirrored(key ledger.Key, updatedAt time.Time) bool {
	last, ok := w.mirrored.Get(key.String())
	return ok && !updatedAt.After(last)
}
