package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"mealbook/internal/amqp"
	"mealbook/internal/ledger"
	"mealbook/internal/log"
	"mealbook/internal/storage"
)

// loadTimeout bounds a shared load, which no single caller can cancel.
const loadTimeout = 30 * time.Second

// LedgerService persists ledgers and announces every save on the broker.
// It implements session.Store.
type LedgerService struct {
	store     storage.LedgerStore
	publisher amqp.Publisher
	logger    *log.Logger
	loads     singleflight.Group
}

// NewLedgerService wires the store with an optional publisher; a nil
// publisher disables announcements.
func NewLedgerService(store storage.LedgerStore, publisher amqp.Publisher) *LedgerService {
	return &LedgerService{
		store:     store,
		publisher: publisher,
		logger:    log.NewLogger(log.ComponentLedger),
	}
}

// Fetch loads a ledger. Concurrent loads of the same key share one query.
func (s *LedgerService) Fetch(ctx context.Context, key ledger.Key) (ledger.Ledger, error) {
	return s.load(ctx, "fetch:"+key.String(), func(ctx context.Context) (ledger.Ledger, error) {
		return s.store.Fetch(ctx, key)
	})
}

func (s *LedgerService) FetchLatestBefore(ctx context.Context, owner string, month, year int) (ledger.Ledger, error) {
	k := fmt.Sprintf("prior:%s", ledger.Key{OwnerID: owner, Month: month, Year: year})
	return s.load(ctx, k, func(ctx context.Context) (ledger.Ledger, error) {
		return s.store.FetchLatestBefore(ctx, owner, month, year)
	})
}

// load runs fn once for all concurrent callers of key. The query runs
// detached from the caller that started it, so one cancelled request does
// not fail the others; each caller still stops waiting when its own ctx ends.
func (s *LedgerService) load(ctx context.Context, key string, fn func(context.Context) (ledger.Ledger, error)) (ledger.Ledger, error) {
	ch := s.loads.DoChan(key, func() (interface{}, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
		defer cancel()
		return fn(loadCtx)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return ledger.Ledger{}, res.Err
		}
		// Callers sharing the result must not share marks storage.
		return res.Val.(ledger.Ledger).Clone(), nil
	case <-ctx.Done():
		return ledger.Ledger{}, ctx.Err()
	}
}

// Upsert saves the ledger, then publishes a LedgerSaved message. A publish
// failure is logged and does not fail the save.
func (s *LedgerService) Upsert(ctx context.Context, l ledger.Ledger) (ledger.Ledger, error) {
	saved, err := s.store.Upsert(ctx, l)
	if err != nil {
		return ledger.Ledger{}, fmt.Errorf("save ledger: %w", err)
	}

	if err := s.publish(ctx, saved); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish ledger saved message",
			log.NewFields().
				WithLedger(saved.OwnerID, saved.Month, saved.Year).
				WithOperation(log.OpPublish).
				WithError(err).ToSlice()...)
	}
	return saved, nil
}

func (s *LedgerService) publish(ctx context.Context, l ledger.Ledger) error {
	if s.publisher == nil {
		return nil
	}
	return s.publisher.PublishLedgerSaved(ctx, amqp.NewLedgerSavedMessage(l))
}

// Close closes the store and the publisher when it can be closed.
func (s *LedgerService) Close() error {
	var errs []error
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}
	if c, ok := s.publisher.(interface{ Close() error }); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close ledger service: %w", errors.Join(errs...))
	}
	return nil
}
