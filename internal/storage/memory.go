package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"mealbook/internal/ledger"
)

// MemoryStore keeps ledgers in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	ledgers map[ledger.Key]ledger.Ledger
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		ledgers: make(map[ledger.Key]ledger.Ledger),
		now:     time.Now,
	}
}

func (s *MemoryStore) Fetch(_ context.Context, key ledger.Key) (ledger.Ledger, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.ledgers[key]
	if !ok {
		return ledger.Ledger{}, ErrNotFound
	}
	return l.Clone(), nil
}

func (s *MemoryStore) FetchLatestBefore(_ context.Context, owner string, month, year int) (ledger.Ledger, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	bound := ledger.Key{OwnerID: owner, Month: month, Year: year}
	var (
		best  ledger.Ledger
		found bool
	)
	for k, l := range s.ledgers {
		if k.OwnerID != owner || !k.Before(bound) {
			continue
		}
		if !found || best.Key.Before(k) {
			best, found = l, true
		}
	}
	if !found {
		return ledger.Ledger{}, ErrNotFound
	}
	return best.Clone(), nil
}

func (s *MemoryStore) Upsert(_ context.Context, l ledger.Ledger) (ledger.Ledger, error) {
	if err := l.Key.Validate(); err != nil {
		return ledger.Ledger{}, fmt.Errorf("upsert ledger: %w", err)
	}
	saved := l.Clone()
	saved.UpdatedAt = s.now().UTC()

	s.mu.Lock()
	s.ledgers[l.Key] = saved
	s.mu.Unlock()
	return saved.Clone(), nil
}

// Len returns the number of stored ledgers.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ledgers)
}

func (s *MemoryStore) Close() error { return nil }
