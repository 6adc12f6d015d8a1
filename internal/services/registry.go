package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"mealbook/internal/log"
	"mealbook/internal/session"
)

// SessionRegistry hands out one editor per owner.
type SessionRegistry struct {
	store  session.Store
	config session.Config
	logger *log.Logger
	now    func() time.Time

	mu      sync.Mutex
	editors map[string]*entry
}

type entry struct {
	editor   *session.Editor
	lastUsed time.Time
}

func NewSessionRegistry(store session.Store, config session.Config) *SessionRegistry {
	return &SessionRegistry{
		store:   store,
		config:  config,
		logger:  log.NewLogger(log.ComponentSession),
		now:     time.Now,
		editors: make(map[string]*entry),
	}
}

// Editor returns the owner's editor, creating it on first use.
func (r *SessionRegistry) Editor(owner string) *session.Editor {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.editors[owner]
	if !ok {
		e = &entry{editor: session.NewEditor(owner, r.store, r.config)}
		r.editors[owner] = e
	}
	e.lastUsed = r.now()
	return e.editor
}

// Lookup returns the owner's editor without creating one.
func (r *SessionRegistry) Lookup(owner string) (*session.Editor, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.editors[owner]
	if !ok {
		return nil, false
	}
	e.lastUsed = r.now()
	return e.editor, true
}

// Len returns the number of live editors.
func (r *SessionRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.editors)
}

// Logout flushes and closes the owner's editor. The editor is kept when the
// flush fails so the edits are not lost.
func (r *SessionRegistry) Logout(ctx context.Context, owner string) error {
	r.mu.Lock()
	e, ok := r.editors[owner]
	r.mu.Unlock()
	if !ok {
		return nil
	}
	if err := e.editor.Close(ctx); err != nil {
		return fmt.Errorf("logout %s: %w", owner, err)
	}

	r.mu.Lock()
	if cur, ok := r.editors[owner]; ok && cur == e {
		delete(r.editors, owner)
	}
	r.mu.Unlock()
	return nil
}

// CloseIdle logs out every editor unused for longer than maxIdle and returns
// how many were closed.
func (r *SessionRegistry) CloseIdle(ctx context.Context, maxIdle time.Duration) (int, error) {
	cutoff := r.now().Add(-maxIdle)
	r.mu.Lock()
	var idle []string
	for owner, e := range r.editors {
		if e.lastUsed.Before(cutoff) {
			idle = append(idle, owner)
		}
	}
	r.mu.Unlock()

	var (
		errs   []error
		closed int
	)
	for _, owner := range idle {
		if err := r.Logout(ctx, owner); err != nil {
			errs = append(errs, err)
			continue
		}
		closed++
	}
	return closed, errors.Join(errs...)
}

// Shutdown flushes every open editor.
func (r *SessionRegistry) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	owners := make([]string, 0, len(r.editors))
	for owner := range r.editors {
		owners = append(owners, owner)
	}
	r.mu.Unlock()

	var errs []error
	for _, owner := range owners {
		if err := r.Logout(ctx, owner); err != nil {
			r.logger.ErrorContext(ctx, "Failed to flush session on shutdown",
				log.FieldOwnerID, owner,
				log.FieldError, err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
