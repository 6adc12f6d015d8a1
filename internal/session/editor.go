// Package session owns the single ledger a user is editing, the clipboard,
// and the debounced persistence of that ledger.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"mealbook/internal/ledger"
	"mealbook/internal/log"
	"mealbook/internal/storage"
)

// Store is the persistence the editor needs. Lookups report a miss with
// storage.ErrNotFound.
type Store interface {
	Fetch(ctx context.Context, key ledger.Key) (ledger.Ledger, error)
	FetchLatestBefore(ctx context.Context, owner string, month, year int) (ledger.Ledger, error)
	Upsert(ctx context.Context, l ledger.Ledger) (ledger.Ledger, error)
}

// DefaultAutosaveDelay is the quiet period after the last edit before the
// ledger is persisted.
const DefaultAutosaveDelay = 2 * time.Second

// Config holds editor configuration.
type Config struct {
	AutosaveDelay time.Duration
	// SaveTimeout bounds background saves triggered by the debounce timer.
	SaveTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		AutosaveDelay: DefaultAutosaveDelay,
		SaveTimeout:   30 * time.Second,
	}
}

// Editor serializes edits to one owner's open ledger.
type Editor struct {
	owner  string
	store  Store
	config Config
	logger *log.Logger

	// saveMu is held for the duration of an upsert and of navigation.
	saveMu sync.Mutex

	mu            sync.Mutex
	open          bool
	current       ledger.Ledger
	clip          ledger.Clipboard
	state         SaveState
	revision      uint64
	savedRevision uint64
	timer         *time.Timer
	timerGen      uint64
	lastErr       error
	lastSaved     time.Time
}

func NewEditor(owner string, store Store, config Config) *Editor {
	if config.AutosaveDelay <= 0 {
		config.AutosaveDelay = DefaultAutosaveDelay
	}
	if config.SaveTimeout <= 0 {
		config.SaveTimeout = 30 * time.Second
	}
	return &Editor{
		owner:  owner,
		store:  store,
		config: config,
		logger: log.NewLogger(log.ComponentSession).With(log.FieldOwnerID, owner),
	}
}

// Owner returns the owner the editor was created for.
func (e *Editor) Owner() string { return e.owner }

// Ledger returns the open ledger snapshot.
func (e *Editor) Ledger() (ledger.Ledger, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.open {
		return ledger.Ledger{}, ErrNoLedger
	}
	return e.current, nil
}

// Status reports the save state of the editor.
func (e *Editor) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	st := Status{
		Open:      e.open,
		State:     e.state,
		Revision:  e.revision,
		LastSaved: e.lastSaved,
		HasRow:    e.clip.HasRow(),
		HasColumn: e.clip.HasColumn(),
	}
	if e.open {
		st.Key = e.current.Key
	}
	if e.lastErr != nil {
		st.LastError = e.lastErr.Error()
	}
	return st
}

// LastError returns the error of the most recent failed save, if any.
func (e *Editor) LastError() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastErr
}

// Open flushes any pending edits, then loads the ledger for month/year.
// A month with nothing stored is seeded from the latest earlier month and
// left Dirty so the seed is persisted even without further edits.
func (e *Editor) Open(ctx context.Context, month, year int) (OpenResult, error) {
	key := ledger.Key{OwnerID: e.owner, Month: month, Year: year}
	if err := key.Validate(); err != nil {
		return OpenResult{}, err
	}

	e.saveMu.Lock()
	defer e.saveMu.Unlock()

	prev, hadPrev, err := e.detachLocked(ctx)
	if err != nil {
		return OpenResult{}, err
	}

	res, err := e.load(ctx, key)
	if err != nil {
		if hadPrev {
			e.attach(prev, Clean)
		}
		return OpenResult{}, err
	}

	state := Clean
	if res.Seeded {
		state = Dirty
	}
	e.attach(res.Ledger, state)

	e.logger.InfoContext(ctx, "Ledger opened",
		log.FieldOperation, log.OpOpen,
		log.FieldMonth, month+1,
		log.FieldYear, year,
		"seeded", res.Seeded,
		"created", res.Created)
	return res, nil
}

func (e *Editor) load(ctx context.Context, key ledger.Key) (OpenResult, error) {
	l, err := e.store.Fetch(ctx, key)
	if err == nil {
		return OpenResult{Ledger: l}, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return OpenResult{}, fmt.Errorf("%w: fetch %s: %v", ErrStorageFailure, key, err)
	}

	prior, err := e.store.FetchLatestBefore(ctx, key.OwnerID, key.Month, key.Year)
	switch {
	case err == nil:
		return OpenResult{Ledger: ledger.Seed(key, prior), Seeded: true, Created: true}, nil
	case errors.Is(err, storage.ErrNotFound):
		return OpenResult{Ledger: ledger.New(key), Created: true}, nil
	default:
		return OpenResult{}, fmt.Errorf("%w: fetch prior to %s: %v", ErrStorageFailure, key, err)
	}
}

// Close flushes pending edits and drops the ledger and clipboard.
func (e *Editor) Close(ctx context.Context) error {
	e.saveMu.Lock()
	defer e.saveMu.Unlock()

	if _, _, err := e.detachLocked(ctx); err != nil {
		return err
	}
	e.mu.Lock()
	e.clip = ledger.Clipboard{}
	e.mu.Unlock()

	e.logger.InfoContext(ctx, "Editor closed", log.FieldOperation, log.OpClose)
	return nil
}

// detachLocked removes the open ledger from the editor so no edit can land
// on it, and persists it if Dirty. On failure the ledger is put back Dirty.
// saveMu must be held.
func (e *Editor) detachLocked(ctx context.Context) (ledger.Ledger, bool, error) {
	e.mu.Lock()
	e.stopTimerLocked()
	if !e.open {
		e.mu.Unlock()
		return ledger.Ledger{}, false, nil
	}
	prev := e.current
	dirty := e.revision != e.savedRevision
	e.open = false
	e.mu.Unlock()

	if !dirty {
		return prev, true, nil
	}

	saved, err := e.store.Upsert(ctx, prev)
	if err != nil {
		err = fmt.Errorf("%w: %v", ErrStorageFailure, err)
		e.mu.Lock()
		e.open = true
		e.state = Dirty
		e.lastErr = err
		e.mu.Unlock()
		e.logger.ErrorContext(ctx, "Flush before navigation failed", log.FieldError, err)
		return ledger.Ledger{}, false, err
	}

	e.mu.Lock()
	e.savedRevision = e.revision
	e.state = Clean
	e.lastErr = nil
	e.lastSaved = saved.UpdatedAt
	e.mu.Unlock()
	prev.UpdatedAt = saved.UpdatedAt
	return prev, true, nil
}

func (e *Editor) attach(l ledger.Ledger, state SaveState) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.current = l
	e.open = true
	e.revision++
	if state == Clean {
		e.savedRevision = e.revision
		e.state = Clean
		return
	}
	e.state = Dirty
	e.armLocked()
}

// Save cancels the debounce timer and persists the ledger now.
func (e *Editor) Save(ctx context.Context) error {
	e.saveMu.Lock()
	defer e.saveMu.Unlock()
	return e.flushLocked(ctx)
}

// flushLocked persists the current snapshot if it is Dirty. saveMu must be held.
func (e *Editor) flushLocked(ctx context.Context) error {
	e.mu.Lock()
	e.stopTimerLocked()
	if !e.open || e.revision == e.savedRevision {
		e.mu.Unlock()
		return nil
	}
	snapshot := e.current
	rev := e.revision
	e.state = Saving
	e.mu.Unlock()

	saved, err := e.store.Upsert(ctx, snapshot)

	e.mu.Lock()
	defer e.mu.Unlock()
	if err != nil {
		e.state = Dirty
		e.lastErr = fmt.Errorf("%w: %v", ErrStorageFailure, err)
		e.logger.ErrorContext(ctx, "Ledger save failed",
			log.FieldOperation, log.OpSave,
			log.FieldRevision, rev,
			log.FieldError, err)
		return e.lastErr
	}

	e.savedRevision = rev
	e.lastErr = nil
	e.lastSaved = saved.UpdatedAt
	if e.revision == rev {
		e.state = Clean
		e.current.UpdatedAt = saved.UpdatedAt
	} else {
		// An edit landed while the upsert was in flight.
		e.state = Dirty
	}
	e.logger.DebugContext(ctx, "Ledger saved",
		log.FieldOperation, log.OpSave,
		log.FieldRevision, rev,
		log.FieldState, e.state.String())
	return nil
}

func (e *Editor) armLocked() {
	e.stopTimerLocked()
	gen := e.timerGen
	e.timer = time.AfterFunc(e.config.AutosaveDelay, func() { e.autosave(gen) })
}

func (e *Editor) stopTimerLocked() {
	e.timerGen++
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
}

func (e *Editor) autosave(gen uint64) {
	e.mu.Lock()
	stale := gen != e.timerGen
	e.mu.Unlock()
	if stale {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), e.config.SaveTimeout)
	defer cancel()

	e.saveMu.Lock()
	defer e.saveMu.Unlock()
	e.mu.Lock()
	stale = gen != e.timerGen
	e.mu.Unlock()
	if stale {
		return
	}
	// Errors are kept in LastError; the next edit re-arms the timer.
	_ = e.flushLocked(ctx)
}

// mutate applies fn to the open ledger and marks it Dirty if fn succeeds.
func (e *Editor) mutate(fn func(ledger.Ledger) (ledger.Ledger, error)) (ledger.Ledger, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.open {
		return ledger.Ledger{}, ErrNoLedger
	}
	next, err := fn(e.current)
	if err != nil {
		return ledger.Ledger{}, err
	}
	e.current = next
	e.markDirtyLocked()
	return next, nil
}

// markDirtyLocked records an edit and re-arms the debounce timer. An edit
// during Saving leaves the state alone; the save outcome resolves it.
func (e *Editor) markDirtyLocked() {
	e.revision++
	if e.state != Saving {
		e.state = Dirty
	}
	e.armLocked()
}

// read runs fn against the open ledger without marking it Dirty.
func (e *Editor) read(fn func(ledger.Ledger) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.open {
		return ErrNoLedger
	}
	return fn(e.current)
}
