package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"mealbook/internal/log"
)

// SweeperConfig holds configuration for the idle session sweeper
type SweeperConfig struct {
	// Interval is how often idle sessions are looked for (default: 1m)
	Interval time.Duration

	// MaxIdle is how long an editor may go unused before it is flushed and
	// closed (default: 30m)
	MaxIdle time.Duration

	// FlushTimeout bounds one sweep (default: 30s)
	FlushTimeout time.Duration
}

// DefaultSweeperConfig returns sensible defaults
func DefaultSweeperConfig() SweeperConfig {
	return SweeperConfig{
		Interval:     time.Minute,
		MaxIdle:      30 * time.Minute,
		FlushTimeout: 30 * time.Second,
	}
}

// SessionSweeper periodically closes editors nobody has used in a while,
// flushing their pending edits first.
type SessionSweeper struct {
	registry *SessionRegistry
	config   SweeperConfig
	logger   *log.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewSessionSweeper(registry *SessionRegistry, config SweeperConfig) *SessionSweeper {
	return &SessionSweeper{
		registry: registry,
		config:   config,
		logger:   log.NewLogger(log.ComponentSession),
	}
}

// Start begins the sweep loop. Returns an error if already running.
func (s *SessionSweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("session sweeper is already running")
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.mu.Unlock()

	go s.runLoop(ctx)

	s.logger.InfoContext(ctx, "Session sweeper started",
		"interval", s.config.Interval,
		"max_idle", s.config.MaxIdle)
	return nil
}

// Stop signals the loop and waits for it to finish.
func (s *SessionSweeper) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	stopCh, doneCh := s.stopCh, s.doneCh
	s.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
	case <-ctx.Done():
		s.logger.WarnContext(ctx, "Session sweeper stop timed out")
		return ctx.Err()
	}

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
	return nil
}

// IsRunning returns whether the sweeper loop is active
func (s *SessionSweeper) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *SessionSweeper) runLoop(ctx context.Context) {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *SessionSweeper) sweep(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, s.config.FlushTimeout)
	defer cancel()

	closed, err := s.registry.CloseIdle(ctx, s.config.MaxIdle)
	if err != nil {
		s.logger.WarnContext(ctx, "Some idle sessions could not be flushed", log.FieldError, err)
	}
	if closed > 0 {
		s.logger.InfoContext(ctx, "Closed idle sessions", log.FieldCount, closed)
	}
}
