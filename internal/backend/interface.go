package backend

import (
	"context"

	"mealbook/internal/amqp"
	"mealbook/internal/services"
	"mealbook/internal/storage"
)

// CleanupFunc releases the resources held by a backend.
type CleanupFunc func() error

// BackendResult is a ready-to-use persistence stack.
type BackendResult struct {
	// Store is the raw repository, Service wraps it with load sharing and
	// save announcements. Sessions should use Service.
	Store   storage.LedgerStore
	Service *services.LedgerService
	// Publisher is nil when AMQP is disabled or unreachable at startup.
	Publisher *amqp.Client
	Cleanup   CleanupFunc
}

// Factory creates backends based on configuration.
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation.
type Config struct {
	Type BackendType

	// SQLite specific
	SQLiteDBPath string

	// Postgres specific
	DatabaseURL string

	// Optional save announcements
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
}

// BackendType names a ledger repository implementation.
type BackendType string

const (
	MemoryBackend   BackendType = "memory"
	SQLiteBackend   BackendType = "sqlite"
	PostgresBackend BackendType = "postgres"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case MemoryBackend, SQLiteBackend, PostgresBackend:
		return true
	default:
		return false
	}
}
