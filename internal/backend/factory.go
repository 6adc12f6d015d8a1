package backend

import (
	"context"
	"errors"
	"fmt"

	"mealbook/internal/amqp"
	"mealbook/internal/log"
	"mealbook/internal/services"
	"mealbook/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.NewLogger(log.ComponentBackend)
	}
	return &DefaultFactory{
		logger: logger,
	}
}

// CreateBackend opens the configured repository and, when an AMQP URL is
// set, a publisher. A broker that cannot be reached at startup is logged
// and skipped; the repository is required.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	store, err := f.openStore(ctx, config)
	if err != nil {
		return nil, err
	}

	var publisher *amqp.Client
	if config.AMQPURL != "" {
		publisher, err = amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
		if err != nil {
			f.logger.Warn("Failed to initialize AMQP client, continuing without save announcements", log.FieldError, err)
			publisher = nil
		} else {
			f.logger.Info("Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
		}
	}

	var service *services.LedgerService
	if publisher != nil {
		service = services.NewLedgerService(store, publisher)
	} else {
		// A typed nil would defeat the service's nil check.
		service = services.NewLedgerService(store, nil)
	}

	f.logger.Info("Initialized backend",
		"type", config.Type.String(),
		"amqp_enabled", publisher != nil)

	return &BackendResult{
		Store:     store,
		Service:   service,
		Publisher: publisher,
		Cleanup:   service.Close,
	}, nil
}

func (f *DefaultFactory) openStore(ctx context.Context, config Config) (storage.LedgerStore, error) {
	switch config.Type {
	case MemoryBackend:
		f.logger.Warn("Using in-memory ledger store, data is lost on restart")
		return storage.NewMemoryStore(), nil
	case SQLiteBackend:
		repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		f.logger.Info("Opened SQLite repository", "db_path", config.SQLiteDBPath)
		return repo, nil
	case PostgresBackend:
		repo, err := storage.NewPostgresRepository(ctx, config.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Postgres repository: %w", err)
		}
		f.logger.Info("Opened Postgres repository")
		return repo, nil
	default:
		return nil, errors.New("unsupported backend type: " + config.Type.String())
	}
}
