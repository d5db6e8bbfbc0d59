package backend

import (
	"context"
	"fmt"
	"log/slog"

	"billcal/internal/amqp"
	"billcal/internal/datasource/memory"
	"billcal/internal/storage"
)

const defaultSeedDir = "data"

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger,
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var (
		result *BackendResult
		err    error
	)
	switch config.Type {
	case SQLiteBackend:
		result, err = f.createSQLBackend(storage.NewSQLiteRepository(config.SQLiteDBPath))
	case PostgresBackend:
		result, err = f.createSQLBackend(storage.NewPostgresRepository(config.DatabaseURL))
	case MemoryBackend:
		result = f.createMemoryBackend(config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
	if err != nil {
		return nil, err
	}

	f.attachPublisher(result, config)
	f.logger.InfoContext(ctx, "Initialized backend",
		"type", config.Type,
		"amqp_enabled", result.Publisher != nil)
	return result, nil
}

func (f *DefaultFactory) createSQLBackend(repo *storage.Repository, err error) (*BackendResult, error) {
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQL repository: %w", err)
	}
	return &BackendResult{
		Store:   repo,
		Pinger:  repo,
		Cleanup: repo.Close,
	}, nil
}

func (f *DefaultFactory) createMemoryBackend(config Config) *BackendResult {
	dir := config.SeedDir
	if dir == "" {
		dir = defaultSeedDir
	}
	f.logger.Info("Loading memory backend", "seed_dir", dir)
	return &BackendResult{Store: memory.NewFromFiles(dir)}
}

// attachPublisher connects to AMQP when configured. A broker that cannot be
// reached leaves the app running without change publication.
func (f *DefaultFactory) attachPublisher(result *BackendResult, config Config) {
	if config.AMQPURL == "" {
		return
	}
	client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
	if err != nil {
		f.logger.Warn("Failed to initialize AMQP client, continuing without sync", "error", err)
		return
	}
	f.logger.Info("Initialized AMQP client",
		"exchange", config.AMQPExchange,
		"queue", config.AMQPQueue)

	result.Publisher = client
	storeCleanup := result.Cleanup
	result.Cleanup = func() error {
		amqpErr := client.Close()
		if storeCleanup != nil {
			if err := storeCleanup(); err != nil {
				return err
			}
		}
		return amqpErr
	}
}
