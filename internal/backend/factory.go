package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"gastos/internal/amqp"
	"gastos/internal/session"
	"gastos/internal/sheets"
	gsheet "gastos/internal/sheets/google"
	"gastos/internal/sheets/memory"
	"gastos/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger,
	}
}

// CreateBackend implements Factory.CreateBackend. On error everything opened
// so far is closed again.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var (
		store sheets.Store
		err   error
	)
	switch config.Type {
	case SheetsBackend:
		store, err = f.createSheetsBackend(ctx, config)
	case MemoryBackend:
		store, err = f.createMemoryBackend(config)
	default:
		err = fmt.Errorf("unsupported backend type: %s", config.Type)
	}
	if err != nil {
		return nil, err
	}

	var closers []func() error
	sessions, closeSessions, err := f.createSessions(config)
	if err != nil {
		return nil, err
	}
	if closeSessions != nil {
		closers = append(closers, closeSessions)
	}

	publisher := f.createPublisher(ctx, config)
	if publisher != nil {
		closers = append(closers, publisher.Close)
	}

	return &BackendResult{
		Store:     store,
		Sessions:  sessions,
		Publisher: publisher,
		Cleanup: func() error {
			var errs []error
			for _, c := range closers {
				errs = append(errs, c())
			}
			return errors.Join(errs...)
		},
	}, nil
}

func (f *DefaultFactory) createSheetsBackend(ctx context.Context, config Config) (sheets.Store, error) {
	cli, err := gsheet.New(ctx, gsheet.Options{
		SpreadsheetID: config.GoogleSpreadsheetID,
		Credentials: gsheet.Credentials{
			JSON:   config.GoogleCredentialsJSON,
			File:   config.GoogleCredentialsFile,
			Base64: config.GoogleCredentialsBase64,
		},
		Timeout:           config.SheetsTimeout,
		RequestsPerMinute: config.SheetsRatePerMinute,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}

	f.logger.InfoContext(ctx, "Initialized Google Sheets backend",
		"timeout", config.SheetsTimeout,
		"requests_per_minute", config.SheetsRatePerMinute)
	return cli, nil
}

func (f *DefaultFactory) createMemoryBackend(config Config) (sheets.Store, error) {
	dataDir := config.DataDirectory
	if dataDir == "" {
		dataDir = "data"
	}

	store, err := memory.NewFromDir(dataDir, config.Tables.Headers())
	if err != nil {
		return nil, fmt.Errorf("failed to seed memory backend: %w", err)
	}

	f.logger.Info("Initialized memory backend", "data_directory", dataDir)
	return store, nil
}

func (f *DefaultFactory) createSessions(config Config) (session.Store, func() error, error) {
	if config.SessionType != SQLiteSessions {
		f.logger.Info("Initialized memory sessions")
		return session.NewMemory(), nil, nil
	}

	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}
	f.logger.Info("Initialized SQLite sessions", "db_path", config.SQLiteDBPath)
	return repo, repo.Close, nil
}

// createPublisher returns nil when AMQP is disabled. A broker that is down at
// startup is not fatal; the client redials on the next publish.
func (f *DefaultFactory) createPublisher(ctx context.Context, config Config) *amqp.Client {
	if config.AMQPURL == "" {
		return nil
	}

	client := amqp.NewClient(config.AMQPURL, config.AMQPExchange)
	if err := client.Connect(ctx); err != nil {
		f.logger.WarnContext(ctx, "Failed to connect AMQP client, events will be retried on publish", "error", err)
	} else {
		f.logger.InfoContext(ctx, "Initialized AMQP client", "exchange", config.AMQPExchange)
	}
	return client
}
