package backend

import (
	"context"
	"fmt"

	"teamorders/internal/ledger/memory"
	"teamorders/internal/ledger/xlsx"
	applog "teamorders/internal/log"
	"teamorders/internal/storage"
)

// DefaultFactory implements Factory.
type DefaultFactory struct {
	logger *applog.Logger
}

// NewFactory creates a new ledger factory
func NewFactory(logger *applog.Logger) Factory {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	return &DefaultFactory{
		logger: logger.WithComponent(applog.ComponentBackend),
	}
}

// CreateLedger implements Factory.CreateLedger
func (f *DefaultFactory) CreateLedger(ctx context.Context, config Config) (*Result, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case SQLite:
		return f.createSQLite(config)
	case Postgres:
		return f.createPostgres(ctx, config)
	case XLSX:
		return f.createXLSX(config)
	case Memory:
		return f.createMemory()
	default:
		return nil, fmt.Errorf("unsupported ledger backend: %s", config.Type)
	}
}

func (f *DefaultFactory) createSQLite(config Config) (*Result, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath, config.Location, f.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite ledger: %w", err)
	}

	f.logger.Info("Initialized SQLite ledger", "db_path", config.SQLiteDBPath)

	return &Result{Ledger: repo, Tracker: repo, Cleanup: repo.Close}, nil
}

func (f *DefaultFactory) createPostgres(ctx context.Context, config Config) (*Result, error) {
	repo, err := storage.NewPostgresRepository(ctx, config.DatabaseURL, config.Location, f.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Postgres ledger: %w", err)
	}

	f.logger.Info("Initialized Postgres ledger")

	return &Result{Ledger: repo, Tracker: repo, Cleanup: repo.Close}, nil
}

func (f *DefaultFactory) createXLSX(config Config) (*Result, error) {
	store, err := xlsx.New(config.XLSXDir, config.Loader, config.Location, f.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize workbook ledger: %w", err)
	}

	f.logger.Info("Initialized workbook ledger", "directory", config.XLSXDir)

	return &Result{Ledger: store, Cleanup: store.Close}, nil
}

func (f *DefaultFactory) createMemory() (*Result, error) {
	store := memory.New()

	f.logger.Info("Initialized memory ledger")

	return &Result{Ledger: store, Tracker: store, Cleanup: store.Close}, nil
}
