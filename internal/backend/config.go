package backend

import (
	"fmt"
	"time"

	"teamorders/internal/config"
	"teamorders/internal/docstore"
)

// Config holds what CreateLedger needs.
type Config struct {
	Type Type

	SQLiteDBPath string
	DatabaseURL  string

	// XLSX ledgers re-derive team and price from the flat files.
	XLSXDir string
	Loader  docstore.Loader

	Location *time.Location
}

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config, loader docstore.Loader) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	t := Type(appConfig.LedgerBackend)
	if !t.IsValid() {
		return Config{}, fmt.Errorf("invalid ledger backend in config: %s", appConfig.LedgerBackend)
	}

	return Config{
		Type:         t,
		SQLiteDBPath: appConfig.SQLiteDBPath,
		DatabaseURL:  appConfig.DatabaseURL,
		XLSXDir:      appConfig.XLSXDir,
		Loader:       loader,
		Location:     time.Local,
	}, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid ledger backend: %s", c.Type)
	}

	switch c.Type {
	case SQLite:
		if c.SQLiteDBPath == "" {
			return fmt.Errorf("SQLite database path is required for sqlite backend")
		}
	case Postgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("database URL is required for postgres backend")
		}
	case XLSX:
		if c.XLSXDir == "" {
			return fmt.Errorf("workbook directory is required for xlsx backend")
		}
		if c.Loader == nil {
			return fmt.Errorf("xlsx backend needs a document loader")
		}
	}

	return nil
}

// Types returns all valid ledger types
func Types() []Type {
	return []Type{SQLite, Postgres, XLSX, Memory}
}
