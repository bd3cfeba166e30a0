// Package backend builds the order ledger selected by LEDGER_BACKEND.
package backend

import (
	"context"

	"teamorders/internal/ledger"
)

// CleanupFunc releases backend resources.
type CleanupFunc func() error

// Result is a ready ledger. Tracker is nil when the backend cannot record
// spreadsheet mirroring.
type Result struct {
	Ledger  ledger.Store
	Tracker ledger.MirrorTracker
	Cleanup CleanupFunc
}

// Factory creates ledgers from configuration.
type Factory interface {
	CreateLedger(ctx context.Context, config Config) (*Result, error)
}

// Type names a ledger implementation.
type Type string

const (
	SQLite   Type = "sqlite"
	Postgres Type = "postgres"
	XLSX     Type = "xlsx"
	Memory   Type = "memory"
)

// String implements fmt.Stringer
func (t Type) String() string {
	return string(t)
}

// IsValid returns true if the type is known
func (t Type) IsValid() bool {
	switch t {
	case SQLite, Postgres, XLSX, Memory:
		return true
	default:
		return false
	}
}

// Relational reports whether the ledger keeps mirror state.
func (t Type) Relational() bool {
	return t == SQLite || t == Postgres
}
