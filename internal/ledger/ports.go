// Package ledger defines the ports every order ledger backend implements.
package ledger

import (
	"context"
	"strings"
	"time"

	"teamorders/internal/core"
)

// Filter narrows ListOrders. Zero fields match everything; From is
// inclusive and To exclusive.
type Filter struct {
	From   time.Time
	To     time.Time
	Team   string
	Member string
	Items  map[string]struct{}
}

// Match reports whether o passes the filter.
func (f Filter) Match(o core.Order) bool {
	if !f.From.IsZero() && o.PlacedAt.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !o.PlacedAt.Before(f.To) {
		return false
	}
	if f.Team != "" && o.Team != f.Team {
		return false
	}
	if f.Member != "" && !strings.EqualFold(strings.TrimSpace(o.Member), strings.TrimSpace(f.Member)) {
		return false
	}
	if f.Items != nil {
		if _, ok := f.Items[o.Item]; !ok {
			return false
		}
	}
	return true
}

// Ports for order persistence.
type (
	// Writer appends submitted lines. All rows of one call share a submission
	// and are written together or not at all.
	Writer interface {
		AppendOrders(ctx context.Context, orders []core.Order) ([]core.Order, error)
	}

	// Reader lists rows oldest first (date, time, then id).
	Reader interface {
		ListOrders(ctx context.Context, f Filter) ([]core.Order, error)
	}

	// Store is a complete ledger backend.
	Store interface {
		Writer
		Reader
		Ping(ctx context.Context) error
		Close() error
	}

	// MirrorTracker is implemented by relational ledgers that record which
	// rows have been copied to the spreadsheet mirror.
	MirrorTracker interface {
		PendingMirror(ctx context.Context, limit int, olderThan time.Duration) ([]core.Order, error)
		MarkMirrored(ctx context.Context, ids []int64) error
	}
)
