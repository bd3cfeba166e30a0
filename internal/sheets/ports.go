// Package sheets defines the spreadsheet mirror that submitted orders are
// copied to for people who follow orders in Google Sheets.
package sheets

import (
	"context"

	"teamorders/internal/core"
)

// Ports for outbound adapters.
type (
	// OrderMirror appends ledger rows to the mirror. Rows whose order id is
	// already present are skipped, so redelivered messages and overlapping
	// sweeps do not duplicate lines. It returns the number of rows written.
	OrderMirror interface {
		AppendOrders(ctx context.Context, orders []core.Order) (int, error)
	}
)

// Header is the column layout of every mirror sheet.
var Header = []string{"Date", "Time", "Team", "Member", "Item", "Option", "Quantity", "Price", "Submission", "Order"}
