// Package storage holds the relational order ledgers (SQLite and Postgres)
// and their embedded schema migrations.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"teamorders/internal/core"
	"teamorders/internal/ledger"
	applog "teamorders/internal/log"

	_ "modernc.org/sqlite"
)

const (
	dateLayout     = "2006-01-02"
	timeLayout     = "15:04:05"
	dateTimeLayout = dateLayout + " " + timeLayout
)

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	loc     *time.Location
	logger  *applog.Logger
}

var (
	_ ledger.Store         = (*SQLiteRepository)(nil)
	_ ledger.MirrorTracker = (*SQLiteRepository)(nil)
)

// NewSQLiteRepository opens (creating if needed) the database at dbPath and
// applies pending migrations. Order dates and times are stored as wall-clock
// text in loc.
func NewSQLiteRepository(dbPath string, loc *time.Location, logger *applog.Logger) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
		loc:     loc,
		logger:  logger.WithComponent(applog.ComponentStorage),
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// AppendOrders inserts all rows in one transaction.
func (r *SQLiteRepository) AppendOrders(ctx context.Context, orders []core.Order) ([]core.Order, error) {
	if len(orders) == 0 {
		return nil, nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	q := r.queries.WithTx(tx)
	out := make([]core.Order, len(orders))
	for i, o := range orders {
		placed := o.PlacedAt.In(r.loc)
		id, err := q.InsertOrder(ctx, InsertOrderParams{
			SubmissionID: o.SubmissionID,
			Team:         o.Team,
			Member:       o.Member,
			OrderDate:    placed.Format(dateLayout),
			OrderTime:    placed.Format(timeLayout),
			ItemName:     o.Item,
			OptionName:   o.Option,
			Quantity:     int64(o.Quantity),
			PriceCents:   o.Price.Cents,
		})
		if err != nil {
			return nil, fmt.Errorf("insert order: %w", err)
		}
		o.ID = id
		out[i] = o
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit orders: %w", err)
	}

	r.logger.DebugContext(ctx, "Orders saved to SQLite",
		applog.FieldSubmission, orders[0].SubmissionID,
		applog.FieldRows, len(out))
	return out, nil
}

// ListOrders returns matching rows oldest first. Rows whose stored date or
// time no longer parses are skipped.
func (r *SQLiteRepository) ListOrders(ctx context.Context, f ledger.Filter) ([]core.Order, error) {
	params := ListOrdersParams{Team: f.Team, Member: f.Member}
	if !f.From.IsZero() {
		params.From = f.From.In(r.loc).Format(dateTimeLayout)
	}
	if !f.To.IsZero() {
		params.To = f.To.In(r.loc).Format(dateTimeLayout)
	}
	if f.Items != nil {
		if len(f.Items) == 0 {
			return nil, nil
		}
		for it := range f.Items {
			params.Items = append(params.Items, it)
		}
		slices.Sort(params.Items)
	}

	rows, err := r.queries.ListOrders(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return r.toOrders(ctx, rows), nil
}

// PendingMirror returns rows not yet copied to the spreadsheet mirror that
// were created at least olderThan ago.
func (r *SQLiteRepository) PendingMirror(ctx context.Context, limit int, olderThan time.Duration) ([]core.Order, error) {
	cutoff := time.Now().UTC().Add(-olderThan).Format(dateTimeLayout)
	rows, err := r.queries.PendingMirror(ctx, cutoff, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("get pending mirror rows: %w", err)
	}
	return r.toOrders(ctx, rows), nil
}

// MarkMirrored stamps rows as copied.
func (r *SQLiteRepository) MarkMirrored(ctx context.Context, ids []int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()
	q := r.queries.WithTx(tx)
	for _, id := range ids {
		if err := q.MarkMirrored(ctx, id); err != nil {
			return fmt.Errorf("mark order %d mirrored: %w", id, err)
		}
	}
	return tx.Commit()
}

// Count returns the number of stored rows.
func (r *SQLiteRepository) Count(ctx context.Context) (int64, error) {
	return r.queries.CountOrders(ctx)
}

func (r *SQLiteRepository) toOrders(ctx context.Context, rows []OrderRow) []core.Order {
	out := make([]core.Order, 0, len(rows))
	for _, row := range rows {
		placed, err := time.ParseInLocation(dateTimeLayout, row.OrderDate+" "+row.OrderTime, r.loc)
		if err != nil {
			r.logger.WarnContext(ctx, "Skipping order row with bad date/time",
				"id", row.ID, "date", row.OrderDate, "time", row.OrderTime)
			continue
		}
		out = append(out, core.Order{
			ID:           row.ID,
			SubmissionID: row.SubmissionID,
			Team:         row.Team,
			Member:       row.Member,
			PlacedAt:     placed,
			Item:         row.ItemName,
			Option:       row.OptionName,
			Quantity:     int(row.Quantity),
			Price:        core.Money{Cents: row.PriceCents},
		})
	}
	return out
}
