package storage

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"teamorders/internal/core"
	"teamorders/internal/ledger"
	applog "teamorders/internal/log"
)

// PostgresRepository is the orders ledger on a pgx connection pool.
type PostgresRepository struct {
	pool   *pgxpool.Pool
	loc    *time.Location
	logger *applog.Logger
}

var (
	_ ledger.Store         = (*PostgresRepository)(nil)
	_ ledger.MirrorTracker = (*PostgresRepository)(nil)
)

// NewPostgresRepository migrates the schema and opens a pool on databaseURL.
func NewPostgresRepository(ctx context.Context, databaseURL string, loc *time.Location, logger *applog.Logger) (*PostgresRepository, error) {
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}

	if err := RunPostgresMigrations(databaseURL); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	cfg.MaxConns = 10
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &PostgresRepository{
		pool:   pool,
		loc:    loc,
		logger: logger.WithComponent(applog.ComponentStorage),
	}, nil
}

func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// wallClock keeps the wall-clock reading of t in loc but drops the zone, so
// pgx sends exactly that reading for DATE/TIMESTAMP parameters.
func wallClock(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.UTC)
}

func timeOfDay(t time.Time) pgtype.Time {
	us := int64(t.Hour())*int64(time.Hour/time.Microsecond) +
		int64(t.Minute())*int64(time.Minute/time.Microsecond) +
		int64(t.Second())*int64(time.Second/time.Microsecond)
	return pgtype.Time{Microseconds: us, Valid: true}
}

const pgInsertOrder = `
INSERT INTO orders (submission_id, team, member, order_date, order_time, item_name, option_name, quantity, price_cents)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING id`

// AppendOrders inserts all rows in one transaction.
func (r *PostgresRepository) AppendOrders(ctx context.Context, orders []core.Order) ([]core.Order, error) {
	if len(orders) == 0 {
		return nil, nil
	}
	out := make([]core.Order, len(orders))
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, o := range orders {
			placed := wallClock(o.PlacedAt, r.loc)
			batch.Queue(pgInsertOrder,
				o.SubmissionID, o.Team, o.Member,
				placed, timeOfDay(placed),
				o.Item, o.Option, o.Quantity, o.Price.Cents)
		}
		results := tx.SendBatch(ctx, batch)
		for i, o := range orders {
			if err := results.QueryRow().Scan(&o.ID); err != nil {
				results.Close()
				return fmt.Errorf("insert order: %w", err)
			}
			out[i] = o
		}
		return results.Close()
	})
	if err != nil {
		return nil, err
	}
	r.logger.DebugContext(ctx, "Orders saved to Postgres",
		applog.FieldSubmission, orders[0].SubmissionID,
		applog.FieldRows, len(out))
	return out, nil
}

const pgOrderColumns = `id, submission_id, team, member, order_date, order_time, item_name, option_name, quantity, price_cents`

// ListOrders returns matching rows oldest first.
func (r *PostgresRepository) ListOrders(ctx context.Context, f ledger.Filter) ([]core.Order, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if !f.From.IsZero() {
		where = append(where, "(order_date + order_time) >= "+arg(wallClock(f.From, r.loc))+"::timestamp")
	}
	if !f.To.IsZero() {
		where = append(where, "(order_date + order_time) < "+arg(wallClock(f.To, r.loc))+"::timestamp")
	}
	if f.Team != "" {
		where = append(where, "team = "+arg(f.Team))
	}
	if f.Member != "" {
		where = append(where, "lower(trim(member)) = lower(trim("+arg(f.Member)+"))")
	}
	if f.Items != nil {
		if len(f.Items) == 0 {
			return nil, nil
		}
		items := make([]string, 0, len(f.Items))
		for it := range f.Items {
			items = append(items, it)
		}
		slices.Sort(items)
		where = append(where, "item_name = ANY("+arg(items)+")")
	}

	query := "SELECT " + pgOrderColumns + " FROM orders"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY order_date, order_time, id"

	return r.query(ctx, query, args...)
}

const pgPendingMirror = `
SELECT ` + pgOrderColumns + ` FROM orders
WHERE mirrored_at IS NULL AND created_at <= now() - $1::interval
ORDER BY id
LIMIT $2`

// PendingMirror returns unmirrored rows created at least olderThan ago.
func (r *PostgresRepository) PendingMirror(ctx context.Context, limit int, olderThan time.Duration) ([]core.Order, error) {
	interval := pgtype.Interval{Microseconds: olderThan.Microseconds(), Valid: true}
	return r.query(ctx, pgPendingMirror, interval, limit)
}

// MarkMirrored stamps rows as copied.
func (r *PostgresRepository) MarkMirrored(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.pool.Exec(ctx,
		`UPDATE orders SET mirrored_at = now() WHERE id = ANY($1) AND mirrored_at IS NULL`, ids)
	if err != nil {
		return fmt.Errorf("mark orders mirrored: %w", err)
	}
	return nil
}

func (r *PostgresRepository) query(ctx context.Context, query string, args ...any) ([]core.Order, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var out []core.Order
	for rows.Next() {
		var (
			o     core.Order
			day   time.Time
			clock pgtype.Time
			qty   int32
			cents int64
		)
		if err := rows.Scan(&o.ID, &o.SubmissionID, &o.Team, &o.Member, &day, &clock,
			&o.Item, &o.Option, &qty, &cents); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		secs := int(clock.Microseconds / 1_000_000)
		o.PlacedAt = time.Date(day.Year(), day.Month(), day.Day(), secs/3600, secs%3600/60, secs%60, 0, r.loc)
		o.Quantity = int(qty)
		o.Price = core.Money{Cents: cents}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return out, nil
}
