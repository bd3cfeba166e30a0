package storage

import (
	"context"
	"database/sql"
	"strings"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

// Queries holds the SQLite statements used by SQLiteRepository.
type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

// OrderRow mirrors one row of the orders table.
type OrderRow struct {
	ID           int64
	SubmissionID string
	Team         string
	Member       string
	OrderDate    string
	OrderTime    string
	ItemName     string
	OptionName   string
	Quantity     int64
	PriceCents   int64
}

const orderColumns = `id, submission_id, team, member, order_date, order_time, item_name, option_name, quantity, price_cents`

const insertOrder = `
INSERT INTO orders (submission_id, team, member, order_date, order_time, item_name, option_name, quantity, price_cents)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
RETURNING id`

type InsertOrderParams struct {
	SubmissionID string
	Team         string
	Member       string
	OrderDate    string
	OrderTime    string
	ItemName     string
	OptionName   string
	Quantity     int64
	PriceCents   int64
}

func (q *Queries) InsertOrder(ctx context.Context, arg InsertOrderParams) (int64, error) {
	row := q.db.QueryRowContext(ctx, insertOrder,
		arg.SubmissionID,
		arg.Team,
		arg.Member,
		arg.OrderDate,
		arg.OrderTime,
		arg.ItemName,
		arg.OptionName,
		arg.Quantity,
		arg.PriceCents,
	)
	var id int64
	err := row.Scan(&id)
	return id, err
}

// ListOrdersParams are the optional predicates of ListOrders. Empty strings
// are ignored; Items, when non-nil, restricts item_name.
type ListOrdersParams struct {
	From   string
	To     string
	Team   string
	Member string
	Items  []string
}

func (q *Queries) ListOrders(ctx context.Context, arg ListOrdersParams) ([]OrderRow, error) {
	var (
		where []string
		args  []any
	)
	if arg.From != "" {
		where = append(where, "order_date || ' ' || order_time >= ?")
		args = append(args, arg.From)
	}
	if arg.To != "" {
		where = append(where, "order_date || ' ' || order_time < ?")
		args = append(args, arg.To)
	}
	if arg.Team != "" {
		where = append(where, "team = ?")
		args = append(args, arg.Team)
	}
	if arg.Member != "" {
		where = append(where, "lower(trim(member)) = lower(trim(?))")
		args = append(args, arg.Member)
	}
	if arg.Items != nil {
		marks := strings.TrimSuffix(strings.Repeat("?,", len(arg.Items)), ",")
		where = append(where, "item_name IN ("+marks+")")
		for _, it := range arg.Items {
			args = append(args, it)
		}
	}

	query := "SELECT " + orderColumns + " FROM orders"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY order_date, order_time, id"
	return q.queryOrders(ctx, query, args...)
}

const pendingMirror = `
SELECT ` + orderColumns + ` FROM orders
WHERE mirrored_at IS NULL AND created_at <= ?
ORDER BY id
LIMIT ?`

func (q *Queries) PendingMirror(ctx context.Context, cutoff string, limit int64) ([]OrderRow, error) {
	return q.queryOrders(ctx, pendingMirror, cutoff, limit)
}

const markMirrored = `UPDATE orders SET mirrored_at = CURRENT_TIMESTAMP WHERE id = ? AND mirrored_at IS NULL`

func (q *Queries) MarkMirrored(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx, markMirrored, id)
	return err
}

const countOrders = `SELECT COUNT(*) FROM orders`

func (q *Queries) CountOrders(ctx context.Context) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, countOrders).Scan(&n)
	return n, err
}

func (q *Queries) queryOrders(ctx context.Context, query string, args ...any) ([]OrderRow, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []OrderRow
	for rows.Next() {
		var i OrderRow
		if err := rows.Scan(
			&i.ID,
			&i.SubmissionID,
			&i.Team,
			&i.Member,
			&i.OrderDate,
			&i.OrderTime,
			&i.ItemName,
			&i.OptionName,
			&i.Quantity,
			&i.PriceCents,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
