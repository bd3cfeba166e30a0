package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"teamorders/internal/core"
	"teamorders/internal/ledger"
	applog "teamorders/internal/log"
)

func newSQLite(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "orders.db"), time.UTC, applog.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func sampleOrders() []core.Order {
	base := time.Date(2025, 3, 2, 9, 30, 0, 0, time.UTC)
	return []core.Order{
		{SubmissionID: "s1", Team: "Red", Member: "Ann", PlacedAt: base, Item: "Apples", Option: "Bag", Quantity: 2, Price: core.Money{Cents: 450}},
		{SubmissionID: "s1", Team: "Red", Member: "Ann", PlacedAt: base, Item: "Shake", Option: "Chocolate", Quantity: 1, Price: core.Money{Cents: 500}},
		{SubmissionID: "s2", Team: "Blue", Member: "Cid", PlacedAt: base.AddDate(0, 0, 7), Item: "Apples", Option: "", Quantity: 3, Price: core.Money{Cents: 450}},
	}
}

func TestSQLiteAppendAndList(t *testing.T) {
	repo := newSQLite(t)
	ctx := context.Background()

	stored, err := repo.AppendOrders(ctx, sampleOrders())
	require.NoError(t, err)
	require.Len(t, stored, 3)
	assert.NotZero(t, stored[0].ID)
	assert.Less(t, stored[0].ID, stored[1].ID)

	all, err := repo.ListOrders(ctx, ledger.Filter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "Ann", all[0].Member)
	assert.Equal(t, "2025-03-02", all[0].Date().String())
	assert.Equal(t, 9, all[0].PlacedAt.Hour())
	assert.Equal(t, 30, all[0].PlacedAt.Minute())
	assert.Equal(t, int64(450), all[0].Price.Cents)
	assert.Equal(t, "", all[2].Option)

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestSQLiteListFilters(t *testing.T) {
	repo := newSQLite(t)
	ctx := context.Background()
	_, err := repo.AppendOrders(ctx, sampleOrders())
	require.NoError(t, err)

	week := ledger.Filter{
		From: time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC),
	}
	rows, err := repo.ListOrders(ctx, week)
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	rows, err = repo.ListOrders(ctx, ledger.Filter{Team: "Blue"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Cid", rows[0].Member)

	rows, err = repo.ListOrders(ctx, ledger.Filter{Member: "ANN"})
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	rows, err = repo.ListOrders(ctx, ledger.Filter{Items: map[string]struct{}{"Apples": {}}})
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	rows, err = repo.ListOrders(ctx, ledger.Filter{Items: map[string]struct{}{}})
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestSQLiteMirrorTracking(t *testing.T) {
	repo := newSQLite(t)
	ctx := context.Background()
	stored, err := repo.AppendOrders(ctx, sampleOrders())
	require.NoError(t, err)

	pending, err := repo.PendingMirror(ctx, 10, 0)
	require.NoError(t, err)
	assert.Len(t, pending, 3)

	// Rows younger than the grace period are left for the message consumer.
	pending, err = repo.PendingMirror(ctx, 10, time.Hour)
	require.NoError(t, err)
	assert.Empty(t, pending)

	require.NoError(t, repo.MarkMirrored(ctx, []int64{stored[0].ID, stored[1].ID}))
	pending, err = repo.PendingMirror(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, stored[2].ID, pending[0].ID)
}

func TestSQLiteReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orders.db")
	repo, err := NewSQLiteRepository(path, time.UTC, applog.Discard())
	require.NoError(t, err)
	_, err = repo.AppendOrders(context.Background(), sampleOrders()[:1])
	require.NoError(t, err)
	require.NoError(t, repo.Close())

	repo, err = NewSQLiteRepository(path, time.UTC, applog.Discard())
	require.NoError(t, err)
	defer repo.Close()
	n, err := repo.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestPgxMigrateURL(t *testing.T) {
	assert.Equal(t, "pgx5://u:p@h:5432/db", pgxMigrateURL("postgres://u:p@h:5432/db"))
	assert.Equal(t, "pgx5://h/db", pgxMigrateURL("postgresql://h/db"))
	assert.Equal(t, "pgx5://h/db", pgxMigrateURL("pgx5://h/db"))
}

func TestSQLiteSkipsUnparsableRows(t *testing.T) {
	repo := newSQLite(t)
	ctx := context.Background()
	_, err := repo.AppendOrders(ctx, sampleOrders()[:1])
	require.NoError(t, err)

	_, err = repo.db.ExecContext(ctx, `INSERT INTO orders (team, member, order_date, order_time, item_name, quantity)
		VALUES ('Red', 'Ann', 'not-a-date', '10:00:00', 'Apples', 1)`)
	require.NoError(t, err)

	rows, err := repo.ListOrders(ctx, ledger.Filter{})
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}
