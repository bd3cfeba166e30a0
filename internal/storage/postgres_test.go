package storage

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"teamorders/internal/ledger"
	applog "teamorders/internal/log"
)

func TestPostgresRepository(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping integration test")
	}
	ctx := context.Background()

	repo, err := NewPostgresRepository(ctx, url, time.UTC, applog.Discard())
	require.NoError(t, err)
	defer repo.Close()

	_, err = repo.pool.Exec(ctx, "TRUNCATE orders")
	require.NoError(t, err)

	stored, err := repo.AppendOrders(ctx, sampleOrders())
	require.NoError(t, err)
	require.Len(t, stored, 3)

	rows, err := repo.ListOrders(ctx, ledger.Filter{
		From: time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, 9, rows[0].PlacedAt.Hour())
	assert.Equal(t, 30, rows[0].PlacedAt.Minute())

	rows, err = repo.ListOrders(ctx, ledger.Filter{Items: map[string]struct{}{"Shake": {}}})
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	require.NoError(t, repo.MarkMirrored(ctx, []int64{stored[0].ID}))
	pending, err := repo.PendingMirror(ctx, 10, 0)
	require.NoError(t, err)
	assert.Len(t, pending, 2)
}
