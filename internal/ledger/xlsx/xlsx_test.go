package xlsx

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"teamorders/internal/core"
	"teamorders/internal/ledger"
	applog "teamorders/internal/log"
)

type staticLoader struct{ snap core.Snapshot }

func (l staticLoader) Snapshot(context.Context) (core.Snapshot, error) { return l.snap, nil }

func newStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	snap := core.Snapshot{
		Directory: core.Directory{Teams: []core.Team{{Name: "Red", Members: []string{"Ann"}}}},
		Menu: core.Menu{Groups: []core.MenuGroup{{Name: "Produce", Items: []core.MenuItem{{
			Name: "Apples", Group: "Produce",
			Options: []core.Option{{Name: "Bag", Price: core.Money{Cents: 450}}},
		}}}}},
	}
	s, err := New(dir, staticLoader{snap}, time.UTC, applog.Discard())
	require.NoError(t, err)
	return s, dir
}

func TestAppendCreatesWorkbookWithDerivedSheets(t *testing.T) {
	s, dir := newStore(t)
	ctx := context.Background()
	at := time.Date(2025, 3, 4, 10, 15, 0, 0, time.UTC)

	_, err := s.AppendOrders(ctx, []core.Order{
		{Team: "Red", Member: "Ann", PlacedAt: at, Item: "Apples", Option: "Bag", Quantity: 2},
		{Team: "Red", Member: "Ann", PlacedAt: at, Item: "Shake", Quantity: 1},
	})
	require.NoError(t, err)
	_, err = s.AppendOrders(ctx, []core.Order{
		{Team: "Red", Member: "Ann", PlacedAt: at.AddDate(0, 0, 7), Item: "Apples", Option: "Bag", Quantity: 3},
	})
	require.NoError(t, err)

	f, err := excelize.OpenFile(filepath.Join(dir, "orders_Ann.xlsx"))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(OrdersSheet)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, []string{"Date", "Time", "Member", "Item", "Option", "Quantity"}, rows[0])
	assert.Equal(t, []string{"2025-03-04", "10:15:00", "Ann", "Apples", "Bag", "2"}, rows[1])

	totals, err := f.GetRows(TotalsSheet)
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"Item", "Option", "Quantity"},
		{"Apples", "Bag", "5"},
		{"Shake", "", "1"},
	}, totals)

	pivot, err := f.GetRows(PivotSheet)
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"Week", "Item", "Quantity"},
		{"2025-03-02", "Apples - Bag", "2"},
		{"2025-03-02", "Shake", "1"},
		{"2025-03-09", "Apples - Bag", "3"},
	}, pivot)
}

func TestListDerivesTeamAndPrice(t *testing.T) {
	s, dir := newStore(t)
	ctx := context.Background()
	at := time.Date(2025, 3, 4, 10, 15, 0, 0, time.UTC)

	_, err := s.AppendOrders(ctx, []core.Order{
		{Member: "Ann", PlacedAt: at, Item: "Apples", Option: "Bag", Quantity: 2},
		{Member: "Zed", PlacedAt: at.Add(time.Hour), Item: "Pears", Quantity: 1},
	})
	require.NoError(t, err)

	// A legacy workbook with a bad row.
	f := excelize.NewFile()
	require.NoError(t, f.SetSheetName("Sheet1", OrdersSheet))
	require.NoError(t, f.SetSheetRow(OrdersSheet, "A1", &[]any{"Date", "Time", "Member", "Item", "Option", "Quantity"}))
	require.NoError(t, f.SetSheetRow(OrdersSheet, "A2", &[]any{"yesterday", "10:00:00", "Bo", "Apples", "Bag", 1}))
	require.NoError(t, f.SetSheetRow(OrdersSheet, "A3", &[]any{"2025-03-05", "08:00:00", "Bo", "Apples", "Bag", 1}))
	require.NoError(t, f.SaveAs(filepath.Join(dir, "orders_Blue.xlsx")))
	require.NoError(t, f.Close())

	all, skipped, err := s.ReadAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, skipped)
	require.Len(t, all, 3)

	assert.Equal(t, "Ann", all[0].Member)
	assert.Equal(t, "Red", all[0].Team)
	assert.Equal(t, int64(450), all[0].Price.Cents)

	assert.Equal(t, "Zed", all[1].Member)
	assert.Equal(t, "Zed", all[1].Team, "unknown member falls back to the file owner")
	assert.Zero(t, all[1].Price.Cents)

	assert.Equal(t, "Blue", all[2].Team)

	red, err := s.ListOrders(ctx, ledger.Filter{Team: "Red"})
	require.NoError(t, err)
	assert.Len(t, red, 1)
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "orders_Ann Lee.xlsx", FileName(" Ann Lee "))
	assert.Equal(t, "orders___etc_passwd.xlsx", FileName("../etc/passwd"))
	assert.Equal(t, "Blue", ownerFromFileName("orders_Blue.xlsx"))
}

func TestParseQuantity(t *testing.T) {
	n, err := parseQuantity("2.0")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	_, err = parseQuantity("2.5")
	assert.Error(t, err)
}
