package ctl

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"teamorders/internal/core"
	"teamorders/internal/export"
	"teamorders/internal/ledger"
	"teamorders/internal/ledger/memory"
	"teamorders/internal/ledger/xlsx"
	applog "teamorders/internal/log"
	"teamorders/internal/report"
	"teamorders/internal/services"
)

type staticLoader struct{ snap core.Snapshot }

func (l staticLoader) Snapshot(context.Context) (core.Snapshot, error) { return l.snap, nil }

func fixture() core.Snapshot {
	return core.Snapshot{
		Directory: core.Directory{Teams: []core.Team{
			{Name: "Red", Members: []string{"Ann", "Bob"}},
			{Name: "Blue", Members: []string{"Cy"}},
		}},
		Menu: core.Menu{Groups: []core.MenuGroup{
			{Name: "Produce", Items: []core.MenuItem{{Name: "Apples", Group: "Produce", Options: []core.Option{{Name: "Red", Price: core.Money{Cents: 500}}}}}},
			{Name: "Snacks", Items: []core.MenuItem{{Name: "Chips", Group: "Snacks", Options: []core.Option{{Name: "", Price: core.Money{Cents: 250}}}}}},
		}},
		Budgets: core.Budgets{"Red": {Cents: 10000}},
	}
}

func newTestEnv(t *testing.T) (*env, *memory.Store, *bytes.Buffer) {
	t.Helper()
	loader := staticLoader{snap: fixture()}
	store := memory.New()
	anchor, err := report.ParseAnchor("2025-01-01")
	require.NoError(t, err)
	var out bytes.Buffer
	e := &env{
		loader: loader,
		ledger: store,
		reports: services.NewReportService(loader, store, services.ReportOptions{
			PriceSource: report.PriceFromCatalog,
			Anchor:      anchor,
			Groups:      []string{"Produce"},
			Location:    time.Local,
		}, applog.Discard()),
		logger: applog.Discard(),
		now:    func() time.Time { return time.Date(2025, 3, 5, 12, 0, 0, 0, time.Local) },
		out:    &out,
	}
	return e, store, &out
}

func run(t *testing.T, e *env, args ...string) error {
	t.Helper()
	cmd := NewRootCommand(e)
	cmd.SetArgs(args)
	cmd.SetOut(e.out)
	cmd.SetErr(e.out)
	return cmd.Execute()
}

func seed(t *testing.T, l ledger.Writer) {
	t.Helper()
	at := time.Date(2025, 3, 4, 10, 30, 0, 0, time.Local)
	_, err := l.AppendOrders(context.Background(), []core.Order{
		{SubmissionID: "s1", Team: "Red", Member: "Ann", PlacedAt: at, Item: "Apples", Option: "Red", Quantity: 2, Price: core.Money{Cents: 500}},
		{SubmissionID: "s1", Team: "Red", Member: "Ann", PlacedAt: at, Item: "Chips", Quantity: 1, Price: core.Money{Cents: 250}},
	})
	require.NoError(t, err)
}

func TestImportXLSX(t *testing.T) {
	e, store, out := newTestEnv(t)
	dir := t.TempDir()

	legacy, err := xlsx.New(dir, e.loader, time.Local, applog.Discard())
	require.NoError(t, err)
	at := time.Date(2025, 3, 4, 10, 30, 0, 0, time.Local)
	_, err = legacy.AppendOrders(context.Background(), []core.Order{
		{Member: "Ann", PlacedAt: at, Item: "Apples", Option: "Red", Quantity: 2},
		{Member: "Ann", PlacedAt: at, Item: "Chips", Quantity: 1},
		{Member: "Cy", PlacedAt: at.Add(time.Hour), Item: "Chips", Quantity: 3},
	})
	require.NoError(t, err)

	require.NoError(t, run(t, e, "import-xlsx", "--dir", dir))
	assert.Contains(t, out.String(), "Imported 3 rows in 2 submissions, skipped 0 malformed rows")

	orders, err := store.ListOrders(context.Background(), ledger.Filter{})
	require.NoError(t, err)
	require.Len(t, orders, 3)
	assert.Equal(t, orders[0].SubmissionID, orders[1].SubmissionID)
	assert.NotEqual(t, orders[0].SubmissionID, orders[2].SubmissionID)
	assert.Equal(t, "Blue", orders[2].Team)
	assert.Equal(t, int64(250), orders[2].Price.Cents)
}

func TestSubmissionsGrouping(t *testing.T) {
	at := time.Date(2025, 3, 4, 10, 30, 0, 0, time.UTC)
	got := submissions([]core.Order{
		{Member: "Ann", PlacedAt: at},
		{Member: "Bob", PlacedAt: at},
		{Member: "Ann", PlacedAt: at},
		{Member: "Ann", PlacedAt: at.Add(time.Minute)},
	})
	require.Len(t, got, 3)
	assert.Len(t, got[0], 2)
}

func TestExportWeekly(t *testing.T) {
	e, store, out := newTestEnv(t)
	seed(t, store)
	path := filepath.Join(t.TempDir(), "weekly.xlsx")

	require.NoError(t, run(t, e, "export", "weekly", "--week", "2025-03-05", "--out", path))
	assert.Contains(t, out.String(), "Wrote 2 rows")

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(export.SummarySheet)
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

func TestExportGroups(t *testing.T) {
	e, store, _ := newTestEnv(t)
	seed(t, store)
	path := filepath.Join(t.TempDir(), "groups.xlsx")

	require.NoError(t, run(t, e, "export", "groups", "--week", "2025-03-02", "--out", path))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(export.GroupSheet)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Apples", rows[1][2])
}

func TestExportRejectsBadInput(t *testing.T) {
	e, _, _ := newTestEnv(t)
	assert.Error(t, run(t, e, "export", "monthly"))
	assert.Error(t, run(t, e, "export", "weekly", "--week", "03/05/2025"))
}

func TestBudget(t *testing.T) {
	e, store, out := newTestEnv(t)
	seed(t, store)

	require.NoError(t, run(t, e, "budget", "Red"))
	assert.Contains(t, out.String(), "Week 3/2/25 - 3/8/25")
	assert.Contains(t, out.String(), "$100.00")
	assert.Contains(t, out.String(), "$12.50")
	assert.Contains(t, out.String(), "$87.50")

	out.Reset()
	require.NoError(t, run(t, e, "budget"))
	assert.Contains(t, out.String(), "Blue")

	assert.ErrorIs(t, run(t, e, "budget", "Green"), core.ErrTeamNotFound)
}
