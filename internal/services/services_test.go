package services

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"teamorders/internal/amqp"
	"teamorders/internal/core"
	"teamorders/internal/ledger"
	"teamorders/internal/ledger/memory"
	applog "teamorders/internal/log"
	"teamorders/internal/report"
)

type staticLoader struct{ snap core.Snapshot }

func (l staticLoader) Snapshot(context.Context) (core.Snapshot, error) { return l.snap, nil }

type recordingPublisher struct {
	mu   sync.Mutex
	msgs []*amqp.OrderSubmittedMessage
	err  error
}

func (p *recordingPublisher) PublishOrderSubmitted(_ context.Context, msg *amqp.OrderSubmittedMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, msg)
	return p.err
}

type failingWriter struct{}

func (failingWriter) AppendOrders(context.Context, []core.Order) ([]core.Order, error) {
	return nil, errors.New("disk full")
}

func fixtureSnapshot() core.Snapshot {
	return core.Snapshot{
		Directory: core.Directory{Teams: []core.Team{
			{Name: "Red", Members: []string{"Ann", "Bob"}},
			{Name: "Blue", Members: []string{"Cid"}},
		}},
		Menu: core.Menu{Groups: []core.MenuGroup{
			{Name: "Produce", Items: []core.MenuItem{{Name: "Apples", Group: "Produce", Options: []core.Option{{Name: "Bag", Price: core.Money{Cents: 500}}}}}},
			{Name: "Drinks", Items: []core.MenuItem{{Name: "Shake", Group: "Drinks", Options: []core.Option{{Name: "Chocolate", Price: core.Money{Cents: 300}}}}}},
		}},
		Budgets: core.Budgets{"Blue": {Cents: 5000}},
	}
}

var ann = core.Identity{Team: "Red", Member: "Ann", Role: core.RoleMember}

func TestSubmitPersistsPositiveLinesAndPublishes(t *testing.T) {
	store := memory.New()
	pub := &recordingPublisher{}
	svc := NewOrderService(store, pub, applog.Discard())
	svc.newID = func() string { return "sub-1" }
	at := time.Date(2025, 3, 4, 9, 0, 0, 0, time.UTC)

	rcpt, err := svc.Submit(context.Background(), ann, []core.OrderLine{
		{Item: "Apples", Option: "Bag", Price: core.Money{Cents: 500}, Quantity: 2},
		{Item: "Shake", Option: "Chocolate", Price: core.Money{Cents: 300}, Quantity: 0},
		{Item: " Shake ", Option: "Chocolate", Price: core.Money{Cents: 300}, Quantity: 1},
	}, at)
	require.NoError(t, err)

	assert.Equal(t, "sub-1", rcpt.SubmissionID)
	assert.Equal(t, int64(1300), rcpt.Total.Cents)
	require.Len(t, rcpt.Orders, 2)
	assert.NotZero(t, rcpt.Orders[0].ID)
	assert.Equal(t, "Shake", rcpt.Orders[1].Item)

	rows, err := store.ListOrders(context.Background(), ledger.Filter{})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	for _, r := range rows {
		assert.Equal(t, "Red", r.Team)
		assert.Equal(t, "Ann", r.Member)
		assert.Equal(t, "sub-1", r.SubmissionID)
		assert.True(t, r.PlacedAt.Equal(at))
	}

	require.Len(t, pub.msgs, 1)
	assert.Equal(t, "sub-1", pub.msgs[0].SubmissionID)
	assert.Equal(t, rcpt.Orders[0].ID, pub.msgs[0].Lines[0].OrderID)
}

func TestSubmitLogsSubmission(t *testing.T) {
	var buf bytes.Buffer
	svc := NewOrderService(memory.New(), nil, applog.New(applog.Config{Output: &buf}))
	svc.newID = func() string { return "sub-7" }

	_, err := svc.Submit(context.Background(), ann, []core.OrderLine{
		{Item: "Apples", Option: "Bag", Price: core.Money{Cents: 500}, Quantity: 2},
	}, time.Date(2025, 3, 4, 9, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, `msg="Order submitted"`)
	assert.Contains(t, out, "submission_id=sub-7")
	assert.Contains(t, out, "team=Red")
	assert.Contains(t, out, "total_cents=1000")
}

func TestSubmitRejections(t *testing.T) {
	svc := NewOrderService(memory.New(), nil, applog.Discard())
	ctx := context.Background()
	now := time.Now()
	line := core.OrderLine{Item: "Apples", Quantity: 1}

	_, err := svc.Submit(ctx, ann, nil, now)
	assert.ErrorIs(t, err, core.ErrEmptyOrder)

	_, err = svc.Submit(ctx, ann, []core.OrderLine{{Item: "Apples", Quantity: 0}}, now)
	assert.ErrorIs(t, err, core.ErrEmptyOrder)

	admin := core.Identity{Team: "KSU Football", Member: "Scott", Role: core.RoleAdmin}
	_, err = svc.Submit(ctx, admin, []core.OrderLine{line}, now)
	assert.ErrorIs(t, err, ErrNotAllowed)

	admin.ActingForAdminTeam = true
	_, err = svc.Submit(ctx, admin, []core.OrderLine{line}, now)
	assert.NoError(t, err)

	_, err = svc.Submit(ctx, core.Identity{}, []core.OrderLine{line}, now)
	assert.ErrorIs(t, err, ErrNotAllowed)

	_, err = svc.Submit(ctx, ann, []core.OrderLine{{Item: "  ", Quantity: 1}}, now)
	assert.ErrorIs(t, err, ErrInvalidOrder)

	_, err = svc.Submit(ctx, ann, []core.OrderLine{{Item: "Apples", Quantity: 5000}}, now)
	assert.ErrorIs(t, err, ErrInvalidOrder)
}

func TestSubmitSurvivesPublishFailure(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	svc := NewOrderService(memory.New(), pub, applog.Discard())
	_, err := svc.Submit(context.Background(), ann, []core.OrderLine{{Item: "Apples", Quantity: 1}}, time.Now())
	assert.NoError(t, err)
	assert.Len(t, pub.msgs, 1)
}

func TestSubmitLedgerFailure(t *testing.T) {
	pub := &recordingPublisher{}
	svc := NewOrderService(failingWriter{}, pub, applog.Discard())
	_, err := svc.Submit(context.Background(), ann, []core.OrderLine{{Item: "Apples", Quantity: 1}}, time.Now())
	assert.Error(t, err)
	assert.Empty(t, pub.msgs, "nothing is published when the write fails")
}

func newReports(t *testing.T, source report.PriceSource) (*ReportService, *memory.Store) {
	t.Helper()
	store := memory.New()
	at := func(d, h int) time.Time { return time.Date(2025, 3, d, h, 0, 0, 0, time.UTC) }
	_, err := store.AppendOrders(context.Background(), []core.Order{
		{Team: "Red", Member: "Ann", PlacedAt: at(3, 9), Item: "Apples", Option: "Bag", Quantity: 2, Price: core.Money{Cents: 450}},
		{Team: "Red", Member: "Bob", PlacedAt: at(4, 9), Item: "Shake", Option: "Chocolate", Quantity: 1, Price: core.Money{Cents: 300}},
		{Team: "Blue", Member: "Cid", PlacedAt: at(5, 9), Item: "Apples", Option: "Bag", Quantity: 1, Price: core.Money{Cents: 500}},
		{Team: "Red", Member: "Ann", PlacedAt: at(10, 9), Item: "Apples", Option: "Bag", Quantity: 1, Price: core.Money{Cents: 500}},
	})
	require.NoError(t, err)
	anchor, err := report.ParseAnchor("2025-01-01")
	require.NoError(t, err)
	svc := NewReportService(staticLoader{fixtureSnapshot()}, store, ReportOptions{
		PriceSource: source,
		Anchor:      anchor,
		Groups:      []string{"Produce", "Hyvee"},
		Location:    time.UTC,
	}, applog.Discard())
	return svc, store
}

func TestBudgetStatusForCurrentWeek(t *testing.T) {
	svc, _ := newReports(t, report.PriceFromCatalog)
	week := svc.WeekAt(time.Date(2025, 3, 6, 12, 0, 0, 0, time.UTC))
	assert.Equal(t, "2025-03-02", week.Start.String())

	st, err := svc.BudgetStatus(context.Background(), "Red", week)
	require.NoError(t, err)
	assert.Equal(t, int64(10000), st.Budget.Cents)
	assert.Equal(t, int64(1300), st.Spent.Cents)
	assert.Equal(t, int64(8700), st.Remaining.Cents)

	blue, err := svc.BudgetStatus(context.Background(), "Blue", week)
	require.NoError(t, err)
	assert.Equal(t, int64(4500), blue.Remaining.Cents)
}

func TestBudgetStatusWithStoredPrices(t *testing.T) {
	svc, _ := newReports(t, report.PriceFromLedger)
	week := svc.WeekAt(time.Date(2025, 3, 6, 12, 0, 0, 0, time.UTC))
	st, err := svc.BudgetStatus(context.Background(), "Red", week)
	require.NoError(t, err)
	assert.Equal(t, int64(1200), st.Spent.Cents)
}

func TestReportViews(t *testing.T) {
	svc, _ := newReports(t, report.PriceFromCatalog)
	ctx := context.Background()
	week := report.WeekOf(core.NewDate(2025, 3, 4))

	tw, err := svc.TeamWeek(ctx, "Red", week)
	require.NoError(t, err)
	assert.Len(t, tw.Members, 2)
	assert.Equal(t, int64(1300), tw.Total.Cents)

	group, err := svc.GroupReport(ctx, week)
	require.NoError(t, err)
	require.Len(t, group, 2)
	assert.Equal(t, "Blue", group[0].Team, "newest first")

	summary, err := svc.WeeklySummary(ctx, week)
	require.NoError(t, err)
	assert.Len(t, summary, 3)

	totals, err := svc.WeeklyTotals(ctx)
	require.NoError(t, err)
	require.Len(t, totals.Years, 1)
	assert.Len(t, totals.Years[0].Weeks, 2)

	all, err := svc.AllOrders(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 4)

	mv, err := svc.MemberOrders(ctx, "ann", week)
	require.NoError(t, err)
	assert.Equal(t, "Ann", mv.Member)
	assert.Len(t, mv.Lines, 1)
	require.Len(t, mv.Totals, 1)
	assert.Equal(t, 3, mv.Totals[0].Quantity)
}
