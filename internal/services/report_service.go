package services

import (
	"context"
	"fmt"
	"time"

	"teamorders/internal/core"
	"teamorders/internal/docstore"
	"teamorders/internal/ledger"
	applog "teamorders/internal/log"
	"teamorders/internal/report"
)

// ReportOptions selects how reports cost and number orders.
type ReportOptions struct {
	PriceSource report.PriceSource
	Anchor      report.Anchor
	// Groups are the menu groups making up the group report.
	Groups   []string
	Location *time.Location
}

// ReportService joins a fresh snapshot of the flat files with ledger rows.
type ReportService struct {
	loader docstore.Loader
	reader ledger.Reader
	opts   ReportOptions
	logger *applog.Logger
}

func NewReportService(loader docstore.Loader, reader ledger.Reader, opts ReportOptions, logger *applog.Logger) *ReportService {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	return &ReportService{
		loader: loader,
		reader: reader,
		opts:   opts,
		logger: logger.WithComponent(applog.ComponentBudget),
	}
}

// Location is the zone weeks are computed in.
func (s *ReportService) Location() *time.Location {
	return s.opts.Location
}

// Anchor is the configured week-numbering anchor.
func (s *ReportService) Anchor() report.Anchor {
	return s.opts.Anchor
}

// WeekAt returns the ordering week containing t.
func (s *ReportService) WeekAt(t time.Time) report.Week {
	return report.WeekRange(t.In(s.opts.Location))
}

// Snapshot reads the flat files.
func (s *ReportService) Snapshot(ctx context.Context) (core.Snapshot, error) {
	snap, err := s.loader.Snapshot(ctx)
	if err != nil {
		return core.Snapshot{}, fmt.Errorf("load documents: %w", err)
	}
	return snap, nil
}

func (s *ReportService) weekFilter(week report.Week) ledger.Filter {
	from, to := week.Bounds(s.opts.Location)
	return ledger.Filter{From: from, To: to}
}

func (s *ReportService) list(ctx context.Context, f ledger.Filter) ([]core.Order, error) {
	orders, err := s.reader.ListOrders(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

// BudgetStatus is team's allotment, spend and remainder for week.
func (s *ReportService) BudgetStatus(ctx context.Context, team string, week report.Week) (report.BudgetStatus, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return report.BudgetStatus{}, err
	}
	orders, err := s.list(ctx, s.weekFilter(week))
	if err != nil {
		return report.BudgetStatus{}, err
	}
	pricer := report.NewPricer(s.opts.PriceSource, snap.Menu)
	st := report.Status(team, week, snap.Budgets, orders, snap.Directory, pricer)
	s.logger.DebugContext(ctx, "Budget computed",
		applog.FieldTeam, team,
		applog.FieldWeekStart, week.Start.String(),
		applog.FieldTotalCents, st.Spent.Cents)
	return st, nil
}

// TeamWeek is the admin view of one team's week.
func (s *ReportService) TeamWeek(ctx context.Context, team string, week report.Week) (report.TeamWeekView, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return report.TeamWeekView{}, err
	}
	// Rows are attributed through the roster, so a moved member's rows carry
	// another team on the ledger.
	orders, err := s.list(ctx, s.weekFilter(week))
	if err != nil {
		return report.TeamWeekView{}, err
	}
	pricer := report.NewPricer(s.opts.PriceSource, snap.Menu)
	return report.TeamWeek(team, week, orders, snap.Directory, pricer, snap.Budgets.For(team)), nil
}

// WeekOrders returns every row dated in week, oldest first.
func (s *ReportService) WeekOrders(ctx context.Context, week report.Week) ([]core.Order, error) {
	return s.list(ctx, s.weekFilter(week))
}

// GroupOrders returns the week's rows whose item belongs to a report group,
// along with the item set used.
func (s *ReportService) GroupOrders(ctx context.Context, week report.Week) ([]core.Order, map[string]struct{}, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return nil, nil, err
	}
	items := snap.Menu.ItemsInGroups(s.opts.Groups...)
	f := s.weekFilter(week)
	f.Items = items
	orders, err := s.list(ctx, f)
	if err != nil {
		return nil, nil, err
	}
	return orders, items, nil
}

// WeeklySummary lists the week's rows newest first.
func (s *ReportService) WeeklySummary(ctx context.Context, week report.Week) ([]report.SummaryRow, error) {
	orders, err := s.WeekOrders(ctx, week)
	if err != nil {
		return nil, err
	}
	return report.WeeklySummary(orders), nil
}

// GroupReport lists the week's report-group rows newest first.
func (s *ReportService) GroupReport(ctx context.Context, week report.Week) ([]report.SummaryRow, error) {
	orders, items, err := s.GroupOrders(ctx, week)
	if err != nil {
		return nil, err
	}
	return report.GroupReport(orders, items), nil
}

// WeeklyTotals sums spend per year, week and team over the whole ledger.
func (s *ReportService) WeeklyTotals(ctx context.Context) (report.WeeklyTotalsView, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return report.WeeklyTotalsView{}, err
	}
	orders, err := s.list(ctx, ledger.Filter{})
	if err != nil {
		return report.WeeklyTotalsView{}, err
	}
	pricer := report.NewPricer(s.opts.PriceSource, snap.Menu)
	return report.WeeklyTotals(orders, s.opts.Anchor, pricer, snap.Directory.TeamNames()), nil
}

// AllOrders lists the whole ledger newest first.
func (s *ReportService) AllOrders(ctx context.Context) ([]report.OrderRow, error) {
	orders, err := s.list(ctx, ledger.Filter{})
	if err != nil {
		return nil, err
	}
	return report.AllOrders(orders, s.opts.Anchor), nil
}

// MemberOrders is member's week plus all-time item totals.
func (s *ReportService) MemberOrders(ctx context.Context, member string, week report.Week) (report.MemberView, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return report.MemberView{}, err
	}
	orders, err := s.list(ctx, ledger.Filter{Member: member})
	if err != nil {
		return report.MemberView{}, err
	}
	// The ledger filter matches case-insensitively; fold spellings onto the first stored one.
	if len(orders) > 0 {
		member = orders[0].Member
		for i := range orders {
			orders[i].Member = member
		}
	}
	pricer := report.NewPricer(s.opts.PriceSource, snap.Menu)
	return report.MemberOrders(member, orders, week, pricer), nil
}
