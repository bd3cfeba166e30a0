package report

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"teamorders/internal/core"
)

func at(y, m, d, hh, mm int) time.Time {
	return time.Date(y, time.Month(m), d, hh, mm, 0, 0, time.UTC)
}

func fixtures() (core.Directory, core.Menu) {
	dir := core.Directory{Teams: []core.Team{
		{Name: "Red", Members: []string{"Ann", "Bob"}},
		{Name: "Blue", Members: []string{"Cid"}},
	}}
	menu := core.Menu{Groups: []core.MenuGroup{
		{Name: "Produce", Items: []core.MenuItem{
			{Name: "Apples", Group: "Produce", Options: []core.Option{{Name: "Bag", Price: core.Money{Cents: 450}}}},
		}},
		{Name: "Drinks", Items: []core.MenuItem{
			{Name: "Shake", Group: "Drinks", Options: []core.Option{{Name: "Chocolate", Price: core.Money{Cents: 500}}}},
		}},
	}}
	return dir, menu
}

func TestWeekRangeStartsSunday(t *testing.T) {
	// 2025-03-05 is a Wednesday.
	w := WeekRange(at(2025, 3, 5, 10, 0))
	assert.Equal(t, "2025-03-02", w.Start.String())
	assert.Equal(t, "2025-03-08", w.End.String())
	assert.Equal(t, "3/2/25 - 3/8/25", w.String())
	assert.Equal(t, "20250302", w.Stamp())

	// A Sunday starts its own week.
	sunday := WeekRange(at(2025, 3, 9, 0, 1))
	assert.Equal(t, "2025-03-09", sunday.Start.String())
	assert.True(t, sunday.Contains(core.NewDate(2025, 3, 15)))
	assert.False(t, sunday.Contains(core.NewDate(2025, 3, 16)))
	assert.Equal(t, w, sunday.Prev())
	assert.Equal(t, sunday, w.Next())
}

func TestWeekNumber(t *testing.T) {
	anchor := core.NewDate(2025, 1, 1) // Wednesday; week 1 starts 2024-12-29

	cases := []struct {
		date core.Date
		want int
	}{
		{core.NewDate(2024, 12, 29), 1},
		{core.NewDate(2025, 1, 4), 1},
		{core.NewDate(2025, 1, 5), 2},
		{core.NewDate(2025, 3, 2), 10},
		{core.NewDate(2024, 12, 28), 0},
		{core.NewDate(2024, 12, 21), -1},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, WeekNumber(tc.date, anchor), tc.date.String())
	}

	a := NewAnchor(anchor)
	assert.Equal(t, "2025-03-02", a.WeekStart(2025, 10).String())
}

func TestYearlyAnchor(t *testing.T) {
	a, err := ParseAnchor("yearly")
	require.NoError(t, err)
	// 2024-01-01 is a Monday, so week 1 of 2024 starts 2023-12-31.
	assert.Equal(t, 1, a.WeekNumber(core.NewDate(2024, 1, 6)))
	assert.Equal(t, 2, a.WeekNumber(core.NewDate(2024, 1, 7)))
	assert.Equal(t, 1, a.WeekNumber(core.NewDate(2025, 1, 1)))
	assert.Equal(t, "2023-12-31", a.WeekStart(2024, 1).String())

	_, err = ParseAnchor("soon")
	assert.Error(t, err)
}

func TestRemainingBudgetExample(t *testing.T) {
	dir, menu := fixtures()
	p := NewPricer(PriceFromCatalog, menu)
	orders := []core.Order{
		{Team: "Red", Member: "Ann", Item: "Shake", Option: "Chocolate", Quantity: 2, Price: core.Money{Cents: 500}, PlacedAt: at(2025, 3, 3, 9, 0)},
	}
	budgets := core.Budgets{"Red": {Cents: 10000}}

	got := RemainingBudget("Red", budgets, orders, dir, p)
	assert.Equal(t, int64(9000), got.Cents)
	assert.Equal(t, int64(10000), RemainingBudget("Blue", budgets, orders, dir, p).Cents)
}

func TestUnknownItemCostsNothingFromCatalog(t *testing.T) {
	dir, menu := fixtures()
	orders := []core.Order{
		{Team: "Red", Member: "Ann", Item: "Retired", Option: "Old", Quantity: 3, Price: core.Money{Cents: 700}},
		{Team: "Red", Member: "Bob", Item: "Apples", Option: "Bag", Quantity: 1, Price: core.Money{Cents: 999}},
	}

	catalog := NewPricer(PriceFromCatalog, menu)
	assert.Equal(t, int64(450), SpentByTeam("Red", orders, dir, catalog).Cents)

	stored := NewPricer(PriceFromLedger, menu)
	assert.Equal(t, int64(3*700+999), SpentByTeam("Red", orders, dir, stored).Cents)
}

func TestSpentByTeamUsesDirectoryMembership(t *testing.T) {
	dir, menu := fixtures()
	p := NewPricer(PriceFromCatalog, menu)
	orders := []core.Order{
		// Cid moved to Blue after ordering under Red.
		{Team: "Red", Member: "Cid", Item: "Apples", Option: "Bag", Quantity: 1},
		// Dee left the roster; the recorded team applies.
		{Team: "Red", Member: "Dee", Item: "Apples", Option: "Bag", Quantity: 2},
	}
	assert.Equal(t, int64(900), SpentByTeam("Red", orders, dir, p).Cents)
	assert.Equal(t, int64(450), SpentByTeam("Blue", orders, dir, p).Cents)
}

func TestRemainingBudgetInvariant(t *testing.T) {
	dir, menu := fixtures()
	p := NewPricer(PriceFromCatalog, menu)
	orders := []core.Order{
		{Member: "Ann", Item: "Apples", Option: "Bag", Quantity: 4},
		{Member: "Bob", Item: "Shake", Option: "Chocolate", Quantity: 1},
		{Member: "Cid", Item: "Shake", Option: "Chocolate", Quantity: 3},
	}
	budgets := core.Budgets{"Red": {Cents: 2500}}
	for _, team := range dir.TeamNames() {
		var sum core.Money
		members := map[string]bool{}
		tm, _ := dir.Team(team)
		for _, m := range tm.Members {
			members[m] = true
		}
		for _, o := range orders {
			if members[o.Member] {
				sum = sum.Add(p.Cost(o))
			}
		}
		assert.Equal(t, budgets.For(team).Sub(sum), RemainingBudget(team, budgets, orders, dir, p), team)
	}
}

func TestStatusOnlyCountsTheWeek(t *testing.T) {
	dir, menu := fixtures()
	p := NewPricer(PriceFromCatalog, menu)
	week := WeekRange(at(2025, 3, 5, 12, 0))
	orders := []core.Order{
		{Team: "Red", Member: "Ann", Item: "Apples", Option: "Bag", Quantity: 1, PlacedAt: at(2025, 3, 2, 8, 0)},
		{Team: "Red", Member: "Ann", Item: "Apples", Option: "Bag", Quantity: 5, PlacedAt: at(2025, 3, 1, 8, 0)},
	}
	st := Status("Red", week, core.Budgets{}, orders, dir, p)
	assert.Equal(t, int64(450), st.Spent.Cents)
	assert.Equal(t, int64(10000-450), st.Remaining.Cents)
}

func TestTeamWeek(t *testing.T) {
	dir, menu := fixtures()
	p := NewPricer(PriceFromLedger, menu)
	week := WeekRange(at(2025, 3, 5, 0, 0))
	orders := []core.Order{
		{ID: 3, Team: "Red", Member: "Bob", Item: "Shake", Option: "Chocolate", Quantity: 1, Price: core.Money{Cents: 500}, PlacedAt: at(2025, 3, 4, 15, 30)},
		{ID: 1, Team: "Red", Member: "Ann", Item: "Apples", Option: "Bag", Quantity: 2, Price: core.Money{Cents: 450}, PlacedAt: at(2025, 3, 2, 9, 5)},
		{ID: 2, Team: "Red", Member: "Ann", Item: "Shake", Option: "Chocolate", Quantity: 1, Price: core.Money{Cents: 500}, PlacedAt: at(2025, 3, 3, 9, 0)},
		{ID: 4, Team: "Blue", Member: "Cid", Item: "Apples", Option: "Bag", Quantity: 9, Price: core.Money{Cents: 450}, PlacedAt: at(2025, 3, 3, 9, 0)},
		{ID: 5, Team: "Red", Member: "Ann", Item: "Apples", Option: "Bag", Quantity: 9, Price: core.Money{Cents: 450}, PlacedAt: at(2025, 2, 28, 9, 0)},
	}

	view := TeamWeek("Red", week, orders, dir, p, core.Money{Cents: 10000})
	require.Len(t, view.Members, 2)
	assert.Equal(t, "Ann", view.Members[0].Member)
	assert.Equal(t, int64(1400), view.Members[0].Total.Cents)
	assert.Equal(t, "09:05 AM", view.Members[0].Lines[0].Time)
	assert.Equal(t, "Bob", view.Members[1].Member)

	require.Len(t, view.Items, 2)
	assert.Equal(t, ItemTotal{Item: "Apples - Bag", Quantity: 2, Cost: core.Money{Cents: 900}}, view.Items[0])
	assert.Equal(t, ItemTotal{Item: "Shake - Chocolate", Quantity: 2, Cost: core.Money{Cents: 1000}}, view.Items[1])
	assert.Equal(t, int64(1900), view.Total.Cents)
	assert.Equal(t, int64(8100), view.Remaining.Cents)
}

func TestTeamWeekMatchesStatusForMovedMember(t *testing.T) {
	dir, menu := fixtures()
	p := NewPricer(PriceFromLedger, menu)
	week := WeekRange(at(2025, 3, 5, 0, 0))
	orders := []core.Order{
		// Bob ordered while still on Blue and is now listed under Red.
		{ID: 1, Team: "Blue", Member: "Bob", Item: "Shake", Option: "Chocolate", Quantity: 2, Price: core.Money{Cents: 500}, PlacedAt: at(2025, 3, 3, 9, 0)},
		// Zed left the roster; the recorded team still counts.
		{ID: 2, Team: "Red", Member: "Zed", Item: "Apples", Option: "Bag", Quantity: 1, Price: core.Money{Cents: 450}, PlacedAt: at(2025, 3, 4, 9, 0)},
		{ID: 3, Team: "Blue", Member: "Cid", Item: "Apples", Option: "Bag", Quantity: 1, Price: core.Money{Cents: 450}, PlacedAt: at(2025, 3, 4, 9, 0)},
	}
	budgets := core.Budgets{"Red": {Cents: 5000}, "Blue": {Cents: 5000}}

	for _, team := range []string{"Red", "Blue"} {
		view := TeamWeek(team, week, orders, dir, p, budgets.For(team))
		st := Status(team, week, budgets, orders, dir, p)
		assert.Equal(t, st.Spent, view.Total, team)
		assert.Equal(t, st.Remaining, view.Remaining, team)
	}

	red := TeamWeek("Red", week, orders, dir, p, budgets.For("Red"))
	require.Len(t, red.Members, 2)
	assert.Equal(t, "Bob", red.Members[0].Member)
	assert.Equal(t, "Zed", red.Members[1].Member)
	assert.Equal(t, int64(1450), red.Total.Cents)
}

func TestWeeklySummaryAndGroupReport(t *testing.T) {
	_, menu := fixtures()
	orders := []core.Order{
		{ID: 1, Team: "Red", Item: "Apples", Option: "Bag", Quantity: 2, PlacedAt: at(2025, 3, 2, 9, 0)},
		{ID: 2, Team: "Blue", Item: "Shake", Option: "Chocolate", Quantity: 1, PlacedAt: at(2025, 3, 3, 9, 0)},
		{ID: 3, Team: "Blue", Item: "Apples", Option: "", Quantity: 1, PlacedAt: at(2025, 3, 4, 9, 0)},
	}

	summary := WeeklySummary(orders)
	require.Len(t, summary, 3)
	assert.Equal(t, "Apples", summary[0].Item)
	assert.Equal(t, "Shake - Chocolate", summary[1].Item)
	assert.Equal(t, "2025-03-02", summary[2].Date.String())

	groups := GroupReport(orders, menu.ItemsInGroups("Produce", "Hyvee"))
	require.Len(t, groups, 2)
	for _, row := range groups {
		assert.Equal(t, "Apples", row.BareItem)
	}
}

func TestWeeklyTotals(t *testing.T) {
	_, menu := fixtures()
	p := NewPricer(PriceFromCatalog, menu)
	anchor := NewAnchor(core.NewDate(2025, 1, 1))
	orders := []core.Order{
		{Team: "Red", Item: "Apples", Option: "Bag", Quantity: 1, PlacedAt: at(2025, 1, 1, 9, 0)},
		{Team: "Red", Item: "Apples", Option: "Bag", Quantity: 1, PlacedAt: at(2025, 1, 4, 9, 0)},
		{Team: "Green", Item: "Shake", Option: "Chocolate", Quantity: 2, PlacedAt: at(2025, 1, 5, 9, 0)},
		// before the anchor: week 0, skipped
		{Team: "Red", Item: "Apples", Option: "Bag", Quantity: 1, PlacedAt: at(2024, 12, 20, 9, 0)},
		// week 53, skipped
		{Team: "Red", Item: "Apples", Option: "Bag", Quantity: 1, PlacedAt: at(2025, 12, 28, 9, 0)},
	}

	view := WeeklyTotals(orders, anchor, p, []string{"Red", "Blue"})
	assert.Equal(t, []string{"Red", "Blue", "Green"}, view.Teams)
	require.Len(t, view.Years, 1)
	y := view.Years[0]
	assert.Equal(t, 2025, y.Year)
	require.Len(t, y.Weeks, 2)
	assert.Equal(t, 1, y.Weeks[0].Week)
	assert.Equal(t, int64(900), y.Weeks[0].Teams["Red"].Cents)
	assert.Equal(t, "2024-12-29", y.Weeks[0].Start.String())
	assert.Equal(t, 2, y.Weeks[1].Week)
	assert.Equal(t, int64(1000), y.Weeks[1].Total.Cents)
}

func TestAllOrders(t *testing.T) {
	anchor := NewAnchor(core.NewDate(2025, 1, 1))
	orders := []core.Order{
		{ID: 1, Team: "Red", Member: "Ann", Item: "Apples", Option: "Bag", Quantity: 1, PlacedAt: at(2025, 1, 5, 13, 15)},
		{ID: 2, Team: "Red", Member: "Bob", Item: "Apples", Quantity: 2, PlacedAt: at(2025, 1, 6, 8, 0)},
	}
	rows := AllOrders(orders, anchor)
	require.Len(t, rows, 2)
	assert.Equal(t, "Bob", rows[0].Member)
	assert.Equal(t, 2, rows[0].Week)
	assert.Equal(t, "01:15 PM", rows[1].Time)
	assert.Equal(t, 2025, rows[1].Year)
}

func TestMemberOrders(t *testing.T) {
	_, menu := fixtures()
	p := NewPricer(PriceFromCatalog, menu)
	week := WeekRange(at(2025, 3, 5, 0, 0))
	orders := []core.Order{
		{Member: "Ann", Item: "Apples", Option: "Bag", Quantity: 2, PlacedAt: at(2025, 2, 20, 9, 0)},
		{Member: "Ann", Item: "Apples", Option: "Bag", Quantity: 1, PlacedAt: at(2025, 3, 3, 9, 0)},
		{Member: "Bob", Item: "Apples", Option: "Bag", Quantity: 7, PlacedAt: at(2025, 3, 3, 9, 0)},
	}
	view := MemberOrders("Ann", orders, week, p)
	require.Len(t, view.Lines, 1)
	require.Len(t, view.Totals, 1)
	assert.Equal(t, 3, view.Totals[0].Quantity)
}

func TestParsePriceSource(t *testing.T) {
	s, err := ParsePriceSource("stored")
	require.NoError(t, err)
	assert.Equal(t, PriceFromLedger, s)
	s, err = ParsePriceSource("")
	require.NoError(t, err)
	assert.Equal(t, PriceFromCatalog, s)
	_, err = ParsePriceSource("menu")
	assert.Error(t, err)
}
