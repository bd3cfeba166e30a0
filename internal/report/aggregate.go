// Package report derives budget positions and admin views from ledger rows
// joined against the menu and directory.
package report

import (
	"cmp"
	"slices"

	"teamorders/internal/core"
)

// TimeLayout is the 12-hour clock format shown on admin pages.
const TimeLayout = "03:04 PM"

// FirstWeek and LastWeek bound the week numbers reported by WeeklyTotals.
const (
	FirstWeek = 1
	LastWeek  = 52
)

// Line is one order row prepared for display.
type Line struct {
	Date     core.Date
	Time     string
	Member   string
	Item     string
	Quantity int
	Price    core.Money
	Subtotal core.Money
}

// MemberLines groups one member's lines.
type MemberLines struct {
	Member string
	Lines  []Line
	Total  core.Money
}

// ItemTotal accumulates quantity and cost per item label.
type ItemTotal struct {
	Item     string
	Quantity int
	Cost     core.Money
}

// TeamWeekView is the admin view of one team's week.
type TeamWeekView struct {
	Team      string
	Week      Week
	Members   []MemberLines
	Items     []ItemTotal
	Total     core.Money
	Budget    core.Money
	Remaining core.Money
}

// SummaryRow is one line of the weekly summary and group reports.
type SummaryRow struct {
	Date     core.Date
	Time     string
	Team     string
	Member   string
	Item     string
	BareItem string
	Quantity int
}

// OrderRow is one line of the all-orders listing.
type OrderRow struct {
	Date     core.Date
	Time     string
	Week     int
	Year     int
	Team     string
	Member   string
	Item     string
	Quantity int
}

// TeamSpend is one team's total for a numbered week.
type TeamSpend struct {
	Week  int
	Start core.Date
	Teams map[string]core.Money
	Total core.Money
}

// YearTotals lists the non-empty weeks of one calendar year.
type YearTotals struct {
	Year  int
	Weeks []TeamSpend
}

// WeeklyTotalsView is spend per year, week and team.
type WeeklyTotalsView struct {
	Teams []string
	Years []YearTotals
}

// MemberView is one member's lines for a week plus all-time quantities per item.
type MemberView struct {
	Member string
	Week   Week
	Lines  []Line
	Totals []ItemTotal
}

// SortByPlaced orders rows by placement time then id, oldest first.
func SortByPlaced(orders []core.Order) {
	slices.SortStableFunc(orders, func(a, b core.Order) int {
		if c := a.PlacedAt.Compare(b.PlacedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}

func newestFirst(orders []core.Order) []core.Order {
	out := slices.Clone(orders)
	SortByPlaced(out)
	slices.Reverse(out)
	return out
}

// InWeek returns the orders dated within week.
func InWeek(orders []core.Order, week Week) []core.Order {
	var out []core.Order
	for _, o := range orders {
		if week.Contains(o.Date()) {
			out = append(out, o)
		}
	}
	return out
}

// FilterItems keeps the orders whose item name is in items.
func FilterItems(orders []core.Order, items map[string]struct{}) []core.Order {
	var out []core.Order
	for _, o := range orders {
		if _, ok := items[o.Item]; ok {
			out = append(out, o)
		}
	}
	return out
}

func lineOf(o core.Order, p Pricer) Line {
	price := p.Price(o)
	return Line{
		Date:     o.Date(),
		Time:     o.PlacedAt.Format(TimeLayout),
		Member:   o.Member,
		Item:     o.Label(),
		Quantity: o.Quantity,
		Price:    price,
		Subtotal: price.Times(o.Quantity),
	}
}

// TeamWeek groups the week's rows attributed to team by member and by item,
// attributing rows the same way SpentByTeam does. Members and items appear in
// the order first seen.
func TeamWeek(team string, week Week, orders []core.Order, dir core.Directory, p Pricer, budget core.Money) TeamWeekView {
	view := TeamWeekView{Team: team, Week: week, Budget: budget}

	rows := slices.Clone(InWeek(orders, week))
	SortByPlaced(rows)

	memberTeam := dir.MemberTeams()
	memberIdx := map[string]int{}
	itemIdx := map[string]int{}
	for _, o := range rows {
		if teamOf(o, memberTeam) != team {
			continue
		}
		line := lineOf(o, p)

		i, ok := memberIdx[o.Member]
		if !ok {
			i = len(view.Members)
			memberIdx[o.Member] = i
			view.Members = append(view.Members, MemberLines{Member: o.Member})
		}
		m := &view.Members[i]
		m.Lines = append(m.Lines, line)
		m.Total = m.Total.Add(line.Subtotal)

		j, ok := itemIdx[line.Item]
		if !ok {
			j = len(view.Items)
			itemIdx[line.Item] = j
			view.Items = append(view.Items, ItemTotal{Item: line.Item})
		}
		it := &view.Items[j]
		it.Quantity += o.Quantity
		it.Cost = it.Cost.Add(line.Subtotal)

		view.Total = view.Total.Add(line.Subtotal)
	}
	view.Remaining = budget.Sub(view.Total)
	return view
}

func summaryOf(o core.Order) SummaryRow {
	return SummaryRow{
		Date:     o.Date(),
		Time:     o.PlacedAt.Format(TimeLayout),
		Team:     o.Team,
		Member:   o.Member,
		Item:     o.Label(),
		BareItem: o.Item,
		Quantity: o.Quantity,
	}
}

// WeeklySummary flattens rows to date, team, item and quantity, newest first.
func WeeklySummary(orders []core.Order) []SummaryRow {
	sorted := newestFirst(orders)
	out := make([]SummaryRow, 0, len(sorted))
	for _, o := range sorted {
		out = append(out, summaryOf(o))
	}
	return out
}

// GroupReport lists the rows whose item belongs to items, newest day first.
func GroupReport(orders []core.Order, items map[string]struct{}) []SummaryRow {
	return WeeklySummary(FilterItems(orders, items))
}

// WeeklyTotals sums spend per calendar year, anchored week number and team.
// Weeks outside FirstWeek..LastWeek are skipped. teams seeds the column order;
// teams found only in the ledger are appended.
func WeeklyTotals(orders []core.Order, anchor Anchor, p Pricer, teams []string) WeeklyTotalsView {
	view := WeeklyTotalsView{Teams: slices.Clone(teams)}
	known := map[string]bool{}
	for _, t := range teams {
		known[t] = true
	}

	type key struct{ year, week int }
	spend := map[key]*TeamSpend{}
	for _, o := range orders {
		d := o.Date()
		week := anchor.WeekNumber(d)
		if week < FirstWeek || week > LastWeek {
			continue
		}
		k := key{d.Year(), week}
		ts, ok := spend[k]
		if !ok {
			ts = &TeamSpend{Week: week, Start: anchor.WeekStart(d.Year(), week), Teams: map[string]core.Money{}}
			spend[k] = ts
		}
		cost := p.Cost(o)
		ts.Teams[o.Team] = ts.Teams[o.Team].Add(cost)
		ts.Total = ts.Total.Add(cost)
		if !known[o.Team] {
			known[o.Team] = true
			view.Teams = append(view.Teams, o.Team)
		}
	}

	years := map[int]*YearTotals{}
	for k, ts := range spend {
		yt, ok := years[k.year]
		if !ok {
			yt = &YearTotals{Year: k.year}
			years[k.year] = yt
		}
		yt.Weeks = append(yt.Weeks, *ts)
	}
	for _, yt := range years {
		slices.SortFunc(yt.Weeks, func(a, b TeamSpend) int { return cmp.Compare(a.Week, b.Week) })
		view.Years = append(view.Years, *yt)
	}
	slices.SortFunc(view.Years, func(a, b YearTotals) int { return cmp.Compare(b.Year, a.Year) })
	return view
}

// AllOrders lists every row with its anchored week number, newest first.
func AllOrders(orders []core.Order, anchor Anchor) []OrderRow {
	sorted := newestFirst(orders)
	out := make([]OrderRow, 0, len(sorted))
	for _, o := range sorted {
		d := o.Date()
		out = append(out, OrderRow{
			Date:     d,
			Time:     o.PlacedAt.Format(TimeLayout),
			Week:     anchor.WeekNumber(d),
			Year:     d.Year(),
			Team:     o.Team,
			Member:   o.Member,
			Item:     o.Label(),
			Quantity: o.Quantity,
		})
	}
	return out
}

// MemberOrders returns member's lines within week and quantity totals per item
// across all of orders.
func MemberOrders(member string, orders []core.Order, week Week, p Pricer) MemberView {
	view := MemberView{Member: member, Week: week}
	rows := slices.Clone(orders)
	SortByPlaced(rows)

	idx := map[string]int{}
	for _, o := range rows {
		if o.Member != member {
			continue
		}
		line := lineOf(o, p)
		if week.Contains(line.Date) {
			view.Lines = append(view.Lines, line)
		}
		i, ok := idx[line.Item]
		if !ok {
			i = len(view.Totals)
			idx[line.Item] = i
			view.Totals = append(view.Totals, ItemTotal{Item: line.Item})
		}
		view.Totals[i].Quantity += o.Quantity
		view.Totals[i].Cost = view.Totals[i].Cost.Add(line.Subtotal)
	}
	return view
}
