package report

import (
	"fmt"
	"strings"

	"teamorders/internal/core"
)

// PriceSource selects which price is authoritative when costing an order.
type PriceSource int

const (
	// PriceFromCatalog re-derives the price from the current menu; pairs
	// missing from the menu cost nothing.
	PriceFromCatalog PriceSource = iota
	// PriceFromLedger trusts the price recorded on the order row.
	PriceFromLedger
)

// ParsePriceSource maps "catalog" and "stored".
func ParsePriceSource(s string) (PriceSource, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "catalog":
		return PriceFromCatalog, nil
	case "stored":
		return PriceFromLedger, nil
	default:
		return 0, fmt.Errorf("unknown price source %q", s)
	}
}

func (s PriceSource) String() string {
	if s == PriceFromLedger {
		return "stored"
	}
	return "catalog"
}

// Pricer resolves the unit price of ledger rows.
type Pricer struct {
	source PriceSource
	index  core.PriceIndex
}

// NewPricer builds a pricer over the menu's flattened price index.
func NewPricer(source PriceSource, menu core.Menu) Pricer {
	return Pricer{source: source, index: menu.PriceIndex()}
}

// Source returns the configured price source.
func (p Pricer) Source() PriceSource {
	return p.source
}

// Price returns the unit price for o.
func (p Pricer) Price(o core.Order) core.Money {
	if p.source == PriceFromLedger {
		return o.Price
	}
	price, _ := p.index.Lookup(o.Item, o.Option)
	return price
}

// Cost is quantity times the resolved unit price.
func (p Pricer) Cost(o core.Order) core.Money {
	return p.Price(o).Times(o.Quantity)
}

// SpentByTeam sums the cost of every order placed by a member of team. Team
// membership comes from the directory; members no longer listed fall back to
// the team recorded on the row.
func SpentByTeam(team string, orders []core.Order, dir core.Directory, p Pricer) core.Money {
	memberTeam := dir.MemberTeams()
	var total core.Money
	for _, o := range orders {
		if teamOf(o, memberTeam) == team {
			total = total.Add(p.Cost(o))
		}
	}
	return total
}

// teamOf attributes a row to its member's current team, or to the team
// recorded on the row when the member is no longer listed.
func teamOf(o core.Order, memberTeam map[string]string) string {
	if t, ok := memberTeam[strings.TrimSpace(o.Member)]; ok {
		return t
	}
	return o.Team
}

// RemainingBudget is the team's allotment minus what its members spent.
func RemainingBudget(team string, budgets core.Budgets, orders []core.Order, dir core.Directory, p Pricer) core.Money {
	return budgets.For(team).Sub(SpentByTeam(team, orders, dir, p))
}

// BudgetStatus is a team's position for one week.
type BudgetStatus struct {
	Team      string
	Week      Week
	Budget    core.Money
	Spent     core.Money
	Remaining core.Money
}

// Status computes the budget position of team from the orders that fall in week.
func Status(team string, week Week, budgets core.Budgets, orders []core.Order, dir core.Directory, p Pricer) BudgetStatus {
	spent := SpentByTeam(team, InWeek(orders, week), dir, p)
	budget := budgets.For(team)
	return BudgetStatus{
		Team:      team,
		Week:      week,
		Budget:    budget,
		Spent:     spent,
		Remaining: budget.Sub(spent),
	}
}
