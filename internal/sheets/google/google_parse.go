package google

import (
	"cmp"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"teamorders/internal/core"
)

type yearGroup struct {
	year   int
	orders []core.Order
}

// groupByYear splits rows by calendar year, oldest year first, keeping row order.
func groupByYear(orders []core.Order) []yearGroup {
	idx := map[int]int{}
	var out []yearGroup
	for _, o := range orders {
		y := o.PlacedAt.Year()
		i, ok := idx[y]
		if !ok {
			i = len(out)
			idx[y] = i
			out = append(out, yearGroup{year: y})
		}
		out[i].orders = append(out[i].orders, o)
	}
	slices.SortStableFunc(out, func(a, b yearGroup) int { return cmp.Compare(a.year, b.year) })
	return out
}

// orderRow lays a ledger row out in mirror column order.
func orderRow(o core.Order) []any {
	return []any{
		o.PlacedAt.Format("2006-01-02"),
		o.PlacedAt.Format("15:04:05"),
		o.Team,
		o.Member,
		o.Item,
		o.Option,
		o.Quantity,
		o.Price.Dollars(),
		o.SubmissionID,
		o.ID,
	}
}

// orderIDsFromValues reads the order id column. Cells come back unformatted,
// so numbers arrive as float64; anything unparsable is ignored.
func orderIDsFromValues(values [][]any) map[int64]struct{} {
	out := make(map[int64]struct{}, len(values))
	for _, row := range values {
		if len(row) == 0 {
			continue
		}
		var id int64
		switch v := row[0].(type) {
		case float64:
			id = int64(v)
		case int64:
			id = v
		case int:
			id = int64(v)
		default:
			n, err := strconv.ParseInt(strings.TrimSpace(fmt.Sprint(v)), 10, 64)
			if err != nil {
				continue
			}
			id = n
		}
		if id > 0 {
			out[id] = struct{}{}
		}
	}
	return out
}

// yearPrefixedName returns "<year> <base>" unless base already starts with a 4-digit year.
func yearPrefixedName(base string, year int) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return base
	}
	if len(base) >= 5 {
		if y, err := strconv.Atoi(base[0:4]); err == nil && base[4] == ' ' && y > 1900 && y < 3000 {
			return base
		}
	}
	return fmt.Sprintf("%d %s", year, base)
}

// quoteSheet quotes a sheet title for A1 notation.
func quoteSheet(name string) string {
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}
