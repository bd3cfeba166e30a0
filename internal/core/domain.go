package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// PriceKeySeparator joins item and option names in price lookups and cart metadata.
const PriceKeySeparator = "|||"

type (
	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// Team is one roster entry of the directory.
	Team struct {
		Name    string
		Members []string
	}

	// Directory is the ordered team -> members listing read from users.json.
	Directory struct {
		Teams []Team
	}

	Option struct {
		Name  string
		Price Money
	}

	MenuItem struct {
		Name    string
		Group   string
		Options []Option
	}

	MenuGroup struct {
		Name  string
		Items []MenuItem
	}

	// Menu is the grouped catalog read from structured_menu.json.
	Menu struct {
		Groups []MenuGroup
	}

	// Budgets maps a team name to its weekly allotment.
	Budgets map[string]Money

	// PriceIndex is the flattened (item, option) -> price lookup.
	PriceIndex map[string]Money

	// Order is a single ledger row: one menu option ordered by one member.
	Order struct {
		ID           int64
		SubmissionID string
		Team         string
		Member       string
		PlacedAt     time.Time
		Item         string
		Option       string
		Quantity     int
		Price        Money
	}

	// OrderLine is one cart entry before it becomes a ledger row.
	OrderLine struct {
		Key      string `json:"k,omitempty"`
		Item     string `json:"i" validate:"required,max=200"`
		Option   string `json:"o,omitempty" validate:"max=100"`
		Price    Money  `json:"p"`
		Quantity int    `json:"q" validate:"gt=0,lte=1000"`
	}

	// Snapshot is everything a request needs from the flat files, read together.
	Snapshot struct {
		Directory Directory
		Menu      Menu
		Budgets   Budgets
	}
)

var (
	ErrInvalidAmount  = errors.New("invalid amount")
	ErrTeamNotFound   = errors.New("team not found")
	ErrMemberNotFound = errors.New("member not found")
	ErrEmptyOrder     = errors.New("order has no items")
	// ErrDuplicateMember marks a member listed under more than one team.
	ErrDuplicateMember = errors.New("member listed under more than one team")
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf returns the calendar day of t, independent of its location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, int(m), d)
}

// String formats the date as YYYY-MM-DD.
func (d Date) String() string {
	return d.Format("2006-01-02")
}

// Short formats the date as M/D/YY.
func (d Date) Short() string {
	return d.Format("1/2/06")
}

// TeamNames returns team names in directory order.
func (d Directory) TeamNames() []string {
	names := make([]string, 0, len(d.Teams))
	for _, t := range d.Teams {
		names = append(names, t.Name)
	}
	return names
}

// Team returns the named team.
func (d Directory) Team(name string) (Team, bool) {
	for _, t := range d.Teams {
		if t.Name == name {
			return t, true
		}
	}
	return Team{}, false
}

// MemberTeams inverts the directory into member -> team. Member names are
// trimmed and blanks skipped; a name listed under two teams maps to the last one.
func (d Directory) MemberTeams() map[string]string {
	out := make(map[string]string)
	for _, t := range d.Teams {
		for _, m := range t.Members {
			m = strings.TrimSpace(m)
			if m != "" {
				out[m] = t.Name
			}
		}
	}
	return out
}

// DuplicateMemberError names the member and the two teams listing it.
type DuplicateMemberError struct {
	Member        string
	First, Second string
}

func (e *DuplicateMemberError) Error() string {
	return fmt.Sprintf("%s is listed under %s and %s", e.Member, e.First, e.Second)
}

func (e *DuplicateMemberError) Unwrap() error { return ErrDuplicateMember }

// CheckMembers reports a member name (compared as at login) that appears under
// two different teams.
func (d Directory) CheckMembers() error {
	owner := map[string]string{}
	for _, t := range d.Teams {
		for _, m := range t.Members {
			key := strings.ToLower(strings.TrimSpace(m))
			if key == "" {
				continue
			}
			if prev, ok := owner[key]; ok && prev != t.Name {
				return &DuplicateMemberError{Member: strings.TrimSpace(m), First: prev, Second: t.Name}
			}
			owner[key] = t.Name
		}
	}
	return nil
}

// FindMember resolves a login attempt case-insensitively and returns the
// canonical team and member spellings from the directory.
func (d Directory) FindMember(team, member string) (string, string, error) {
	team = strings.ToLower(strings.TrimSpace(team))
	member = strings.ToLower(strings.TrimSpace(member))
	for _, t := range d.Teams {
		if strings.ToLower(strings.TrimSpace(t.Name)) != team {
			continue
		}
		for _, m := range t.Members {
			if strings.ToLower(strings.TrimSpace(m)) == member && member != "" {
				return t.Name, strings.TrimSpace(m), nil
			}
		}
		return t.Name, "", ErrMemberNotFound
	}
	return "", "", ErrTeamNotFound
}

// PriceKey builds the lookup key for an item/option pair.
func PriceKey(item, option string) string {
	return item + PriceKeySeparator + option
}

// PriceIndex flattens the grouped catalog.
func (m Menu) PriceIndex() PriceIndex {
	idx := make(PriceIndex)
	for _, g := range m.Groups {
		for _, it := range g.Items {
			for _, opt := range it.Options {
				idx[PriceKey(it.Name, opt.Name)] = opt.Price
			}
		}
	}
	return idx
}

// Lookup returns the catalog price for an item/option pair.
func (p PriceIndex) Lookup(item, option string) (Money, bool) {
	price, ok := p[PriceKey(item, option)]
	return price, ok
}

// ItemsInGroups returns the names of every item in the named groups.
func (m Menu) ItemsInGroups(groups ...string) map[string]struct{} {
	want := make(map[string]struct{}, len(groups))
	for _, g := range groups {
		want[g] = struct{}{}
	}
	out := make(map[string]struct{})
	for _, g := range m.Groups {
		if _, ok := want[g.Name]; !ok {
			continue
		}
		for _, it := range g.Items {
			out[it.Name] = struct{}{}
		}
	}
	return out
}

// For returns the team's budget, or DefaultBudget when unset.
func (b Budgets) For(team string) Money {
	if v, ok := b[team]; ok {
		return v
	}
	return DefaultBudget
}

// Label is the display name "item - option"; an empty option leaves the bare item.
func (o Order) Label() string {
	return ItemLabel(o.Item, o.Option)
}

// Date returns the calendar day the order was placed.
func (o Order) Date() Date {
	return DateOf(o.PlacedAt)
}

// ItemLabel joins item and option, trimming dangling separators.
func ItemLabel(item, option string) string {
	return strings.Trim(item+" - "+option, " -")
}

// ParseCartMeta splits "item|||option|||price" as posted by the order form.
func ParseCartMeta(meta string) (item, option string, price Money, err error) {
	parts := strings.Split(meta, PriceKeySeparator)
	if len(parts) != 3 {
		return "", "", Money{}, errors.New("malformed item metadata")
	}
	cents, err := ParseDecimalToCents(parts[2])
	if err != nil {
		return "", "", Money{}, err
	}
	return parts[0], parts[1], Money{Cents: cents}, nil
}

// Subtotal is the line price times quantity.
func (l OrderLine) Subtotal() Money {
	return l.Price.Times(l.Quantity)
}
