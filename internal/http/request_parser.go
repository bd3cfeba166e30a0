// Package http provides HTTP server and handler implementations.
//
// This file turns the admin edit forms back into documents. Values that do
// not parse are dropped and the rest of the form is kept.

package http

import (
	"net/url"
	"strings"

	"teamorders/internal/core"
)

// Form field names posted by the admin editors.
const (
	fieldVersion   = "version"
	fieldGroups    = "groups[]"
	fieldTeamNames = "team_names[]"
	fieldMembers   = "members[]"
	fieldNewGroup  = "new_group"
	fieldNewItem   = "new_item"
	fieldNewOption = "new_option"
	fieldNewPrice  = "new_price"
)

func itemNamesField(group string) string { return "group_names[" + group + "][item_names][]" }
func optionsField(item string) string    { return "options[" + item + "][]" }
func pricesField(item string) string     { return "prices[" + item + "][]" }

// ParseBudgetsForm applies the posted amount for each team in teams on top
// of current. A team's field is named after the team; blank or unparsable
// amounts leave the current value, and teams without an entry get the default.
func ParseBudgetsForm(form url.Values, teams []string, current core.Budgets) core.Budgets {
	out := make(core.Budgets, len(current)+len(teams))
	for team, v := range current {
		out[team] = v
	}
	for _, team := range teams {
		out[team] = current.For(team)
		raw := strings.TrimSpace(form.Get(team))
		if raw == "" {
			continue
		}
		cents, err := core.ParseDecimalToCents(raw)
		if err != nil {
			continue
		}
		out[team] = core.Money{Cents: cents}
	}
	return out
}

// ParseMenuForm rebuilds the catalog. Groups come in the order of groups[];
// each group lists its items under group_names[<group>][item_names][] and
// each item pairs options[<item>][] with prices[<item>][]. Blank names,
// unparsable prices, items whose option and price lists differ in length,
// and groups left without items are dropped.
func ParseMenuForm(form url.Values) core.Menu {
	var menu core.Menu
	seen := map[string]bool{}
	for _, group := range form[fieldGroups] {
		group = sanitizeInput(group)
		if group == "" || seen[group] {
			continue
		}
		seen[group] = true
		g := core.MenuGroup{Name: group}
		for _, item := range form[itemNamesField(group)] {
			item = sanitizeInput(item)
			if item == "" {
				continue
			}
			opts := parseOptions(form[optionsField(item)], form[pricesField(item)])
			if len(opts) == 0 {
				continue
			}
			g.Items = append(g.Items, core.MenuItem{Name: item, Group: group, Options: opts})
		}
		if len(g.Items) > 0 {
			menu.Groups = append(menu.Groups, g)
		}
	}
	addNewItem(&menu, form)
	return menu
}

func parseOptions(names, prices []string) []core.Option {
	if len(names) == 0 || len(names) != len(prices) {
		return nil
	}
	var out []core.Option
	for i, name := range names {
		name = sanitizeInput(name)
		if name == "" {
			continue
		}
		cents, err := core.ParseDecimalToCents(prices[i])
		if err != nil {
			continue
		}
		out = append(out, core.Option{Name: name, Price: core.Money{Cents: cents}})
	}
	return out
}

// addNewItem appends the single add-an-item row of the editor, creating the
// group when it does not exist yet.
func addNewItem(menu *core.Menu, form url.Values) {
	group := sanitizeInput(form.Get(fieldNewGroup))
	item := sanitizeInput(form.Get(fieldNewItem))
	option := sanitizeInput(form.Get(fieldNewOption))
	if group == "" || item == "" || option == "" {
		return
	}
	cents, err := core.ParseDecimalToCents(form.Get(fieldNewPrice))
	if err != nil {
		return
	}
	opt := core.Option{Name: option, Price: core.Money{Cents: cents}}
	for gi := range menu.Groups {
		g := &menu.Groups[gi]
		if g.Name != group {
			continue
		}
		for ii := range g.Items {
			if g.Items[ii].Name == item {
				g.Items[ii].Options = append(g.Items[ii].Options, opt)
				return
			}
		}
		g.Items = append(g.Items, core.MenuItem{Name: item, Group: group, Options: []core.Option{opt}})
		return
	}
	menu.Groups = append(menu.Groups, core.MenuGroup{
		Name:  group,
		Items: []core.MenuItem{{Name: item, Group: group, Options: []core.Option{opt}}},
	})
}

// ParseUsersForm pairs team_names[] with members[] textareas, one member per
// line. Blank team names are dropped; a team with no members keeps a single
// blank entry so it stays in the roster. Repeated names inside a team collapse
// to the first spelling. A member under two teams fails with
// core.ErrDuplicateMember.
func ParseUsersForm(form url.Values) (core.Directory, error) {
	var dir core.Directory
	teams := form[fieldTeamNames]
	members := form[fieldMembers]
	seen := map[string]bool{}
	for i, team := range teams {
		team = sanitizeInput(team)
		if team == "" || seen[team] {
			continue
		}
		seen[team] = true
		var list []string
		listed := map[string]bool{}
		if i < len(members) {
			for _, line := range strings.Split(members[i], "\n") {
				m := sanitizeInput(line)
				key := strings.ToLower(m)
				if m == "" || listed[key] {
					continue
				}
				listed[key] = true
				list = append(list, m)
			}
		}
		if len(list) == 0 {
			list = []string{" "}
		}
		dir.Teams = append(dir.Teams, core.Team{Name: team, Members: list})
	}
	if err := dir.CheckMembers(); err != nil {
		return core.Directory{}, err
	}
	return dir, nil
}
