package core

import (
	"errors"
	"testing"
	"time"
)

func sampleDirectory() Directory {
	return Directory{Teams: []Team{
		{Name: "Red", Members: []string{"Ann", " Bob ", ""}},
		{Name: "Blue", Members: []string{"Cid"}},
	}}
}

func TestMemberTeamsInvertsDirectory(t *testing.T) {
	got := sampleDirectory().MemberTeams()
	want := map[string]string{"Ann": "Red", "Bob": "Red", "Cid": "Blue"}
	if len(got) != len(want) {
		t.Fatalf("expected %d members, got %v", len(want), got)
	}
	for m, team := range want {
		if got[m] != team {
			t.Errorf("member %s: expected %s, got %s", m, team, got[m])
		}
	}
}

func TestFindMember(t *testing.T) {
	dir := sampleDirectory()

	team, member, err := dir.FindMember(" red ", "BOB")
	if err != nil || team != "Red" || member != "Bob" {
		t.Fatalf("unexpected lookup: team=%q member=%q err=%v", team, member, err)
	}

	if _, _, err := dir.FindMember("Green", "Ann"); !errors.Is(err, ErrTeamNotFound) {
		t.Fatalf("expected ErrTeamNotFound, got %v", err)
	}
	if _, _, err := dir.FindMember("Red", "Cid"); !errors.Is(err, ErrMemberNotFound) {
		t.Fatalf("expected ErrMemberNotFound, got %v", err)
	}
	if _, _, err := dir.FindMember("Red", ""); !errors.Is(err, ErrMemberNotFound) {
		t.Fatalf("blank member should not match blank roster entry, got %v", err)
	}
}

func TestCheckMembers(t *testing.T) {
	if err := sampleDirectory().CheckMembers(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	dir := Directory{Teams: []Team{
		{Name: "Red", Members: []string{"Ann", "Ann"}},
		{Name: "Blue", Members: []string{" ", "ann "}},
	}}
	err := dir.CheckMembers()
	if !errors.Is(err, ErrDuplicateMember) {
		t.Fatalf("expected ErrDuplicateMember, got %v", err)
	}
	var dup *DuplicateMemberError
	if !errors.As(err, &dup) || dup.Member != "ann" || dup.First != "Red" || dup.Second != "Blue" {
		t.Errorf("unexpected error detail: %+v", dup)
	}
}

func TestPriceIndexAndGroups(t *testing.T) {
	menu := Menu{Groups: []MenuGroup{
		{Name: "Produce", Items: []MenuItem{{Name: "Apples", Options: []Option{{Name: "Bag", Price: Money{Cents: 450}}}}}},
		{Name: "Drinks", Items: []MenuItem{{Name: "Shake", Options: []Option{
			{Name: "Chocolate", Price: Money{Cents: 300}},
			{Name: "Vanilla", Price: Money{Cents: 325}},
		}}}},
	}}

	idx := menu.PriceIndex()
	if len(idx) != 3 {
		t.Fatalf("expected 3 prices, got %d", len(idx))
	}
	if p, ok := idx.Lookup("Shake", "Vanilla"); !ok || p.Cents != 325 {
		t.Fatalf("unexpected price %v ok=%v", p, ok)
	}
	if _, ok := idx.Lookup("Shake", "Strawberry"); ok {
		t.Fatalf("unknown option should not resolve")
	}

	items := menu.ItemsInGroups("Produce", "Hyvee")
	if _, ok := items["Apples"]; !ok || len(items) != 1 {
		t.Fatalf("unexpected group items: %v", items)
	}
}

func TestBudgetsDefault(t *testing.T) {
	b := Budgets{"Red": {Cents: 5000}}
	if b.For("Red").Cents != 5000 {
		t.Fatalf("expected explicit budget")
	}
	if b.For("Blue") != DefaultBudget {
		t.Fatalf("expected default budget for missing team")
	}
	var nilBudgets Budgets
	if nilBudgets.For("Red") != DefaultBudget {
		t.Fatalf("expected default from nil budgets")
	}
}

func TestItemLabelAndDate(t *testing.T) {
	if got := ItemLabel("Bananas", ""); got != "Bananas" {
		t.Fatalf("unexpected label %q", got)
	}
	if got := ItemLabel("Shake", "Chocolate"); got != "Shake - Chocolate" {
		t.Fatalf("unexpected label %q", got)
	}

	loc := time.FixedZone("CST", -6*3600)
	o := Order{PlacedAt: time.Date(2025, 3, 2, 23, 30, 0, 0, loc)}
	if got := o.Date().String(); got != "2025-03-02" {
		t.Fatalf("order date should use wall clock day, got %s", got)
	}
}

func TestParseCartMeta(t *testing.T) {
	item, opt, price, err := ParseCartMeta("Shake|||Chocolate|||3.25")
	if err != nil || item != "Shake" || opt != "Chocolate" || price.Cents != 325 {
		t.Fatalf("unexpected parse: %q %q %v %v", item, opt, price, err)
	}
	for _, bad := range []string{"Shake|||3.25", "a|||b|||x", ""} {
		if _, _, _, err := ParseCartMeta(bad); err == nil {
			t.Errorf("%q expected error", bad)
		}
	}
}

func TestRoleFor(t *testing.T) {
	tests := []struct {
		team, member string
		want         Role
	}{
		{"KSU Football", "Scott Trausch", RoleAdmin},
		{"KSU Football", "Ann", RoleLimitedAdmin},
		{"Red", "Scott Trausch", RoleMember},
	}
	for _, tt := range tests {
		if got := RoleFor(tt.team, tt.member, "KSU Football", "Scott Trausch"); got != tt.want {
			t.Errorf("RoleFor(%q, %q) = %q, want %q", tt.team, tt.member, got, tt.want)
		}
	}
}

func TestIdentityPermissions(t *testing.T) {
	admin := Identity{Team: "KSU Football", Member: "Scott Trausch", Role: RoleAdmin}
	if admin.CanOrder() {
		t.Error("full admin should not order until acting for the admin team")
	}
	admin.ActingForAdminTeam = true
	if !admin.CanOrder() || !admin.CanEditAdmin() {
		t.Error("acting admin should order and still edit")
	}

	limited := Identity{Team: "KSU Football", Member: "Ann", Role: RoleLimitedAdmin}
	if !limited.CanViewAdmin() || limited.CanEditAdmin() || !limited.CanOrder() {
		t.Errorf("unexpected limited admin permissions: %+v", limited)
	}

	member := Identity{Team: "Red", Member: "Bob", Role: RoleMember}
	if member.CanViewAdmin() || !member.CanOrder() {
		t.Errorf("unexpected member permissions: %+v", member)
	}
	if (Identity{}).Valid() {
		t.Error("zero identity should not be valid")
	}
}
