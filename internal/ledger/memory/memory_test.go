package memory

import (
	"context"
	"testing"
	"time"

	"teamorders/internal/core"
	"teamorders/internal/ledger"
)

func TestAppendAndList(t *testing.T) {
	s := New()
	ctx := context.Background()
	base := time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)

	stored, err := s.AppendOrders(ctx, []core.Order{
		{Team: "Red", Member: "Ann", Item: "Apples", Quantity: 1, PlacedAt: base.Add(time.Hour)},
		{Team: "Blue", Member: "Cid", Item: "Shake", Quantity: 2, PlacedAt: base},
	})
	if err != nil {
		t.Fatalf("AppendOrders: %v", err)
	}
	if stored[0].ID != 1 || stored[1].ID != 2 {
		t.Fatalf("unexpected ids: %d %d", stored[0].ID, stored[1].ID)
	}

	all, err := s.ListOrders(ctx, ledger.Filter{})
	if err != nil || len(all) != 2 {
		t.Fatalf("unexpected list: %v err=%v", all, err)
	}
	if all[0].Member != "Cid" {
		t.Fatalf("rows should be oldest first, got %s first", all[0].Member)
	}

	red, _ := s.ListOrders(ctx, ledger.Filter{Team: "Red"})
	if len(red) != 1 || red[0].Member != "Ann" {
		t.Fatalf("unexpected team filter result: %v", red)
	}
}

func TestPendingMirror(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Date(2025, 3, 3, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	stored, _ := s.AppendOrders(ctx, []core.Order{
		{Member: "Ann", PlacedAt: now.Add(-10 * time.Minute)},
		{Member: "Bob", PlacedAt: now.Add(-9 * time.Minute)},
		{Member: "Cid", PlacedAt: now.Add(-10 * time.Second)},
	})

	pending, err := s.PendingMirror(ctx, 10, time.Minute)
	if err != nil || len(pending) != 2 {
		t.Fatalf("expected 2 pending, got %v err=%v", pending, err)
	}

	if err := s.MarkMirrored(ctx, []int64{stored[0].ID}); err != nil {
		t.Fatal(err)
	}
	pending, _ = s.PendingMirror(ctx, 1, time.Minute)
	if len(pending) != 1 || pending[0].Member != "Bob" {
		t.Fatalf("unexpected pending after mark: %v", pending)
	}
}
