// Package memory is a process-local order ledger for tests and demos.
package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"teamorders/internal/core"
	"teamorders/internal/ledger"
)

type Store struct {
	mu       sync.Mutex
	nextID   int64
	orders   []core.Order
	mirrored map[int64]time.Time
	now      func() time.Time
}

var (
	_ ledger.Store         = (*Store)(nil)
	_ ledger.MirrorTracker = (*Store)(nil)
)

func New() *Store {
	return &Store{mirrored: map[int64]time.Time{}, now: time.Now}
}

// AppendOrders assigns ids and stores copies of orders.
func (s *Store) AppendOrders(ctx context.Context, orders []core.Order) ([]core.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Order, len(orders))
	for i, o := range orders {
		s.nextID++
		o.ID = s.nextID
		s.orders = append(s.orders, o)
		out[i] = o
	}
	return out, nil
}

// ListOrders returns the matching rows oldest first.
func (s *Store) ListOrders(ctx context.Context, f ledger.Filter) ([]core.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Order
	for _, o := range s.orders {
		if f.Match(o) {
			out = append(out, o)
		}
	}
	slices.SortStableFunc(out, func(a, b core.Order) int {
		if c := a.PlacedAt.Compare(b.PlacedAt); c != 0 {
			return c
		}
		return int(a.ID - b.ID)
	})
	return out, nil
}

// PendingMirror returns unmirrored rows created at least olderThan ago.
func (s *Store) PendingMirror(_ context.Context, limit int, olderThan time.Duration) ([]core.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := s.now().Add(-olderThan)
	var out []core.Order
	for _, o := range s.orders {
		if _, done := s.mirrored[o.ID]; done || o.PlacedAt.After(cutoff) {
			continue
		}
		out = append(out, o)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// MarkMirrored records ids as copied.
func (s *Store) MarkMirrored(_ context.Context, ids []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for _, id := range ids {
		s.mirrored[id] = now
	}
	return nil
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }
