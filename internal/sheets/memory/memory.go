// Package memory is an in-process OrderMirror for tests and local runs
// without spreadsheet credentials.
package memory

import (
	"context"
	"fmt"
	"sync"

	"teamorders/internal/core"
	"teamorders/internal/sheets"
)

type Store struct {
	mu       sync.Mutex
	base     string
	rows     map[string][]core.Order
	seen     map[int64]struct{}
	failNext error
}

var _ sheets.OrderMirror = (*Store)(nil)

// New returns an empty mirror whose sheets are named "<year> <base>".
func New(base string) *Store {
	return &Store{base: base, rows: map[string][]core.Order{}, seen: map[int64]struct{}{}}
}

// AppendOrders stores rows per yearly sheet, skipping known order ids.
func (s *Store) AppendOrders(_ context.Context, orders []core.Order) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failNext; err != nil {
		s.failNext = nil
		return 0, err
	}
	written := 0
	for _, o := range orders {
		if _, dup := s.seen[o.ID]; dup && o.ID != 0 {
			continue
		}
		name := fmt.Sprintf("%d %s", o.PlacedAt.Year(), s.base)
		s.rows[name] = append(s.rows[name], o)
		if o.ID != 0 {
			s.seen[o.ID] = struct{}{}
		}
		written++
	}
	return written, nil
}

// FailNext makes the next AppendOrders call return err.
func (s *Store) FailNext(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext = err
}

// Rows returns a copy of the rows on a sheet.
func (s *Store) Rows(sheet string) []core.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Order(nil), s.rows[sheet]...)
}

// Len is the total number of mirrored rows.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.rows {
		n += len(r)
	}
	return n
}
