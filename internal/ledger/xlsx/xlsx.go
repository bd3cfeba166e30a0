// Package xlsx is the spreadsheet-per-member order ledger: one workbook
// orders_<member>.xlsx per member under a directory.
//
// Workbooks carry three sheets. "Yearly Orders" holds the raw rows (Date,
// Time, Member, Item, Option, Quantity); "Running Totals" and "Weekly Pivot"
// are derived from it and rebuilt on every append. Neither team nor price is
// stored: the team comes from the roster (falling back to the file name) and
// the price from the menu, both read when the rows are listed.
package xlsx

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/xuri/excelize/v2"

	"teamorders/internal/core"
	"teamorders/internal/docstore"
	"teamorders/internal/ledger"
	applog "teamorders/internal/log"
)

// Sheet names.
const (
	OrdersSheet = "Yearly Orders"
	TotalsSheet = "Running Totals"
	PivotSheet  = "Weekly Pivot"
)

const (
	filePrefix = "orders_"
	fileExt    = ".xlsx"
	dateLayout = "2006-01-02"
	timeLayout = "15:04:05"
)

var (
	ordersHeader = []any{"Date", "Time", "Member", "Item", "Option", "Quantity"}
	totalsHeader = []any{"Item", "Option", "Quantity"}
	pivotHeader  = []any{"Week", "Item", "Quantity"}
)

type Store struct {
	dir    string
	loader docstore.Loader
	loc    *time.Location
	logger *applog.Logger
	mu     sync.RWMutex
}

var _ ledger.Store = (*Store)(nil)

// New opens the ledger rooted at dir. The loader supplies the roster and
// menu used to fill in team and price on read.
func New(dir string, loader docstore.Loader, loc *time.Location, logger *applog.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create xlsx dir: %w", err)
	}
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	return &Store{
		dir:    dir,
		loader: loader,
		loc:    loc,
		logger: logger.WithComponent(applog.ComponentStorage),
	}, nil
}

// FileName returns the workbook name for a member.
func FileName(member string) string {
	r := strings.NewReplacer("/", "_", `\`, "_", "..", "_")
	return filePrefix + r.Replace(strings.TrimSpace(member)) + fileExt
}

// ownerFromFileName extracts <x> from orders_<x>.xlsx.
func ownerFromFileName(name string) string {
	name = strings.TrimSuffix(name, fileExt)
	return strings.TrimSpace(strings.TrimPrefix(name, filePrefix))
}

func (s *Store) Ping(context.Context) error {
	info, err := os.Stat(s.dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", s.dir)
	}
	return nil
}

func (s *Store) Close() error { return nil }

// AppendOrders writes each member's rows to that member's workbook and
// rebuilds its derived sheets.
func (s *Store) AppendOrders(ctx context.Context, orders []core.Order) ([]core.Order, error) {
	if len(orders) == 0 {
		return nil, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	byMember := make(map[string][]core.Order)
	var members []string
	for _, o := range orders {
		if _, ok := byMember[o.Member]; !ok {
			members = append(members, o.Member)
		}
		byMember[o.Member] = append(byMember[o.Member], o)
	}
	for _, m := range members {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := s.appendMember(m, byMember[m]); err != nil {
			return nil, fmt.Errorf("append orders for %s: %w", m, err)
		}
	}

	s.logger.DebugContext(ctx, "Orders saved to workbooks",
		applog.FieldSubmission, orders[0].SubmissionID,
		applog.FieldRows, len(orders))
	return slices.Clone(orders), nil
}

func (s *Store) appendMember(member string, orders []core.Order) error {
	path := filepath.Join(s.dir, FileName(member))
	f, err := openOrCreate(path)
	if err != nil {
		return err
	}
	defer f.Close()

	rows, err := f.GetRows(OrdersSheet)
	if err != nil {
		return fmt.Errorf("read %s: %w", OrdersSheet, err)
	}
	if len(rows) == 0 {
		if err := setRow(f, OrdersSheet, 1, ordersHeader); err != nil {
			return err
		}
		rows = [][]string{{"Date", "Time", "Member", "Item", "Option", "Quantity"}}
	}
	next := len(rows) + 1
	for _, o := range orders {
		placed := o.PlacedAt.In(s.loc)
		row := []any{placed.Format(dateLayout), placed.Format(timeLayout), o.Member, o.Item, o.Option, o.Quantity}
		if err := setRow(f, OrdersSheet, next, row); err != nil {
			return err
		}
		next++
		rows = append(rows, []string{row[0].(string), row[1].(string), o.Member, o.Item, o.Option, strconv.Itoa(o.Quantity)})
	}

	if err := rebuildDerived(f, rows[1:]); err != nil {
		return err
	}
	return saveAtomic(f, path)
}

func openOrCreate(path string) (*excelize.File, error) {
	f, err := excelize.OpenFile(path)
	switch {
	case err == nil:
		if idx, _ := f.GetSheetIndex(OrdersSheet); idx < 0 {
			if _, err := f.NewSheet(OrdersSheet); err != nil {
				f.Close()
				return nil, err
			}
			if err := setRow(f, OrdersSheet, 1, ordersHeader); err != nil {
				f.Close()
				return nil, err
			}
		}
		return f, nil
	case errors.Is(err, fs.ErrNotExist):
		f = excelize.NewFile()
		if err := f.SetSheetName("Sheet1", OrdersSheet); err != nil {
			f.Close()
			return nil, err
		}
		if err := setRow(f, OrdersSheet, 1, ordersHeader); err != nil {
			f.Close()
			return nil, err
		}
		return f, nil
	default:
		return nil, fmt.Errorf("open workbook: %w", err)
	}
}

// rebuildDerived recreates the totals and pivot sheets from raw order rows.
func rebuildDerived(f *excelize.File, rows [][]string) error {
	type totalKey struct{ item, option string }
	type pivotKey struct{ week, label string }
	var (
		totals     = map[totalKey]int{}
		totalOrder []totalKey
		pivot      = map[pivotKey]int{}
		pivotOrder []pivotKey
	)
	for _, r := range rows {
		rec, ok := parseRowIn(r, time.UTC)
		if !ok {
			continue
		}
		tk := totalKey{rec.item, rec.option}
		if _, seen := totals[tk]; !seen {
			totalOrder = append(totalOrder, tk)
		}
		totals[tk] += rec.qty

		d := core.DateOf(rec.placed)
		sunday := d.AddDate(0, 0, -int(d.Weekday())).Format(dateLayout)
		pk := pivotKey{sunday, core.ItemLabel(rec.item, rec.option)}
		if _, seen := pivot[pk]; !seen {
			pivotOrder = append(pivotOrder, pk)
		}
		pivot[pk] += rec.qty
	}
	slices.SortStableFunc(pivotOrder, func(a, b pivotKey) int { return strings.Compare(a.week, b.week) })

	for _, name := range []string{TotalsSheet, PivotSheet} {
		if idx, _ := f.GetSheetIndex(name); idx >= 0 {
			if err := f.DeleteSheet(name); err != nil {
				return err
			}
		}
		if _, err := f.NewSheet(name); err != nil {
			return err
		}
	}

	if err := setRow(f, TotalsSheet, 1, totalsHeader); err != nil {
		return err
	}
	for i, k := range totalOrder {
		if err := setRow(f, TotalsSheet, i+2, []any{k.item, k.option, totals[k]}); err != nil {
			return err
		}
	}
	if err := setRow(f, PivotSheet, 1, pivotHeader); err != nil {
		return err
	}
	for i, k := range pivotOrder {
		if err := setRow(f, PivotSheet, i+2, []any{k.week, k.label, pivot[k]}); err != nil {
			return err
		}
	}
	if idx, err := f.GetSheetIndex(OrdersSheet); err == nil && idx >= 0 {
		f.SetActiveSheet(idx)
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}

func saveAtomic(f *excelize.File, path string) error {
	tmp := path + ".tmp"
	if err := f.SaveAs(tmp); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("save workbook: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace workbook: %w", err)
	}
	return nil
}

type rawRow struct {
	placed       time.Time
	member       string
	item, option string
	qty          int
}

func parseRowIn(r []string, loc *time.Location) (rawRow, bool) {
	if len(r) < 6 {
		return rawRow{}, false
	}
	placed, err := time.ParseInLocation(dateLayout+" "+timeLayout, strings.TrimSpace(r[0])+" "+strings.TrimSpace(r[1]), loc)
	if err != nil {
		return rawRow{}, false
	}
	qty, err := parseQuantity(r[5])
	if err != nil || qty <= 0 {
		return rawRow{}, false
	}
	return rawRow{placed: placed, member: strings.TrimSpace(r[2]), item: r[3], option: r[4], qty: qty}, true
}

// parseQuantity accepts integers and integral floats ("2", "2.0").
func parseQuantity(s string) (int, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != float64(int(f)) {
		return 0, fmt.Errorf("bad quantity %q", s)
	}
	return int(f), nil
}

// ListOrders reads every workbook and returns the matching rows oldest first.
func (s *Store) ListOrders(ctx context.Context, f ledger.Filter) ([]core.Order, error) {
	orders, _, err := s.ReadAll(ctx)
	if err != nil {
		return nil, err
	}
	out := orders[:0]
	for _, o := range orders {
		if f.Match(o) {
			out = append(out, o)
		}
	}
	return out, nil
}

// ReadAll returns every parsable row in the directory, oldest first, and the
// number of rows skipped because their date, time or quantity did not parse.
func (s *Store) ReadAll(ctx context.Context) ([]core.Order, int, error) {
	snap, err := s.loader.Snapshot(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("load snapshot: %w", err)
	}
	teams := snap.Directory.MemberTeams()
	prices := snap.Menu.PriceIndex()

	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, 0, fmt.Errorf("list workbooks: %w", err)
	}
	var (
		out     []core.Order
		skipped int
	)
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, fileExt) || strings.HasPrefix(name, "~$") {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, 0, err
		}
		rows, err := readOrderRows(filepath.Join(s.dir, name))
		if err != nil {
			s.logger.WarnContext(ctx, "Skipping unreadable workbook", applog.FieldDocument, name, "error", err)
			continue
		}
		owner := ownerFromFileName(name)
		for _, r := range rows {
			rec, ok := parseRowIn(r, s.loc)
			if !ok {
				skipped++
				s.logger.DebugContext(ctx, "Skipping malformed order row", applog.FieldDocument, name, "row", r)
				continue
			}
			team, ok := teams[rec.member]
			if !ok {
				team = owner
			}
			price, _ := prices.Lookup(rec.item, rec.option)
			out = append(out, core.Order{
				Team:     team,
				Member:   rec.member,
				PlacedAt: rec.placed,
				Item:     rec.item,
				Option:   rec.option,
				Quantity: rec.qty,
				Price:    price,
			})
		}
	}
	slices.SortStableFunc(out, func(a, b core.Order) int { return a.PlacedAt.Compare(b.PlacedAt) })
	return out, skipped, nil
}

// readOrderRows returns the data rows of the orders sheet, or nothing when
// the workbook has no such sheet.
func readOrderRows(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if idx, _ := f.GetSheetIndex(OrdersSheet); idx < 0 {
		return nil, nil
	}
	rows, err := f.GetRows(OrdersSheet)
	if err != nil {
		return nil, err
	}
	if len(rows) <= 1 {
		return nil, nil
	}
	return rows[1:], nil
}
