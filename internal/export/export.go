// Package export renders order reports as .xlsx workbooks.
package export

import (
	"cmp"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/xuri/excelize/v2"

	"teamorders/internal/core"
	"teamorders/internal/report"
)

// ContentType is the MIME type of the generated workbooks.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

const (
	GroupSheet   = "Produce & Hyvee"
	SummarySheet = "Weekly Summary"
)

var header = []any{"Date", "Team", "Item", "Quantity"}

// GroupFileName is the download name of the group report for a week.
func GroupFileName(w report.Week) string {
	return fmt.Sprintf("Produce_Hyvee_Orders_%s.xlsx", w.Stamp())
}

// SummaryFileName is the download name of the weekly summary for a week.
func SummaryFileName(w report.Week) string {
	return fmt.Sprintf("Full_Weekly_Orders_%s.xlsx", w.Stamp())
}

// GroupReport writes one row per order whose item is in items, ordered by
// date then team. The item column holds the bare item name.
func GroupReport(w io.Writer, orders []core.Order, items map[string]struct{}) error {
	rows := slices.Clone(report.FilterItems(orders, items))
	slices.SortStableFunc(rows, func(a, b core.Order) int {
		if c := a.Date().Compare(b.Date().Time); c != 0 {
			return c
		}
		return strings.Compare(a.Team, b.Team)
	})
	return write(w, GroupSheet, rows, func(o core.Order) string { return o.Item })
}

// WeeklySummary writes every order ordered by date then time, labelled
// "item - option".
func WeeklySummary(w io.Writer, orders []core.Order) error {
	rows := slices.Clone(orders)
	slices.SortStableFunc(rows, func(a, b core.Order) int {
		if c := a.PlacedAt.Compare(b.PlacedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return write(w, SummarySheet, rows, core.Order.Label)
}

func write(w io.Writer, sheet string, orders []core.Order, item func(core.Order) string) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", "D1", bold); err != nil {
		return err
	}

	for i, o := range orders {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []any{o.Date().String(), o.Team, item(o), o.Quantity}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}
	if err := f.SetColWidth(sheet, "A", "B", 14); err != nil {
		return err
	}
	if err := f.SetColWidth(sheet, "C", "C", 32); err != nil {
		return err
	}
	return f.Write(w)
}
