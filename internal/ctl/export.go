package ctl

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"teamorders/internal/core"
	"teamorders/internal/export"
	applog "teamorders/internal/log"
	"teamorders/internal/report"
)

const (
	exportWeekly = "weekly"
	exportGroups = "groups"
)

func newExportCommand(e *env) *cobra.Command {
	var (
		week string
		out  string
	)
	cmd := &cobra.Command{
		Use:       "export weekly|groups",
		Short:     "Write a weekly report workbook",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{exportWeekly, exportGroups},
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.runExport(cmd.Context(), args[0], week, out)
		},
	}
	cmd.Flags().StringVar(&week, "week", "", "Any day of the week to export, YYYY-MM-DD (default: this week)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output file (default: the report's standard file name)")
	return cmd
}

func (e *env) weekFor(day string) (report.Week, error) {
	if day == "" {
		return report.WeekRange(e.now()), nil
	}
	t, err := time.Parse(time.DateOnly, day)
	if err != nil {
		return report.Week{}, fmt.Errorf("invalid --week %q: want YYYY-MM-DD", day)
	}
	return report.WeekOf(core.DateOf(t)), nil
}

func (e *env) runExport(ctx context.Context, kind, day, out string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	week, err := e.weekFor(day)
	if err != nil {
		return err
	}

	var (
		orders []core.Order
		items  map[string]struct{}
	)
	switch kind {
	case exportWeekly:
		orders, err = e.reports.WeekOrders(ctx, week)
		if out == "" {
			out = export.SummaryFileName(week)
		}
	case exportGroups:
		orders, items, err = e.reports.GroupOrders(ctx, week)
		if out == "" {
			out = export.GroupFileName(week)
		}
	default:
		return fmt.Errorf("unknown report %q", kind)
	}
	if err != nil {
		return err
	}

	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("create %s: %w", out, err)
	}
	if kind == exportWeekly {
		err = export.WeeklySummary(f, orders)
	} else {
		err = export.GroupReport(f, orders, items)
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("write %s: %w", out, err)
	}

	e.log().InfoContext(ctx, "Report exported",
		applog.FieldOperation, applog.OpExport,
		applog.FieldWeekStart, week.Start.String(),
		applog.FieldRows, len(orders),
		applog.FieldDocument, out)
	fmt.Fprintf(e.out, "Wrote %d rows for %s to %s\n", len(orders), week, out)
	return nil
}
