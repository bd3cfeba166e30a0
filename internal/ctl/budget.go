package ctl

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"teamorders/internal/core"
	"teamorders/internal/report"
)

func newBudgetCommand(e *env) *cobra.Command {
	var day string
	cmd := &cobra.Command{
		Use:   "budget [team]",
		Short: "Show budget, spend and remaining for the week",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			team := ""
			if len(args) == 1 {
				team = args[0]
			}
			return e.runBudget(cmd.Context(), team, day)
		},
	}
	cmd.Flags().StringVar(&day, "week", "", "Any day of the week, YYYY-MM-DD (default: this week)")
	return cmd
}

func (e *env) runBudget(ctx context.Context, team, day string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	week, err := e.weekFor(day)
	if err != nil {
		return err
	}
	snap, err := e.reports.Snapshot(ctx)
	if err != nil {
		return err
	}

	teams := snap.Directory.TeamNames()
	if team != "" {
		t, ok := snap.Directory.Team(team)
		if !ok {
			return fmt.Errorf("%w: %s", core.ErrTeamNotFound, team)
		}
		teams = []string{t.Name}
	}

	statuses := make([]report.BudgetStatus, 0, len(teams))
	for _, t := range teams {
		st, err := e.reports.BudgetStatus(ctx, t, week)
		if err != nil {
			return err
		}
		statuses = append(statuses, st)
	}

	fmt.Fprintf(e.out, "Week %s\n", week)
	tw := tabwriter.NewWriter(e.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TEAM\tBUDGET\tSPENT\tREMAINING")
	for _, st := range statuses {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", st.Team, st.Budget, st.Spent, st.Remaining)
	}
	return tw.Flush()
}
