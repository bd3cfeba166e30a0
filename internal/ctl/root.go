// Package ctl implements the ordersctl maintenance commands.
package ctl

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"teamorders/internal/cli"
	"teamorders/internal/docstore"
	"teamorders/internal/ledger"
	applog "teamorders/internal/log"
	"teamorders/internal/services"
)

// env is what every command runs against. Tests fill it directly; the real
// binary opens it from configuration before the first command runs.
type env struct {
	loader  docstore.Loader
	ledger  ledger.Store
	reports *services.ReportService
	logger  *applog.Logger
	now     func() time.Time
	out     io.Writer
	cleanup func() error
}

// Execute is the main entry point called from cmd/ordersctl.
func Execute() {
	if err := NewRootCommand(nil).Execute(); err != nil {
		os.Exit(1)
	}
}

// NewRootCommand builds the command tree. A nil e opens documents and the
// ledger from configuration.
func NewRootCommand(e *env) *cobra.Command {
	if e == nil {
		e = &env{}
	}
	root := &cobra.Command{
		Use:           "ordersctl",
		Short:         "Team orders maintenance",
		Long:          "Import legacy workbooks, export weekly reports and check team budgets.",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if e.out == nil {
				e.out = cmd.OutOrStdout()
			}
			if e.now == nil {
				e.now = time.Now
			}
			if e.ledger != nil {
				return nil
			}
			return e.open(cmd.Context())
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			if e.cleanup != nil {
				return e.cleanup()
			}
			return nil
		},
	}

	root.AddCommand(newImportCommand(e), newExportCommand(e), newBudgetCommand(e))
	return root
}

func (e *env) open(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := cli.LoadConfig()
	if err != nil {
		return err
	}
	e.logger = cli.SetupLogger(cfg.LogLevel).WithComponent(applog.ComponentCLI)

	docs, err := cli.OpenDocuments(cfg, e.logger)
	if err != nil {
		return fmt.Errorf("open documents: %w", err)
	}
	res, err := cli.OpenLedger(ctx, cfg, docs, e.logger)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	opts, err := cli.ReportOptions(cfg)
	if err != nil {
		_ = res.Cleanup()
		return err
	}
	e.loader = docs
	e.ledger = res.Ledger
	e.cleanup = res.Cleanup
	e.reports = services.NewReportService(docs, res.Ledger, opts, e.logger)
	return nil
}

func (e *env) log() *applog.Logger {
	if e.logger == nil {
		return applog.Discard()
	}
	return e.logger
}
