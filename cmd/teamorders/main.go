package main

import (
	"context"
	"errors"
	"net/http"
	"os"

	"teamorders/internal/amqp"
	"teamorders/internal/cli"
	apphttp "teamorders/internal/http"
	applog "teamorders/internal/log"
	"teamorders/internal/services"
	"teamorders/internal/session"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger)
	logger = cli.SetupLogger(cfg.LogLevel)

	docs, err := cli.OpenDocuments(cfg, logger)
	if err != nil {
		logger.Error("Failed to open data directory", applog.FieldError, err, applog.FieldPath, cfg.DataDir)
		os.Exit(1)
	}

	ledger, err := cli.OpenLedger(context.Background(), cfg, docs, logger)
	if err != nil {
		logger.Error("Failed to open order ledger", applog.FieldError, err, applog.FieldBackend, cfg.LedgerBackend)
		os.Exit(1)
	}

	reportOpts, err := cli.ReportOptions(cfg)
	if err != nil {
		logger.Error("Invalid report settings", applog.FieldError, err)
		os.Exit(1)
	}

	// AMQP is optional: without it the worker's sweep still mirrors new rows.
	var (
		publisher  services.Publisher
		amqpClient *amqp.Client
	)
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.Warn("AMQP unavailable, order messages disabled", applog.FieldError, err)
			amqpClient = nil
		} else {
			publisher = amqpClient
		}
	}

	sessions, err := session.NewManager(cfg.SessionSecret, cfg.SessionTTL, cfg.CookieSecure)
	if err != nil {
		logger.Error("Invalid session settings", applog.FieldError, err)
		os.Exit(1)
	}

	srv := apphttp.NewServer(cfg.Addr(), apphttp.Options{
		AdminTeam:   cfg.AdminTeam,
		AdminMember: cfg.AdminMember,
	}, apphttp.Deps{
		Documents: docs,
		Orders:    services.NewOrderService(ledger.Ledger, publisher, logger),
		Reports:   services.NewReportService(docs, ledger.Ledger, reportOpts, logger),
		Ledger:    ledger.Ledger,
		Sessions:  sessions,
		Logger:    logger,
	})

	ctx, done := cli.GracefulShutdown(logger, cli.ShutdownTimeout, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", applog.FieldError, err)
		}
		if amqpClient != nil {
			if err := amqpClient.Close(); err != nil {
				logger.Error("Failed to close AMQP client", applog.FieldError, err)
			}
		}
		if err := ledger.Cleanup(); err != nil {
			logger.Error("Failed to close order ledger", applog.FieldError, err)
		}
	})

	go func() {
		logger.Info("Starting teamorders server",
			"addr", cfg.Addr(),
			applog.FieldBackend, cfg.LedgerBackend,
			"data_dir", cfg.DataDir,
			"amqp", amqpClient != nil)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server error", applog.FieldError, err, "addr", cfg.Addr())
			os.Exit(1)
		}
	}()

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
