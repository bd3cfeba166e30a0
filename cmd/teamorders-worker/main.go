package main

import (
	"context"
	"errors"
	"os"

	"golang.org/x/sync/errgroup"

	"teamorders/internal/amqp"
	"teamorders/internal/cli"
	applog "teamorders/internal/log"
	gsheet "teamorders/internal/sheets/google"
	"teamorders/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger)
	logger = cli.SetupLogger(cfg.LogLevel).WithComponent(applog.ComponentWorker)

	if err := cfg.ValidateWorker(); err != nil {
		logger.Error("Worker configuration validation failed", applog.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Starting teamorders-worker", applog.FieldBackend, cfg.LedgerBackend)

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
	if ledger.Tracker == nil {
		logger.Error("Ledger backend does not track mirrored rows", applog.FieldBackend, cfg.LedgerBackend)
		os.Exit(1)
	}

	mirror, err := gsheet.New(context.Background(), gsheet.Config{
		SpreadsheetID:      cfg.GoogleSpreadsheetID,
		SheetName:          cfg.GoogleSheetName,
		ServiceAccountJSON: cfg.GoogleServiceAccountJSON,
		ServiceAccountFile: cfg.GoogleServiceAccountFile,
	}, logger)
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", applog.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", applog.FieldError, err)
		os.Exit(1)
	}

	mirrorWorker := worker.NewMirrorWorker(ledger.Tracker, mirror, cfg.SyncBatchSize, logger)
	sweeper := worker.NewSweeper(mirrorWorker, cfg.SyncInterval, logger)

	closeAll := func() {
		if err := amqpClient.Close(); err != nil {
			logger.Error("Failed to close AMQP client", applog.FieldError, err)
		}
		if err := ledger.Cleanup(); err != nil {
			logger.Error("Failed to close order ledger", applog.FieldError, err)
		}
	}

	ctx, done := cli.GracefulShutdown(logger, cli.ShutdownTimeout, func(context.Context) { closeAll() })

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return amqpClient.ConsumeOrderSubmitted(gctx, mirrorWorker.HandleOrderSubmitted)
	})
	g.Go(func() error {
		return sweeper.Run(gctx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped unexpectedly", applog.FieldError, err)
		closeAll()
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped gracefully")
}
