// Package cli provides the start-up steps shared by cmd/teamorders,
// cmd/teamorders-worker and cmd/ordersctl.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"teamorders/internal/backend"
	"teamorders/internal/config"
	"teamorders/internal/docstore"
	applog "teamorders/internal/log"
	"teamorders/internal/report"
	"teamorders/internal/services"
)

// ShutdownTimeout bounds graceful shutdown of every process.
const ShutdownTimeout = 30 * time.Second

// SetupLogger builds the process logger at LOG_LEVEL and installs it as the
// slog default.
func SetupLogger(level string) *applog.Logger {
	cfg := applog.DefaultConfig()
	cfg.Level = applog.ParseLevel(level)
	logger := applog.New(cfg)
	applog.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadConfig reads .env, the environment and CONFIG_FILE, then validates.
func LoadConfig() (*config.Config, error) {
	LoadEnvFile()
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadAndValidateConfig is LoadConfig for daemons: it exits the process on
// failure.
func LoadAndValidateConfig(logger *applog.Logger) *config.Config {
	cfg, err := LoadConfig()
	if err != nil {
		logger.Error("Configuration validation failed", applog.FieldError, err)
		os.Exit(1)
	}
	return cfg
}

// OpenDocuments opens the flat-file store under DATA_DIR.
func OpenDocuments(cfg *config.Config, logger *applog.Logger) (*docstore.Store, error) {
	return docstore.New(cfg.DataDir, logger)
}

// OpenLedger builds the ledger selected by LEDGER_BACKEND.
func OpenLedger(ctx context.Context, cfg *config.Config, loader docstore.Loader, logger *applog.Logger) (*backend.Result, error) {
	bcfg, err := backend.FromAppConfig(cfg, loader)
	if err != nil {
		return nil, err
	}
	return backend.NewFactory(logger).CreateLedger(ctx, bcfg)
}

// ReportOptions translates the reporting settings of cfg.
func ReportOptions(cfg *config.Config) (services.ReportOptions, error) {
	source, err := report.ParsePriceSource(cfg.PriceSource)
	if err != nil {
		return services.ReportOptions{}, err
	}
	anchor, err := report.ParseAnchor(cfg.WeekAnchor)
	if err != nil {
		return services.ReportOptions{}, err
	}
	return services.ReportOptions{
		PriceSource: source,
		Anchor:      anchor,
		Groups:      cfg.ReportGroups,
		Location:    time.Local,
	}, nil
}

// GracefulShutdown sets up signal handling for graceful shutdown.
// Returns a context that will be cancelled on shutdown signals,
// and a channel that signals when cleanup has finished.
func GracefulShutdown(logger *applog.Logger, timeout time.Duration, cleanup func(ctx context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		finished := make(chan struct{})
		go func() {
			if cleanup != nil {
				cleanup(shutdownCtx)
			}
			close(finished)
		}()

		select {
		case <-finished:
			logger.Info("Shutdown complete")
		case <-shutdownCtx.Done():
			logger.Warn("Shutdown timeout reached")
		}
		close(done)
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled and cleanup ran.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
