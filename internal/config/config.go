// Package config loads process configuration from the environment, optionally
// layered over a TOML file named by CONFIG_FILE.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendXLSX     = "xlsx"
	BackendMemory   = "memory"

	PriceSourceCatalog = "catalog"
	PriceSourceStored  = "stored"

	// WeekAnchorYearly numbers weeks from the Sunday on or before January 1st
	// of each order's own year.
	WeekAnchorYearly = "yearly"
)

var (
	validBackends     = []string{BackendSQLite, BackendPostgres, BackendXLSX, BackendMemory}
	validPriceSources = []string{PriceSourceCatalog, PriceSourceStored}
)

type Config struct {
	// HTTP Server
	Port string `toml:"port"`

	// Flat JSON documents (users.json, structured_menu.json, budgets.json)
	DataDir string `toml:"data_dir"`

	// Order ledger
	LedgerBackend string `toml:"ledger_backend"`
	SQLiteDBPath  string `toml:"sqlite_db_path"`
	DatabaseURL   string `toml:"database_url"`
	XLSXDir       string `toml:"xlsx_dir"`

	// Reporting
	PriceSource  string   `toml:"price_source"`
	WeekAnchor   string   `toml:"week_anchor"`
	ReportGroups []string `toml:"report_groups"`

	// Roles and session
	AdminTeam     string        `toml:"admin_team"`
	AdminMember   string        `toml:"admin_member"`
	SessionSecret string        `toml:"session_secret"`
	SessionTTL    time.Duration `toml:"session_ttl"`
	CookieSecure  bool          `toml:"cookie_secure"`

	// AMQP
	AMQPURL      string `toml:"amqp_url"`
	AMQPExchange string `toml:"amqp_exchange"`
	AMQPQueue    string `toml:"amqp_queue"`

	// Google Sheets mirror
	GoogleSpreadsheetID      string `toml:"google_spreadsheet_id"`
	GoogleSheetName          string `toml:"google_sheet_name"`
	GoogleServiceAccountFile string `toml:"google_service_account_file"`
	GoogleServiceAccountJSON string `toml:"google_service_account_json"`

	// Worker
	SyncBatchSize int           `toml:"sync_batch_size"`
	SyncInterval  time.Duration `toml:"sync_interval"`

	LogLevel string `toml:"log_level"`
}

// Defaults returns the configuration used when nothing is set.
func Defaults() *Config {
	return &Config{
		Port:            "8081",
		DataDir:         "./data",
		LedgerBackend:   BackendSQLite,
		SQLiteDBPath:    "./data/orders.db",
		XLSXDir:         "./user_orders",
		PriceSource:     PriceSourceCatalog,
		WeekAnchor:      "2025-01-01",
		ReportGroups:    []string{"Produce", "Hyvee"},
		AdminTeam:       "KSU Football",
		AdminMember:     "Scott Trausch",
		SessionTTL:      12 * time.Hour,
		AMQPExchange:    "teamorders",
		AMQPQueue:       "mirror_orders",
		GoogleSheetName: "Orders",
		SyncBatchSize:   10,
		SyncInterval:    30 * time.Second,
		LogLevel:        "info",
	}
}

// Load builds the configuration: defaults, then the TOML file at CONFIG_FILE
// if set, then environment variables.
func Load() (*Config, error) {
	cfg := Defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.DataDir = getEnv("DATA_DIR", cfg.DataDir)
	cfg.LedgerBackend = strings.ToLower(getEnv("LEDGER_BACKEND", cfg.LedgerBackend))
	cfg.SQLiteDBPath = getEnv("SQLITE_DB_PATH", cfg.SQLiteDBPath)
	cfg.DatabaseURL = getEnv("DATABASE_URL", cfg.DatabaseURL)
	cfg.XLSXDir = getEnv("XLSX_DIR", cfg.XLSXDir)
	cfg.PriceSource = strings.ToLower(getEnv("PRICE_SOURCE", cfg.PriceSource))
	cfg.WeekAnchor = getEnv("WEEK_ANCHOR", cfg.WeekAnchor)
	cfg.ReportGroups = getEnvList("REPORT_GROUPS", cfg.ReportGroups)
	cfg.AdminTeam = getEnv("ADMIN_TEAM", cfg.AdminTeam)
	cfg.AdminMember = getEnv("ADMIN_MEMBER", cfg.AdminMember)
	cfg.SessionSecret = getEnv("SESSION_SECRET", cfg.SessionSecret)
	cfg.SessionTTL = getEnvDuration("SESSION_TTL", cfg.SessionTTL)
	cfg.CookieSecure = getEnvBool("COOKIE_SECURE", cfg.CookieSecure)
	cfg.AMQPURL = getEnv("AMQP_URL", cfg.AMQPURL)
	cfg.AMQPExchange = getEnv("AMQP_EXCHANGE", cfg.AMQPExchange)
	cfg.AMQPQueue = getEnv("AMQP_QUEUE", cfg.AMQPQueue)
	cfg.GoogleSpreadsheetID = getEnv("GOOGLE_SPREADSHEET_ID", cfg.GoogleSpreadsheetID)
	cfg.GoogleSheetName = getEnv("GOOGLE_SHEET_NAME", cfg.GoogleSheetName)
	cfg.GoogleServiceAccountFile = getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", getEnv("GOOGLE_APPLICATION_CREDENTIALS", cfg.GoogleServiceAccountFile))
	cfg.GoogleServiceAccountJSON = getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", cfg.GoogleServiceAccountJSON)
	cfg.SyncBatchSize = getEnvInt("SYNC_BATCH_SIZE", cfg.SyncBatchSize)
	cfg.SyncInterval = getEnvDuration("SYNC_INTERVAL", cfg.SyncInterval)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)

	return cfg, nil
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.DataDir == "" {
		errors = append(errors, "data directory cannot be empty")
	}

	if !slices.Contains(validBackends, c.LedgerBackend) {
		errors = append(errors, fmt.Sprintf("invalid ledger backend '%s': must be one of %v", c.LedgerBackend, validBackends))
	}

	switch c.LedgerBackend {
	case BackendSQLite:
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else if dir := filepath.Dir(c.SQLiteDBPath); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
			}
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			errors = append(errors, "DATABASE_URL is required when using postgres backend")
		} else if u, err := url.Parse(c.DatabaseURL); err != nil || (u.Scheme != "postgres" && u.Scheme != "postgresql") {
			errors = append(errors, "invalid DATABASE_URL: must be a postgres:// URL")
		}
	case BackendXLSX:
		if c.XLSXDir == "" {
			errors = append(errors, "XLSX directory cannot be empty when using xlsx backend")
		}
	}

	if !slices.Contains(validPriceSources, c.PriceSource) {
		errors = append(errors, fmt.Sprintf("invalid price source '%s': must be one of %v", c.PriceSource, validPriceSources))
	}

	if c.WeekAnchor != WeekAnchorYearly {
		if _, err := time.Parse("2006-01-02", c.WeekAnchor); err != nil {
			errors = append(errors, fmt.Sprintf("invalid week anchor '%s': must be YYYY-MM-DD or '%s'", c.WeekAnchor, WeekAnchorYearly))
		}
	}

	if len(c.ReportGroups) == 0 {
		errors = append(errors, "at least one report group is required")
	}

	if strings.TrimSpace(c.AdminTeam) == "" || strings.TrimSpace(c.AdminMember) == "" {
		errors = append(errors, "admin team and admin member must be set")
	}

	if len(c.SessionSecret) < 16 {
		errors = append(errors, "SESSION_SECRET must be at least 16 characters")
	}

	if c.SessionTTL < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid session TTL %v: must be at least 1 minute", c.SessionTTL))
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.GoogleServiceAccountFile != "" {
		if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
		}
	}

	if c.SyncBatchSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid sync batch size %d: must be at least 1", c.SyncBatchSize))
	} else if c.SyncBatchSize > 1000 {
		errors = append(errors, fmt.Sprintf("invalid sync batch size %d: must be at most 1000", c.SyncBatchSize))
	}

	if c.SyncInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid sync interval %v: must be at least 1 second", c.SyncInterval))
	} else if c.SyncInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid sync interval %v: must be at most 24 hours", c.SyncInterval))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// ValidateWorker checks the extra settings the mirror worker needs.
func (c *Config) ValidateWorker() error {
	var errors []string
	if c.AMQPURL == "" {
		errors = append(errors, "AMQP_URL is required for the worker")
	}
	if c.GoogleSpreadsheetID == "" {
		errors = append(errors, "GOOGLE_SPREADSHEET_ID is required for the worker")
	}
	if c.GoogleServiceAccountFile == "" && c.GoogleServiceAccountJSON == "" {
		errors = append(errors, "either GOOGLE_SERVICE_ACCOUNT_FILE or GOOGLE_SERVICE_ACCOUNT_JSON must be provided for the worker")
	}
	if c.LedgerBackend != BackendSQLite && c.LedgerBackend != BackendPostgres {
		errors = append(errors, fmt.Sprintf("worker needs a relational ledger, got '%s'", c.LedgerBackend))
	}
	if len(errors) > 0 {
		return fmt.Errorf("worker configuration invalid:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

// Addr returns the listen address for Port.
func (c *Config) Addr() string {
	return ":" + c.Port
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
