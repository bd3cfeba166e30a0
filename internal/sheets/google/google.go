package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"teamorders/internal/core"
	applog "teamorders/internal/log"
	ports "teamorders/internal/sheets"
)

// Config selects the spreadsheet and the service account used to reach it.
type Config struct {
	SpreadsheetID      string
	SheetName          string
	ServiceAccountJSON string
	ServiceAccountFile string
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetBase     string
	logger        *applog.Logger

	mu    sync.Mutex
	known map[string]bool
}

var _ ports.OrderMirror = (*Client)(nil)

// New creates a Sheets client authenticated with a service account.
func New(ctx context.Context, cfg Config, logger *applog.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	logger = logger.WithComponent(applog.ComponentSheets)

	creds, err := credentialsJSON(cfg)
	if err != nil {
		return nil, err
	}
	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(creds),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	logger.InfoContext(ctx, "Google Sheets service created",
		"spreadsheet", cfg.SpreadsheetID,
		"sheet", cfg.SheetName)

	base := strings.TrimSpace(cfg.SheetName)
	if base == "" {
		base = "Orders"
	}
	return &Client{
		svc:           svc,
		spreadsheetID: cfg.SpreadsheetID,
		sheetBase:     base,
		logger:        logger,
		known:         map[string]bool{},
	}, nil
}

// credentialsJSON returns inline credentials, or reads them from the
// configured file, or from GOOGLE_APPLICATION_CREDENTIALS.
func credentialsJSON(cfg Config) ([]byte, error) {
	if js := strings.TrimSpace(cfg.ServiceAccountJSON); js != "" {
		return []byte(js), nil
	}
	path := strings.TrimSpace(cfg.ServiceAccountFile)
	if path == "" {
		path = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	if path == "" {
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read service account file: %w", err)
	}
	return data, nil
}

// AppendOrders appends rows to "<year> <sheet>" for each year present,
// creating the sheet with a header row when it does not exist yet.
// Orders whose id is already on the sheet are skipped.
func (c *Client) AppendOrders(ctx context.Context, orders []core.Order) (int, error) {
	if c.svc == nil {
		return 0, errors.New("sheets service not initialized")
	}
	written := 0
	for _, group := range groupByYear(orders) {
		name := yearPrefixedName(c.sheetBase, group.year)
		if err := c.ensureSheet(ctx, name); err != nil {
			return written, err
		}

		present, err := c.orderIDs(ctx, name)
		if err != nil {
			return written, err
		}
		var values [][]any
		for _, o := range group.orders {
			if _, dup := present[o.ID]; dup && o.ID != 0 {
				continue
			}
			values = append(values, orderRow(o))
		}
		if len(values) == 0 {
			c.logger.DebugContext(ctx, "Orders already mirrored", applog.FieldSheetsRange, name)
			continue
		}

		rng := fmt.Sprintf("%s!A:J", quoteSheet(name))
		resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, &gsheet.ValueRange{Values: values}).
			ValueInputOption("USER_ENTERED").
			InsertDataOption("INSERT_ROWS").
			Context(ctx).Do()
		if err != nil {
			return written, fmt.Errorf("append to %s: %w", name, err)
		}
		written += len(values)

		updated := ""
		if resp.Updates != nil {
			updated = resp.Updates.UpdatedRange
		}
		c.logger.InfoContext(ctx, "Mirrored order rows",
			applog.FieldSheetsRange, updated,
			applog.FieldRows, len(values))
	}
	return written, nil
}

// ensureSheet creates the named sheet with the mirror header when missing.
func (c *Client) ensureSheet(ctx context.Context, name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.known[name] {
		return nil
	}

	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("get spreadsheet: %w", err)
	}
	for _, sh := range ss.Sheets {
		if sh.Properties != nil {
			c.known[sh.Properties.Title] = true
		}
	}
	if c.known[name] {
		return nil
	}

	req := &gsheet.BatchUpdateSpreadsheetRequest{Requests: []*gsheet.Request{{
		AddSheet: &gsheet.AddSheetRequest{Properties: &gsheet.SheetProperties{Title: name}},
	}}}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("add sheet %s: %w", name, err)
	}
	header := make([]any, len(ports.Header))
	for i, h := range ports.Header {
		header[i] = h
	}
	rng := fmt.Sprintf("%s!A1:J1", quoteSheet(name))
	_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, &gsheet.ValueRange{Values: [][]any{header}}).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("write header on %s: %w", name, err)
	}
	c.known[name] = true
	c.logger.InfoContext(ctx, "Created mirror sheet", applog.FieldSheetsRange, name)
	return nil
}

// orderIDs reads the order id column of a sheet.
func (c *Client) orderIDs(ctx context.Context, name string) (map[int64]struct{}, error) {
	rng := fmt.Sprintf("%s!J2:J", quoteSheet(name))
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).
		ValueRenderOption("UNFORMATTED_VALUE").
		Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	return orderIDsFromValues(resp.Values), nil
}
