package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"laporan/internal/calendar"
	"laporan/internal/core"
	ports "laporan/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// Config selects the spreadsheet and how to authenticate against it.
type Config struct {
	SpreadsheetID   string
	CredentialsJSON string
	CredentialsFile string
	Location        *time.Location
	CapsterSheet    string
	BranchSheet     string
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	capsterSheet  string
	branchSheet   string
	loc           *time.Location
	logger        *slog.Logger
}

var _ ports.Store = (*Client)(nil)

// New creates a Sheets client authenticated with a service account.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	creds, err := credentials(ctx, cfg)
	if err != nil {
		return nil, err
	}
	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(creds),
		goption.WithScopes(gsheet.SpreadsheetsReadonlyScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	slog.InfoContext(ctx, "Google Sheets service created successfully", "component", "sheets")
	return NewWithService(svc, cfg), nil
}

// NewWithService wraps an existing service, as tests do with an endpoint
// override.
func NewWithService(svc *gsheet.Service, cfg Config) *Client {
	c := &Client{
		svc:           svc,
		spreadsheetID: strings.TrimSpace(cfg.SpreadsheetID),
		capsterSheet:  cfg.CapsterSheet,
		branchSheet:   cfg.BranchSheet,
		loc:           cfg.Location,
		logger:        slog.Default().With("component", "sheets"),
	}
	if c.capsterSheet == "" {
		c.capsterSheet = ports.CapsterSheet
	}
	if c.branchSheet == "" {
		c.branchSheet = ports.BranchSheet
	}
	if c.loc == nil {
		c.loc = time.Local
	}
	return c
}

// credentials resolves the service account key: inline JSON first, then a
// key file, then GOOGLE_APPLICATION_CREDENTIALS.
func credentials(ctx context.Context, cfg Config) ([]byte, error) {
	inline := strings.TrimSpace(cfg.CredentialsJSON)
	file := strings.TrimSpace(cfg.CredentialsFile)
	if inline == "" && file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	switch {
	case inline != "":
		slog.DebugContext(ctx, "Using inline JSON credentials", "component", "sheets")
		return []byte(inline), nil
	case file != "":
		b, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		slog.DebugContext(ctx, "Read credentials file", "component", "sheets", "path", file, "size", len(b))
		return b, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
}

// Transactions reads every "<Bulan> <Tahun>" worksheet of year in one batch
// call. Months without a worksheet contribute no rows.
func (c *Client) Transactions(ctx context.Context, year int) ([]core.Transaction, error) {
	titles, err := c.titles(ctx)
	if err != nil {
		return nil, err
	}
	var ranges, names []string
	for m := time.January; m <= time.December; m++ {
		name, ok := titles[strings.ToLower(calendar.MonthSheetName(year, m))]
		if !ok {
			continue
		}
		names = append(names, name)
		ranges = append(ranges, quoteSheet(name))
	}
	if len(ranges) == 0 {
		c.logger.InfoContext(ctx, "No monthly worksheets for year", "year", year)
		return nil, nil
	}

	resp, err := c.svc.Spreadsheets.Values.BatchGet(c.spreadsheetID).Ranges(ranges...).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read monthly sheets %d: %w", year, err)
	}
	var out []core.Transaction
	for i, vr := range resp.ValueRanges {
		name := ""
		if i < len(names) {
			name = names[i]
		}
		parsed, err := ports.ParseTransactions(toMatrix(vr.Values), c.loc)
		if err != nil {
			return nil, fmt.Errorf("sheet %s: %w", name, err)
		}
		if len(parsed.Skipped) > 0 {
			c.logger.WarnContext(ctx, "Dropping unreadable rows", "sheet", name, "count", len(parsed.Skipped), "first", parsed.Skipped[0].Error())
		}
		out = append(out, parsed.Items...)
	}
	c.logger.DebugContext(ctx, "Transactions loaded", "year", year, "sheets", len(names), "rows", len(out))
	return out, nil
}

// Capsters reads the capster roster. A missing sheet is an empty roster.
func (c *Client) Capsters(ctx context.Context) ([]core.Capster, error) {
	values, ok, err := c.readSheet(ctx, c.capsterSheet)
	if err != nil || !ok {
		return nil, err
	}
	parsed, err := ports.ParseCapsters(values)
	if err != nil {
		return nil, fmt.Errorf("sheet %s: %w", c.capsterSheet, err)
	}
	c.logSkipped(ctx, c.capsterSheet, parsed.Skipped)
	return parsed.Items, nil
}

// Branches reads the branch configuration. A missing sheet yields no
// branches so the caller falls back to the defaults.
func (c *Client) Branches(ctx context.Context) ([]core.BranchConfig, error) {
	values, ok, err := c.readSheet(ctx, c.branchSheet)
	if err != nil || !ok {
		return nil, err
	}
	parsed, err := ports.ParseBranches(values)
	if err != nil {
		return nil, fmt.Errorf("sheet %s: %w", c.branchSheet, err)
	}
	c.logSkipped(ctx, c.branchSheet, parsed.Skipped)
	return parsed.Items, nil
}

func (c *Client) readSheet(ctx context.Context, sheet string) ([][]string, bool, error) {
	titles, err := c.titles(ctx)
	if err != nil {
		return nil, false, err
	}
	name, ok := titles[strings.ToLower(sheet)]
	if !ok {
		c.logger.InfoContext(ctx, "Worksheet not found", "sheet", sheet)
		return nil, false, nil
	}
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, quoteSheet(name)).Context(ctx).Do()
	if err != nil {
		return nil, false, fmt.Errorf("read %s: %w", name, err)
	}
	return toMatrix(resp.Values), true, nil
}

// titles maps lower-cased worksheet titles to their exact spelling.
func (c *Client) titles(ctx context.Context) (map[string]string, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("list worksheets: %w", err)
	}
	out := make(map[string]string, len(ss.Sheets))
	for _, s := range ss.Sheets {
		if s.Properties == nil {
			continue
		}
		out[strings.ToLower(strings.TrimSpace(s.Properties.Title))] = s.Properties.Title
	}
	return out, nil
}

func (c *Client) logSkipped(ctx context.Context, sheet string, skipped []ports.RowError) {
	for _, e := range skipped {
		c.logger.WarnContext(ctx, "Skipping row", "sheet", sheet, "error", e.Error())
	}
}
