package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"mealbook/internal/export"
	"mealbook/internal/ledger"
	"mealbook/internal/log"
	ports "mealbook/internal/sheets"
)

const defaultSheetIDCacheTTL = 5 * time.Minute

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	opts          export.Options
	logger        *log.Logger

	// Tab title to sheet id, refreshed after cacheValidDuration.
	mu                 sync.Mutex
	sheetIDs           map[string]int64
	cacheExpiresAt     time.Time
	cacheValidDuration time.Duration
}

var _ ports.LedgerMirror = (*Client)(nil)

// Config configures a Client. One of CredentialsJSON or CredentialsFile is
// required.
type Config struct {
	SpreadsheetID   string
	CredentialsJSON string
	CredentialsFile string
	Export          export.Options
}

// NewFromEnv creates a client from GOOGLE_SPREADSHEET_ID and
// GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE or
// GOOGLE_APPLICATION_CREDENTIALS.
func NewFromEnv(ctx context.Context, opts export.Options) (*Client, error) {
	cfg := Config{
		SpreadsheetID:   strings.TrimSpace(os.Getenv("GOOGLE_SPREADSHEET_ID")),
		CredentialsJSON: strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON")),
		CredentialsFile: strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE")),
		Export:          opts,
	}
	if cfg.CredentialsJSON == "" && cfg.CredentialsFile == "" {
		cfg.CredentialsFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	return New(ctx, cfg)
}

func New(ctx context.Context, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	svc, err := newSheetsService(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	logger := log.NewLogger(log.ComponentSheets)
	logger.InfoContext(ctx, "Google Sheets service created", "spreadsheet_id", cfg.SpreadsheetID)
	return &Client{
		svc:                svc,
		spreadsheetID:      cfg.SpreadsheetID,
		opts:               cfg.Export,
		logger:             logger,
		cacheValidDuration: defaultSheetIDCacheTTL,
	}, nil
}

// newSheetsService initializes a Sheets Service using Service Account credentials.
func newSheetsService(ctx context.Context, cfg Config) (*gsheet.Service, error) {
	var credentialsJSON []byte
	switch {
	case cfg.CredentialsJSON != "":
		credentialsJSON = []byte(cfg.CredentialsJSON)
	case cfg.CredentialsFile != "":
		b, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentialsJSON = b
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

// Mirror rewrites one tab per export page: values, merges and column widths.
func (c *Client) Mirror(ctx context.Context, l ledger.Ledger) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	wb := export.Build(l, c.opts)

	for _, page := range wb.Pages {
		title := ports.TabName(l, page)
		sheetID, err := c.ensureSheet(ctx, title)
		if err != nil {
			return err
		}

		c.logger.DebugContext(ctx, "Writing tab", log.FieldSheet, title, "sheet_id", sheetID)

		clearRange := fmt.Sprintf("'%s'", title)
		if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, clearRange, &gsheet.ClearValuesRequest{}).
			Context(ctx).Do(); err != nil {
			return fmt.Errorf("clear %s: %w", title, err)
		}

		values := ports.Values(page)
		rng := fmt.Sprintf("'%s'!A1:%s", title, a1Cell(page.NumRows()-1, page.NumCols()-1))
		if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, &gsheet.ValueRange{Values: values}).
			ValueInputOption("RAW").Context(ctx).Do(); err != nil {
			return fmt.Errorf("update %s: %w", rng, err)
		}

		req := &gsheet.BatchUpdateSpreadsheetRequest{Requests: layoutRequests(sheetID, page)}
		if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
			return fmt.Errorf("layout %s: %w", title, err)
		}
	}

	c.logger.InfoContext(ctx, "Ledger mirrored to Google Sheets",
		append(log.NewFields().
			WithOperation(log.OpMirror).
			WithLedger(l.OwnerID, l.Month, l.Year).
			ToSlice(), "pages", len(wb.Pages))...)
	return nil
}

// ensureSheet returns the id of the tab named title, adding it if missing.
func (c *Client) ensureSheet(ctx context.Context, title string) (int64, error) {
	if id, ok := c.cachedSheetID(title); ok {
		return id, nil
	}
	if err := c.refreshSheetIDs(ctx); err != nil {
		return 0, err
	}
	if id, ok := c.cachedSheetID(title); ok {
		return id, nil
	}

	resp, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			AddSheet: &gsheet.AddSheetRequest{Properties: &gsheet.SheetProperties{Title: title}},
		}},
	}).Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("add sheet %s: %w", title, err)
	}
	if len(resp.Replies) == 0 || resp.Replies[0].AddSheet == nil || resp.Replies[0].AddSheet.Properties == nil {
		return 0, fmt.Errorf("add sheet %s: empty reply", title)
	}
	id := resp.Replies[0].AddSheet.Properties.SheetId

	c.mu.Lock()
	if c.sheetIDs == nil {
		c.sheetIDs = make(map[string]int64)
	}
	c.sheetIDs[title] = id
	c.mu.Unlock()
	return id, nil
}

func (c *Client) cachedSheetID(title string) (int64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if time.Now().After(c.cacheExpiresAt) {
		return 0, false
	}
	id, ok := c.sheetIDs[title]
	return id, ok
}

func (c *Client) refreshSheetIDs(ctx context.Context) error {
	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).
		Fields("sheets.properties(sheetId,title)").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("get spreadsheet: %w", err)
	}
	ids := make(map[string]int64, len(ss.Sheets))
	for _, sh := range ss.Sheets {
		if sh.Properties != nil {
			ids[sh.Properties.Title] = sh.Properties.SheetId
		}
	}
	c.mu.Lock()
	c.sheetIDs = ids
	c.cacheExpiresAt = time.Now().Add(c.cacheValidDuration)
	c.mu.Unlock()
	return nil
}
