package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"tally/internal/core"
	ports "tally/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// Client mirrors ledger events into a spreadsheet, one sheet per year named
// "<year> <base>".
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetBase     string

	mu          sync.Mutex
	knownSheets map[string]bool
}

var (
	_ ports.EventAppender = (*Client)(nil)
	_ ports.EventLister   = (*Client)(nil)
)

// New creates a Sheets client for spreadsheetID. Credentials come from the
// environment, see newSheetsService.
func New(ctx context.Context, spreadsheetID, sheetBase string) (*Client, error) {
	spreadsheetID = strings.TrimSpace(spreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	sheetBase = strings.TrimSpace(sheetBase)
	if sheetBase == "" {
		sheetBase = "Events"
	}

	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetBase:     sheetBase,
		knownSheets:   make(map[string]bool),
	}, nil
}

// newSheetsService initializes a Sheets Service using Service Account credentials.
// Uses GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS.
func newSheetsService(ctx context.Context) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	serviceAccountFile := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	switch {
	case serviceAccountJSON != "":
		slog.InfoContext(ctx, "Using inline JSON credentials")
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		slog.InfoContext(ctx, "Reading credentials from file", "path", serviceAccountFile)
		var err error
		credentialsJSON, err = os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	slog.InfoContext(ctx, "Google Sheets service created successfully")
	return service, nil
}

// AppendEvent appends ev to the sheet for the event's year, creating the
// sheet with a header row the first time it is needed.
func (c *Client) AppendEvent(ctx context.Context, ev core.Event) (string, error) {
	if ev.Type == "" {
		return "", errors.New("event has no type")
	}
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}

	row := ports.RowFromEvent(ev)
	sheet := yearPrefixedName(c.sheetBase, row.Timestamp.Year())
	if err := c.ensureSheet(ctx, sheet); err != nil {
		return "", err
	}

	vr := &gsheet.ValueRange{Values: [][]any{row.Values()}}
	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, sheet+"!A:H", vr).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("append to sheet %s: %w", sheet, err)
	}

	ref := sheet
	if resp.Updates != nil && resp.Updates.UpdatedRange != "" {
		ref = resp.Updates.UpdatedRange
	}
	return ref, nil
}

// ListEvents reads every mirrored row for year. Rows that do not parse, the
// header included, are skipped.
func (c *Client) ListEvents(ctx context.Context, year int) ([]ports.Row, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	rng := fmt.Sprintf("%s!A:H", yearPrefixedName(c.sheetBase, year))
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	return parseRows(resp.Values), nil
}

func (c *Client) ensureSheet(ctx context.Context, name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.knownSheets[name] {
		return nil
	}

	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read spreadsheet: %w", err)
	}
	for _, s := range ss.Sheets {
		if s.Properties != nil && s.Properties.Title == name {
			c.knownSheets[name] = true
			return nil
		}
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
	_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, name+"!A1:H1", &gsheet.ValueRange{Values: [][]any{header}}).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("write header to %s: %w", name, err)
	}

	slog.InfoContext(ctx, "Created mirror sheet", "sheet", name)
	c.knownSheets[name] = true
	return nil
}

func parseRows(values [][]any) []ports.Row {
	out := make([]ports.Row, 0, len(values))
	for _, raw := range values {
		r, err := ports.ParseRow(toStrings(raw))
		if err != nil {
			continue
		}
		out = append(out, r)
	}
	return out
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

// yearPrefixedName returns "<year> <base>" unless base already starts with a 4-digit year.
func yearPrefixedName(base string, year int) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return base
	}
	if len(base) >= 5 {
		if y, err := strconv.Atoi(base[0:4]); err == nil && base[4] == ' ' && y > 1900 && y < 3000 {
			return base
		}
	}
	if year <= 0 {
		year = time.Now().Year()
	}
	return fmt.Sprintf("%d %s", year, base)
}
