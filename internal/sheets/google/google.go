// Package google archives closures and reset summaries to a Google
// spreadsheet via a service account. Each year gets its own pair of
// sheets, prefixed with the closure year.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"github.com/Sesiom2704/gapptomobile-v3-sub003/internal/core"
	"github.com/Sesiom2704/gapptomobile-v3-sub003/internal/ports"
)

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	// Base names without year; code prefixes the closure year.
	closuresBase string
	resetsBase   string
}

var _ ports.ArchiveWriter = (*Client)(nil)

// NewFromEnv creates a Sheets client using environment variables.
// Required: GOOGLE_SPREADSHEET_ID.
// Auth: GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or
// GOOGLE_APPLICATION_CREDENTIALS.
// Optional sheet names: GOOGLE_CLOSURES_SHEET_NAME (default "Closures"),
// GOOGLE_RESETS_SHEET_NAME (default "Resets").
func NewFromEnv(ctx context.Context) (*Client, error) {
	spreadsheetID := strings.TrimSpace(os.Getenv("GOOGLE_SPREADSHEET_ID"))
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}

	closuresBase := strings.TrimSpace(os.Getenv("GOOGLE_CLOSURES_SHEET_NAME"))
	if closuresBase == "" {
		closuresBase = "Closures"
	}
	resetsBase := strings.TrimSpace(os.Getenv("GOOGLE_RESETS_SHEET_NAME"))
	if resetsBase == "" {
		resetsBase = "Resets"
	}

	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		closuresBase:  closuresBase,
		resetsBase:    resetsBase,
	}, nil
}

func newSheetsService(ctx context.Context) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	serviceAccountFile := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	var err error
	switch {
	case serviceAccountJSON != "":
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
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

	slog.InfoContext(ctx, "Google Sheets service created")
	return service, nil
}

// AppendClosure writes one row per detail line plus a header row, all under
// the year-prefixed closures sheet.
func (c *Client) AppendClosure(ctx context.Context, header core.ClosureHeader, lines []core.ClosureDetailLine) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}

	sheet := yearPrefixedName(c.closuresBase, header.Period.Year)
	rows := make([][]any, 0, len(lines)+1)
	rows = append(rows, closureHeaderRow(header))
	for _, line := range lines {
		rows = append(rows, detailLineRow(header, line))
	}

	rng := fmt.Sprintf("%s!A:L", sheet)
	vr := &gsheet.ValueRange{Values: rows}
	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		// API failures are usually quota or network; the sweep retries them.
		return "", fmt.Errorf("append closure to sheet %s: %w: %w", sheet, core.ErrTransient, err)
	}

	ref := rng
	if resp.Updates != nil && resp.Updates.UpdatedRange != "" {
		ref = resp.Updates.UpdatedRange
	}
	slog.InfoContext(ctx, "Archived closure",
		"closure_id", header.ID,
		"period", header.Period.Key(),
		"sheet", sheet,
		"rows", len(rows))
	return ref, nil
}

// AppendResetSummary writes a single summary row to the year-prefixed
// resets sheet.
func (c *Client) AppendResetSummary(ctx context.Context, ownerID string, period core.Period, summary core.ResetSummary) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}

	sheet := yearPrefixedName(c.resetsBase, period.Year)
	total := summary.Total()
	vr := &gsheet.ValueRange{Values: [][]any{{
		ownerID,
		period.Key(),
		total.PeriodicReactivatedCount,
		total.MonthlyResetCount,
		total.AveragesUpdatedCount,
		total.ForcedVisibleCount,
	}}}

	rng := fmt.Sprintf("%s!A:F", sheet)
	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("append reset summary to sheet %s: %w: %w", sheet, core.ErrTransient, err)
	}

	ref := rng
	if resp.Updates != nil && resp.Updates.UpdatedRange != "" {
		ref = resp.Updates.UpdatedRange
	}
	return ref, nil
}

func closureHeaderRow(h core.ClosureHeader) []any {
	return []any{
		h.Period.Key(),
		"header",
		string(h.Criterion),
		centsToUnits(h.LiquiditySnapshot),
		centsToUnits(h.ExpectedIncome),
		centsToUnits(h.RealIncome),
		centsToUnits(h.ExpectedExpenseTotal),
		centsToUnits(h.RealExpenseTotal),
		centsToUnits(h.ExpectedResult),
		centsToUnits(h.RealResult),
		centsToUnits(h.ResultDeviation),
		h.Version,
	}
}

func detailLineRow(h core.ClosureHeader, line core.ClosureDetailLine) []any {
	return []any{
		h.Period.Key(),
		string(line.DetailType),
		string(h.Criterion),
		"",
		centsToUnits(line.Expected),
		"",
		"",
		centsToUnits(line.Real),
		"",
		"",
		centsToUnits(line.Deviation),
		line.ItemCount,
	}
}

func centsToUnits(cents int64) float64 {
	return core.Money{Cents: cents}.Units()
}

// yearPrefixedName joins year and base name, e.g. "2025 Closures". A base
// containing a %d verb is treated as a pattern.
func yearPrefixedName(base string, year int) string {
	if strings.Contains(base, "%d") {
		return fmt.Sprintf(base, year)
	}
	return fmt.Sprintf("%d %s", year, base)
}
