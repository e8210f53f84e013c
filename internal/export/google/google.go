// Package google implements the export port against a Google Sheets
// spreadsheet using service account credentials.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"bilancio/internal/core"
	ports "bilancio/internal/export"
)

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	// eventsSheet receives one appended row per ledger mutation;
	// summarySheet is cleared and rewritten on every export.
	eventsSheet  string
	summarySheet string
}

// Ensure interface conformance
var _ ports.Exporter = (*Client)(nil)

// New creates a Sheets exporter. Credentials come from the environment:
// GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or
// GOOGLE_APPLICATION_CREDENTIALS.
func New(ctx context.Context, spreadsheetID, sheetName string) (*Client, error) {
	if strings.TrimSpace(spreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	if strings.TrimSpace(sheetName) == "" {
		sheetName = "Ledger"
	}

	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		eventsSheet:   sheetName,
		summarySheet:  sheetName + " Summary",
	}, nil
}

// newSheetsService initializes a Sheets Service using Service Account credentials.
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

	return service, nil
}

// AppendEvent appends a single mutation row to the events sheet.
func (c *Client) AppendEvent(ctx context.Context, householdID, kind, recordID string, ts time.Time) error {
	values := &gsheet.ValueRange{
		Values: [][]any{{
			ts.Format(time.RFC3339),
			householdID,
			kind,
			recordID,
		}},
	}

	_, err := c.svc.Spreadsheets.Values.
		Append(c.spreadsheetID, c.eventsSheet+"!A:D", values).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("append event row: %w", err)
	}

	slog.InfoContext(ctx, "Ledger event appended to sheet",
		"household_id", householdID,
		"kind", kind,
		"record_id", recordID,
		"sheet", c.eventsSheet)
	return nil
}

// WriteSummary clears the summary sheet and rewrites the per-user allocation
// block followed by the household totals.
func (c *Client) WriteSummary(ctx context.Context, householdName string, fin []core.UserFinancials, totals core.HouseholdTotals) error {
	clearRange := c.summarySheet + "!A:F"
	if _, err := c.svc.Spreadsheets.Values.
		Clear(c.spreadsheetID, clearRange, &gsheet.ClearValuesRequest{}).
		Context(ctx).
		Do(); err != nil {
		return fmt.Errorf("clear summary range: %w", err)
	}

	rows := [][]any{
		{"Household", householdName, "", "", "", ""},
		{"User", "Income", "Shared share", "Individual", "Goals share", "Disposable"},
	}
	for _, f := range fin {
		rows = append(rows, []any{
			f.UserID,
			f.TotalIncome,
			f.ShareOfSharedExpenses,
			f.IndividualExpenses,
			f.ShareOfGoals,
			f.DisposableIncome,
		})
	}
	rows = append(rows,
		[]any{"", "", "", "", "", ""},
		[]any{"Total income", totals.TotalIncome, "", "", "", ""},
		[]any{"Total spent", totals.TotalSpent, "", "", "", ""},
		[]any{"Total contribution", totals.TotalContribution, "", "", "", ""},
		[]any{"Leftover", totals.Leftover, "", "", "", ""},
	)

	_, err := c.svc.Spreadsheets.Values.
		Update(c.spreadsheetID, c.summarySheet+"!A1", &gsheet.ValueRange{Values: rows}).
		ValueInputOption("USER_ENTERED").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("write summary block: %w", err)
	}

	slog.InfoContext(ctx, "Household summary exported",
		"household", householdName,
		"users", len(fin),
		"sheet", c.summarySheet)
	return nil
}
