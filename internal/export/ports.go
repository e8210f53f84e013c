// Package export defines the outbound port for pushing ledger summaries to
// an external spreadsheet, and its Google Sheets implementation.
package export

import (
	"context"
	"time"

	"bilancio/internal/core"
)

// Exporter is the outbound port for the export worker.
type Exporter interface {
	// AppendEvent appends one row describing an accepted ledger mutation.
	AppendEvent(ctx context.Context, householdID, kind, recordID string, ts time.Time) error

	// WriteSummary replaces the household's summary block with the current
	// per-user allocation and household totals.
	WriteSummary(ctx context.Context, householdName string, fin []core.UserFinancials, totals core.HouseholdTotals) error
}
