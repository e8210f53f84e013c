// Package worker consumes ledger events and keeps the external spreadsheet
// in sync with the allocation engine's view of each household.
package worker

import (
	"context"
	"fmt"
	"time"

	"bilancio/internal/amqp"
	"bilancio/internal/core"
	"bilancio/internal/export"
	"bilancio/internal/ledger"
	"bilancio/internal/log"
	"bilancio/internal/storage"
)

type ExportWorker struct {
	store    storage.Store
	exporter export.Exporter
	logger   *log.Logger
}

func NewExportWorker(store storage.Store, exporter export.Exporter, logger *log.Logger) *ExportWorker {
	return &ExportWorker{
		store:    store,
		exporter: exporter,
		logger:   logger.WithComponent(log.ComponentExport),
	}
}

// HandleEvent processes one ledger event: reload the household's ledger, run
// the allocation engine, and push the event row plus the refreshed summary.
// Returning an error requeues the message.
func (w *ExportWorker) HandleEvent(ctx context.Context, msg *amqp.LedgerEventMessage) error {
	led, err := ledger.LoadLedger(ctx, w.store, msg.HouseholdID)
	if err != nil {
		return fmt.Errorf("load ledger for household %s: %w", msg.HouseholdID, err)
	}

	if err := w.exporter.AppendEvent(ctx, msg.HouseholdID, msg.Kind, msg.RecordID, msg.Timestamp); err != nil {
		return fmt.Errorf("append event: %w", err)
	}

	if err := w.exportSummary(ctx, msg.HouseholdID, led); err != nil {
		return err
	}

	w.logger.InfoContext(ctx, "ledger event exported",
		log.FieldOperation, log.OpExport,
		log.FieldHouseholdID, msg.HouseholdID,
		"kind", msg.Kind,
		log.FieldRecordID, msg.RecordID)
	return nil
}

// ExportAll re-exports the summary of every known household. It backs up the
// event-driven path: a message lost while the worker was down is covered by
// the next full pass.
func (w *ExportWorker) ExportAll(ctx context.Context) error {
	households, err := w.store.ListHouseholds(ctx)
	if err != nil {
		return fmt.Errorf("list households: %w", err)
	}

	for _, h := range households {
		led, err := ledger.LoadLedger(ctx, w.store, h.ID)
		if err != nil {
			w.logger.ErrorContext(ctx, "full export skipping household",
				log.FieldHouseholdID, h.ID,
				log.FieldError, err)
			continue
		}
		if err := w.exportSummary(ctx, h.ID, led); err != nil {
			w.logger.ErrorContext(ctx, "full export failed for household",
				log.FieldHouseholdID, h.ID,
				log.FieldError, err)
			continue
		}
	}

	w.logger.InfoContext(ctx, "full export completed",
		log.FieldOperation, log.OpExport,
		"households", len(households))
	return nil
}

// RunPeriodic runs ExportAll on a fixed interval until the context ends.
func (w *ExportWorker) RunPeriodic(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.ExportAll(ctx); err != nil {
				w.logger.ErrorContext(ctx, "periodic export failed", log.FieldError, err)
			}
		}
	}
}

func (w *ExportWorker) exportSummary(ctx context.Context, householdID string, led ledger.Ledger) error {
	fin := core.CalculateFinancials(led.Users, led.Incomes, led.Expenses, led.Goals)
	totals := core.CalculateHouseholdTotals(led.Incomes, led.Expenses, led.Goals)

	name := householdID
	if h, err := w.store.GetHousehold(ctx, householdID); err == nil {
		name = h.Name
	}

	if err := w.exporter.WriteSummary(ctx, name, fin, totals); err != nil {
		return fmt.Errorf("write summary for household %s: %w", householdID, err)
	}
	return nil
}
