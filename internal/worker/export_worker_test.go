package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"bilancio/internal/amqp"
	"bilancio/internal/core"
	"bilancio/internal/log"
	"bilancio/internal/storage/memory"
)

type fakeExporter struct {
	events    []string
	summaries []string
	finByName map[string][]core.UserFinancials
	failWrite bool
}

func newFakeExporter() *fakeExporter {
	return &fakeExporter{finByName: make(map[string][]core.UserFinancials)}
}

func (f *fakeExporter) AppendEvent(_ context.Context, householdID, kind, recordID string, _ time.Time) error {
	f.events = append(f.events, householdID+"/"+kind+"/"+recordID)
	return nil
}

func (f *fakeExporter) WriteSummary(_ context.Context, householdName string, fin []core.UserFinancials, _ core.HouseholdTotals) error {
	if f.failWrite {
		return errors.New("sheets unavailable")
	}
	f.summaries = append(f.summaries, householdName)
	f.finByName[householdName] = fin
	return nil
}

func seedHousehold(t *testing.T, store *memory.Store) *core.Household {
	t.Helper()
	ctx := context.Background()

	h := &core.Household{Name: "Casa Test", Code: "ABC123"}
	if err := store.CreateHousehold(ctx, h); err != nil {
		t.Fatalf("CreateHousehold() error = %v", err)
	}

	u := &core.User{Name: "Alex", HouseholdID: h.ID}
	if err := store.CreateUser(ctx, u); err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	income := &core.Income{Title: "Stipendio", Amount: 2000, UserID: u.ID, HouseholdID: h.ID}
	if err := store.CreateIncome(ctx, income); err != nil {
		t.Fatalf("CreateIncome() error = %v", err)
	}
	expense := &core.Expense{Title: "Affitto", Amount: 800, PayerID: u.ID, IsShared: true, Category: core.CategoryHousing, HouseholdID: h.ID}
	if err := store.CreateExpense(ctx, expense); err != nil {
		t.Fatalf("CreateExpense() error = %v", err)
	}
	return h
}

func TestExportWorker_HandleEvent(t *testing.T) {
	store := memory.New()
	h := seedHousehold(t, store)
	exporter := newFakeExporter()
	w := NewExportWorker(store, exporter, log.New(log.DefaultConfig()))

	msg := &amqp.LedgerEventMessage{
		HouseholdID: h.ID,
		Kind:        "expense",
		RecordID:    "rec-1",
		Timestamp:   time.Now(),
	}
	if err := w.HandleEvent(context.Background(), msg); err != nil {
		t.Fatalf("HandleEvent() error = %v", err)
	}

	if len(exporter.events) != 1 || exporter.events[0] != h.ID+"/expense/rec-1" {
		t.Errorf("events = %v, want one expense event", exporter.events)
	}
	if len(exporter.summaries) != 1 || exporter.summaries[0] != "Casa Test" {
		t.Errorf("summaries = %v, want [Casa Test]", exporter.summaries)
	}

	fin := exporter.finByName["Casa Test"]
	if len(fin) != 1 {
		t.Fatalf("summary rows = %d, want 1", len(fin))
	}
	// 2000 income - 800 shared (only member carries the full split)
	if fin[0].DisposableIncome != 1200 {
		t.Errorf("DisposableIncome = %v, want 1200", fin[0].DisposableIncome)
	}
}

func TestExportWorker_HandleEventWriteFailure(t *testing.T) {
	store := memory.New()
	h := seedHousehold(t, store)
	exporter := newFakeExporter()
	exporter.failWrite = true
	w := NewExportWorker(store, exporter, log.New(log.DefaultConfig()))

	msg := &amqp.LedgerEventMessage{HouseholdID: h.ID, Kind: "income", RecordID: "rec-2", Timestamp: time.Now()}
	if err := w.HandleEvent(context.Background(), msg); err == nil {
		t.Error("HandleEvent() error = nil, want failure so the message is requeued")
	}
}

func TestExportWorker_ExportAll(t *testing.T) {
	store := memory.New()
	h1 := seedHousehold(t, store)

	h2 := &core.Household{Name: "Casa Due", Code: "XYZ789"}
	if err := store.CreateHousehold(context.Background(), h2); err != nil {
		t.Fatalf("CreateHousehold() error = %v", err)
	}

	exporter := newFakeExporter()
	w := NewExportWorker(store, exporter, log.New(log.DefaultConfig()))

	if err := w.ExportAll(context.Background()); err != nil {
		t.Fatalf("ExportAll() error = %v", err)
	}
	if len(exporter.summaries) != 2 {
		t.Fatalf("summaries = %v, want 2 households", exporter.summaries)
	}
	seen := map[string]bool{}
	for _, name := range exporter.summaries {
		seen[name] = true
	}
	if !seen[h1.Name] || !seen[h2.Name] {
		t.Errorf("summaries = %v, want both %q and %q", exporter.summaries, h1.Name, h2.Name)
	}
}

func TestExportWorker_RunPeriodicStopsOnCancel(t *testing.T) {
	store := memory.New()
	seedHousehold(t, store)
	exporter := newFakeExporter()
	w := NewExportWorker(store, exporter, log.New(log.DefaultConfig()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- w.RunPeriodic(ctx, 10*time.Millisecond)
	}()

	time.Sleep(35 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("RunPeriodic() error = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("RunPeriodic() did not stop after cancel")
	}

	if len(exporter.summaries) == 0 {
		t.Error("RunPeriodic() produced no exports before cancel")
	}
}
