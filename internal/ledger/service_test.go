package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"bilancio/internal/amqp"
	"bilancio/internal/core"
	"bilancio/internal/log"
	"bilancio/internal/storage"
	"bilancio/internal/storage/memory"
)

var errStoreDown = errors.New("store down")

// failingStore wraps the memory store and fails selected operations.
type failingStore struct {
	*memory.Store
	failCreateExpense    bool
	failUpdateGoalAmount bool
}

func (f *failingStore) CreateExpense(ctx context.Context, e *core.Expense) error {
	if f.failCreateExpense {
		return errStoreDown
	}
	return f.Store.CreateExpense(ctx, e)
}

func (f *failingStore) UpdateGoalAmount(ctx context.Context, id string, newAmount float64) error {
	if f.failUpdateGoalAmount {
		return errStoreDown
	}
	return f.Store.UpdateGoalAmount(ctx, id, newAmount)
}

type recordingPublisher struct {
	messages []amqp.LedgerEventMessage
	err      error
}

func (p *recordingPublisher) PublishLedgerEvent(_ context.Context, msg amqp.LedgerEventMessage) error {
	if p.err != nil {
		return p.err
	}
	p.messages = append(p.messages, msg)
	return nil
}

func testLogger() *log.Logger {
	return log.New(log.DefaultConfig())
}

func selectedService(store storage.Store) *Service {
	svc := NewService(store, nil, testLogger(), true)
	svc.SelectHousehold(&core.Household{ID: "hh-1", Name: "Casa Test", Code: "ABC123"})
	return svc
}

func TestService_ScopingStateMachine(t *testing.T) {
	ctx := context.Background()
	svc := NewService(memory.New(), nil, testLogger(), true)

	income := core.Income{Title: "Stipendio", Amount: 1000, UserID: "u1"}
	expense := core.Expense{Title: "Spesa", Amount: 50, PayerID: "u1", Category: core.CategoryFood}
	goal := core.Goal{Title: "Fondo", TargetAmount: 1000}

	t.Run("records blocked before selection", func(t *testing.T) {
		var scopeErr *ScopeError

		if _, err := svc.AddIncome(ctx, Ledger{}, income); !errors.As(err, &scopeErr) {
			t.Errorf("AddIncome() error = %v, want ScopeError", err)
		}
		if _, err := svc.AddExpense(ctx, Ledger{}, expense); !errors.As(err, &scopeErr) {
			t.Errorf("AddExpense() error = %v, want ScopeError", err)
		}
		if _, err := svc.AddGoal(ctx, Ledger{}, goal); !errors.As(err, &scopeErr) {
			t.Errorf("AddGoal() error = %v, want ScopeError", err)
		}
	})

	t.Run("users allowed before selection", func(t *testing.T) {
		led, err := svc.AddUser(ctx, Ledger{}, core.User{Name: "Alex"})
		if err != nil {
			t.Fatalf("AddUser() error = %v", err)
		}
		if len(led.Users) != 1 {
			t.Errorf("AddUser() snapshot has %d users, want 1", len(led.Users))
		}
	})

	t.Run("records allowed and stamped after selection", func(t *testing.T) {
		svc.SelectHousehold(&core.Household{ID: "hh-1"})

		led, err := svc.AddIncome(ctx, Ledger{}, income)
		if err != nil {
			t.Fatalf("AddIncome() error = %v", err)
		}
		if led.Incomes[0].HouseholdID != "hh-1" {
			t.Errorf("AddIncome() HouseholdID = %v, want hh-1", led.Incomes[0].HouseholdID)
		}
	})

	t.Run("scoping off allows records without household", func(t *testing.T) {
		open := NewService(memory.New(), nil, testLogger(), false)
		if _, err := open.AddIncome(ctx, Ledger{}, income); err != nil {
			t.Errorf("AddIncome() with scoping off error = %v", err)
		}
	})
}

func TestService_ValidationLeavesLedgerUntouched(t *testing.T) {
	ctx := context.Background()
	svc := selectedService(memory.New())

	led, err := svc.AddIncome(ctx, Ledger{}, core.Income{Title: "Stipendio", Amount: 1000, UserID: "u1"})
	if err != nil {
		t.Fatalf("AddIncome() error = %v", err)
	}

	tests := []struct {
		name string
		run  func() (Ledger, error)
	}{
		{
			name: "negative income amount",
			run: func() (Ledger, error) {
				return svc.AddIncome(ctx, led, core.Income{Title: "x", Amount: -5, UserID: "u1"})
			},
		},
		{
			name: "empty expense title",
			run: func() (Ledger, error) {
				return svc.AddExpense(ctx, led, core.Expense{Title: "  ", Amount: 10, PayerID: "u1", Category: core.CategoryFood})
			},
		},
		{
			name: "savings expense without goal link",
			run: func() (Ledger, error) {
				return svc.AddExpense(ctx, led, core.Expense{Title: "Risparmio", Amount: 10, PayerID: "u1", Category: core.CategorySavings})
			},
		},
		{
			name: "goal with zero target",
			run: func() (Ledger, error) {
				return svc.AddGoal(ctx, led, core.Goal{Title: "Fondo", TargetAmount: 0})
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, err := tt.run()
			var validationErr *ValidationError
			if !errors.As(err, &validationErr) {
				t.Fatalf("error = %v, want ValidationError", err)
			}
			if len(next.Incomes) != 1 || len(next.Expenses) != 0 || len(next.Goals) != 0 {
				t.Errorf("rejected mutation changed the snapshot: %+v", next)
			}
		})
	}
}

func TestService_SnapshotThreading(t *testing.T) {
	ctx := context.Background()
	svc := selectedService(memory.New())

	led0 := Ledger{}
	led1, err := svc.AddIncome(ctx, led0, core.Income{Title: "Stipendio", Amount: 1000, UserID: "u1"})
	if err != nil {
		t.Fatalf("AddIncome() error = %v", err)
	}
	led2, err := svc.AddExpense(ctx, led1, core.Expense{Title: "Spesa", Amount: 50, PayerID: "u1", Category: core.CategoryFood})
	if err != nil {
		t.Fatalf("AddExpense() error = %v", err)
	}

	// Old snapshots stay frozen.
	if len(led0.Incomes) != 0 || len(led0.Expenses) != 0 {
		t.Errorf("led0 mutated: %+v", led0)
	}
	if len(led1.Incomes) != 1 || len(led1.Expenses) != 0 {
		t.Errorf("led1 mutated: %+v", led1)
	}
	if len(led2.Incomes) != 1 || len(led2.Expenses) != 1 {
		t.Errorf("led2 = %+v", led2)
	}
}

func TestService_FailingStoreLeavesSnapshotUnchanged(t *testing.T) {
	ctx := context.Background()
	store := &failingStore{Store: memory.New(), failCreateExpense: true}
	svc := selectedService(store)

	led := Ledger{Incomes: []core.Income{{ID: "i1", Title: "Stipendio", Amount: 1000, UserID: "u1"}}}

	next, err := svc.AddExpense(ctx, led, core.Expense{Title: "Spesa", Amount: 50, PayerID: "u1", Category: core.CategoryFood})

	var persistenceErr *PersistenceError
	if !errors.As(err, &persistenceErr) {
		t.Fatalf("AddExpense() error = %v, want PersistenceError", err)
	}
	if len(next.Expenses) != 0 {
		t.Errorf("failed insert added expense to snapshot: %+v", next.Expenses)
	}
	if svc.LastError() == "" {
		t.Error("LastError() empty after persistence failure")
	}

	expenses, _ := store.ListExpenses(ctx, "")
	if len(expenses) != 0 {
		t.Errorf("store has %d expenses after failed insert, want 0", len(expenses))
	}
}

func TestService_SavingsExpenseFundsGoal(t *testing.T) {
	ctx := context.Background()
	svc := selectedService(memory.New())

	led, err := svc.AddGoal(ctx, Ledger{}, core.Goal{Title: "Vacanza", TargetAmount: 3000, CurrentAmount: 100})
	if err != nil {
		t.Fatalf("AddGoal() error = %v", err)
	}
	goalID := led.Goals[0].ID

	led, err = svc.AddExpense(ctx, led, core.Expense{
		Title:        "Versamento vacanza",
		Amount:       250,
		PayerID:      "u1",
		Category:     core.CategorySavings,
		LinkedGoalID: goalID,
	})
	if err != nil {
		t.Fatalf("AddExpense() error = %v", err)
	}

	if len(led.Expenses) != 1 {
		t.Fatalf("snapshot has %d expenses, want 1", len(led.Expenses))
	}
	if got := led.Goals[0].CurrentAmount; got != 350 {
		t.Errorf("snapshot goal CurrentAmount = %v, want 350", got)
	}
	if svc.LastError() != "" {
		t.Errorf("LastError() = %q, want empty", svc.LastError())
	}
}

func TestService_SavingsExpenseDanglingGoal(t *testing.T) {
	ctx := context.Background()
	svc := selectedService(memory.New())

	led, err := svc.AddExpense(ctx, Ledger{}, core.Expense{
		Title:        "Versamento",
		Amount:       100,
		PayerID:      "u1",
		Category:     core.CategorySavings,
		LinkedGoalID: "no-such-goal",
	})
	if err != nil {
		t.Fatalf("AddExpense() error = %v, want nil (record-with-warning)", err)
	}
	if len(led.Expenses) != 1 {
		t.Fatalf("snapshot has %d expenses, want 1", len(led.Expenses))
	}
	if svc.LastError() == "" {
		t.Error("LastError() empty, want a dangling goal warning")
	}
}

func TestService_SavingsExpenseGoalUpdateFailure(t *testing.T) {
	ctx := context.Background()
	store := &failingStore{Store: memory.New()}
	svc := selectedService(store)

	led, err := svc.AddGoal(ctx, Ledger{}, core.Goal{Title: "Fondo", TargetAmount: 1000, CurrentAmount: 40})
	if err != nil {
		t.Fatalf("AddGoal() error = %v", err)
	}
	goalID := led.Goals[0].ID

	store.failUpdateGoalAmount = true

	next, err := svc.AddExpense(ctx, led, core.Expense{
		Title:        "Versamento",
		Amount:       60,
		PayerID:      "u1",
		Category:     core.CategorySavings,
		LinkedGoalID: goalID,
	})

	var persistenceErr *PersistenceError
	if !errors.As(err, &persistenceErr) {
		t.Fatalf("AddExpense() error = %v, want PersistenceError", err)
	}
	// The expense is durable even though the funding step failed.
	if len(next.Expenses) != 1 {
		t.Errorf("snapshot has %d expenses, want 1", len(next.Expenses))
	}
	if next.Goals[0].CurrentAmount != 40 {
		t.Errorf("snapshot goal CurrentAmount = %v, want 40 (unchanged)", next.Goals[0].CurrentAmount)
	}
	if svc.LastError() == "" {
		t.Error("LastError() empty after partial write")
	}

	stored, _ := store.ListExpenses(ctx, "")
	if len(stored) != 1 {
		t.Errorf("store has %d expenses, want 1", len(stored))
	}
}

func TestService_UpdateGoal(t *testing.T) {
	ctx := context.Background()
	svc := selectedService(memory.New())

	led, err := svc.AddGoal(ctx, Ledger{}, core.Goal{Title: "Fondo", TargetAmount: 1000, CurrentAmount: 100})
	if err != nil {
		t.Fatalf("AddGoal() error = %v", err)
	}
	goalID := led.Goals[0].ID

	t.Run("absolute set", func(t *testing.T) {
		// The new amount replaces the old value; it is not added to it.
		next, err := svc.UpdateGoal(ctx, led, goalID, 80)
		if err != nil {
			t.Fatalf("UpdateGoal() error = %v", err)
		}
		if next.Goals[0].CurrentAmount != 80 {
			t.Errorf("CurrentAmount = %v, want 80", next.Goals[0].CurrentAmount)
		}
	})

	t.Run("unknown goal", func(t *testing.T) {
		_, err := svc.UpdateGoal(ctx, led, "missing", 50)
		var notFoundErr *NotFoundError
		if !errors.As(err, &notFoundErr) {
			t.Errorf("UpdateGoal() error = %v, want NotFoundError", err)
		}
	})

	t.Run("negative amount", func(t *testing.T) {
		_, err := svc.UpdateGoal(ctx, led, goalID, -1)
		var validationErr *ValidationError
		if !errors.As(err, &validationErr) {
			t.Errorf("UpdateGoal() error = %v, want ValidationError", err)
		}
	})
}

func TestService_PublishesEvents(t *testing.T) {
	ctx := context.Background()
	pub := &recordingPublisher{}
	svc := NewService(memory.New(), pub, testLogger(), true)
	svc.SelectHousehold(&core.Household{ID: "hh-1"})

	led, err := svc.AddGoal(ctx, Ledger{}, core.Goal{Title: "Fondo", TargetAmount: 1000})
	if err != nil {
		t.Fatalf("AddGoal() error = %v", err)
	}
	goalID := led.Goals[0].ID

	led, err = svc.AddExpense(ctx, led, core.Expense{
		Title:        "Versamento",
		Amount:       50,
		PayerID:      "u1",
		Category:     core.CategorySavings,
		LinkedGoalID: goalID,
	})
	if err != nil {
		t.Fatalf("AddExpense() error = %v", err)
	}

	kinds := make([]string, 0, len(pub.messages))
	for _, m := range pub.messages {
		kinds = append(kinds, m.Kind)
		if m.HouseholdID != "hh-1" {
			t.Errorf("event HouseholdID = %v, want hh-1", m.HouseholdID)
		}
		if m.Timestamp.IsZero() || time.Since(m.Timestamp) > time.Minute {
			t.Errorf("event Timestamp = %v, want recent", m.Timestamp)
		}
	}

	want := []string{"goal", "expense", "goal_update"}
	if len(kinds) != len(want) {
		t.Fatalf("published kinds = %v, want %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Errorf("published kinds = %v, want %v", kinds, want)
			break
		}
	}
}

func TestService_PublishFailureDoesNotFailMutation(t *testing.T) {
	ctx := context.Background()
	pub := &recordingPublisher{err: errors.New("broker unavailable")}
	svc := NewService(memory.New(), pub, testLogger(), true)
	svc.SelectHousehold(&core.Household{ID: "hh-1"})

	led, err := svc.AddIncome(ctx, Ledger{}, core.Income{Title: "Stipendio", Amount: 1000, UserID: "u1"})
	if err != nil {
		t.Fatalf("AddIncome() error = %v, publish failure must not fail the mutation", err)
	}
	if len(led.Incomes) != 1 {
		t.Errorf("snapshot has %d incomes, want 1", len(led.Incomes))
	}
}

func TestLoadLedger(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc := NewService(store, nil, testLogger(), true)
	svc.SelectHousehold(&core.Household{ID: "hh-1"})

	led, err := svc.AddUser(ctx, Ledger{}, core.User{Name: "Alex"})
	if err != nil {
		t.Fatalf("AddUser() error = %v", err)
	}
	if _, err := svc.AddIncome(ctx, led, core.Income{Title: "Stipendio", Amount: 1000, UserID: led.Users[0].ID}); err != nil {
		t.Fatalf("AddIncome() error = %v", err)
	}

	loaded, err := LoadLedger(ctx, store, "hh-1")
	if err != nil {
		t.Fatalf("LoadLedger() error = %v", err)
	}
	if len(loaded.Users) != 1 || len(loaded.Incomes) != 1 {
		t.Errorf("LoadLedger() = %d users, %d incomes; want 1, 1", len(loaded.Users), len(loaded.Incomes))
	}
}
