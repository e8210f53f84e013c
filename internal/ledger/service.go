// Package ledger implements the mutation service over the household ledger:
// validated writes against the store, an immutable local snapshot threaded
// through every operation, and best-effort event publication for the export
// worker.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"bilancio/internal/amqp"
	"bilancio/internal/core"
	"bilancio/internal/log"
	"bilancio/internal/storage"
)

// Publisher emits a ledger event after a successful mutation. amqp.Client
// satisfies it; a nil Publisher disables publication.
type Publisher interface {
	PublishLedgerEvent(ctx context.Context, msg amqp.LedgerEventMessage) error
}

// Ledger is an immutable snapshot of one household's collections. Operations
// take the current snapshot and return the next one; the input is never
// mutated, so a caller holding the old value still sees the old state.
type Ledger struct {
	Users    []core.User
	Incomes  []core.Income
	Expenses []core.Expense
	Goals    []core.Goal
}

// Service validates and persists ledger mutations. The store is the source
// of truth: the returned snapshot includes a record only after the store has
// acknowledged it.
type Service struct {
	store   storage.Store
	pub     Publisher
	logger  *log.Logger
	scoping bool

	mu               sync.RWMutex
	currentHousehold *core.Household
	lastError        string
}

func NewService(store storage.Store, pub Publisher, logger *log.Logger, scoping bool) *Service {
	return &Service{
		store:   store,
		pub:     pub,
		logger:  logger.WithComponent(log.ComponentLedger),
		scoping: scoping,
	}
}

// SelectHousehold moves the service into the household-selected state. There
// is no leave transition; selecting again switches households.
func (s *Service) SelectHousehold(h *core.Household) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentHousehold = h
}

// CurrentHousehold returns the selected household, or nil before selection.
func (s *Service) CurrentHousehold() *core.Household {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentHousehold
}

// LastError returns a human-readable note about the most recent failed or
// partially applied mutation, empty after a clean one. It exists for UI
// feedback and never substitutes for the returned error.
func (s *Service) LastError() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastError
}

// LoadLedger reads all collections of one household into a snapshot.
func LoadLedger(ctx context.Context, store storage.Store, householdID string) (Ledger, error) {
	users, err := store.ListUsers(ctx, householdID)
	if err != nil {
		return Ledger{}, fmt.Errorf("load users: %w", err)
	}
	incomes, err := store.ListIncomes(ctx, householdID)
	if err != nil {
		return Ledger{}, fmt.Errorf("load incomes: %w", err)
	}
	expenses, err := store.ListExpenses(ctx, householdID)
	if err != nil {
		return Ledger{}, fmt.Errorf("load expenses: %w", err)
	}
	goals, err := store.ListGoals(ctx, householdID)
	if err != nil {
		return Ledger{}, fmt.Errorf("load goals: %w", err)
	}
	return Ledger{Users: users, Incomes: incomes, Expenses: expenses, Goals: goals}, nil
}

// AddUser records a new household member. Users may be created before a
// household is selected, so scoping never blocks this operation.
func (s *Service) AddUser(ctx context.Context, led Ledger, u core.User) (Ledger, error) {
	s.clearLastError()

	if err := u.Validate(); err != nil {
		return led, &ValidationError{Field: "user", Err: err}
	}
	s.stampHousehold(&u.HouseholdID)

	if err := s.store.CreateUser(ctx, &u); err != nil {
		return led, s.persistenceFailure(ctx, "create user", err)
	}

	next := led
	next.Users = appendCopy(led.Users, u)

	s.logger.InfoContext(ctx, "user added",
		log.FieldOperation, log.OpCreate,
		log.FieldUserID, u.ID,
		log.FieldHouseholdID, u.HouseholdID)
	s.publish(ctx, u.HouseholdID, "user", u.ID)
	return next, nil
}

// AddIncome records an income for a user.
func (s *Service) AddIncome(ctx context.Context, led Ledger, in core.Income) (Ledger, error) {
	s.clearLastError()

	if err := s.requireHousehold("add income"); err != nil {
		return led, err
	}
	if err := in.Validate(); err != nil {
		return led, &ValidationError{Field: "income", Err: err}
	}
	s.stampHousehold(&in.HouseholdID)

	if err := s.store.CreateIncome(ctx, &in); err != nil {
		return led, s.persistenceFailure(ctx, "create income", err)
	}

	next := led
	next.Incomes = appendCopy(led.Incomes, in)

	s.logger.InfoContext(ctx, "income added",
		log.FieldOperation, log.OpCreate,
		log.FieldRecordID, in.ID,
		log.FieldAmount, in.Amount,
		log.FieldHouseholdID, in.HouseholdID)
	s.publish(ctx, in.HouseholdID, "income", in.ID)
	return next, nil
}

// AddExpense records an expense. A savings-categorized expense additionally
// funds its linked goal: the goal's balance grows by the expense amount. The
// expense insert and the goal update are two store writes; when the second
// fails the expense stays recorded and the failure is surfaced rather than
// rolled back or swallowed.
func (s *Service) AddExpense(ctx context.Context, led Ledger, e core.Expense) (Ledger, error) {
	s.clearLastError()

	if err := s.requireHousehold("add expense"); err != nil {
		return led, err
	}
	if err := e.Validate(); err != nil {
		return led, &ValidationError{Field: "expense", Err: err}
	}
	s.stampHousehold(&e.HouseholdID)

	if err := s.store.CreateExpense(ctx, &e); err != nil {
		return led, s.persistenceFailure(ctx, "create expense", err)
	}

	next := led
	next.Expenses = appendCopy(led.Expenses, e)

	s.logger.InfoContext(ctx, "expense added",
		log.FieldOperation, log.OpCreate,
		log.FieldRecordID, e.ID,
		log.FieldAmount, e.Amount,
		log.FieldCategory, string(e.Category),
		log.FieldHouseholdID, e.HouseholdID)
	s.publish(ctx, e.HouseholdID, "expense", e.ID)

	if e.Category != core.CategorySavings {
		return next, nil
	}
	return s.fundLinkedGoal(ctx, next, e)
}

// fundLinkedGoal applies the savings side effect after the expense is already
// durable. A dangling goal reference keeps the expense and leaves a warning;
// a store failure keeps the expense and returns the error.
func (s *Service) fundLinkedGoal(ctx context.Context, led Ledger, e core.Expense) (Ledger, error) {
	idx := -1
	for i := range led.Goals {
		if led.Goals[i].ID == e.LinkedGoalID {
			idx = i
			break
		}
	}
	if idx == -1 {
		s.setLastError(fmt.Sprintf("expense %q recorded, but linked goal %s does not exist", e.Title, e.LinkedGoalID))
		s.logger.WarnContext(ctx, "savings expense linked to unknown goal",
			log.FieldRecordID, e.ID,
			log.FieldGoalID, e.LinkedGoalID)
		return led, nil
	}

	goal := led.Goals[idx]
	newAmount := goal.CurrentAmount + e.Amount
	if err := s.store.UpdateGoalAmount(ctx, goal.ID, newAmount); err != nil {
		s.setLastError(fmt.Sprintf("expense %q recorded, but goal %q was not updated", e.Title, goal.Title))
		s.logger.ErrorContext(ctx, "goal funding failed after expense insert",
			log.FieldRecordID, e.ID,
			log.FieldGoalID, goal.ID,
			log.FieldError, err)
		return led, &PersistenceError{Op: "fund goal", Err: err}
	}

	goals := make([]core.Goal, len(led.Goals))
	copy(goals, led.Goals)
	goals[idx].CurrentAmount = newAmount
	led.Goals = goals

	s.logger.InfoContext(ctx, "goal funded by savings expense",
		log.FieldOperation, log.OpFund,
		log.FieldGoalID, goal.ID,
		log.FieldAmount, newAmount)
	s.publish(ctx, e.HouseholdID, "goal_update", goal.ID)
	return led, nil
}

// AddGoal records a new savings goal.
func (s *Service) AddGoal(ctx context.Context, led Ledger, g core.Goal) (Ledger, error) {
	s.clearLastError()

	if err := s.requireHousehold("add goal"); err != nil {
		return led, err
	}
	if err := g.Validate(); err != nil {
		return led, &ValidationError{Field: "goal", Err: err}
	}
	s.stampHousehold(&g.HouseholdID)

	if err := s.store.CreateGoal(ctx, &g); err != nil {
		return led, s.persistenceFailure(ctx, "create goal", err)
	}

	next := led
	next.Goals = appendCopy(led.Goals, g)

	s.logger.InfoContext(ctx, "goal added",
		log.FieldOperation, log.OpCreate,
		log.FieldGoalID, g.ID,
		log.FieldHouseholdID, g.HouseholdID)
	s.publish(ctx, g.HouseholdID, "goal", g.ID)
	return next, nil
}

// UpdateGoal sets a goal's current amount to an absolute value.
func (s *Service) UpdateGoal(ctx context.Context, led Ledger, id string, newAmount float64) (Ledger, error) {
	s.clearLastError()

	if newAmount < 0 {
		return led, &ValidationError{Field: "goal", Err: core.ErrInvalidAmount}
	}

	idx := -1
	for i := range led.Goals {
		if led.Goals[i].ID == id {
			idx = i
			break
		}
	}
	if idx == -1 {
		return led, &NotFoundError{Kind: "goal", ID: id}
	}

	if err := s.store.UpdateGoalAmount(ctx, id, newAmount); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return led, &NotFoundError{Kind: "goal", ID: id}
		}
		return led, s.persistenceFailure(ctx, "update goal", err)
	}

	goals := make([]core.Goal, len(led.Goals))
	copy(goals, led.Goals)
	goals[idx].CurrentAmount = newAmount
	next := led
	next.Goals = goals

	s.logger.InfoContext(ctx, "goal amount updated",
		log.FieldOperation, log.OpUpdate,
		log.FieldGoalID, id,
		log.FieldAmount, newAmount)
	s.publish(ctx, led.Goals[idx].HouseholdID, "goal_update", id)
	return next, nil
}

func (s *Service) requireHousehold(op string) error {
	if !s.scoping {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.currentHousehold == nil {
		return &ScopeError{Op: op}
	}
	return nil
}

func (s *Service) stampHousehold(householdID *string) {
	if *householdID != "" {
		return
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.currentHousehold != nil {
		*householdID = s.currentHousehold.ID
	}
}

func (s *Service) persistenceFailure(ctx context.Context, op string, err error) error {
	s.setLastError(fmt.Sprintf("%s failed", op))
	s.logger.ErrorContext(ctx, "store write failed",
		log.FieldOperation, op,
		log.FieldError, err)
	return &PersistenceError{Op: op, Err: err}
}

func (s *Service) setLastError(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastError = msg
}

func (s *Service) clearLastError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastError = ""
}

// publish emits a ledger event. Publication is best effort: a broker outage
// must never fail a mutation the store already accepted.
func (s *Service) publish(ctx context.Context, householdID, kind, recordID string) {
	if s.pub == nil {
		return
	}
	msg := amqp.LedgerEventMessage{
		HouseholdID: householdID,
		Kind:        kind,
		RecordID:    recordID,
		Timestamp:   time.Now().UTC(),
	}
	if err := s.pub.PublishLedgerEvent(ctx, msg); err != nil {
		s.logger.WarnContext(ctx, "ledger event publish failed",
			"kind", kind,
			log.FieldRecordID, recordID,
			log.FieldError, err)
	}
}

func appendCopy[T any](in []T, v T) []T {
	out := make([]T, len(in), len(in)+1)
	copy(out, in)
	return append(out, v)
}
