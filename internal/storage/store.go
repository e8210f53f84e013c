// Package storage defines the persistence port for the household ledger and
// its SQLite implementation.
package storage

import (
	"context"
	"errors"

	"bilancio/internal/core"
)

// ErrNotFound is returned when a referenced record does not exist.
var ErrNotFound = errors.New("record not found")

// Store is the external persistence collaborator: four record collections
// plus the household grouping record, each supporting insert-one and
// select-all (optionally filtered by household).
//
// Implementations must make CreateExpense and UpdateGoalAmount durable
// individually; the ledger service sequences them and surfaces a failure of
// the second step rather than rolling back the first.
type Store interface {
	CreateHousehold(ctx context.Context, h *core.Household) error
	GetHousehold(ctx context.Context, id string) (*core.Household, error)
	GetHouseholdByCode(ctx context.Context, code string) (*core.Household, error)
	ListHouseholds(ctx context.Context) ([]core.Household, error)

	CreateUser(ctx context.Context, u *core.User) error
	SetUserHousehold(ctx context.Context, userID, householdID string) error

	CreateIncome(ctx context.Context, i *core.Income) error
	CreateExpense(ctx context.Context, e *core.Expense) error
	CreateGoal(ctx context.Context, g *core.Goal) error

	GetGoal(ctx context.Context, id string) (*core.Goal, error)
	// UpdateGoalAmount replaces the goal's current amount with an absolute
	// value (not a delta).
	UpdateGoalAmount(ctx context.Context, id string, newAmount float64) error

	// List operations return all records, or only those stamped with the
	// given household when householdID is non-empty.
	ListUsers(ctx context.Context, householdID string) ([]core.User, error)
	ListIncomes(ctx context.Context, householdID string) ([]core.Income, error)
	ListExpenses(ctx context.Context, householdID string) ([]core.Expense, error)
	ListGoals(ctx context.Context, householdID string) ([]core.Goal, error)

	// Close releases any resources held by the store.
	Close() error
}
