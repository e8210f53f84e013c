// Package memory provides an in-memory Store used by tests and by the
// memory data backend.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"bilancio/internal/core"
	"bilancio/internal/storage"
)

type Store struct {
	mu         sync.RWMutex
	households map[string]core.Household
	users      []core.User
	incomes    []core.Income
	expenses   []core.Expense
	goals      []core.Goal
}

func New() *Store {
	return &Store{
		households: make(map[string]core.Household),
	}
}

func (s *Store) Close() error {
	return nil
}

func (s *Store) CreateHousehold(_ context.Context, h *core.Household) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stamp(&h.ID, &h.CreatedAt)
	s.households[h.ID] = *h
	return nil
}

func (s *Store) GetHousehold(_ context.Context, id string) (*core.Household, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h, ok := s.households[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &h, nil
}

func (s *Store) GetHouseholdByCode(_ context.Context, code string) (*core.Household, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, h := range s.households {
		if h.Code == code {
			found := h
			return &found, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (s *Store) ListHouseholds(_ context.Context) ([]core.Household, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]core.Household, 0, len(s.households))
	for _, h := range s.households {
		out = append(out, h)
	}
	return out, nil
}

func (s *Store) CreateUser(_ context.Context, u *core.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	s.users = append(s.users, *u)
	return nil
}

func (s *Store) SetUserHousehold(_ context.Context, userID, householdID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.users {
		if s.users[i].ID == userID {
			s.users[i].HouseholdID = householdID
			return nil
		}
	}
	return storage.ErrNotFound
}

func (s *Store) CreateIncome(_ context.Context, i *core.Income) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stamp(&i.ID, &i.CreatedAt)
	s.incomes = append(s.incomes, *i)
	return nil
}

func (s *Store) CreateExpense(_ context.Context, e *core.Expense) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stamp(&e.ID, &e.CreatedAt)
	s.expenses = append(s.expenses, *e)
	return nil
}

func (s *Store) CreateGoal(_ context.Context, g *core.Goal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stamp(&g.ID, &g.CreatedAt)
	s.goals = append(s.goals, *g)
	return nil
}

func (s *Store) GetGoal(_ context.Context, id string) (*core.Goal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, g := range s.goals {
		if g.ID == id {
			found := g
			return &found, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (s *Store) UpdateGoalAmount(_ context.Context, id string, newAmount float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.goals {
		if s.goals[i].ID == id {
			s.goals[i].CurrentAmount = newAmount
			return nil
		}
	}
	return storage.ErrNotFound
}

func (s *Store) ListUsers(_ context.Context, householdID string) ([]core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]core.User, 0, len(s.users))
	for _, u := range s.users {
		if householdID == "" || u.HouseholdID == householdID {
			out = append(out, u)
		}
	}
	return out, nil
}

func (s *Store) ListIncomes(_ context.Context, householdID string) ([]core.Income, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]core.Income, 0, len(s.incomes))
	for _, i := range s.incomes {
		if householdID == "" || i.HouseholdID == householdID {
			out = append(out, i)
		}
	}
	return out, nil
}

func (s *Store) ListExpenses(_ context.Context, householdID string) ([]core.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]core.Expense, 0, len(s.expenses))
	for _, e := range s.expenses {
		if householdID == "" || e.HouseholdID == householdID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *Store) ListGoals(_ context.Context, householdID string) ([]core.Goal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]core.Goal, 0, len(s.goals))
	for _, g := range s.goals {
		if householdID == "" || g.HouseholdID == householdID {
			out = append(out, g)
		}
	}
	return out, nil
}

func stamp(id *string, createdAt *time.Time) {
	if *id == "" {
		*id = uuid.New().String()
	}
	if createdAt.IsZero() {
		*createdAt = time.Now().UTC()
	}
}
