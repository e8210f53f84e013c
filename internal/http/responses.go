package http

import (
	"time"

	"bilancio/internal/core"
	"bilancio/internal/ledger"
)

type householdJSON struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Code      string    `json:"code"`
	CreatedAt time.Time `json:"created_at"`
}

type userJSON struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Email       string `json:"email,omitempty"`
	HouseholdID string `json:"household_id,omitempty"`
}

type incomeJSON struct {
	ID          string    `json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	Title       string    `json:"title"`
	Amount      float64   `json:"amount"`
	UserID      string    `json:"user_id"`
	IsRecurring bool      `json:"is_recurring"`
	HouseholdID string    `json:"household_id,omitempty"`
}

type expenseJSON struct {
	ID           string    `json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	Title        string    `json:"title"`
	Amount       float64   `json:"amount"`
	PayerID      string    `json:"payer_id"`
	IsShared     bool      `json:"is_shared"`
	Category     string    `json:"category"`
	LinkedGoalID string    `json:"linked_goal_id,omitempty"`
	HouseholdID  string    `json:"household_id,omitempty"`
}

type goalJSON struct {
	ID                  string    `json:"id"`
	CreatedAt           time.Time `json:"created_at"`
	Title               string    `json:"title"`
	TargetAmount        float64   `json:"target_amount"`
	CurrentAmount       float64   `json:"current_amount"`
	MonthlyContribution float64   `json:"monthly_contribution"`
	Deadline            string    `json:"deadline,omitempty"`
	Progress            float64   `json:"progress"`
	HouseholdID         string    `json:"household_id,omitempty"`
}

type ledgerJSON struct {
	Users    []userJSON    `json:"users"`
	Incomes  []incomeJSON  `json:"incomes"`
	Expenses []expenseJSON `json:"expenses"`
	Goals    []goalJSON    `json:"goals"`
}

type userFinancialsJSON struct {
	UserID                string  `json:"user_id"`
	TotalIncome           float64 `json:"total_income"`
	ShareOfSharedExpenses float64 `json:"share_of_shared_expenses"`
	IndividualExpenses    float64 `json:"individual_expenses"`
	ShareOfGoals          float64 `json:"share_of_goals"`
	DisposableIncome      float64 `json:"disposable_income"`
}

type householdTotalsJSON struct {
	TotalIncome       float64 `json:"total_income"`
	TotalSpent        float64 `json:"total_spent"`
	TotalContribution float64 `json:"total_contribution"`
	Leftover          float64 `json:"leftover"`
}

type summaryResponse struct {
	Users  []userFinancialsJSON `json:"users"`
	Totals householdTotalsJSON  `json:"totals"`
}

func toHouseholdJSON(h *core.Household) householdJSON {
	return householdJSON{ID: h.ID, Name: h.Name, Code: h.Code, CreatedAt: h.CreatedAt}
}

func toUserJSON(u core.User) userJSON {
	return userJSON{ID: u.ID, Name: u.Name, Email: u.Email, HouseholdID: u.HouseholdID}
}

func toIncomeJSON(i core.Income) incomeJSON {
	return incomeJSON{
		ID:          i.ID,
		CreatedAt:   i.CreatedAt,
		Title:       i.Title,
		Amount:      i.Amount,
		UserID:      i.UserID,
		IsRecurring: i.IsRecurring,
		HouseholdID: i.HouseholdID,
	}
}

func toExpenseJSON(e core.Expense) expenseJSON {
	return expenseJSON{
		ID:           e.ID,
		CreatedAt:    e.CreatedAt,
		Title:        e.Title,
		Amount:       e.Amount,
		PayerID:      e.PayerID,
		IsShared:     e.IsShared,
		Category:     string(e.Category),
		LinkedGoalID: e.LinkedGoalID,
		HouseholdID:  e.HouseholdID,
	}
}

func toGoalJSON(g core.Goal) goalJSON {
	out := goalJSON{
		ID:                  g.ID,
		CreatedAt:           g.CreatedAt,
		Title:               g.Title,
		TargetAmount:        g.TargetAmount,
		CurrentAmount:       g.CurrentAmount,
		MonthlyContribution: g.MonthlyContribution,
		Progress:            g.Progress(),
		HouseholdID:         g.HouseholdID,
	}
	if !g.Deadline.IsZero() {
		out.Deadline = g.Deadline.Format("2006-01-02")
	}
	return out
}

func toLedgerJSON(led ledger.Ledger) ledgerJSON {
	out := ledgerJSON{
		Users:    make([]userJSON, 0, len(led.Users)),
		Incomes:  make([]incomeJSON, 0, len(led.Incomes)),
		Expenses: make([]expenseJSON, 0, len(led.Expenses)),
		Goals:    make([]goalJSON, 0, len(led.Goals)),
	}
	for _, u := range led.Users {
		out.Users = append(out.Users, toUserJSON(u))
	}
	for _, i := range led.Incomes {
		out.Incomes = append(out.Incomes, toIncomeJSON(i))
	}
	for _, e := range led.Expenses {
		out.Expenses = append(out.Expenses, toExpenseJSON(e))
	}
	for _, g := range led.Goals {
		out.Goals = append(out.Goals, toGoalJSON(g))
	}
	return out
}

func buildSummary(led ledger.Ledger) summaryResponse {
	financials := core.CalculateFinancials(led.Users, led.Incomes, led.Expenses, led.Goals)
	totals := core.CalculateHouseholdTotals(led.Incomes, led.Expenses, led.Goals)

	out := summaryResponse{
		Users: make([]userFinancialsJSON, 0, len(financials)),
		Totals: householdTotalsJSON{
			TotalIncome:       totals.TotalIncome,
			TotalSpent:        totals.TotalSpent,
			TotalContribution: totals.TotalContribution,
			Leftover:          totals.Leftover,
		},
	}
	for _, f := range financials {
		out.Users = append(out.Users, userFinancialsJSON{
			UserID:                f.UserID,
			TotalIncome:           f.TotalIncome,
			ShareOfSharedExpenses: f.ShareOfSharedExpenses,
			IndividualExpenses:    f.IndividualExpenses,
			ShareOfGoals:          f.ShareOfGoals,
			DisposableIncome:      f.DisposableIncome,
		})
	}
	return out
}
