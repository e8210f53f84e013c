package core

// UserFinancials is one user's slice of the household ledger: what they earn,
// what joint costs they carry, and what remains to spend freely.
type UserFinancials struct {
	UserID                string
	TotalIncome           float64
	ShareOfSharedExpenses float64
	IndividualExpenses    float64
	ShareOfGoals          float64
	DisposableIncome      float64
}

// HouseholdTotals aggregates the whole household's numbers for dashboard use.
type HouseholdTotals struct {
	TotalIncome       float64
	TotalSpent        float64
	TotalContribution float64
	Leftover          float64
}

// CalculateFinancials maps the full ledger of one household to a per-user
// financial summary, in input user order.
//
// Shared expenses and pledged goal contributions are split evenly among the
// household members, so every user carries the same share. Personal expenses
// land entirely on their payer. DisposableIncome is the plain difference and
// may go negative; a negative value means the user is overspending and is a
// meaningful result, not an error.
//
// The function is pure: no I/O, no mutation of its inputs, identical output
// for identical input.
func CalculateFinancials(users []User, incomes []Income, expenses []Expense, goals []Goal) []UserFinancials {
	if len(users) == 0 {
		return nil
	}

	var sharedTotal float64
	for _, e := range expenses {
		if e.IsShared {
			sharedTotal += e.Amount
		}
	}

	var contributionTotal float64
	for _, g := range goals {
		contributionTotal += g.MonthlyContribution
	}

	// Even split across household members. With the canonical two-person
	// household this is the classic halving of joint costs.
	split := float64(len(users))
	shareOfShared := sharedTotal / split
	shareOfGoals := contributionTotal / split

	result := make([]UserFinancials, 0, len(users))
	for _, user := range users {
		var income float64
		for _, i := range incomes {
			if i.UserID == user.ID {
				income += i.Amount
			}
		}

		var individual float64
		for _, e := range expenses {
			if !e.IsShared && e.PayerID == user.ID {
				individual += e.Amount
			}
		}

		result = append(result, UserFinancials{
			UserID:                user.ID,
			TotalIncome:           income,
			ShareOfSharedExpenses: shareOfShared,
			IndividualExpenses:    individual,
			ShareOfGoals:          shareOfGoals,
			DisposableIncome:      income - shareOfShared - individual - shareOfGoals,
		})
	}
	return result
}

// CalculateHouseholdTotals computes the household-level rollup shown on the
// dashboard: all income, all spending regardless of sharing, all pledged
// contributions, and what is left over.
func CalculateHouseholdTotals(incomes []Income, expenses []Expense, goals []Goal) HouseholdTotals {
	var t HouseholdTotals
	for _, i := range incomes {
		t.TotalIncome += i.Amount
	}
	for _, e := range expenses {
		t.TotalSpent += e.Amount
	}
	for _, g := range goals {
		t.TotalContribution += g.MonthlyContribution
	}
	t.Leftover = t.TotalIncome - t.TotalSpent - t.TotalContribution
	return t
}
