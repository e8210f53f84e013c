package core

import (
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

// Canonical two-person household: rent, groceries, and a streaming
// subscription shared; a gym membership and books personal; two funded goals.
func twoPersonLedger() ([]User, []Income, []Expense, []Goal) {
	users := []User{
		{ID: "u1", Name: "Alex"},
		{ID: "u2", Name: "Sam"},
	}
	incomes := []Income{
		{ID: "i1", Title: "Salary", Amount: 5000, UserID: "u1", IsRecurring: true},
		{ID: "i2", Title: "Salary", Amount: 4200, UserID: "u2", IsRecurring: true},
	}
	expenses := []Expense{
		{ID: "e1", Title: "Rent", Amount: 2000, PayerID: "u1", IsShared: true, Category: CategoryHousing},
		{ID: "e2", Title: "Groceries", Amount: 600, PayerID: "u2", IsShared: true, Category: CategoryFood},
		{ID: "e3", Title: "Netflix", Amount: 15, PayerID: "u1", IsShared: true, Category: CategoryEntertainment},
		{ID: "e4", Title: "Gym", Amount: 50, PayerID: "u1", IsShared: false, Category: CategoryOther},
		{ID: "e5", Title: "Books", Amount: 30, PayerID: "u2", IsShared: false, Category: CategoryOther},
	}
	goals := []Goal{
		{ID: "g1", Title: "New Car", TargetAmount: 15000, CurrentAmount: 5000, MonthlyContribution: 400},
		{ID: "g2", Title: "Summer Trip", TargetAmount: 3000, CurrentAmount: 1200, MonthlyContribution: 200},
	}
	return users, incomes, expenses, goals
}

func TestCalculateFinancialsTwoPersonHousehold(t *testing.T) {
	users, incomes, expenses, goals := twoPersonLedger()
	got := CalculateFinancials(users, incomes, expenses, goals)

	if len(got) != 2 {
		t.Fatalf("expected 2 summaries, got %d", len(got))
	}
	// Output order follows input user order.
	if got[0].UserID != "u1" || got[1].UserID != "u2" {
		t.Fatalf("unexpected order: %s, %s", got[0].UserID, got[1].UserID)
	}

	// Shared: (2000+600+15)/2 = 1307.5, identical for both users.
	for i, f := range got {
		if !almostEqual(f.ShareOfSharedExpenses, 1307.5) {
			t.Errorf("user %d ShareOfSharedExpenses = %v, want 1307.5", i, f.ShareOfSharedExpenses)
		}
		if !almostEqual(f.ShareOfGoals, 300) {
			t.Errorf("user %d ShareOfGoals = %v, want 300", i, f.ShareOfGoals)
		}
	}

	alex, sam := got[0], got[1]
	if !almostEqual(alex.TotalIncome, 5000) || !almostEqual(sam.TotalIncome, 4200) {
		t.Errorf("incomes = %v, %v", alex.TotalIncome, sam.TotalIncome)
	}
	if !almostEqual(alex.IndividualExpenses, 50) || !almostEqual(sam.IndividualExpenses, 30) {
		t.Errorf("individual = %v, %v", alex.IndividualExpenses, sam.IndividualExpenses)
	}
	if !almostEqual(alex.DisposableIncome, 3342.5) {
		t.Errorf("alex disposable = %v, want 3342.5", alex.DisposableIncome)
	}
	if !almostEqual(sam.DisposableIncome, 2562.5) {
		t.Errorf("sam disposable = %v, want 2562.5", sam.DisposableIncome)
	}
}

func TestCalculateFinancialsZeroUsers(t *testing.T) {
	_, incomes, expenses, goals := twoPersonLedger()
	if got := CalculateFinancials(nil, incomes, expenses, goals); len(got) != 0 {
		t.Fatalf("expected empty result, got %d entries", len(got))
	}
}

func TestCalculateFinancialsEmptyLedger(t *testing.T) {
	users := []User{{ID: "u1", Name: "Alex"}, {ID: "u2", Name: "Sam"}}
	incomes := []Income{
		{ID: "i1", Title: "Salary", Amount: 3000, UserID: "u1"},
		{ID: "i2", Title: "Salary", Amount: 2500, UserID: "u2"},
	}

	got := CalculateFinancials(users, incomes, nil, nil)
	for i, f := range got {
		if !almostEqual(f.DisposableIncome, f.TotalIncome) {
			t.Errorf("user %d: with no costs disposable (%v) should equal income (%v)",
				i, f.DisposableIncome, f.TotalIncome)
		}
	}
}

func TestCalculateFinancialsNoIncomeGoesNegative(t *testing.T) {
	users := []User{{ID: "u1", Name: "Alex"}, {ID: "u2", Name: "Sam"}}
	expenses := []Expense{
		{ID: "e1", Title: "Rent", Amount: 1000, PayerID: "u1", IsShared: true, Category: CategoryHousing},
	}

	got := CalculateFinancials(users, nil, expenses, nil)
	for i, f := range got {
		if f.TotalIncome != 0 {
			t.Errorf("user %d income = %v, want 0", i, f.TotalIncome)
		}
		// Overspending yields a negative disposable income; it must not be
		// clamped to zero.
		if !almostEqual(f.DisposableIncome, -500) {
			t.Errorf("user %d disposable = %v, want -500", i, f.DisposableIncome)
		}
	}
}

func TestCalculateFinancialsIncomeSumDecomposition(t *testing.T) {
	users, incomes, expenses, goals := twoPersonLedger()
	got := CalculateFinancials(users, incomes, expenses, goals)

	var perUserSum, ledgerSum float64
	for _, f := range got {
		perUserSum += f.TotalIncome
	}
	for _, i := range incomes {
		ledgerSum += i.Amount
	}
	if !almostEqual(perUserSum, ledgerSum) {
		t.Fatalf("sum of per-user incomes %v != ledger income total %v", perUserSum, ledgerSum)
	}
}

func TestCalculateFinancialsDisposableFormula(t *testing.T) {
	users, incomes, expenses, goals := twoPersonLedger()
	for _, f := range CalculateFinancials(users, incomes, expenses, goals) {
		want := f.TotalIncome - f.ShareOfSharedExpenses - f.IndividualExpenses - f.ShareOfGoals
		if f.DisposableIncome != want {
			t.Errorf("user %s: disposable %v != formula %v", f.UserID, f.DisposableIncome, want)
		}
	}
}

func TestCalculateFinancialsDeterministic(t *testing.T) {
	users, incomes, expenses, goals := twoPersonLedger()
	a := CalculateFinancials(users, incomes, expenses, goals)
	b := CalculateFinancials(users, incomes, expenses, goals)
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("entry %d differs between runs: %+v vs %+v", i, a[i], b[i])
		}
	}
}

func TestCalculateFinancialsThreePersonSplit(t *testing.T) {
	users := []User{{ID: "u1"}, {ID: "u2"}, {ID: "u3"}}
	expenses := []Expense{
		{ID: "e1", Title: "Rent", Amount: 900, PayerID: "u1", IsShared: true, Category: CategoryHousing},
	}

	got := CalculateFinancials(users, nil, expenses, nil)
	for i, f := range got {
		if !almostEqual(f.ShareOfSharedExpenses, 300) {
			t.Errorf("user %d share = %v, want 300 (even three-way split)", i, f.ShareOfSharedExpenses)
		}
	}
}

func TestCalculateHouseholdTotals(t *testing.T) {
	_, incomes, expenses, goals := twoPersonLedger()
	got := CalculateHouseholdTotals(incomes, expenses, goals)

	if !almostEqual(got.TotalIncome, 9200) {
		t.Errorf("TotalIncome = %v, want 9200", got.TotalIncome)
	}
	if !almostEqual(got.TotalSpent, 2695) {
		t.Errorf("TotalSpent = %v, want 2695", got.TotalSpent)
	}
	if !almostEqual(got.TotalContribution, 600) {
		t.Errorf("TotalContribution = %v, want 600", got.TotalContribution)
	}
	if !almostEqual(got.Leftover, 5905) {
		t.Errorf("Leftover = %v, want 5905", got.Leftover)
	}
}
