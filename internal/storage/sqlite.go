package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"bilancio/internal/core"
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) CreateHousehold(ctx context.Context, h *core.Household) error {
	stampID(&h.ID)
	stampTime(&h.CreatedAt)

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO households (id, name, code, created_at) VALUES (?, ?, ?, ?)`,
		h.ID, h.Name, h.Code, formatTime(h.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert household: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetHousehold(ctx context.Context, id string) (*core.Household, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, name, code, created_at FROM households WHERE id = ?`, id)
	return scanHousehold(row)
}

func (r *SQLiteRepository) GetHouseholdByCode(ctx context.Context, code string) (*core.Household, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, name, code, created_at FROM households WHERE code = ?`, code)
	return scanHousehold(row)
}

func scanHousehold(row *sql.Row) (*core.Household, error) {
	var h core.Household
	var createdAt string
	err := row.Scan(&h.ID, &h.Name, &h.Code, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan household: %w", err)
	}
	h.CreatedAt = parseTime(createdAt)
	return &h, nil
}

func (r *SQLiteRepository) ListHouseholds(ctx context.Context) ([]core.Household, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, code, created_at FROM households ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("query households: %w", err)
	}
	defer rows.Close()

	var households []core.Household
	for rows.Next() {
		var h core.Household
		var createdAt string
		if err := rows.Scan(&h.ID, &h.Name, &h.Code, &createdAt); err != nil {
			return nil, fmt.Errorf("scan household: %w", err)
		}
		h.CreatedAt = parseTime(createdAt)
		households = append(households, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate households: %w", err)
	}
	return households, nil
}

func (r *SQLiteRepository) CreateUser(ctx context.Context, u *core.User) error {
	stampID(&u.ID)

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, name, email, household_id) VALUES (?, ?, ?, ?)`,
		u.ID, u.Name, u.Email, u.HouseholdID)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) SetUserHousehold(ctx context.Context, userID, householdID string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET household_id = ? WHERE id = ?`, householdID, userID)
	if err != nil {
		return fmt.Errorf("update user household: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) CreateIncome(ctx context.Context, i *core.Income) error {
	stampID(&i.ID)
	stampTime(&i.CreatedAt)

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO incomes (id, created_at, title, amount, user_id, is_recurring, household_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		i.ID, formatTime(i.CreatedAt), i.Title, i.Amount, i.UserID, boolToInt(i.IsRecurring), i.HouseholdID)
	if err != nil {
		return fmt.Errorf("insert income: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) CreateExpense(ctx context.Context, e *core.Expense) error {
	stampID(&e.ID)
	stampTime(&e.CreatedAt)

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO expenses (id, created_at, title, amount, payer_id, is_shared, category, linked_goal_id, household_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, formatTime(e.CreatedAt), e.Title, e.Amount, e.PayerID, boolToInt(e.IsShared),
		string(e.Category), e.LinkedGoalID, e.HouseholdID)
	if err != nil {
		return fmt.Errorf("insert expense: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) CreateGoal(ctx context.Context, g *core.Goal) error {
	stampID(&g.ID)
	stampTime(&g.CreatedAt)

	var deadline string
	if !g.Deadline.IsZero() {
		deadline = formatTime(g.Deadline)
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO goals (id, created_at, title, target_amount, current_amount, monthly_contribution, deadline, household_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		g.ID, formatTime(g.CreatedAt), g.Title, g.TargetAmount, g.CurrentAmount,
		g.MonthlyContribution, deadline, g.HouseholdID)
	if err != nil {
		return fmt.Errorf("insert goal: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetGoal(ctx context.Context, id string) (*core.Goal, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, created_at, title, target_amount, current_amount, monthly_contribution, deadline, household_id
		 FROM goals WHERE id = ?`, id)

	var g core.Goal
	var createdAt, deadline string
	err := row.Scan(&g.ID, &createdAt, &g.Title, &g.TargetAmount, &g.CurrentAmount,
		&g.MonthlyContribution, &deadline, &g.HouseholdID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan goal: %w", err)
	}
	g.CreatedAt = parseTime(createdAt)
	if deadline != "" {
		g.Deadline = parseTime(deadline)
	}
	return &g, nil
}

func (r *SQLiteRepository) UpdateGoalAmount(ctx context.Context, id string, newAmount float64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE goals SET current_amount = ? WHERE id = ?`, newAmount, id)
	if err != nil {
		return fmt.Errorf("update goal amount: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) ListUsers(ctx context.Context, householdID string) ([]core.User, error) {
	query := `SELECT id, name, email, household_id FROM users`
	args := []any{}
	if householdID != "" {
		query += ` WHERE household_id = ?`
		args = append(args, householdID)
	}
	query += ` ORDER BY rowid`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	var users []core.User
	for rows.Next() {
		var u core.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.HouseholdID); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return users, nil
}

func (r *SQLiteRepository) ListIncomes(ctx context.Context, householdID string) ([]core.Income, error) {
	query := `SELECT id, created_at, title, amount, user_id, is_recurring, household_id FROM incomes`
	args := []any{}
	if householdID != "" {
		query += ` WHERE household_id = ?`
		args = append(args, householdID)
	}
	query += ` ORDER BY rowid`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query incomes: %w", err)
	}
	defer rows.Close()

	var incomes []core.Income
	for rows.Next() {
		var i core.Income
		var createdAt string
		var recurring int
		if err := rows.Scan(&i.ID, &createdAt, &i.Title, &i.Amount, &i.UserID, &recurring, &i.HouseholdID); err != nil {
			return nil, fmt.Errorf("scan income: %w", err)
		}
		i.CreatedAt = parseTime(createdAt)
		i.IsRecurring = recurring != 0
		incomes = append(incomes, i)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate incomes: %w", err)
	}
	return incomes, nil
}

func (r *SQLiteRepository) ListExpenses(ctx context.Context, householdID string) ([]core.Expense, error) {
	query := `SELECT id, created_at, title, amount, payer_id, is_shared, category, linked_goal_id, household_id FROM expenses`
	args := []any{}
	if householdID != "" {
		query += ` WHERE household_id = ?`
		args = append(args, householdID)
	}
	query += ` ORDER BY rowid`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query expenses: %w", err)
	}
	defer rows.Close()

	var expenses []core.Expense
	for rows.Next() {
		var e core.Expense
		var createdAt, category string
		var shared int
		if err := rows.Scan(&e.ID, &createdAt, &e.Title, &e.Amount, &e.PayerID, &shared,
			&category, &e.LinkedGoalID, &e.HouseholdID); err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		e.CreatedAt = parseTime(createdAt)
		e.IsShared = shared != 0
		e.Category = core.Category(category)
		expenses = append(expenses, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expenses: %w", err)
	}
	return expenses, nil
}

func (r *SQLiteRepository) ListGoals(ctx context.Context, householdID string) ([]core.Goal, error) {
	query := `SELECT id, created_at, title, target_amount, current_amount, monthly_contribution, deadline, household_id FROM goals`
	args := []any{}
	if householdID != "" {
		query += ` WHERE household_id = ?`
		args = append(args, householdID)
	}
	query += ` ORDER BY rowid`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query goals: %w", err)
	}
	defer rows.Close()

	var goals []core.Goal
	for rows.Next() {
		var g core.Goal
		var createdAt, deadline string
		if err := rows.Scan(&g.ID, &createdAt, &g.Title, &g.TargetAmount, &g.CurrentAmount,
			&g.MonthlyContribution, &deadline, &g.HouseholdID); err != nil {
			return nil, fmt.Errorf("scan goal: %w", err)
		}
		g.CreatedAt = parseTime(createdAt)
		if deadline != "" {
			g.Deadline = parseTime(deadline)
		}
		goals = append(goals, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate goals: %w", err)
	}
	return goals, nil
}

func stampID(id *string) {
	if *id == "" {
		*id = uuid.New().String()
	}
}

func stampTime(t *time.Time) {
	if t.IsZero() {
		*t = time.Now().UTC()
	}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
