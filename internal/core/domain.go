package core

import (
	"errors"
	"strings"
	"time"
)

const (
	CategoryHousing       Category = "housing"
	CategoryFood          Category = "food"
	CategoryTransport     Category = "transport"
	CategoryEntertainment Category = "entertainment"
	CategoryUtilities     Category = "utilities"
	CategorySavings       Category = "savings"
	CategoryOther         Category = "other"
)

type (
	// Category classifies an expense. CategorySavings marks a transfer into
	// a goal's balance rather than consumption.
	Category string

	Household struct {
		ID        string
		Name      string
		Code      string // short join token
		CreatedAt time.Time
	}

	User struct {
		ID          string
		Name        string
		Email       string
		HouseholdID string
	}

	Income struct {
		ID          string
		CreatedAt   time.Time
		Title       string
		Amount      float64
		UserID      string
		IsRecurring bool
		HouseholdID string
	}

	Expense struct {
		ID           string
		CreatedAt    time.Time
		Title        string
		Amount       float64
		PayerID      string
		IsShared     bool
		Category     Category
		LinkedGoalID string // required when Category == CategorySavings
		HouseholdID  string
	}

	Goal struct {
		ID                  string
		CreatedAt           time.Time
		Title               string
		TargetAmount        float64
		CurrentAmount       float64 // monotonically increasing; no withdrawal op
		MonthlyContribution float64 // pledged, not auto-applied
		Deadline            time.Time
		HouseholdID         string
	}
)

var (
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrEmptyTitle      = errors.New("empty title")
	ErrEmptyName       = errors.New("empty name")
	ErrMissingUser     = errors.New("missing user reference")
	ErrMissingPayer    = errors.New("missing payer reference")
	ErrInvalidCategory = errors.New("invalid category")
	ErrMissingGoalLink = errors.New("savings expense requires a linked goal")
)

// IsValid reports whether the category is one of the known values.
func (c Category) IsValid() bool {
	switch c {
	case CategoryHousing, CategoryFood, CategoryTransport, CategoryEntertainment,
		CategoryUtilities, CategorySavings, CategoryOther:
		return true
	default:
		return false
	}
}

// Categories returns all known expense categories in display order.
func Categories() []Category {
	return []Category{
		CategoryHousing, CategoryFood, CategoryTransport,
		CategoryEntertainment, CategoryUtilities, CategorySavings, CategoryOther,
	}
}

func (u User) Validate() error {
	if strings.TrimSpace(u.Name) == "" {
		return ErrEmptyName
	}
	if len(u.Name) > 100 {
		return errors.New("name too long (max 100 characters)")
	}
	return nil
}

func (i Income) Validate() error {
	if strings.TrimSpace(i.Title) == "" {
		return ErrEmptyTitle
	}
	if len(i.Title) > 200 {
		return errors.New("title too long (max 200 characters)")
	}
	if i.Amount <= 0 {
		return ErrInvalidAmount
	}
	if strings.TrimSpace(i.UserID) == "" {
		return ErrMissingUser
	}
	return nil
}

func (e Expense) Validate() error {
	if strings.TrimSpace(e.Title) == "" {
		return ErrEmptyTitle
	}
	if len(e.Title) > 200 {
		return errors.New("title too long (max 200 characters)")
	}
	if e.Amount <= 0 {
		return ErrInvalidAmount
	}
	if strings.TrimSpace(e.PayerID) == "" {
		return ErrMissingPayer
	}
	if !e.Category.IsValid() {
		return ErrInvalidCategory
	}
	// A savings expense moves money into a goal; the link is mandatory so the
	// funding side effect always has a target.
	if e.Category == CategorySavings && strings.TrimSpace(e.LinkedGoalID) == "" {
		return ErrMissingGoalLink
	}
	return nil
}

func (g Goal) Validate() error {
	if strings.TrimSpace(g.Title) == "" {
		return ErrEmptyTitle
	}
	if len(g.Title) > 200 {
		return errors.New("title too long (max 200 characters)")
	}
	if g.TargetAmount <= 0 {
		return ErrInvalidAmount
	}
	if g.CurrentAmount < 0 {
		return ErrInvalidAmount
	}
	if g.MonthlyContribution < 0 {
		return ErrInvalidAmount
	}
	return nil
}

// Progress returns the funded fraction of the goal as a percentage.
// A goal may exceed its target; the result is intentionally not clamped.
func (g Goal) Progress() float64 {
	if g.TargetAmount == 0 {
		return 0
	}
	return g.CurrentAmount / g.TargetAmount * 100
}
