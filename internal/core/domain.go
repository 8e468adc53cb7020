package core

import (
	"errors"
	"strings"
	"time"
)

// CategoryOther is the fallback category for expenses created without one.
const CategoryOther = "Other"

// DefaultCategories is the well-known category vocabulary. Free-text
// categories are accepted everywhere; this list only seeds pickers and the
// receipt guesser.
var DefaultCategories = []string{
	"Rent", "Groceries", "Food", "Transport", "Utilities",
	"Entertainment", "Healthcare", "Education", "Shopping", CategoryOther,
}

type (
	Money struct {
		Cents int64
	}

	Date struct {
		time.Time
	}

	// FamilyMember is one row of a user's family set. Income and age are
	// never negative; unparseable input collapses to zero before it can
	// reach aggregation.
	FamilyMember struct {
		ID            int64
		Username      string
		Name          string
		Relation      string
		MonthlyIncome Money
		Age           int
		Notes         string
		IsHead        bool
		FamilyName    string
	}

	// Expense is immutable once created. Split shares are informational
	// only and are never re-validated against Amount.
	Expense struct {
		ID             int64
		Username       string
		Date           Date
		Amount         Money
		Category       string
		AssignedMember string
		Split          map[string]Money
		Note           string
	}

	// Budget is the single authoritative budget row per user. Main is the
	// monthly ceiling; Limits maps category names to optional sub-ceilings
	// (zero or missing means no limit).
	Budget struct {
		Username string
		Main     Money
		Limits   map[string]Money
	}

	Goal struct {
		ID        int64
		Username  string
		Name      string
		Target    Money
		Months    int
		CreatedOn Date
	}
)

var (
	ErrEmptyUser     = errors.New("empty username")
	ErrInvalidDate   = errors.New("invalid date")
	ErrInvalidAmount = errors.New("invalid amount")
	ErrEmptyName     = errors.New("empty name")
	ErrInvalidMonths = errors.New("invalid months")
)

const dateLayout = "2006-01-02"

// NewDate creates a Date at midnight UTC.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses an ISO YYYY-MM-DD date string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

// DateOf truncates a time to its calendar day in UTC.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// Day returns the day of the month.
func (d Date) Day() int { return d.Time.Day() }

// Month returns the month as 1-12.
func (d Date) Month() int { return int(d.Time.Month()) }

// Year returns the year.
func (d Date) Year() int { return d.Time.Year() }

// String formats the date as YYYY-MM-DD.
func (d Date) String() string { return d.Format(dateLayout) }

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// Normalize fills defaults the caller may omit: a missing category becomes
// CategoryOther and surrounding whitespace is stripped.
func (e *Expense) Normalize() {
	e.Category = strings.TrimSpace(e.Category)
	if e.Category == "" {
		e.Category = CategoryOther
	}
	e.AssignedMember = strings.TrimSpace(e.AssignedMember)
	e.Note = strings.TrimSpace(e.Note)
}

func (e Expense) Validate() error {
	if strings.TrimSpace(e.Username) == "" {
		return ErrEmptyUser
	}
	if err := e.Date.Validate(); err != nil {
		return err
	}
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	return nil
}

// Sanitize clamps income and age to zero so bad input never propagates
// into budget synchronization.
func (fm *FamilyMember) Sanitize() {
	fm.Name = strings.TrimSpace(fm.Name)
	fm.Relation = strings.TrimSpace(fm.Relation)
	if fm.MonthlyIncome.Cents < 0 {
		fm.MonthlyIncome = Money{}
	}
	if fm.Age < 0 {
		fm.Age = 0
	}
}

func (fm FamilyMember) Validate() error {
	if strings.TrimSpace(fm.Username) == "" {
		return ErrEmptyUser
	}
	if strings.TrimSpace(fm.Name) == "" {
		return ErrEmptyName
	}
	return nil
}

func (g Goal) Validate() error {
	if strings.TrimSpace(g.Username) == "" {
		return ErrEmptyUser
	}
	if strings.TrimSpace(g.Name) == "" {
		return ErrEmptyName
	}
	if err := g.Target.Validate(); err != nil {
		return err
	}
	if g.Months < 1 {
		return ErrInvalidMonths
	}
	return nil
}

// MonthlyTarget is the saving required per month to reach the goal on time.
func (g Goal) MonthlyTarget() Money {
	if g.Months < 1 {
		return g.Target
	}
	return Money{Cents: g.Target.Cents / int64(g.Months)}
}
