// Package report aggregates the expense set into period summaries and
// category breakdowns. Everything here is a pure function of the input
// slice; callers load expenses from storage and pass them in.
package report

import (
	"sort"

	"fet/internal/core"
)

// CategoryAmount is one row of a category breakdown.
type CategoryAmount struct {
	Name   string
	Amount core.Money
}

// MonthlySummary returns the total spent in the given calendar month and
// the amount saved against the budget. Saved never goes negative: an
// overspent month reports saved=0, and the overspend is only visible
// through spent > budget.
func MonthlySummary(expenses []core.Expense, year, month int, budget core.Money) (spent, saved core.Money) {
	spent = MonthTotal(expenses, year, month)
	saved = clampSaved(budget.Cents - spent.Cents)
	return spent, saved
}

// YearlySummary is the yearly counterpart, against twelve monthly budgets.
func YearlySummary(expenses []core.Expense, year int, budget core.Money) (spent, saved core.Money) {
	var cents int64
	for _, e := range expenses {
		if e.Date.Year() == year {
			cents += e.Amount.Cents
		}
	}
	spent = core.Money{Cents: cents}
	saved = clampSaved(budget.Cents*12 - cents)
	return spent, saved
}

// MonthTotal sums amounts dated in the given year and month.
func MonthTotal(expenses []core.Expense, year, month int) core.Money {
	var cents int64
	for _, e := range expenses {
		if e.Date.Year() == year && e.Date.Month() == month {
			cents += e.Amount.Cents
		}
	}
	return core.Money{Cents: cents}
}

// CategoryTotals sums amounts per category for the given month. Expenses
// without a category count under core.CategoryOther.
func CategoryTotals(expenses []core.Expense, year, month int) map[string]core.Money {
	totals := make(map[string]core.Money)
	for _, e := range expenses {
		if e.Date.Year() != year || e.Date.Month() != month {
			continue
		}
		cat := e.Category
		if cat == "" {
			cat = core.CategoryOther
		}
		totals[cat] = core.Money{Cents: totals[cat].Cents + e.Amount.Cents}
	}
	return totals
}

// CategoryBreakdown returns the month's category totals sorted descending
// by amount (name ascending on ties, for stable presentation). An empty
// month yields an empty slice.
func CategoryBreakdown(expenses []core.Expense, year, month int) []CategoryAmount {
	totals := CategoryTotals(expenses, year, month)
	out := make([]CategoryAmount, 0, len(totals))
	for name, amount := range totals {
		out = append(out, CategoryAmount{Name: name, Amount: amount})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Amount.Cents != out[j].Amount.Cents {
			return out[i].Amount.Cents > out[j].Amount.Cents
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func clampSaved(cents int64) core.Money {
	if cents < 0 {
		return core.Money{}
	}
	return core.Money{Cents: cents}
}
