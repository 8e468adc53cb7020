// Package alert evaluates spend-vs-limit conditions and delivers alerts
// through an ordered list of independent channels.
package alert

import (
	"sort"

	"fet/internal/core"
)

type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityExceeded Severity = "exceeded"
)

const (
	warningPercent  = 80.0
	exceededPercent = 100.0
)

// CategoryAlert reports one category limit at or past a threshold.
type CategoryAlert struct {
	Category string
	Spent    core.Money
	Limit    core.Money
	Percent  float64
	Severity Severity
}

// BudgetAlert reports total monthly spend past the main budget, carrying
// the expense that triggered the evaluation.
type BudgetAlert struct {
	Budget core.Money
	Spent  core.Money
	Latest core.Expense
}

// Evaluation is the outcome of one threshold pass.
type Evaluation struct {
	Categories []CategoryAlert
	Budget     *BudgetAlert
}

// None reports whether the evaluation raised no alert at all.
func (e Evaluation) None() bool {
	return len(e.Categories) == 0 && e.Budget == nil
}

// Exceeded reports whether any category limit or the main budget was
// actually crossed, as opposed to only warnings.
func (e Evaluation) Exceeded() bool {
	if e.Budget != nil {
		return true
	}
	for _, c := range e.Categories {
		if c.Severity == SeverityExceeded {
			return true
		}
	}
	return false
}

// EvaluateCategories classifies each positive category limit against the
// month's spend in that category. Exactly 100% is exceeded, exactly 80%
// is a warning. A limit of zero or less means "no limit set" and is
// always skipped, never treated as exceeded.
func EvaluateCategories(spent map[string]core.Money, limits map[string]core.Money) []CategoryAlert {
	var alerts []CategoryAlert
	for category, limit := range limits {
		if limit.Cents <= 0 {
			continue
		}
		s := spent[category]
		percent := float64(s.Cents) / float64(limit.Cents) * 100
		var severity Severity
		switch {
		case percent >= exceededPercent:
			severity = SeverityExceeded
		case percent >= warningPercent:
			severity = SeverityWarning
		default:
			continue
		}
		alerts = append(alerts, CategoryAlert{
			Category: category,
			Spent:    s,
			Limit:    limit,
			Percent:  percent,
			Severity: severity,
		})
	}
	sort.Slice(alerts, func(i, j int) bool { return alerts[i].Category < alerts[j].Category })
	return alerts
}

// EvaluateBudget compares total monthly spend against the main budget.
// hasBudget distinguishes "no budget row yet" from a synchronized zero;
// without a row there is nothing to exceed.
func EvaluateBudget(spent, budget core.Money, hasBudget bool, latest core.Expense) *BudgetAlert {
	if !hasBudget || spent.Cents <= budget.Cents {
		return nil
	}
	return &BudgetAlert{Budget: budget, Spent: spent, Latest: latest}
}

// Evaluate runs both checks in one pass.
func Evaluate(spentByCategory map[string]core.Money, limits map[string]core.Money, spent, budget core.Money, hasBudget bool, latest core.Expense) Evaluation {
	return Evaluation{
		Categories: EvaluateCategories(spentByCategory, limits),
		Budget:     EvaluateBudget(spent, budget, hasBudget, latest),
	}
}
