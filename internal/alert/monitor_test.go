package alert

import (
	"testing"

	"fet/internal/core"
)

func money(cents int64) core.Money { return core.Money{Cents: cents} }

func TestEvaluateCategoriesBoundaries(t *testing.T) {
	cases := []struct {
		name     string
		spent    int64
		limit    int64
		want     Severity
		noAlert  bool
	}{
		{"below warning", 7999, 10000, "", true},
		{"exactly 80 percent", 8000, 10000, SeverityWarning, false},
		{"between thresholds", 9500, 10000, SeverityWarning, false},
		{"exactly 100 percent", 10000, 10000, SeverityExceeded, false},
		{"past limit", 10001, 10000, SeverityExceeded, false},
		{"zero limit never alerts", 999999, 0, "", true},
		{"negative limit never alerts", 999999, -100, "", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			alerts := EvaluateCategories(
				map[string]core.Money{"Food": money(tc.spent)},
				map[string]core.Money{"Food": money(tc.limit)},
			)
			if tc.noAlert {
				if len(alerts) != 0 {
					t.Fatalf("expected no alert, got %+v", alerts)
				}
				return
			}
			if len(alerts) != 1 {
				t.Fatalf("expected 1 alert, got %d", len(alerts))
			}
			if alerts[0].Severity != tc.want {
				t.Fatalf("expected %s, got %s (%.1f%%)", tc.want, alerts[0].Severity, alerts[0].Percent)
			}
		})
	}
}

func TestEvaluateCategoriesExampleScenario(t *testing.T) {
	// Food limit 10,000 with 9,500 spent: warning at 95%.
	alerts := EvaluateCategories(
		map[string]core.Money{"Food": money(950000)},
		map[string]core.Money{"Food": money(1000000)},
	)
	if len(alerts) != 1 || alerts[0].Severity != SeverityWarning {
		t.Fatalf("expected warning, got %+v", alerts)
	}
	if alerts[0].Percent != 95 {
		t.Fatalf("expected 95%%, got %v", alerts[0].Percent)
	}
}

func TestEvaluateCategoriesSortedByName(t *testing.T) {
	alerts := EvaluateCategories(
		map[string]core.Money{"Transport": money(900), "Food": money(900)},
		map[string]core.Money{"Transport": money(1000), "Food": money(1000)},
	)
	if len(alerts) != 2 || alerts[0].Category != "Food" || alerts[1].Category != "Transport" {
		t.Fatalf("expected stable name order, got %+v", alerts)
	}
}

func TestEvaluateBudget(t *testing.T) {
	latest := core.Expense{Amount: money(5000), Category: "Food"}

	if a := EvaluateBudget(money(12000), money(10000), true, latest); a == nil {
		t.Fatal("overspend must raise a budget alert")
	} else if a.Latest.Category != "Food" {
		t.Fatalf("alert must carry the triggering expense, got %+v", a.Latest)
	}

	// Spend equal to budget is not an overspend.
	if a := EvaluateBudget(money(10000), money(10000), true, latest); a != nil {
		t.Fatalf("spend == budget must not alert, got %+v", a)
	}

	// Without a budget row there is nothing to exceed.
	if a := EvaluateBudget(money(12000), money(0), false, latest); a != nil {
		t.Fatalf("missing budget must not alert, got %+v", a)
	}
}

func TestEvaluationNoneAndExceeded(t *testing.T) {
	var empty Evaluation
	if !empty.None() || empty.Exceeded() {
		t.Fatal("empty evaluation should be None and not Exceeded")
	}

	warn := Evaluation{Categories: []CategoryAlert{{Severity: SeverityWarning}}}
	if warn.None() || warn.Exceeded() {
		t.Fatal("warning-only evaluation should be neither None nor Exceeded")
	}

	over := Evaluation{Budget: &BudgetAlert{}}
	if !over.Exceeded() {
		t.Fatal("budget alert means Exceeded")
	}
}
