// Package forecast derives forward-looking spending estimates from the
// expense history. The four estimators are independent and fail soft: any
// of them may report "no estimate" without affecting the others, and no
// estimator ever fabricates a number from insufficient data.
package forecast

import (
	"errors"
	"sort"
	"time"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"fet/internal/core"
)

// ErrInsufficientData marks an estimator that cannot produce a number.
// Callers surface this as an explicit absence, never as zero.
var ErrInsufficientData = errors.New("insufficient data")

const (
	// Below this many distinct days the ensemble would overfit; fall back
	// to plain least squares.
	minDaysForForest = 10

	DefaultDays    = 30
	DefaultPeriods = 6
	DefaultTopN    = 5

	// Denominator guard for percentage shares on an empty total.
	epsilon = 1e-9
)

// DailyProjection is the output of the daily-total estimator: one value
// per future day plus their sum. All values are clipped to >= 0.
type DailyProjection struct {
	Total float64
	Daily []float64
}

// ProjectDaily builds the dense daily series, fits a regressor on day
// index and predicts each of the next `days` days individually.
func ProjectDaily(expenses []core.Expense, days int) (*DailyProjection, error) {
	series, ok := BuildDailySeries(expenses)
	if !ok {
		return nil, ErrInsufficientData
	}
	if days < 1 {
		days = DefaultDays
	}

	n := series.Days()
	xs := make([]float64, n)
	for i := range xs {
		xs[i] = float64(i)
	}

	var model regressor
	if n < minDaysForForest {
		model = &linearModel{}
	} else {
		model = &forestModel{}
	}
	model.fit(xs, series.Amounts)

	proj := &DailyProjection{Daily: make([]float64, days)}
	for i := 0; i < days; i++ {
		p := model.predict(float64(n + i))
		if p < 0 {
			p = 0
		}
		proj.Daily[i] = p
		proj.Total += p
	}
	return proj, nil
}

// ProjectTrend fits a first-degree polynomial over the last `periods`
// month totals and projects one period ahead, clipped to >= 0. Fewer than
// two historical periods yield ErrInsufficientData: a single data point
// has no trend.
func ProjectTrend(totals []float64, periods int) (float64, error) {
	if periods < 2 {
		periods = DefaultPeriods
	}
	if len(totals) > periods {
		totals = totals[len(totals)-periods:]
	}
	if len(totals) < 2 {
		return 0, ErrInsufficientData
	}

	xs := make([]float64, len(totals))
	for i := range xs {
		xs[i] = float64(i)
	}
	alpha, beta := stat.LinearRegression(xs, totals, nil, false)
	pred := alpha + beta*float64(len(totals))
	if pred < 0 {
		pred = 0
	}
	return pred, nil
}

// MonthlyRecord is one month of income vs expense history for the savings
// estimator. Income is typically the synchronized main budget.
type MonthlyRecord struct {
	Month   string // YYYY-MM
	Income  float64
	Expense float64
}

// EstimateSavings fits (income, expense) -> income - expense over the
// monthly history and projects the savings for a future month given the
// latest known income and a projected expense total. A tiny ridge term
// keeps the fit stable when income is constant across history.
func EstimateSavings(history []MonthlyRecord, income, projectedExpense float64) (float64, error) {
	if len(history) == 0 {
		return 0, ErrInsufficientData
	}

	x := mat.NewDense(len(history), 3, nil)
	y := mat.NewVecDense(len(history), nil)
	for i, rec := range history {
		x.Set(i, 0, 1)
		x.Set(i, 1, rec.Income)
		x.Set(i, 2, rec.Expense)
		y.SetVec(i, rec.Income-rec.Expense)
	}

	// Normal equations with a scale-aware ridge term: keeps the solve
	// well-conditioned when income is identical across the history.
	var gram mat.Dense
	gram.Mul(x.T(), x)
	ridge := (gram.At(0, 0)+gram.At(1, 1)+gram.At(2, 2))/3*1e-9 + 1e-12
	for i := 0; i < 3; i++ {
		gram.Set(i, i, gram.At(i, i)+ridge)
	}
	var rhs mat.VecDense
	rhs.MulVec(x.T(), y)

	var w mat.VecDense
	if err := w.SolveVec(&gram, &rhs); err != nil {
		// A constant income column makes the system ill-conditioned but
		// still solvable; only a hard failure means no estimate.
		var cond mat.Condition
		if !errors.As(err, &cond) {
			return 0, ErrInsufficientData
		}
	}

	return w.AtVec(0) + w.AtVec(1)*income + w.AtVec(2)*projectedExpense, nil
}

// CategoryShare is one category's cut of the total spend.
type CategoryShare struct {
	Category string
	Amount   float64
	Percent  float64
}

// RankCategories sums amounts per category over the full history and
// returns the top N shares sorted descending.
func RankCategories(expenses []core.Expense, topN int) []CategoryShare {
	if topN < 1 {
		topN = DefaultTopN
	}
	byCategory := make(map[string]float64)
	var total float64
	for _, e := range expenses {
		cat := e.Category
		if cat == "" {
			cat = core.CategoryOther
		}
		amt := e.Amount.Float()
		byCategory[cat] += amt
		total += amt
	}

	out := make([]CategoryShare, 0, len(byCategory))
	for cat, amt := range byCategory {
		out = append(out, CategoryShare{
			Category: cat,
			Amount:   amt,
			Percent:  amt / (total + epsilon) * 100,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Amount != out[j].Amount {
			return out[i].Amount > out[j].Amount
		}
		return out[i].Category < out[j].Category
	})
	if len(out) > topN {
		out = out[:topN]
	}
	return out
}

// Options tunes the pipeline; zero values select the defaults.
type Options struct {
	Days    int
	Periods int
	TopN    int
}

// Result aggregates whatever the estimators managed to produce. Nil
// pointers mean "no estimate available", never zero.
type Result struct {
	NextDaysTotal    *core.Money
	DailyForecast    []float64
	NextMonthTotal   *core.Money
	NextMonthSavings *core.Money
	TopCategories    []CategoryShare
	MonthLabels      []string
	MonthTotals      []float64
}

// Pipeline runs all four estimators over the user's history. The trend
// estimator only sees completed months: the month containing `now` is
// still accumulating and would bias the fit downward.
func Pipeline(expenses []core.Expense, monthly []MonthlyRecord, now time.Time, opts Options) Result {
	var res Result

	if proj, err := ProjectDaily(expenses, opts.Days); err == nil {
		total := core.MoneyFromFloat(proj.Total)
		res.NextDaysTotal = &total
		res.DailyForecast = proj.Daily

		var income float64
		if len(monthly) > 0 {
			income = monthly[len(monthly)-1].Income
		}
		if savings, err := EstimateSavings(monthly, income, proj.Total); err == nil {
			s := core.MoneyFromFloat(savings)
			res.NextMonthSavings = &s
		}
	}

	months := MonthlyTotals(expenses)
	currentLabel := now.UTC().Format("2006-01")
	totals := make([]float64, 0, len(months))
	for _, m := range months {
		if m.Label() == currentLabel {
			continue
		}
		res.MonthLabels = append(res.MonthLabels, m.Label())
		totals = append(totals, m.Amount)
	}
	res.MonthTotals = totals
	if pred, err := ProjectTrend(totals, opts.Periods); err == nil {
		p := core.MoneyFromFloat(pred)
		res.NextMonthTotal = &p
	}

	res.TopCategories = RankCategories(expenses, opts.TopN)
	return res
}
