package forecast

import (
	"sort"
	"time"

	"fet/internal/core"
)

// DailySeries is a dense day-indexed series over the observed date range.
// Days with no transactions are explicit zeros; the regressors must see a
// uniform time axis, not just the days that happen to have data.
type DailySeries struct {
	Start   time.Time
	Amounts []float64 // currency units per day
}

// Days returns the series length.
func (s DailySeries) Days() int { return len(s.Amounts) }

// BuildDailySeries sums amounts per calendar day and reindexes the result
// over the full min..max range, filling gaps with zero. Returns ok=false
// for an empty expense set.
func BuildDailySeries(expenses []core.Expense) (DailySeries, bool) {
	if len(expenses) == 0 {
		return DailySeries{}, false
	}

	byDay := make(map[time.Time]float64)
	var min, max time.Time
	for _, e := range expenses {
		day := core.DateOf(e.Date.Time).Time
		byDay[day] += e.Amount.Float()
		if min.IsZero() || day.Before(min) {
			min = day
		}
		if max.IsZero() || day.After(max) {
			max = day
		}
	}

	n := int(max.Sub(min).Hours()/24) + 1
	amounts := make([]float64, n)
	for day, amt := range byDay {
		idx := int(day.Sub(min).Hours() / 24)
		amounts[idx] = amt
	}

	return DailySeries{Start: min, Amounts: amounts}, true
}

// MonthTotal is the total spend of one calendar month.
type MonthTotal struct {
	Year   int
	Month  time.Month
	Amount float64
}

// Label formats the month as YYYY-MM.
func (m MonthTotal) Label() string {
	return time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, time.UTC).Format("2006-01")
}

// MonthlyTotals groups expenses into per-month totals, sorted by month.
// Only months that actually contain transactions appear.
func MonthlyTotals(expenses []core.Expense) []MonthTotal {
	type key struct {
		year  int
		month time.Month
	}
	byMonth := make(map[key]float64)
	for _, e := range expenses {
		k := key{year: e.Date.Year(), month: e.Date.Time.Month()}
		byMonth[k] += e.Amount.Float()
	}

	out := make([]MonthTotal, 0, len(byMonth))
	for k, amt := range byMonth {
		out = append(out, MonthTotal{Year: k.year, Month: k.month, Amount: amt})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Year != out[j].Year {
			return out[i].Year < out[j].Year
		}
		return out[i].Month < out[j].Month
	})
	return out
}
