package analytics

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/spendwise/internal/model"
)

// AnomalyPolicy tunes anomaly detection.
type AnomalyPolicy struct {
	WindowDays int     // recent window, counted back from the latest date
	Weeks      int     // trailing one-week buckets forming the baseline
	Multiplier float64 // flag when recent > Multiplier × median
}

// DefaultAnomalyPolicy returns a 7-day window against a 4-week baseline at 2×.
func DefaultAnomalyPolicy() AnomalyPolicy {
	return AnomalyPolicy{WindowDays: 7, Weeks: 4, Multiplier: 2}
}

// DetectAnomalies flags categories whose recent debit total exceeds the
// baseline. Bucket k (1..Weeks) covers days [7k, 7k+6] before the latest
// date; the median is taken over buckets where the category spent anything.
func DetectAnomalies(rows []model.ClassifiedRow, p AnomalyPolicy) []model.AnomalyFlag {
	out := []model.AnomalyFlag{}
	latest, ok := latestDate(rows)
	if !ok {
		return out
	}

	recent := map[model.Category]decimal.Decimal{}
	buckets := map[model.Category][]decimal.Decimal{}
	for _, r := range rows {
		if !r.IsDebit() {
			continue
		}
		t, ok := r.Time()
		if !ok {
			continue
		}
		days := daysBetween(t, latest)
		amt := r.Amount.Abs()
		cat := r.Category.Clamp()

		if days < p.WindowDays {
			recent[cat] = recent[cat].Add(amt)
		}
		if k := days / 7; k >= 1 && k <= p.Weeks {
			if buckets[cat] == nil {
				buckets[cat] = make([]decimal.Decimal, p.Weeks)
			}
			buckets[cat][k-1] = buckets[cat][k-1].Add(amt)
		}
	}

	for cat, weekly := range buckets {
		var sums []float64
		for _, w := range weekly {
			if w.IsPositive() {
				sums = append(sums, w.InexactFloat64())
			}
		}
		median := Round2(decimal.NewFromFloat(Median(sums)))
		total := Round2(recent[cat])
		if median > 0 && total > p.Multiplier*median {
			out = append(out, model.AnomalyFlag{
				Category:          cat,
				RecentWindowTotal: total,
				TrailingMedian:    median,
			})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Category.Order() < out[j].Category.Order() })
	return out
}
