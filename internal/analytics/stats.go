// Package analytics derives subscription, anomaly and what-if insights from
// reconciled rows.
package analytics

import (
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/spendwise/internal/model"
)

// Median returns the middle value of xs, or 0 for an empty slice.
func Median(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	s := append([]float64(nil), xs...)
	sort.Float64s(s)
	mid := len(s) / 2
	if len(s)%2 == 1 {
		return s[mid]
	}
	return (s[mid-1] + s[mid]) / 2
}

// Mean returns the arithmetic mean of xs, or 0 for an empty slice.
func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// StdDev returns the population standard deviation of xs.
func StdDev(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	m := Mean(xs)
	var ss float64
	for _, x := range xs {
		ss += (x - m) * (x - m)
	}
	return math.Sqrt(ss / float64(len(xs)))
}

// CoefficientOfVariation returns stddev/mean. It is +Inf when the mean is 0.
func CoefficientOfVariation(xs []float64) float64 {
	m := Mean(xs)
	if m == 0 {
		return math.Inf(1)
	}
	return StdDev(xs) / math.Abs(m)
}

// Round2 rounds a decimal to cents and returns it as a float.
func Round2(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}

// latestDate returns the most recent parseable date among rows.
func latestDate(rows []model.ClassifiedRow) (time.Time, bool) {
	var latest time.Time
	found := false
	for _, r := range rows {
		if t, ok := r.Time(); ok && (!found || t.After(latest)) {
			latest, found = t, true
		}
	}
	return latest, found
}

// daysBetween counts whole calendar days from a back to b.
func daysBetween(a, b time.Time) int {
	return int(b.Sub(a).Hours() / 24)
}
