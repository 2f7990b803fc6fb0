// Package insights merges category totals and analytics output into a report.
package insights

import (
	"github.com/shopspring/decimal"

	"github.com/cleared-dev/spendwise/internal/model"
)

// Totals sums the signed amounts of rows per category, rounded to cents.
func Totals(rows []model.ClassifiedRow) map[model.Category]float64 {
	sums := map[model.Category]decimal.Decimal{}
	for _, r := range rows {
		cat := r.Category.Clamp()
		sums[cat] = sums[cat].Add(r.Amount)
	}
	out := make(map[model.Category]float64, len(sums))
	for cat, sum := range sums {
		out[cat] = sum.Round(2).InexactFloat64()
	}
	return out
}

// Aggregate builds the InsightsReport. Nil analytics outputs become empty
// lists; every monetary figure is rounded to cents.
func Aggregate(rows []model.ClassifiedRow, subs []model.SubscriptionCandidate, anomalies []model.AnomalyFlag, whatIf *model.WhatIfProjection) model.InsightsReport {
	report := model.InsightsReport{
		TotalsByCategory: Totals(rows),
		Subscriptions:    make([]model.SubscriptionCandidate, 0, len(subs)),
		Anomalies:        make([]model.AnomalyFlag, 0, len(anomalies)),
	}
	for _, s := range subs {
		s.AverageAmount = round2(s.AverageAmount)
		report.Subscriptions = append(report.Subscriptions, s)
	}
	for _, a := range anomalies {
		a.RecentWindowTotal = round2(a.RecentWindowTotal)
		a.TrailingMedian = round2(a.TrailingMedian)
		report.Anomalies = append(report.Anomalies, a)
	}
	if whatIf != nil {
		w := *whatIf
		w.ProjectedDelta = round2(w.ProjectedDelta)
		w.ProjectedFreeToSpend = round2(w.ProjectedFreeToSpend)
		report.WhatIf = &w
	}
	return report
}

func round2(f float64) float64 {
	return decimal.NewFromFloat(f).Round(2).InexactFloat64()
}
