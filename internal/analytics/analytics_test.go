package analytics

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/spendwise/internal/model"
)

func crow(date, merchant, amount string, cat model.Category) model.ClassifiedRow {
	return model.ClassifiedRow{
		TransactionRow: model.TransactionRow{
			Date:            date,
			Merchant:        merchant,
			Amount:          decimal.RequireFromString(amount),
			ParseConfidence: 0.95,
		},
		Category:   cat,
		Source:     model.SourceReconciled,
		Confidence: 0.9,
	}
}

func TestStats(t *testing.T) {
	assert.Equal(t, 0.0, Median(nil))
	assert.Equal(t, 11.0, Median([]float64{10, 12, 11}))
	assert.Equal(t, 11.5, Median([]float64{12, 10, 11, 13}))
	assert.Equal(t, 2.0, Mean([]float64{1, 2, 3}))
	assert.InDelta(t, 0.8165, StdDev([]float64{1, 2, 3}), 1e-4)
	assert.Equal(t, 0.0, CoefficientOfVariation([]float64{9.99, 9.99, 9.99}))
	assert.True(t, math.IsInf(CoefficientOfVariation(nil), 1))
	assert.Equal(t, 9.99, Round2(decimal.RequireFromString("9.994")))
}

func newDetector(t *testing.T, p SubscriptionPolicy) *SubscriptionDetector {
	t.Helper()
	d, err := NewSubscriptionDetector(p)
	require.NoError(t, err)
	return d
}

func TestSubscriptions_GroceriesNotFlagged(t *testing.T) {
	rows := []model.ClassifiedRow{
		crow("2025-01-03", "Tesco", "-32.40", model.CategoryGroceries),
		crow("2025-01-31", "Tesco", "-30.10", model.CategoryGroceries),
		crow("2025-02-28", "Tesco", "-31.00", model.CategoryGroceries),
	}
	got := newDetector(t, DefaultSubscriptionPolicy()).Detect(rows)
	assert.Empty(t, got)
}

func TestSubscriptions_MonthlySpotify(t *testing.T) {
	rows := []model.ClassifiedRow{
		crow("2025-01-01", "Spotify", "-9.99", model.CategoryOther),
		crow("2025-01-31", "Spotify", "-9.99", model.CategoryOther),
		crow("2025-03-02", "Spotify", "-9.99", model.CategoryOther),
	}
	got := newDetector(t, DefaultSubscriptionPolicy()).Detect(rows)
	require.Len(t, got, 1)
	assert.Equal(t, model.SubscriptionCandidate{Merchant: "Spotify", AverageAmount: 9.99, CadenceDays: 30}, got[0])
}

func TestSubscriptions_CategoryGate(t *testing.T) {
	rows := []model.ClassifiedRow{
		crow("2025-01-05", "Thames Water", "-41.00", model.CategoryBills),
		crow("2025-02-05", "Thames Water", "-41.00", model.CategoryBills),
		crow("2025-03-05", "Thames Water", "-42.00", model.CategoryBills),
	}
	got := newDetector(t, DefaultSubscriptionPolicy()).Detect(rows)
	require.Len(t, got, 1)
	assert.Equal(t, "Thames Water", got[0].Merchant)
	assert.Equal(t, 41.33, got[0].AverageAmount)
}

func TestSubscriptions_Exclusions(t *testing.T) {
	tests := []struct {
		name string
		rows []model.ClassifiedRow
	}{
		{
			name: "too few occurrences",
			rows: []model.ClassifiedRow{
				crow("2025-01-01", "Netflix", "-10.99", model.CategorySubscriptions),
				crow("2025-01-31", "Netflix", "-10.99", model.CategorySubscriptions),
			},
		},
		{
			name: "weekly cadence",
			rows: []model.ClassifiedRow{
				crow("2025-01-01", "Netflix", "-10.99", model.CategorySubscriptions),
				crow("2025-01-08", "Netflix", "-10.99", model.CategorySubscriptions),
				crow("2025-01-15", "Netflix", "-10.99", model.CategorySubscriptions),
			},
		},
		{
			name: "unstable amount",
			rows: []model.ClassifiedRow{
				crow("2025-01-01", "Netflix", "-5.00", model.CategorySubscriptions),
				crow("2025-01-31", "Netflix", "-15.00", model.CategorySubscriptions),
				crow("2025-03-02", "Netflix", "-25.00", model.CategorySubscriptions),
			},
		},
		{
			name: "credits ignored",
			rows: []model.ClassifiedRow{
				crow("2025-01-01", "Netflix", "10.99", model.CategorySubscriptions),
				crow("2025-01-31", "Netflix", "10.99", model.CategorySubscriptions),
				crow("2025-03-02", "Netflix", "10.99", model.CategorySubscriptions),
			},
		},
		{
			name: "unparseable dates skipped",
			rows: []model.ClassifiedRow{
				crow("2025-01-01", "Netflix", "-10.99", model.CategorySubscriptions),
				crow("sometime", "Netflix", "-10.99", model.CategorySubscriptions),
				crow("2025-03-02", "Netflix", "-10.99", model.CategorySubscriptions),
			},
		},
	}
	d := newDetector(t, DefaultSubscriptionPolicy())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Empty(t, d.Detect(tt.rows))
		})
	}
}

func TestSubscriptions_RelaxedPolicy(t *testing.T) {
	rows := []model.ClassifiedRow{
		crow("2025-01-01", "Netflix", "-10.99", model.CategoryEntertainment),
		crow("2025-02-04", "Netflix", "-10.99", model.CategoryEntertainment),
	}

	strict := newDetector(t, DefaultSubscriptionPolicy())
	assert.Empty(t, strict.Detect(rows))

	p := DefaultSubscriptionPolicy()
	p.MinOccurrences = 2
	p.GapFallback = true
	got := newDetector(t, p).Detect(rows)
	require.Len(t, got, 1)
	assert.Equal(t, 34, got[0].CadenceDays)
}

func TestSubscriptions_SortedByMerchant(t *testing.T) {
	var rows []model.ClassifiedRow
	for _, m := range []string{"Spotify", "Audible", "Netflix"} {
		rows = append(rows,
			crow("2025-01-01", m, "-7.00", model.CategorySubscriptions),
			crow("2025-01-31", m, "-7.00", model.CategorySubscriptions),
			crow("2025-03-02", m, "-7.00", model.CategorySubscriptions),
		)
	}
	got := newDetector(t, DefaultSubscriptionPolicy()).Detect(rows)
	require.Len(t, got, 3)
	assert.Equal(t, "Audible", got[0].Merchant)
	assert.Equal(t, "Netflix", got[1].Merchant)
	assert.Equal(t, "Spotify", got[2].Merchant)
}

func TestAnomalies_RecentSpike(t *testing.T) {
	rows := []model.ClassifiedRow{
		// Dining: baseline weeks 10, 12, 11; this week 40.
		crow("2025-03-31", "Deliveroo", "-40.00", model.CategoryDining),
		crow("2025-03-24", "Deliveroo", "-10.00", model.CategoryDining),
		crow("2025-03-17", "Deliveroo", "-12.00", model.CategoryDining),
		crow("2025-03-10", "Deliveroo", "-11.00", model.CategoryDining),
		// Groceries: steady, no flag.
		crow("2025-03-30", "Tesco", "-20.00", model.CategoryGroceries),
		crow("2025-03-22", "Tesco", "-15.00", model.CategoryGroceries),
		crow("2025-03-15", "Tesco", "-15.00", model.CategoryGroceries),
		// Travel: no history, no flag.
		crow("2025-03-29", "Ryanair", "-500.00", model.CategoryTravel),
		// Credits never count.
		crow("2025-03-31", "Refund", "900.00", model.CategoryShopping),
	}

	got := DetectAnomalies(rows, DefaultAnomalyPolicy())
	require.Len(t, got, 1)
	assert.Equal(t, model.AnomalyFlag{Category: model.CategoryDining, RecentWindowTotal: 40, TrailingMedian: 11}, got[0])
}

func TestAnomalies_BoundaryNotFlagged(t *testing.T) {
	rows := []model.ClassifiedRow{
		crow("2025-03-31", "Deliveroo", "-22.00", model.CategoryDining),
		crow("2025-03-24", "Deliveroo", "-10.00", model.CategoryDining),
		crow("2025-03-17", "Deliveroo", "-12.00", model.CategoryDining),
		crow("2025-03-10", "Deliveroo", "-11.00", model.CategoryDining),
	}
	assert.Empty(t, DetectAnomalies(rows, DefaultAnomalyPolicy()))
}

func TestAnomalies_IgnoresOlderThanBaseline(t *testing.T) {
	rows := []model.ClassifiedRow{
		crow("2025-03-31", "Deliveroo", "-40.00", model.CategoryDining),
		crow("2025-01-01", "Deliveroo", "-5.00", model.CategoryDining),
	}
	assert.Empty(t, DetectAnomalies(rows, DefaultAnomalyPolicy()))
}

func TestAnomalies_OrderedByCategory(t *testing.T) {
	var rows []model.ClassifiedRow
	for _, c := range []model.Category{model.CategoryTravel, model.CategoryGroceries} {
		rows = append(rows,
			crow("2025-03-31", "x", "-100.00", c),
			crow("2025-03-20", "x", "-10.00", c),
		)
	}
	got := DetectAnomalies(rows, DefaultAnomalyPolicy())
	require.Len(t, got, 2)
	assert.Equal(t, model.CategoryGroceries, got[0].Category)
	assert.Equal(t, model.CategoryTravel, got[1].Category)
}

func TestAnomalies_Empty(t *testing.T) {
	got := DetectAnomalies(nil, DefaultAnomalyPolicy())
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestWhatIf_WindowSource(t *testing.T) {
	rows := []model.ClassifiedRow{
		crow("2025-03-20", "Tesco", "-120.00", model.CategoryGroceries),
		crow("2025-03-25", "Dishoom", "-200.00", model.CategoryDining),
		crow("2025-03-28", "ACME Payroll", "1000.00", model.CategoryIncome),
		crow("2024-12-01", "Ikea", "-900.00", model.CategoryShopping),
	}
	got := ProjectWhatIf(rows, model.PeriodMonth, 0, DefaultWhatIfPolicy())
	require.NotNil(t, got)
	assert.Equal(t, model.WhatIfProjection{
		Category:             model.CategoryDining,
		CutPercent:           10,
		ProjectedDelta:       20,
		ProjectedFreeToSpend: 700,
	}, *got)
}

func TestWhatIf_SparseWindowFallsBack(t *testing.T) {
	rows := []model.ClassifiedRow{
		crow("2025-03-31", "Pret", "-10.00", model.CategoryDining),
		crow("2025-01-01", "Tesco", "-300.00", model.CategoryGroceries),
	}
	got := ProjectWhatIf(rows, model.PeriodWeek, 0, DefaultWhatIfPolicy())
	require.NotNil(t, got)
	assert.Equal(t, model.CategoryGroceries, got.Category)
	assert.Equal(t, 30.0, got.ProjectedDelta)
	assert.Equal(t, -10.0, got.ProjectedFreeToSpend, "saving not subtracted on fallback")
}

func TestWhatIf_MinimumFloor(t *testing.T) {
	rows := []model.ClassifiedRow{
		crow("2025-03-31", "Pret", "-60.00", model.CategoryDining),
	}
	got := ProjectWhatIf(rows, model.PeriodWeek, 0, DefaultWhatIfPolicy())
	require.NotNil(t, got)
	assert.Equal(t, 6.0, got.ProjectedDelta)

	rows[0] = crow("2025-03-31", "Pret", "-30.00", model.CategoryDining)
	got = ProjectWhatIf(rows, model.PeriodWeek, 0, DefaultWhatIfPolicy())
	require.NotNil(t, got)
	assert.Equal(t, 5.0, got.ProjectedDelta)
}

func TestWhatIf_TieUsesDeclarationOrder(t *testing.T) {
	rows := []model.ClassifiedRow{
		crow("2025-03-30", "Pret", "-100.00", model.CategoryDining),
		crow("2025-03-30", "Tesco", "-100.00", model.CategoryGroceries),
	}
	got := ProjectWhatIf(rows, model.PeriodWeek, 0, DefaultWhatIfPolicy())
	require.NotNil(t, got)
	assert.Equal(t, model.CategoryGroceries, got.Category)
}

func TestWhatIf_WindowOverride(t *testing.T) {
	rows := []model.ClassifiedRow{
		crow("2025-03-31", "Pret", "-60.00", model.CategoryDining),
		crow("2025-03-10", "Tesco", "-500.00", model.CategoryGroceries),
	}
	got := ProjectWhatIf(rows, model.PeriodWeek, 30, DefaultWhatIfPolicy())
	require.NotNil(t, got)
	assert.Equal(t, model.CategoryGroceries, got.Category)
}

func TestWhatIf_NoSpending(t *testing.T) {
	rows := []model.ClassifiedRow{
		crow("2025-03-31", "ACME Payroll", "1000.00", model.CategoryIncome),
	}
	assert.Nil(t, ProjectWhatIf(rows, model.PeriodMonth, 0, DefaultWhatIfPolicy()))
	assert.Nil(t, ProjectWhatIf(nil, model.PeriodMonth, 0, DefaultWhatIfPolicy()))
}
