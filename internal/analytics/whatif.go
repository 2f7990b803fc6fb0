package analytics

import (
	"github.com/shopspring/decimal"

	"github.com/cleared-dev/spendwise/internal/model"
)

// WindowProfile holds the per-period what-if constants.
type WindowProfile struct {
	WindowDays      int
	SparseThreshold float64 // below this window spend, use all-time totals
	MinSaving       float64
}

// WhatIfPolicy tunes the what-if projection.
type WhatIfPolicy struct {
	CutPercent float64
	Week       WindowProfile
	Month      WindowProfile
}

// DefaultWhatIfPolicy returns a 10% cut with week and month profiles.
func DefaultWhatIfPolicy() WhatIfPolicy {
	return WhatIfPolicy{
		CutPercent: 10,
		Week:       WindowProfile{WindowDays: 7, SparseThreshold: 50, MinSaving: 5},
		Month:      WindowProfile{WindowDays: 30, SparseThreshold: 200, MinSaving: 20},
	}
}

// Profile returns the constants for a period; anything but week is a month.
func (p WhatIfPolicy) Profile(period model.Period) WindowProfile {
	if period == model.PeriodWeek {
		return p.Week
	}
	return p.Month
}

type spendTotals struct {
	byCategory map[model.Category]decimal.Decimal
	spend      decimal.Decimal
	income     decimal.Decimal
}

func (s *spendTotals) add(r model.ClassifiedRow) {
	if r.Amount.IsPositive() {
		s.income = s.income.Add(r.Amount)
		return
	}
	if r.IsDebit() {
		amt := r.Amount.Abs()
		cat := r.Category.Clamp()
		s.byCategory[cat] = s.byCategory[cat].Add(amt)
		s.spend = s.spend.Add(amt)
	}
}

// ProjectWhatIf projects the effect of cutting the largest spending category.
// windowDays overrides the profile window when positive. It returns nil when
// there is no spending at all.
func ProjectWhatIf(rows []model.ClassifiedRow, period model.Period, windowDays int, p WhatIfPolicy) *model.WhatIfProjection {
	prof := p.Profile(period)
	if windowDays <= 0 {
		windowDays = prof.WindowDays
	}

	window := spendTotals{byCategory: map[model.Category]decimal.Decimal{}}
	allTime := spendTotals{byCategory: map[model.Category]decimal.Decimal{}}
	latest, hasDates := latestDate(rows)
	for _, r := range rows {
		allTime.add(r)
		if !hasDates {
			continue
		}
		if t, ok := r.Time(); ok && daysBetween(t, latest) < windowDays {
			window.add(r)
		}
	}

	source, usedWindow := window, true
	if window.spend.IsZero() || window.spend.InexactFloat64() < prof.SparseThreshold {
		source, usedWindow = allTime, false
	}
	if !source.spend.IsPositive() {
		return nil
	}

	top, topSpend := model.CategoryOther, decimal.Zero
	found := false
	for _, cat := range model.Categories {
		if amt, ok := source.byCategory[cat]; ok && (!found || amt.GreaterThan(topSpend)) {
			top, topSpend, found = cat, amt, true
		}
	}

	cut := decimal.NewFromFloat(p.CutPercent).Div(decimal.NewFromInt(100))
	saving := decimal.Max(decimal.NewFromFloat(prof.MinSaving), topSpend.Mul(cut))

	spend := window.spend
	if usedWindow {
		spend = spend.Sub(saving)
	}
	free := window.income.Sub(spend)

	return &model.WhatIfProjection{
		Category:             top,
		CutPercent:           p.CutPercent,
		ProjectedDelta:       Round2(saving),
		ProjectedFreeToSpend: Round2(free),
	}
}
