package model

// Period labels the reporting horizon used by the what-if projection and advice.
type Period string

const (
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
)

// Valid reports whether p is a known period label.
func (p Period) Valid() bool { return p == PeriodWeek || p == PeriodMonth }

// SubscriptionCandidate is a merchant that charges on a roughly monthly cadence.
type SubscriptionCandidate struct {
	Merchant      string  `json:"merchant"`
	AverageAmount float64 `json:"averageAmount"`
	CadenceDays   int     `json:"cadenceDays"`
}

// AnomalyFlag marks a category whose recent spending exceeds its trailing baseline.
type AnomalyFlag struct {
	Category          Category `json:"category"`
	RecentWindowTotal float64  `json:"recentWindowTotal"`
	TrailingMedian    float64  `json:"trailingMedian"`
}

// WhatIfProjection is the single best savings opportunity for a run.
type WhatIfProjection struct {
	Category             Category `json:"category"`
	CutPercent           float64  `json:"cutPercent"`
	ProjectedDelta       float64  `json:"projectedDelta"`
	ProjectedFreeToSpend float64  `json:"projectedFreeToSpend"`
}

// InsightsReport is the aggregated analytics output of one run.
type InsightsReport struct {
	TotalsByCategory map[Category]float64    `json:"totalsByCategory"`
	Subscriptions    []SubscriptionCandidate `json:"subscriptions"`
	Anomalies        []AnomalyFlag           `json:"anomalies"`
	WhatIf           *WhatIfProjection       `json:"whatIf,omitempty"`
}
