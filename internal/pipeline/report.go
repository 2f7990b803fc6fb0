package pipeline

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/spendwise/internal/model"
)

// Report is the caller-facing result of a completed run.
type Report struct {
	Period          model.Period          `json:"period"`
	WindowDays      int                   `json:"windowDays"`
	Goal            decimal.Decimal       `json:"goal"`
	CategorizedRows []model.ClassifiedRow `json:"categorizedRows"`
	Insights        model.InsightsReport  `json:"insights"`
	Advice          string                `json:"advice"`
	Trace           *Trace                `json:"trace,omitempty"`
}

// Trace exposes every intermediate stage output.
type Trace struct {
	RunID             string                        `json:"runId"`
	Steps             []StepState                   `json:"steps"`
	Rows              []model.TransactionRow        `json:"rows"`
	RuleRows          []model.ClassifiedRow         `json:"ruleRows"`
	ProbabilisticRows []model.ClassifiedRow         `json:"probabilisticRows"`
	Subscriptions     []model.SubscriptionCandidate `json:"subscriptions"`
	Anomalies         []model.AnomalyFlag           `json:"anomalies"`
	WhatIf            *model.WhatIfProjection       `json:"whatIf"`
	RawAdvice         string                        `json:"rawAdvice"`
}

// BuildReport assembles the report from a completed state. With trace set,
// every intermediate stage output is included.
func BuildReport(st *State, trace bool) (*Report, error) {
	if st == nil || st.Status != StatusCompleted || st.Insights == nil {
		return nil, ErrNotCompleted
	}

	rows := st.Classified
	if rows == nil {
		rows = []model.ClassifiedRow{}
	}
	r := &Report{
		Period:          st.Period,
		WindowDays:      st.WindowDays,
		Goal:            st.Goal,
		CategorizedRows: rows,
		Insights:        *st.Insights,
		Advice:          st.Advice,
	}
	if trace {
		r.Trace = &Trace{
			RunID:             st.RunID,
			Steps:             st.Steps,
			Rows:              st.Rows,
			RuleRows:          st.RuleRows,
			ProbabilisticRows: st.ProbabilisticRows,
			Subscriptions:     st.Subscriptions,
			Anomalies:         st.Anomalies,
			WhatIf:            st.WhatIf,
			RawAdvice:         st.RawAdvice,
		}
	}
	return r, nil
}

// RunReport runs the pipeline and builds its report in one call.
func (p *Pipeline) RunReport(ctx context.Context, in Input, trace bool) (*Report, *State, error) {
	st, err := p.Run(ctx, in)
	if err != nil {
		return nil, st, err
	}
	r, err := BuildReport(st, trace)
	if err != nil {
		return nil, st, fmt.Errorf("building report: %w", err)
	}
	return r, st, nil
}
