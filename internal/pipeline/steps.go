package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/cleared-dev/spendwise/internal/advice"
	"github.com/cleared-dev/spendwise/internal/analytics"
	"github.com/cleared-dev/spendwise/internal/insights"
	"github.com/cleared-dev/spendwise/internal/model"
	"github.com/cleared-dev/spendwise/internal/reconcile"
)

func (p *Pipeline) parse(_ context.Context, st *State) (any, error) {
	format := st.Input.Format
	if format == "" {
		format = DefaultFormat
	}
	parser, err := p.parsers.Lookup(format)
	if err != nil {
		return nil, err
	}
	rows, err := parser.Parse(strings.NewReader(st.Input.RawText))
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []model.TransactionRow{}
	}
	st.Rows = rows
	return rows, nil
}

func (p *Pipeline) ruleClassify(_ context.Context, st *State) (any, error) {
	st.RuleRows = p.rules.ClassifyAll(st.Rows)
	return st.RuleRows, nil
}

func (p *Pipeline) llmClassify(ctx context.Context, st *State) (any, error) {
	if p.classifier == nil {
		return nil, nil
	}
	rows, err := p.classifyAll(ctx, st.Rows)
	if err != nil {
		return nil, err
	}
	st.ProbabilisticRows = rows
	return rows, nil
}

func (p *Pipeline) reconcile(_ context.Context, st *State) (any, error) {
	rows, err := reconcile.Reconcile(st.Rows, st.RuleRows, st.ProbabilisticRows)
	if err != nil {
		return nil, err
	}
	if len(rows) != len(st.Rows) {
		return nil, fmt.Errorf("%w: reconciled %d of %d rows", ErrRowCountMismatch, len(rows), len(st.Rows))
	}
	st.Classified = rows
	return rows, nil
}

func (p *Pipeline) detectSubscriptions(_ context.Context, st *State) (any, error) {
	st.Subscriptions = p.subs.Detect(st.Classified)
	return st.Subscriptions, nil
}

func (p *Pipeline) detectAnomalies(_ context.Context, st *State) (any, error) {
	st.Anomalies = analytics.DetectAnomalies(st.Classified, p.cfg.Anomalies)
	return st.Anomalies, nil
}

func (p *Pipeline) projectWhatIf(_ context.Context, st *State) (any, error) {
	st.WhatIf = analytics.ProjectWhatIf(st.Classified, st.Period, st.WindowDays, p.cfg.WhatIf)
	return st.WhatIf, nil
}

func (p *Pipeline) aggregate(_ context.Context, st *State) (any, error) {
	report := insights.Aggregate(st.Classified, st.Subscriptions, st.Anomalies, st.WhatIf)
	st.Insights = &report
	return report, nil
}

func (p *Pipeline) generateAdvice(ctx context.Context, st *State) (any, error) {
	if st.Insights == nil {
		return nil, fmt.Errorf("no insights report to advise on")
	}
	report := *st.Insights

	if p.advisor != nil {
		raw, err := p.advisor.Advise(ctx, advice.BuildRequest(report, st.Goal, st.Period))
		if err == nil {
			st.RawAdvice = raw
			st.Advice = advice.Filter(raw)
			return st.Advice, nil
		}
		p.log.Warn("advice generator unavailable, using fallback", "run_id", st.RunID, "step", StepAdvice, "error", err)
		p.metrics.CollaboratorFallback("advisor", fallbackReason(err))
	}

	st.Advice = advice.Fallback(report, st.Goal, st.Period)
	return st.Advice, nil
}
