package pipeline

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/cleared-dev/spendwise/internal/llm"
	"github.com/cleared-dev/spendwise/internal/model"
)

// ProbabilisticConfidence is assigned to every probabilistic answer; the
// collaborator's own confidence is not trusted.
const ProbabilisticConfidence = 0.7

// classifyAll calls the probabilistic classifier once per row with at most
// cfg.Workers calls in flight. Results land at their row index. A panic in
// a worker is returned as an error.
func (p *Pipeline) classifyAll(ctx context.Context, rows []model.TransactionRow) ([]model.ClassifiedRow, error) {
	out := make([]model.ClassifiedRow, len(rows))

	var g errgroup.Group
	g.SetLimit(p.cfg.Workers)
	for i, row := range rows {
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("classifying row %d: panic: %v", i, r)
				}
			}()
			out[i] = p.classifyRow(ctx, i, row)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// classifyRow never fails: collaborator errors and out-of-set categories
// become documented fallback rows.
func (p *Pipeline) classifyRow(ctx context.Context, idx int, row model.TransactionRow) model.ClassifiedRow {
	out := model.ClassifiedRow{
		TransactionRow: row,
		Source:         model.SourceProbabilistic,
		Confidence:     ProbabilisticConfidence,
	}

	resp, err := p.classifier.Classify(ctx, llm.ClassifyRequest{Merchant: row.Merchant, Amount: row.Amount})
	if err != nil {
		p.log.Warn("classifier unavailable, using fallback", "step", StepLLMClassify, "row", idx, "error", err)
		p.metrics.CollaboratorFallback("classifier", fallbackReason(err))
		out.Category = model.CategoryOther
		out.Rationale = "classifier unavailable"
		return out
	}

	cat, ok := model.ParseCategory(resp.Category)
	if !ok {
		p.log.Warn("classifier returned unknown category", "step", StepLLMClassify, "row", idx, "category", resp.Category)
		p.metrics.CollaboratorFallback("classifier", "invalid_category")
		out.Category = model.CategoryOther
		out.Rationale = "invalid category from classifier"
		return out
	}

	out.Category = cat
	out.Rationale = resp.Rationale
	if out.Rationale == "" {
		out.Rationale = "model classification"
	}
	return out
}

func fallbackReason(err error) string {
	switch {
	case errors.Is(err, llm.ErrCircuitOpen):
		return "circuit_open"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return "timeout"
	case errors.Is(err, llm.ErrMalformedResponse):
		return "malformed"
	case errors.Is(err, llm.ErrRateLimit):
		return "rate_limited"
	}
	return "error"
}
