// Package reconcile fuses rule and probabilistic classifications into one
// row per transaction.
package reconcile

import (
	"errors"
	"fmt"

	"github.com/cleared-dev/spendwise/internal/model"
)

const (
	// AgreementBonus is added to the stronger confidence when both sources agree.
	AgreementBonus = 0.05
	// MaxConfidence caps any reconciled confidence.
	MaxConfidence = 0.98
	// FallbackConfidence is used when neither source produced a row.
	FallbackConfidence = 0.5
)

// ErrRowCountMismatch is returned when a classifier output does not line up
// with the parsed rows.
var ErrRowCountMismatch = errors.New("row count mismatch")

// Reconcile returns exactly one ClassifiedRow per row, in order. A nil rule
// or prob slice means that stage produced nothing; a non-nil slice must have
// the same length as rows.
func Reconcile(rows []model.TransactionRow, rule, prob []model.ClassifiedRow) ([]model.ClassifiedRow, error) {
	if rule != nil && len(rule) != len(rows) {
		return nil, fmt.Errorf("%w: %d rule rows for %d transactions", ErrRowCountMismatch, len(rule), len(rows))
	}
	if prob != nil && len(prob) != len(rows) {
		return nil, fmt.Errorf("%w: %d probabilistic rows for %d transactions", ErrRowCountMismatch, len(prob), len(rows))
	}

	out := make([]model.ClassifiedRow, len(rows))
	for i, row := range rows {
		var r, p *model.ClassifiedRow
		if rule != nil {
			r = &rule[i]
		}
		if prob != nil {
			p = &prob[i]
		}
		out[i] = Merge(row, r, p)
	}
	return out, nil
}

// Merge reconciles a single row.
func Merge(row model.TransactionRow, rule, prob *model.ClassifiedRow) model.ClassifiedRow {
	out := model.ClassifiedRow{TransactionRow: row, Source: model.SourceReconciled}

	switch {
	case rule != nil && prob != nil:
		rc, pc := rule.Category.Clamp(), prob.Category.Clamp()
		if rc == pc {
			out.Category = rc
			out.Confidence = min(MaxConfidence, max(rule.Confidence, prob.Confidence)+AgreementBonus)
			out.Rationale = fmt.Sprintf("%s; probabilistic classifier agrees", rule.Rationale)
			return out
		}
		winner, src := rule, model.SourceRule
		if prob.Confidence > rule.Confidence {
			winner, src = prob, model.SourceProbabilistic
		}
		out.Category = winner.Category.Clamp()
		out.Confidence = winner.Confidence
		out.Rationale = fmt.Sprintf("rule said %s (%.2f), probabilistic said %s (%.2f); %s wins: %s",
			rc, rule.Confidence, pc, prob.Confidence, src, winner.Rationale)
	case rule != nil:
		out.Category = rule.Category.Clamp()
		out.Confidence = rule.Confidence
		out.Rationale = rule.Rationale
	case prob != nil:
		out.Category = prob.Category.Clamp()
		out.Confidence = prob.Confidence
		out.Rationale = prob.Rationale
	default:
		out.Category = model.CategoryOther
		out.Confidence = FallbackConfidence
		out.Rationale = "fallback"
	}
	return out
}
