package commands

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/cleared-dev/spendwise/internal/llm"
	"github.com/cleared-dev/spendwise/internal/pipeline"
	"github.com/cleared-dev/spendwise/internal/rules"
)

// buildPipeline assembles a Pipeline from the loaded config. reg may be nil,
// in which case no metrics are recorded.
func (a *app) buildPipeline(reg prometheus.Registerer) (*pipeline.Pipeline, error) {
	table, err := a.cfg.RulesTable()
	if err != nil {
		return nil, fmt.Errorf("loading rules: %w", err)
	}
	rc, err := rules.NewClassifier(table)
	if err != nil {
		return nil, fmt.Errorf("compiling rules: %w", err)
	}

	opts := []pipeline.Option{pipeline.WithLogger(a.log)}
	if reg != nil {
		opts = append(opts, pipeline.WithMetrics(pipeline.NewPrometheusMetrics(reg)))
	}

	svc, err := llm.New(a.cfg.LLMSettings(), llm.WithLogger(a.log))
	switch {
	case errors.Is(err, llm.ErrNoProvider):
		a.log.Debug("no LLM provider configured, using rules and fallback advice only")
	case err != nil:
		return nil, fmt.Errorf("creating LLM client: %w", err)
	default:
		opts = append(opts, pipeline.WithClassifier(svc), pipeline.WithAdvisor(svc))
	}

	p, err := pipeline.New(rc, a.cfg.PipelineSettings(), opts...)
	if err != nil {
		return nil, fmt.Errorf("creating pipeline: %w", err)
	}
	return p, nil
}
