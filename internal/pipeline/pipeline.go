// Package pipeline sequences the transaction insight stages for one run,
// carries their accumulated state and emits lifecycle events.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"runtime/debug"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/cleared-dev/spendwise/internal/analytics"
	"github.com/cleared-dev/spendwise/internal/id"
	"github.com/cleared-dev/spendwise/internal/importer"
	"github.com/cleared-dev/spendwise/internal/llm"
	"github.com/cleared-dev/spendwise/internal/model"
	"github.com/cleared-dev/spendwise/internal/rules"
)

// DefaultFormat is the parser used when Input.Format is empty.
const DefaultFormat = "csv"

// Config holds policy settings for a Pipeline.
type Config struct {
	Workers       int
	StepDelay     time.Duration
	Period        model.Period
	WindowDays    int // 0 means the what-if profile window
	Subscriptions analytics.SubscriptionPolicy
	Anomalies     analytics.AnomalyPolicy
	WhatIf        analytics.WhatIfPolicy
}

// DefaultConfig returns the standard policy.
func DefaultConfig() Config {
	return Config{
		Workers:       4,
		Period:        model.PeriodMonth,
		Subscriptions: analytics.DefaultSubscriptionPolicy(),
		Anomalies:     analytics.DefaultAnomalyPolicy(),
		WhatIf:        analytics.DefaultWhatIfPolicy(),
	}
}

// Pipeline runs the stages. It is safe for concurrent runs; each run gets
// its own State.
type Pipeline struct {
	cfg        Config
	parsers    *importer.Registry
	rules      *rules.Classifier
	subs       *analytics.SubscriptionDetector
	classifier llm.Classifier
	advisor    llm.Advisor
	metrics    Metrics
	log        *slog.Logger
	validate   *validator.Validate
	newID      func() string
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithClassifier sets the probabilistic classifier. Without one the
// llm_classify stage produces no output.
func WithClassifier(c llm.Classifier) Option { return func(p *Pipeline) { p.classifier = c } }

// WithAdvisor sets the advice generator. Without one, fallback advice is used.
func WithAdvisor(a llm.Advisor) Option { return func(p *Pipeline) { p.advisor = a } }

// WithMetrics sets the metrics sink.
func WithMetrics(m Metrics) Option { return func(p *Pipeline) { p.metrics = m } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(p *Pipeline) { p.log = l } }

// WithRegistry replaces the parser registry.
func WithRegistry(r *importer.Registry) Option { return func(p *Pipeline) { p.parsers = r } }

// WithIDFunc replaces the run ID generator.
func WithIDFunc(f func() string) Option { return func(p *Pipeline) { p.newID = f } }

// New creates a Pipeline around a compiled rule classifier.
func New(rc *rules.Classifier, cfg Config, opts ...Option) (*Pipeline, error) {
	if rc == nil {
		return nil, fmt.Errorf("rule classifier is required")
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if !cfg.Period.Valid() {
		cfg.Period = model.PeriodMonth
	}
	subs, err := analytics.NewSubscriptionDetector(cfg.Subscriptions)
	if err != nil {
		return nil, fmt.Errorf("building subscription detector: %w", err)
	}

	p := &Pipeline{
		cfg:      cfg,
		parsers:  importer.DefaultRegistry(),
		rules:    rc,
		subs:     subs,
		metrics:  nopMetrics{},
		log:      slog.Default(),
		validate: newValidator(),
		newID:    id.NewRunID,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			return d.InexactFloat64()
		}
		return nil
	}, decimal.Decimal{})
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Run executes every stage and returns the terminal state. On a stage
// failure the returned error is a *StepError and the state is Failed.
func (p *Pipeline) Run(ctx context.Context, in Input) (*State, error) {
	return p.execute(ctx, in, func(Event) bool { return true })
}

// Stream executes a run in the background and returns its events on an
// unbuffered channel. The channel closes after the terminal event, or when
// ctx is cancelled because the consumer went away.
func (p *Pipeline) Stream(ctx context.Context, in Input) <-chan Event {
	ch := make(chan Event)
	go func() {
		defer close(ch)
		_, _ = p.execute(ctx, in, func(e Event) bool {
			select {
			case ch <- e:
				return true
			case <-ctx.Done():
				return false
			}
		})
	}()
	return ch
}

type stage struct {
	name StepName
	run  func(ctx context.Context, st *State) (any, error)
}

func (p *Pipeline) stages() []stage {
	return []stage{
		{StepParse, p.parse},
		{StepRuleClassify, p.ruleClassify},
		{StepLLMClassify, p.llmClassify},
		{StepReconcile, p.reconcile},
		{StepSubscriptions, p.detectSubscriptions},
		{StepAnomalies, p.detectAnomalies},
		{StepWhatIf, p.projectWhatIf},
		{StepAggregate, p.aggregate},
		{StepAdvice, p.generateAdvice},
	}
}

func (p *Pipeline) execute(ctx context.Context, in Input, emit func(Event) bool) (*State, error) {
	runID := p.newID()
	log := p.log.With("run_id", runID)
	started := time.Now()

	if err := p.validate.Struct(in); err != nil {
		err = fmt.Errorf("%w: %v", ErrInvalidInput, err)
		st := newState(runID, in, p.cfg.Period, 0)
		st.Status = StatusFailed
		emit(errorEvent("", err, st))
		p.metrics.RunFinished(StatusFailed)
		return st, err
	}

	period := in.Period
	if !period.Valid() {
		period = p.cfg.Period
	}
	window := in.WindowDays
	if window <= 0 {
		window = p.cfg.WindowDays
	}
	if window <= 0 {
		window = p.cfg.WhatIf.Profile(period).WindowDays
	}
	st := newState(runID, in, period, window)

	for i, s := range p.stages() {
		if i > 0 && p.cfg.StepDelay > 0 {
			select {
			case <-time.After(p.cfg.StepDelay):
			case <-ctx.Done():
			}
		}
		if err := ctx.Err(); err != nil {
			return p.fail(log, st, s.name, err, emit)
		}

		st.mark(s.name, StepRunning)
		if !emit(stepStart(s.name)) {
			return st, ctx.Err()
		}

		t0 := time.Now()
		out, err := p.runStage(ctx, s, st)
		p.metrics.StepObserved(s.name, time.Since(t0))
		if err != nil {
			return p.fail(log, st, s.name, err, emit)
		}

		st.mark(s.name, StepDone)
		if !emit(stepComplete(s.name, out)) {
			return st, ctx.Err()
		}
	}

	st.Status = StatusCompleted
	p.metrics.RunFinished(StatusCompleted)
	log.Info("pipeline completed", "rows", len(st.Rows), "duration", time.Since(started))
	emit(completeEvent(st))
	return st, nil
}

func (p *Pipeline) fail(log *slog.Logger, st *State, step StepName, err error, emit func(Event) bool) (*State, error) {
	serr := &StepError{Step: step, Err: err}
	st.Status = StatusFailed
	p.metrics.RunFinished(StatusFailed)
	log.Error("pipeline step failed", "step", step, "error", err)
	emit(errorEvent(step, serr, st))
	return st, serr
}

// runStage calls one stage, converting a panic into an error.
func (p *Pipeline) runStage(ctx context.Context, s stage, st *State) (out any, err error) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("pipeline step panicked", "step", s.name, "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return s.run(ctx, st)
}
