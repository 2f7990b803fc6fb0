package pipeline

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/spendwise/internal/model"
	"github.com/cleared-dev/spendwise/internal/reconcile"
)

// StepName identifies a pipeline stage.
type StepName string

const (
	StepParse         StepName = "parse"
	StepRuleClassify  StepName = "rule_classify"
	StepLLMClassify   StepName = "llm_classify"
	StepReconcile     StepName = "reconcile"
	StepSubscriptions StepName = "subscriptions"
	StepAnomalies     StepName = "anomalies"
	StepWhatIf        StepName = "what_if"
	StepAggregate     StepName = "aggregate"
	StepAdvice        StepName = "advice"
)

// Steps lists every stage in execution order.
var Steps = []StepName{
	StepParse,
	StepRuleClassify,
	StepLLMClassify,
	StepReconcile,
	StepSubscriptions,
	StepAnomalies,
	StepWhatIf,
	StepAggregate,
	StepAdvice,
}

// StepStatus is the per-stage lifecycle position.
type StepStatus string

const (
	StepPending StepStatus = "pending"
	StepRunning StepStatus = "running"
	StepDone    StepStatus = "done"
)

// Status is the pipeline-level lifecycle position.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

var (
	// ErrRowCountMismatch is a stage defect: a classifier output does not
	// line up with the parsed rows.
	ErrRowCountMismatch = reconcile.ErrRowCountMismatch
	// ErrInvalidInput wraps invocation validation failures.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotCompleted is returned when building a report from an unfinished run.
	ErrNotCompleted = errors.New("pipeline did not complete")
)

// StepError reports a fatal failure in one stage.
type StepError struct {
	Step StepName
	Err  error
}

func (e *StepError) Error() string { return fmt.Sprintf("step %s: %v", e.Step, e.Err) }

func (e *StepError) Unwrap() error { return e.Err }

// Input is the invocation surface of one run.
type Input struct {
	RawText    string          `json:"rawTransactionText"`
	Goal       decimal.Decimal `json:"goal" validate:"gte=0"`
	WindowDays int             `json:"windowDays,omitempty" validate:"gte=0,lte=366"`
	Period     model.Period    `json:"periodLabel,omitempty" validate:"omitempty,oneof=week month"`
	Format     string          `json:"format,omitempty" validate:"omitempty,alphanum,max=16"`
}

// StepState pairs a stage with its status.
type StepState struct {
	Step   StepName   `json:"step"`
	Status StepStatus `json:"status"`
}

// State accumulates stage outputs for one run. It is owned by a single
// run and never shared.
type State struct {
	RunID      string          `json:"runId"`
	Status     Status          `json:"status"`
	Steps      []StepState     `json:"steps"`
	Input      Input           `json:"-"`
	Period     model.Period    `json:"period"`
	WindowDays int             `json:"windowDays"`
	Goal       decimal.Decimal `json:"goal"`

	Rows              []model.TransactionRow        `json:"rows,omitempty"`
	RuleRows          []model.ClassifiedRow         `json:"ruleRows,omitempty"`
	ProbabilisticRows []model.ClassifiedRow         `json:"probabilisticRows,omitempty"`
	Classified        []model.ClassifiedRow         `json:"classified,omitempty"`
	Subscriptions     []model.SubscriptionCandidate `json:"subscriptions,omitempty"`
	Anomalies         []model.AnomalyFlag           `json:"anomalies,omitempty"`
	WhatIf            *model.WhatIfProjection       `json:"whatIf,omitempty"`
	Insights          *model.InsightsReport         `json:"insights,omitempty"`
	RawAdvice         string                        `json:"rawAdvice,omitempty"`
	Advice            string                        `json:"advice,omitempty"`
}

func newState(runID string, in Input, period model.Period, windowDays int) *State {
	st := &State{
		RunID:      runID,
		Status:     StatusRunning,
		Input:      in,
		Period:     period,
		WindowDays: windowDays,
		Goal:       in.Goal,
		Steps:      make([]StepState, len(Steps)),
	}
	for i, s := range Steps {
		st.Steps[i] = StepState{Step: s, Status: StepPending}
	}
	return st
}

func (s *State) mark(step StepName, status StepStatus) {
	for i := range s.Steps {
		if s.Steps[i].Step == step {
			s.Steps[i].Status = status
			return
		}
	}
}

// StepStatus returns the status of one stage.
func (s *State) StepStatus(step StepName) StepStatus {
	for _, st := range s.Steps {
		if st.Step == step {
			return st.Status
		}
	}
	return StepPending
}
