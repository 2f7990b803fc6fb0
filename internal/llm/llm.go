// Package llm talks to an OpenAI-compatible chat-completions endpoint on
// behalf of the two external collaborators: the probabilistic classifier
// and the advice generator.
package llm

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/spendwise/internal/model"
)

var (
	// ErrNoProvider is returned by New when no provider is configured.
	ErrNoProvider = errors.New("no llm provider configured")
	// ErrCircuitOpen is returned while the breaker rejects calls.
	ErrCircuitOpen = errors.New("circuit breaker is open")
	// ErrRateLimit marks an upstream 429.
	ErrRateLimit = errors.New("rate limit exceeded")
	// ErrMaxRetries wraps the last error once all attempts are spent.
	ErrMaxRetries = errors.New("max retries exceeded")
	// ErrMalformedResponse marks a reply that does not fit the expected schema.
	ErrMalformedResponse = errors.New("malformed response")
)

// ClassifyRequest is one row sent to the probabilistic classifier.
type ClassifyRequest struct {
	Merchant string          `json:"merchantText"`
	Amount   decimal.Decimal `json:"amount"`
}

// ClassifyResponse is the classifier's raw answer. Category is unvalidated.
type ClassifyResponse struct {
	Category  string `json:"category"`
	Rationale string `json:"rationale"`
}

// CategoryTotal is one entry of the advice request's top categories.
type CategoryTotal struct {
	Category model.Category `json:"category"`
	Amount   float64        `json:"amount"`
}

// AdviceRequest is the payload sent to the advice generator.
type AdviceRequest struct {
	Goal          decimal.Decimal               `json:"goal"`
	Period        model.Period                  `json:"periodLabel"`
	TopCategories []CategoryTotal               `json:"topCategories"`
	Subscriptions []model.SubscriptionCandidate `json:"subscriptions"`
	Anomalies     []model.AnomalyFlag           `json:"anomalies"`
	WhatIf        *model.WhatIfProjection       `json:"whatIf,omitempty"`
}

// Classifier categorizes a single transaction.
type Classifier interface {
	Classify(ctx context.Context, req ClassifyRequest) (ClassifyResponse, error)
}

// Advisor produces free-form coaching text.
type Advisor interface {
	Advise(ctx context.Context, req AdviceRequest) (string, error)
}

// Completer sends one system+user exchange and returns the reply text.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Config holds provider settings.
type Config struct {
	Provider        string
	BaseURL         string
	Model           string
	APIKey          string
	Timeout         time.Duration
	RateLimit       int // requests per minute; 0 disables limiting
	MaxRetries      int
	CacheTTL        time.Duration
	BreakerFailures int
	BreakerReset    time.Duration
}
