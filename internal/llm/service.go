package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/cleared-dev/spendwise/internal/model"
)

// Service wraps a Completer with rate limiting, retry, a circuit breaker and
// a classification cache. It implements both Classifier and Advisor and is
// safe for concurrent use.
type Service struct {
	completer Completer
	limiter   *rate.Limiter
	breaker   *CircuitBreaker
	cache     *responseCache
	retry     RetryOptions
	log       *slog.Logger
}

// Option customizes a Service.
type Option func(*Service)

// WithLogger sets the logger used for retry warnings.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.log = l }
}

// New builds a Service for the configured provider. It returns ErrNoProvider
// when the provider is empty or "none".
func New(cfg Config, opts ...Option) (*Service, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", "none":
		return nil, ErrNoProvider
	case "openai":
		c, err := newOpenAIClient(cfg)
		if err != nil {
			return nil, err
		}
		return NewWithCompleter(c, cfg, opts...), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
}

// NewWithCompleter builds a Service around an existing Completer.
func NewWithCompleter(c Completer, cfg Config, opts ...Option) *Service {
	limit := rate.Inf
	burst := 1
	if cfg.RateLimit > 0 {
		limit = rate.Limit(float64(cfg.RateLimit) / 60)
		burst = max(1, cfg.RateLimit/60)
	}

	s := &Service{
		completer: c,
		limiter:   rate.NewLimiter(limit, burst),
		breaker: NewCircuitBreaker(BreakerConfig{
			MaxFailures:  cfg.BreakerFailures,
			ResetTimeout: cfg.BreakerReset,
		}),
		cache: newResponseCache(cfg.CacheTTL),
		retry: RetryOptions{
			MaxAttempts:  cfg.MaxRetries + 1,
			InitialDelay: 200 * time.Millisecond,
			MaxDelay:     5 * time.Second,
		},
		log: slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Breaker exposes the circuit breaker for status reporting.
func (s *Service) Breaker() *CircuitBreaker { return s.breaker }

var classifySystemPrompt = "You are a financial transaction classifier. Choose exactly one category from: " +
	categoryList() + ". Respond with ONLY a JSON object of the form " +
	`{"category": "<category>", "rationale": "<one short sentence>"}` + ". No markdown, no commentary."

const adviceSystemPrompt = "You are a concise personal finance coach. Given a spending summary as JSON, " +
	"write short labelled sections (Goal, Obstacle, Action). Put every concrete recommendation on its own " +
	"line starting with \"- \" or a numbered step like \"1. \"."

func categoryList() string {
	names := make([]string, len(model.Categories))
	for i, c := range model.Categories {
		names[i] = string(c)
	}
	return strings.Join(names, ", ")
}

// Classify asks the model for a category. The returned category is not
// validated against the enumeration.
func (s *Service) Classify(ctx context.Context, req ClassifyRequest) (ClassifyResponse, error) {
	key := cacheKey(req)
	if cached, ok := s.cache.get(key); ok {
		return cached, nil
	}

	user := fmt.Sprintf("Merchant: %s\nAmount: %s", req.Merchant, req.Amount.StringFixed(2))
	reply, err := s.call(ctx, classifySystemPrompt, user)
	if err != nil {
		return ClassifyResponse{}, fmt.Errorf("classifying %q: %w", req.Merchant, err)
	}
	resp, err := parseClassification(reply)
	if err != nil {
		return ClassifyResponse{}, fmt.Errorf("classifying %q: %w", req.Merchant, err)
	}
	s.cache.set(key, resp)
	return resp, nil
}

// Advise asks the model for coaching text.
func (s *Service) Advise(ctx context.Context, req AdviceRequest) (string, error) {
	payload, err := json.MarshalIndent(req, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding advice request: %w", err)
	}
	reply, err := s.call(ctx, adviceSystemPrompt, string(payload))
	if err != nil {
		return "", fmt.Errorf("generating advice: %w", err)
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return "", fmt.Errorf("generating advice: %w: empty reply", ErrMalformedResponse)
	}
	return reply, nil
}

func (s *Service) call(ctx context.Context, system, user string) (string, error) {
	if !s.breaker.Allow() {
		return "", ErrCircuitOpen
	}

	var reply string
	err := withRetry(ctx, s.log, func() error {
		if err := s.limiter.Wait(ctx); err != nil {
			return &RetryableError{Err: fmt.Errorf("waiting for rate limiter: %w", err)}
		}
		out, err := s.completer.Complete(ctx, system, user)
		if err != nil {
			return err
		}
		reply = out
		return nil
	}, s.retry)
	if err != nil {
		s.breaker.RecordFailure()
		return "", err
	}
	s.breaker.RecordSuccess()
	return reply, nil
}

// cacheKey normalizes merchant text and keeps only the amount's sign, so
// repeated charges from one merchant share an answer.
func cacheKey(req ClassifyRequest) string {
	merchant := strings.ToLower(strings.Join(strings.Fields(req.Merchant), " "))
	switch req.Amount.Sign() {
	case -1:
		return merchant + "|debit"
	case 1:
		return merchant + "|credit"
	}
	return merchant + "|zero"
}
