package llm

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/spendwise/internal/model"
)

type mockCompleter struct {
	mock.Mock
}

func (m *mockCompleter) Complete(ctx context.Context, system, user string) (string, error) {
	args := m.Called(ctx, system, user)
	return args.String(0), args.Error(1)
}

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestService_ClassifyParsesReply(t *testing.T) {
	mc := &mockCompleter{}
	mc.On("Complete", mock.Anything, mock.Anything, mock.MatchedBy(func(u string) bool {
		return u == "Merchant: Spotify\nAmount: -9.99"
	})).Return(`Sure! {"category":"Subscriptions","rationale":"music streaming"}`, nil).Once()

	s := NewWithCompleter(mc, Config{}, WithLogger(quiet))
	got, err := s.Classify(context.Background(), ClassifyRequest{Merchant: "Spotify", Amount: decimal.RequireFromString("-9.99")})
	require.NoError(t, err)
	assert.Equal(t, "Subscriptions", got.Category)
	mc.AssertExpectations(t)
}

func TestService_ClassifyMalformed(t *testing.T) {
	mc := &mockCompleter{}
	mc.On("Complete", mock.Anything, mock.Anything, mock.Anything).Return("I think it's food", nil)

	s := NewWithCompleter(mc, Config{}, WithLogger(quiet))
	_, err := s.Classify(context.Background(), ClassifyRequest{Merchant: "X"})
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestService_RetriesRetryableErrors(t *testing.T) {
	mc := &mockCompleter{}
	mc.On("Complete", mock.Anything, mock.Anything, mock.Anything).
		Return("", &RetryableError{Err: errors.New("boom"), Retryable: true}).Once()
	mc.On("Complete", mock.Anything, mock.Anything, mock.Anything).
		Return(`{"category":"Travel","rationale":"flight"}`, nil).Once()

	s := NewWithCompleter(mc, Config{MaxRetries: 2}, WithLogger(quiet))
	s.retry.InitialDelay = time.Millisecond

	got, err := s.Classify(context.Background(), ClassifyRequest{Merchant: "Ryanair"})
	require.NoError(t, err)
	assert.Equal(t, "Travel", got.Category)
	mc.AssertNumberOfCalls(t, "Complete", 2)
}

func TestService_DoesNotRetryPermanentErrors(t *testing.T) {
	mc := &mockCompleter{}
	mc.On("Complete", mock.Anything, mock.Anything, mock.Anything).
		Return("", &RetryableError{Err: errors.New("unauthorized")})

	s := NewWithCompleter(mc, Config{MaxRetries: 3}, WithLogger(quiet))
	_, err := s.Classify(context.Background(), ClassifyRequest{Merchant: "X"})
	require.Error(t, err)
	mc.AssertNumberOfCalls(t, "Complete", 1)
}

func TestService_BreakerOpens(t *testing.T) {
	mc := &mockCompleter{}
	mc.On("Complete", mock.Anything, mock.Anything, mock.Anything).
		Return("", &RetryableError{Err: errors.New("down")})

	s := NewWithCompleter(mc, Config{BreakerFailures: 2, BreakerReset: time.Hour}, WithLogger(quiet))
	for i := 0; i < 2; i++ {
		_, err := s.Classify(context.Background(), ClassifyRequest{Merchant: "X"})
		require.Error(t, err)
	}

	_, err := s.Classify(context.Background(), ClassifyRequest{Merchant: "X"})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, StateOpen, s.Breaker().State())
	mc.AssertNumberOfCalls(t, "Complete", 2)
}

func TestService_Advise(t *testing.T) {
	mc := &mockCompleter{}
	mc.On("Complete", mock.Anything, adviceSystemPrompt, mock.MatchedBy(func(u string) bool {
		return assert.Contains(t, u, `"periodLabel": "week"`)
	})).Return("  - Cut dining by 10%\n", nil)

	s := NewWithCompleter(mc, Config{}, WithLogger(quiet))
	got, err := s.Advise(context.Background(), AdviceRequest{Goal: decimal.NewFromInt(50), Period: model.PeriodWeek})
	require.NoError(t, err)
	assert.Equal(t, "- Cut dining by 10%", got)
}

func TestService_AdviseEmptyReply(t *testing.T) {
	mc := &mockCompleter{}
	mc.On("Complete", mock.Anything, mock.Anything, mock.Anything).Return("   ", nil)

	s := NewWithCompleter(mc, Config{}, WithLogger(quiet))
	_, err := s.Advise(context.Background(), AdviceRequest{})
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestCacheKey(t *testing.T) {
	a := cacheKey(ClassifyRequest{Merchant: "Tesco  Extra", Amount: decimal.NewFromInt(-5)})
	b := cacheKey(ClassifyRequest{Merchant: "tesco extra", Amount: decimal.NewFromInt(-50)})
	c := cacheKey(ClassifyRequest{Merchant: "tesco extra", Amount: decimal.NewFromInt(5)})
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}
