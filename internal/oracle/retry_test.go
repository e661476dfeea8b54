package oracle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// newTestClient builds a client with no API transport; only the retry
// machinery is exercised.
func newTestClient(t *testing.T, cfg RetryConfig) *Client {
	t.Helper()
	var breaker *CircuitBreaker
	if cfg.CircuitBreakerEnabled {
		breaker = NewCircuitBreaker(cfg.FailureThreshold, cfg.SuccessThreshold, cfg.OpenTimeout, nil)
	}
	return &Client{retry: cfg, breaker: breaker, logger: zap.NewNop()}
}

func TestCircuitBreakerOpensAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker(3, 2, 50*time.Millisecond, nil)
	assert.Equal(t, CircuitClosed, cb.State())

	cb.RecordFailure()
	cb.RecordFailure()
	assert.Equal(t, CircuitClosed, cb.State())
	require.NoError(t, cb.Allow())

	cb.RecordFailure()
	assert.Equal(t, CircuitOpen, cb.State())
	assert.ErrorIs(t, cb.Allow(), ErrCircuitOpen)
}

func TestCircuitBreakerHalfOpenAfterTimeout(t *testing.T) {
	cb := NewCircuitBreaker(1, 2, 10*time.Millisecond, nil)
	cb.RecordFailure()
	assert.Equal(t, CircuitOpen, cb.State())

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, cb.Allow(), "expired open circuit should allow a probe")
	assert.Equal(t, CircuitHalfOpen, cb.State())
}

func TestCircuitBreakerClosesAfterSuccesses(t *testing.T) {
	cb := NewCircuitBreaker(1, 2, 10*time.Millisecond, nil)
	cb.RecordFailure()
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, cb.Allow())

	cb.RecordSuccess()
	assert.Equal(t, CircuitHalfOpen, cb.State(), "one success is below the close threshold")
	cb.RecordSuccess()
	assert.Equal(t, CircuitClosed, cb.State())
}

func TestCircuitBreakerReopensOnHalfOpenFailure(t *testing.T) {
	cb := NewCircuitBreaker(1, 2, 10*time.Millisecond, nil)
	cb.RecordFailure()
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, cb.Allow())
	require.Equal(t, CircuitHalfOpen, cb.State())

	cb.RecordFailure()
	assert.Equal(t, CircuitOpen, cb.State())
}

func TestCircuitStateString(t *testing.T) {
	assert.Equal(t, "CLOSED", CircuitClosed.String())
	assert.Equal(t, "OPEN", CircuitOpen.String())
	assert.Equal(t, "HALF_OPEN", CircuitHalfOpen.String())
}

func TestRetryWithBackoffSucceedsAfterTransientFailures(t *testing.T) {
	c := newTestClient(t, RetryConfig{
		MaxRetries:        3,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        5 * time.Millisecond,
		BackoffMultiplier: 2.0,
		Timeout:           time.Second,
	})

	calls := 0
	err := c.retryWithBackoff(context.Background(), "test op", func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("503 service unavailable")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryWithBackoffExhaustsRetries(t *testing.T) {
	c := newTestClient(t, RetryConfig{
		MaxRetries:        2,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        5 * time.Millisecond,
		BackoffMultiplier: 2.0,
		Timeout:           time.Second,
	})

	calls := 0
	err := c.retryWithBackoff(context.Background(), "test op", func(context.Context) error {
		calls++
		return errors.New("connection refused")
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls, "initial attempt plus two retries")
	assert.Contains(t, err.Error(), "after 3 attempts")
}

func TestRetryWithBackoffStopsOnNonRetriable(t *testing.T) {
	c := newTestClient(t, RetryConfig{
		MaxRetries:        3,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        5 * time.Millisecond,
		BackoffMultiplier: 2.0,
		Timeout:           time.Second,
	})

	calls := 0
	err := c.retryWithBackoff(context.Background(), "test op", func(context.Context) error {
		calls++
		return errors.New("401 invalid api key")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls, "auth errors must not be retried")
}

func TestRetryWithBackoffRespectsOpenCircuit(t *testing.T) {
	c := newTestClient(t, RetryConfig{
		MaxRetries:            1,
		InitialBackoff:        time.Millisecond,
		MaxBackoff:            5 * time.Millisecond,
		BackoffMultiplier:     2.0,
		Timeout:               time.Second,
		CircuitBreakerEnabled: true,
		FailureThreshold:      1,
		SuccessThreshold:      1,
		OpenTimeout:           time.Minute,
	})

	// First call trips the breaker.
	_ = c.retryWithBackoff(context.Background(), "test op", func(context.Context) error {
		return errors.New("timeout")
	})

	calls := 0
	err := c.retryWithBackoff(context.Background(), "test op", func(context.Context) error {
		calls++
		return nil
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, 0, calls, "open circuit must fail fast without calling")
}

func TestIsRetriableError(t *testing.T) {
	cases := []struct {
		err       error
		retriable bool
	}{
		{nil, false},
		{errors.New("429 rate limit exceeded"), true},
		{errors.New("529 overloaded"), true},
		{errors.New("request timeout"), true},
		{errors.New("connection reset by peer"), true},
		{context.DeadlineExceeded, true},
		{errors.New("invalid request body"), false},
		{errors.New("401 unauthorized"), false},
	}
	for _, tc := range cases {
		if got := isRetriableError(tc.err); got != tc.retriable {
			t.Errorf("isRetriableError(%v) = %v, want %v", tc.err, got, tc.retriable)
		}
	}
}
