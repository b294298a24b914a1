package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"postapi/internal/config"
)

func TestBreaker_OpensAfterFailures(t *testing.T) {
	b := New("queue-test", config.CircuitBreakerConfig{
		FailureRatio: 0.5,
		MinRequests:  2,
		Timeout:      time.Minute,
	})

	failing := func() (int, error) { return 0, errors.New("db down") }
	ctx := context.Background()

	_, err := Execute(ctx, b, failing)
	require.Error(t, err)
	_, err = Execute(ctx, b, failing)
	require.Error(t, err)

	assert.True(t, b.IsOpen())
	assert.Equal(t, "open", b.State())

	_, err = Execute(ctx, b, func() (int, error) { return 1, nil })
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Contains(t, err.Error(), "circuit breaker is open for queue-test")
}

func TestBreaker_CancellationDoesNotTrip(t *testing.T) {
	b := New("cancel-test", config.CircuitBreakerConfig{FailureRatio: 0.5, MinRequests: 1})

	for i := 0; i < 3; i++ {
		_, err := Execute(context.Background(), b, func() (int, error) {
			return 0, context.DeadlineExceeded
		})
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	}
	assert.False(t, b.IsOpen())
}

func TestExecute_PreservesResult(t *testing.T) {
	b := New("typed", config.CircuitBreakerConfig{})

	n, err := Execute(context.Background(), b, func() (int, error) { return 42, nil })
	require.NoError(t, err)
	assert.Equal(t, 42, n)
}

func TestExecute_NilBreaker(t *testing.T) {
	var b *Breaker

	s, err := Execute(context.Background(), b, func() (string, error) { return "direct", nil })
	require.NoError(t, err)
	assert.Equal(t, "direct", s)
	assert.Equal(t, "disabled", b.State())
	assert.False(t, b.IsOpen())
}

func TestExecute_CancelledContext(t *testing.T) {
	b := New("cancelled", config.CircuitBreakerConfig{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	_, err := Execute(ctx, b, func() (int, error) {
		called = true
		return 0, nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}
