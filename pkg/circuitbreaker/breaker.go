// Package circuitbreaker guards calls to a store with sony/gobreaker and
// reports breaker state to Prometheus.
package circuitbreaker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"

	"postapi/internal/config"
	"postapi/pkg/metrics"
)

const (
	defaultMaxRequests  = 3
	defaultInterval     = time.Minute
	defaultTimeout      = time.Minute
	defaultFailureRatio = 0.5
	defaultMinRequests  = 3
)

// Breaker trips after a run of failed calls and rejects calls with
// gobreaker.ErrOpenState until its timeout passes.
type Breaker struct {
	cb *gobreaker.CircuitBreaker
}

// New builds a breaker from the circuit_breaker config section. Zero fields
// keep their defaults.
func New(name string, cfg config.CircuitBreakerConfig) *Breaker {
	ratio := cfg.FailureRatio
	if ratio <= 0 {
		ratio = defaultFailureRatio
	}
	minRequests := cfg.MinRequests
	if minRequests == 0 {
		minRequests = defaultMinRequests
	}

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: orDefault(cfg.MaxRequests, defaultMaxRequests),
		Interval:    orDefault(cfg.Interval, defaultInterval),
		Timeout:     orDefault(cfg.Timeout, defaultTimeout),
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < minRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= ratio
		},
		// A caller giving up is not a store failure.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
		},
		OnStateChange: func(name string, _, to gobreaker.State) {
			setStateMetric(name, to)
		},
	}

	b := &Breaker{cb: gobreaker.NewCircuitBreaker(settings)}
	setStateMetric(name, b.cb.State())
	return b
}

// Execute runs fn through b. A nil breaker calls fn directly.
func Execute[T any](ctx context.Context, b *Breaker, fn func() (T, error)) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	if b == nil {
		return fn()
	}

	result, err := b.cb.Execute(func() (interface{}, error) {
		return fn()
	})

	metrics.CircuitBreakerRequests.WithLabelValues(b.cb.Name(), b.cb.State().String()).Inc()
	if err != nil {
		metrics.CircuitBreakerFailures.WithLabelValues(b.cb.Name()).Inc()
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return zero, fmt.Errorf("circuit breaker is open for %s: %w", b.cb.Name(), err)
		}
		return zero, err
	}

	typed, _ := result.(T)
	return typed, nil
}

// State reports "disabled" for a nil breaker.
func (b *Breaker) State() string {
	if b == nil {
		return "disabled"
	}
	return b.cb.State().String()
}

func (b *Breaker) IsOpen() bool {
	return b != nil && b.cb.State() == gobreaker.StateOpen
}

func setStateMetric(name string, state gobreaker.State) {
	var value float64
	switch state {
	case gobreaker.StateHalfOpen:
		value = 1
	case gobreaker.StateOpen:
		value = 2
	}
	metrics.CircuitBreakerState.WithLabelValues(name).Set(value)
}

func orDefault[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}
