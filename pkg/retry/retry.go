// Package retry runs operations with exponential backoff from cenkalti/backoff.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"postapi/internal/config"
)

type Policy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	MaxElapsedTime  time.Duration
}

// DefaultPolicy is used for Kafka message handling.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:     3,
		InitialInterval: time.Second,
		MaxInterval:     30 * time.Second,
		Multiplier:      2,
		MaxElapsedTime:  5 * time.Minute,
	}
}

// ConnectPolicy is used while waiting for backing stores at startup.
func ConnectPolicy() Policy {
	return Policy{
		MaxAttempts:     5,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     5 * time.Second,
		Multiplier:      2,
		MaxElapsedTime:  30 * time.Second,
	}
}

// FromConfig overlays the set fields of cfg on DefaultPolicy.
func FromConfig(cfg config.RetryConfig) Policy {
	p := DefaultPolicy()
	if cfg.MaxAttempts > 0 {
		p.MaxAttempts = cfg.MaxAttempts
	}
	if cfg.InitialInterval > 0 {
		p.InitialInterval = cfg.InitialInterval
	}
	if cfg.MaxInterval > 0 {
		p.MaxInterval = cfg.MaxInterval
	}
	if cfg.Multiplier > 0 {
		p.Multiplier = cfg.Multiplier
	}
	if cfg.MaxElapsedTime > 0 {
		p.MaxElapsedTime = cfg.MaxElapsedTime
	}
	return p
}

// Delay is the wait after the given attempt before jitter.
func (p Policy) Delay(attempt int) time.Duration {
	d := float64(p.InitialInterval)
	for i := 0; i < attempt; i++ {
		d *= p.Multiplier
		if d >= float64(p.MaxInterval) {
			return p.MaxInterval
		}
	}
	return time.Duration(d)
}

func (p Policy) backOff(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = p.InitialInterval
	exp.MaxInterval = p.MaxInterval
	exp.Multiplier = p.Multiplier
	exp.MaxElapsedTime = p.MaxElapsedTime
	exp.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(p.MaxAttempts-1)), ctx)
}

// OnRetryFunc is called before every retry with the failed attempt number.
type OnRetryFunc func(attempt int, err error, nextDelay time.Duration)

// Permanent stops Do after this error.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return backoff.Permanent(err)
}

// Do calls fn until it succeeds or the policy is exhausted. Errors with a
// Retryable method returning false end the loop at once.
func Do(ctx context.Context, p Policy, fn func() error, onRetry OnRetryFunc) error {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}
	if p.Multiplier <= 0 {
		p.Multiplier = 2
	}

	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		err := fn()
		if err == nil {
			return nil
		}
		var classified interface{ Retryable() bool }
		if errors.As(err, &classified) && !classified.Retryable() {
			return backoff.Permanent(err)
		}
		if onRetry != nil && attempt < p.MaxAttempts {
			onRetry(attempt, err, p.Delay(attempt))
		}
		return err
	}, p.backOff(ctx))

	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		return perm.Err
	}
	return err
}
