package queue

import (
	"context"

	"postapi/internal/config"
	"postapi/pkg/circuitbreaker"
)

// CircuitBreakerQueue stops calling a failing queue backend until it recovers.
// With the breaker disabled it passes every call straight through.
type CircuitBreakerQueue struct {
	queue Queue
	cb    *circuitbreaker.Breaker
}

func NewCircuitBreakerQueue(q Queue, name string, cfg config.CircuitBreakerConfig) *CircuitBreakerQueue {
	cbq := &CircuitBreakerQueue{queue: q}
	if cfg.Enabled {
		cbq.cb = circuitbreaker.New(name, cfg)
	}
	return cbq
}

func (q *CircuitBreakerQueue) Enqueue(ctx context.Context, s *Submission) (string, error) {
	return circuitbreaker.Execute(ctx, q.cb, func() (string, error) {
		return q.queue.Enqueue(ctx, s)
	})
}

func (q *CircuitBreakerQueue) Claim(ctx context.Context, bundles ...string) (*Submission, error) {
	return circuitbreaker.Execute(ctx, q.cb, func() (*Submission, error) {
		return q.queue.Claim(ctx, bundles...)
	})
}

func (q *CircuitBreakerQueue) Delete(ctx context.Context, s *Submission) error {
	_, err := circuitbreaker.Execute(ctx, q.cb, func() (struct{}, error) {
		return struct{}{}, q.queue.Delete(ctx, s)
	})
	return err
}

func (q *CircuitBreakerQueue) Count(ctx context.Context) (int, error) {
	return circuitbreaker.Execute(ctx, q.cb, func() (int, error) {
		return q.queue.Count(ctx)
	})
}

func (q *CircuitBreakerQueue) List(ctx context.Context, limit int) ([]*Submission, error) {
	return circuitbreaker.Execute(ctx, q.cb, func() ([]*Submission, error) {
		return q.queue.List(ctx, limit)
	})
}

func (q *CircuitBreakerQueue) State() string {
	return q.cb.State()
}

func (q *CircuitBreakerQueue) IsOpen() bool {
	return q.cb.IsOpen()
}
