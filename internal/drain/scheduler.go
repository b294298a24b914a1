package drain

import (
	"context"
	"time"

	"postapi/internal/logger"
)

// Scheduler runs a drain cycle on a fixed interval until its context ends.
type Scheduler struct {
	service  Service
	interval time.Duration
	limit    int
	bundles  []string
	logger   logger.Logger
}

func NewScheduler(service Service, interval time.Duration, limit int, bundles []string, log logger.Logger) *Scheduler {
	return &Scheduler{
		service:  service,
		interval: interval,
		limit:    limit,
		bundles:  bundles,
		logger:   log,
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.InfowCtx(ctx, "Drain scheduler started", "interval", s.interval.String(), "limit", s.limit)

	s.runOnce(ctx)

	for {
		select {
		case <-ticker.C:
			s.runOnce(ctx)
		case <-ctx.Done():
			s.logger.InfowCtx(context.Background(), "Drain scheduler stopped")
			return nil
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	if _, err := s.service.Process(ctx, s.limit, s.bundles...); err != nil && ctx.Err() == nil {
		s.logger.ErrorwCtx(ctx, "Drain run failed", "error", err)
	}
}
