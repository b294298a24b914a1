package drain

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"postapi/internal/constants"
	"postapi/internal/logger"
	"postapi/internal/processor"
	"postapi/internal/queue"
	apperrors "postapi/pkg/errors"
	"postapi/pkg/logging"
	"postapi/pkg/metrics"
	"postapi/pkg/tracing"
)

const MessageUnsupportedBundle = "Unsupported bundle"

// Summary counts what a single drain run did.
type Summary struct {
	Processed int `json:"processed"`
	Created   int `json:"created"`
	Updated   int `json:"updated"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

func (s *Summary) add(status processor.Status) {
	s.Processed++
	switch status {
	case processor.StatusCreated:
		s.Created++
	case processor.StatusUpdated:
		s.Updated++
	case processor.StatusSkippedDuplicate:
		s.Skipped++
	default:
		s.Failed++
	}
}

// OutcomeSink receives one outcome per processed submission.
type OutcomeSink interface {
	Record(ctx context.Context, outcome processor.Outcome) error
}

type Service interface {
	// Process drains up to limit submissions, optionally only for the given bundles.
	// Item failures are logged and counted; only claim failures and cancellation return an error.
	Process(ctx context.Context, limit int, bundles ...string) (Summary, error)
}

type serviceImpl struct {
	queue        queue.Queue
	processors   *processor.Registry
	providers    processor.ProviderLookup
	sink         OutcomeSink
	defaultLimit int
	now          func() time.Time
	logger       logger.Logger
}

type Option func(*serviceImpl)

// WithOutcomeSink forwards every outcome to sink.
func WithOutcomeSink(sink OutcomeSink) Option {
	return func(s *serviceImpl) {
		if sink != nil {
			s.sink = sink
		}
	}
}

// WithProviders lets outcomes carry the provider's notification addresses.
func WithProviders(providers processor.ProviderLookup) Option {
	return func(s *serviceImpl) {
		s.providers = providers
	}
}

func WithDefaultLimit(limit int) Option {
	return func(s *serviceImpl) {
		if limit > 0 {
			s.defaultLimit = limit
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *serviceImpl) {
		s.now = now
	}
}

func NewService(q queue.Queue, processors *processor.Registry, log logger.Logger, opts ...Option) Service {
	s := &serviceImpl{
		queue:        q,
		processors:   processors,
		defaultLimit: constants.DefaultDrainLimit,
		now:          time.Now,
		logger:       log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *serviceImpl) Process(ctx context.Context, limit int, bundles ...string) (Summary, error) {
	var summary Summary

	if limit <= 0 {
		limit = s.defaultLimit
	}

	count, err := s.queue.Count(ctx)
	if err != nil {
		metrics.IncDrainRun("error")
		return summary, fmt.Errorf("failed to count queued submissions: %w", err)
	}
	metrics.SetQueueSize(count)

	if count == 0 {
		s.logger.InfowCtx(ctx, "Processed 0 queued submissions.")
		metrics.IncDrainRun("empty")
		return summary, nil
	}

	for i := 0; i < limit; i++ {
		if err := ctx.Err(); err != nil {
			s.finish(ctx, summary, "cancelled")
			return summary, err
		}

		sub, err := s.queue.Claim(ctx, bundles...)
		if err != nil {
			metrics.IncQueueClaim("error")
			s.finish(ctx, summary, "error")
			return summary, fmt.Errorf("failed to claim submission: %w", err)
		}
		if sub == nil {
			metrics.IncQueueClaim("empty")
			break
		}
		metrics.IncQueueClaim("claimed")
		metrics.ObserveQueueWait(sub.Bundle, s.now().Sub(sub.CreatedAt))

		outcome := s.processOne(ctx, sub)
		summary.add(outcome.Status)
	}

	s.finish(ctx, summary, "ok")
	return summary, nil
}

func (s *serviceImpl) finish(ctx context.Context, summary Summary, result string) {
	s.logger.InfowCtx(ctx, fmt.Sprintf("Processed %d queued submissions.", summary.Processed),
		"created", summary.Created,
		"updated", summary.Updated,
		"skipped", summary.Skipped,
		"failed", summary.Failed,
	)
	metrics.IncDrainRun(result)
}

// processOne handles a claimed submission. It always deletes the claimed
// version and always produces exactly one outcome.
func (s *serviceImpl) processOne(ctx context.Context, sub *queue.Submission) processor.Outcome {
	ctx, span := tracing.StartSubmissionSpan(ctx, sub.UUID, sub.Bundle, sub.ProviderID)
	defer span.End()

	// Log lines below carry submission_uuid and bundle from the context.
	ctx = logging.WithSubmission(ctx, sub.UUID, sub.Bundle)
	start := s.now()

	outcome := processor.Outcome{
		UUID:       sub.UUID,
		Bundle:     sub.Bundle,
		ProviderID: sub.ProviderID,
	}

	p, ok := s.processors.GetProcessorForBundle(sub.Bundle)
	if !ok {
		s.logger.ErrorwCtx(ctx, MessageUnsupportedBundle, "uuid", sub.UUID)
		outcome.Status = processor.StatusError
		outcome.Message = apperrors.ErrUnsupportedBundle.WithMessage("%s: %s", MessageUnsupportedBundle, sub.Bundle).Error()
	} else {
		var result *processor.Result
		err := apperrors.Guard(func() error {
			var err error
			result, err = p.Process(ctx, sub)
			return err
		})

		switch {
		case err != nil:
			s.logger.ErrorwCtx(ctx, "Failed to process queued submission",
				"uuid", sub.UUID,
				"error", err,
			)
			outcome.Status = processor.StatusError
			outcome.Message = err.Error()
		case result == nil:
			outcome.Status = processor.StatusError
			outcome.Message = "processor returned no result"
		default:
			outcome.Status = result.Status
			outcome.EntityID = result.EntityID
			s.logger.InfowCtx(ctx, "Processed queued submission",
				"uuid", sub.UUID,
				"status", result.Status,
				"entity_id", result.EntityID,
			)
		}
	}

	// The claim is settled even when the drain was cancelled mid-item,
	// otherwise the record comes back after its lease with a second outcome.
	settleCtx := context.WithoutCancel(ctx)

	if err := s.queue.Delete(settleCtx, sub); err != nil {
		s.logger.ErrorwCtx(ctx, "Failed to delete processed submission",
			"uuid", sub.UUID,
			"error", err,
		)
	}

	span.SetAttributes(attribute.String("postapi.outcome.status", string(outcome.Status)))
	if outcome.Status == processor.StatusError {
		span.SetStatus(codes.Error, outcome.Message)
	}

	outcome.ProcessedAt = s.now().UTC()
	outcome.Duration = outcome.ProcessedAt.Sub(start)
	outcome.NotifyEmails = s.notifyEmails(settleCtx, sub.ProviderID)
	metrics.ObserveDrainOutcome(sub.Bundle, string(outcome.Status), outcome.Duration)

	if s.sink != nil {
		if err := s.sink.Record(settleCtx, outcome); err != nil {
			s.logger.WarnwCtx(ctx, "Failed to record processing outcome", "uuid", sub.UUID, "error", err)
		}
	}

	return outcome
}

func (s *serviceImpl) notifyEmails(ctx context.Context, providerID string) []string {
	if s.providers == nil {
		return nil
	}
	p, err := s.providers.GetProvider(ctx, providerID)
	if err != nil || p == nil {
		return nil
	}
	return p.GetNotifyEmails()
}
