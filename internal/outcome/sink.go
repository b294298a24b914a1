package outcome

import (
	"context"
	"errors"

	"postapi/internal/logger"
	"postapi/internal/processor"
	"postapi/pkg/metrics"
)

// Sink records processing outcomes somewhere outside the queue.
type Sink interface {
	Name() string
	Record(ctx context.Context, o processor.Outcome) error
}

// MultiSink fans an outcome out to every child. A failing child does not stop
// the others; the joined error is returned after all of them ran.
type MultiSink struct {
	sinks  []Sink
	logger logger.Logger
}

func NewMultiSink(log logger.Logger, sinks ...Sink) *MultiSink {
	return &MultiSink{sinks: sinks, logger: log}
}

func (m *MultiSink) Name() string {
	return "multi"
}

func (m *MultiSink) Len() int {
	return len(m.sinks)
}

func (m *MultiSink) Record(ctx context.Context, o processor.Outcome) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Record(ctx, o); err != nil {
			metrics.IncOutcomeSinkError(s.Name())
			m.logger.WarnwCtx(ctx, "Outcome sink failed", "sink", s.Name(), "uuid", o.UUID, "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogSink writes every outcome as a structured log line.
type LogSink struct {
	logger logger.Logger
}

func NewLogSink(log logger.Logger) *LogSink {
	return &LogSink{logger: log}
}

func (s *LogSink) Name() string {
	return "log"
}

func (s *LogSink) Record(ctx context.Context, o processor.Outcome) error {
	fields := []interface{}{
		"uuid", o.UUID,
		"provider_id", o.ProviderID,
		"status", string(o.Status),
		"duration_ms", o.Duration.Milliseconds(),
	}
	if o.EntityID != 0 {
		fields = append(fields, "entity_id", o.EntityID)
	}
	if o.Message != "" {
		fields = append(fields, "message", o.Message)
	}

	if o.Status == processor.StatusError {
		s.logger.WarnwCtx(ctx, "Submission outcome", fields...)
	} else {
		s.logger.InfowCtx(ctx, "Submission outcome", fields...)
	}
	return nil
}
