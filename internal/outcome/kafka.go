package outcome

import (
	"context"
	"fmt"
	"time"

	"postapi/internal/broker"
	"postapi/internal/constants"
	"postapi/internal/processor"
	"postapi/pkg/logging"
	"postapi/pkg/models"
)

// KafkaSink publishes a submission_processed event per outcome.
type KafkaSink struct {
	producer broker.Producer
	topic    string
}

func NewKafkaSink(producer broker.Producer, topic string) *KafkaSink {
	return &KafkaSink{producer: producer, topic: topic}
}

func (s *KafkaSink) Name() string {
	return "kafka"
}

func (s *KafkaSink) Record(ctx context.Context, o processor.Outcome) error {
	envelope := NewEnvelope(ctx, o)
	if err := s.producer.Publish(ctx, s.topic, envelope); err != nil {
		return fmt.Errorf("failed to publish outcome %s: %w", o.UUID, err)
	}
	return nil
}

// NewEnvelope wraps an outcome for the outcomes topic. The envelope id is
// fresh per event; the submission uuid travels in the payload.
func NewEnvelope(ctx context.Context, o processor.Outcome) models.MessageEnvelope {
	payload := map[string]interface{}{
		"uuid":         o.UUID,
		"bundle":       o.Bundle,
		"provider_id":  o.ProviderID,
		"status":       string(o.Status),
		"processed_at": o.ProcessedAt.Format(time.RFC3339Nano),
		"duration_ms":  o.Duration.Milliseconds(),
	}
	if o.EntityID != 0 {
		payload["entity_id"] = o.EntityID
	}
	if o.Message != "" {
		payload["message"] = o.Message
	}
	if len(o.NotifyEmails) > 0 {
		payload["notify_emails"] = o.NotifyEmails
	}

	return models.NewEvent(models.EventTypeSubmissionProcessed, constants.ServiceName).
		At(o.ProcessedAt).
		Payload(payload).
		Trace(logging.GetTraceID(ctx)).
		Attribute("bundle", o.Bundle).
		Build()
}
