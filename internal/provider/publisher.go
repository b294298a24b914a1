package provider

import (
	"context"
	"fmt"
	"time"

	"postapi/internal/broker"
	"postapi/internal/constants"
	"postapi/pkg/logging"
	"postapi/pkg/models"
)

// EventPublisher announces provider changes so every running instance drops
// its cached providers.
type EventPublisher struct {
	producer broker.Producer
	topic    string
}

func NewEventPublisher(producer broker.Producer, topic string) *EventPublisher {
	return &EventPublisher{producer: producer, topic: topic}
}

// PublishReload sends a provider_config_updated event. providerID may be empty
// when every provider changed.
func (p *EventPublisher) PublishReload(ctx context.Context, providerID, action, changedBy string) error {
	if p.producer == nil || p.topic == "" {
		return fmt.Errorf("no config update topic configured")
	}

	event := models.ConfigUpdateEvent{
		EventType:  models.EventTypeProviderConfigUpdated,
		ProviderID: providerID,
		Action:     action,
		Timestamp:  time.Now().UTC(),
		ChangedBy:  changedBy,
	}

	envelope := models.NewEvent(event.EventType, constants.ServiceName).
		At(event.Timestamp).
		Payload(event.ToPayload()).
		Trace(logging.GetTraceID(ctx)).
		Build()

	if err := p.producer.Publish(ctx, p.topic, envelope); err != nil {
		return fmt.Errorf("failed to publish provider config event: %w", err)
	}
	return nil
}
