package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"postapi/internal/config"
	"postapi/internal/constants"
	"postapi/internal/logger"
	"postapi/pkg/metrics"
	"postapi/pkg/models"
	"postapi/pkg/tracing"
)

type KafkaProducer struct {
	writer *kafka.Writer
	logger logger.Logger
}

func NewKafkaProducer(cfg config.KafkaConfig, log logger.Logger) *KafkaProducer {
	return &KafkaProducer{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(cfg.Brokers...),
			Balancer:               &kafka.Hash{},
			BatchTimeout:           constants.KafkaBatchTimeout,
			WriteTimeout:           constants.KafkaWriteTimeout,
			AllowAutoTopicCreation: true,
		},
		logger: log,
	}
}

// Publish writes msg synchronously, keyed by its ID so retries of the same
// event hash to the same partition.
func (p *KafkaProducer) Publish(ctx context.Context, topic string, msg models.MessageEnvelope) error {
	if err := models.ValidateMessageEnvelope(&msg); err != nil {
		return err
	}
	value, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode envelope %s: %w", msg.ID, err)
	}

	now := time.Now()
	km := kafka.Message{
		Topic:   topic,
		Key:     []byte(msg.ID),
		Value:   value,
		Headers: tracing.InjectTraceContext(ctx, nil),
		Time:    now,
	}
	if err := p.writer.WriteMessages(ctx, km); err != nil {
		return fmt.Errorf("failed to publish %s to %s: %w", msg.ID, topic, err)
	}

	metrics.IncKafkaMessagesWritten(constants.ServiceName, topic)
	metrics.ObserveKafkaWriteDuration(constants.ServiceName, topic, time.Since(now))
	p.logger.DebugwCtx(ctx, "Envelope published", "topic", topic, "id", msg.ID, "event_type", msg.EventType())
	return nil
}

func (p *KafkaProducer) Close() error {
	return p.writer.Close()
}
