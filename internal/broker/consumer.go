package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"postapi/internal/config"
	"postapi/internal/constants"
	"postapi/internal/logger"
	apperrors "postapi/pkg/errors"
	"postapi/pkg/logging"
	"postapi/pkg/metrics"
	"postapi/pkg/models"
	"postapi/pkg/retry"
	"postapi/pkg/tracing"
)

const fetchErrorPause = time.Second

type KafkaConsumer struct {
	cfg         config.KafkaConfig
	logger      logger.Logger
	policy      retry.Policy
	serviceName string

	// dlq is nil without broker.kafka.dlq_topic.
	dlq Producer

	mu      sync.Mutex
	readers []*kafka.Reader
	wg      sync.WaitGroup
}

func NewKafkaConsumer(cfg config.KafkaConfig, log logger.Logger) *KafkaConsumer {
	c := &KafkaConsumer{
		cfg:         cfg,
		logger:      log,
		policy:      retry.FromConfig(cfg.Retry),
		serviceName: constants.ServiceName,
	}
	if cfg.DLQTopic != "" {
		c.dlq = NewKafkaProducer(cfg, log)
	}
	return c
}

func (c *KafkaConsumer) SetServiceName(name string) {
	c.serviceName = name
}

// Consume reads topic in the configured consumer group until ctx is done.
// Every message is committed after handling, failed or not, so one bad
// message cannot stall the partition; failures go to the DLQ when set.
func (c *KafkaConsumer) Consume(ctx context.Context, topic string, handler HandlerFunc) error {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  c.cfg.Brokers,
		GroupID:  c.cfg.GroupID,
		Topic:    topic,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	c.mu.Lock()
	c.readers = append(c.readers, reader)
	c.mu.Unlock()

	ctx = logging.WithServiceName(ctx, c.serviceName)
	c.logger.InfowCtx(ctx, "Consuming topic", "topic", topic, "group_id", c.cfg.GroupID, "brokers", c.cfg.Brokers)

	c.wg.Add(1)
	defer c.wg.Done()

	for {
		m, err := reader.FetchMessage(ctx)
		switch {
		case ctx.Err() != nil:
			c.logger.InfowCtx(ctx, "Stopped consuming", "topic", topic)
			return ctx.Err()
		case errors.Is(err, io.EOF):
			// Close was called.
			return nil
		case err != nil:
			c.logger.ErrorwCtx(ctx, "Failed to fetch message", "topic", topic, "error", err)
			select {
			case <-ctx.Done():
			case <-time.After(fetchErrorPause):
			}
			continue
		}

		c.handle(ctx, m, handler)
		if err := reader.CommitMessages(ctx, m); err != nil && ctx.Err() == nil {
			c.logger.ErrorwCtx(ctx, "Failed to commit message", "topic", topic, "offset", m.Offset, "error", err)
		}
	}
}

func (c *KafkaConsumer) handle(ctx context.Context, m kafka.Message, handler HandlerFunc) {
	var envelope models.MessageEnvelope
	if err := json.Unmarshal(m.Value, &envelope); err != nil {
		c.logger.WarnwCtx(ctx, "Dropping undecodable message", "topic", m.Topic, "offset", m.Offset, "error", err)
		return
	}
	if err := models.ValidateMessageEnvelope(&envelope); err != nil {
		c.logger.WarnwCtx(ctx, "Dropping invalid message", "topic", m.Topic, "offset", m.Offset, "error", err)
		return
	}

	ctx, span := tracing.StartConsumerSpan(ctx, m)
	defer span.End()
	if envelope.Metadata.TraceID != "" {
		ctx = logging.WithTraceID(ctx, envelope.Metadata.TraceID)
	}

	err := retry.Do(ctx, c.policy, func() error {
		return apperrors.Guard(func() error { return handler(ctx, envelope) })
	}, func(attempt int, err error, next time.Duration) {
		metrics.RetryAttemptsTotal.WithLabelValues(c.serviceName, m.Topic).Inc()
		c.logger.WarnwCtx(ctx, "Handler failed, retrying",
			"topic", m.Topic,
			"id", envelope.ID,
			"attempt", attempt,
			"next_delay", next,
			"error", err,
		)
	})
	if err == nil {
		return
	}

	c.logger.ErrorwCtx(ctx, "Handler failed", "topic", m.Topic, "id", envelope.ID, "error", err)
	if c.dlq == nil {
		return
	}
	if err := c.deadLetter(ctx, envelope, m.Topic, err); err != nil {
		c.logger.ErrorwCtx(ctx, "Failed to dead-letter message", "topic", m.Topic, "id", envelope.ID, "error", err)
	}
}

func (c *KafkaConsumer) deadLetter(ctx context.Context, envelope models.MessageEnvelope, topic string, cause error) error {
	envelope.SetAttribute("dlq_reason", cause.Error())
	envelope.SetAttribute("dlq_source_topic", topic)
	envelope.SetAttribute("dlq_timestamp", time.Now().UTC().Format(time.RFC3339))

	if err := c.dlq.Publish(ctx, c.cfg.DLQTopic, envelope); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", c.cfg.DLQTopic, err)
	}
	metrics.DLQMessagesTotal.WithLabelValues(c.serviceName, topic, "handler_failed").Inc()
	c.logger.InfowCtx(ctx, "Message dead-lettered", "topic", topic, "dlq_topic", c.cfg.DLQTopic, "id", envelope.ID)
	return nil
}

// Close stops every reader and waits for running Consume loops.
func (c *KafkaConsumer) Close() error {
	c.mu.Lock()
	readers := c.readers
	c.readers = nil
	c.mu.Unlock()

	var firstErr error
	for _, r := range readers {
		if err := r.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	c.wg.Wait()
	if c.dlq != nil {
		if err := c.dlq.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
