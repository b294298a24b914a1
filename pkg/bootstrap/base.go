package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"postapi/internal/broker"
	"postapi/internal/config"
	"postapi/internal/logger"
)

// Base carries the configuration, logger and Kafka clients shared by every
// postapi command. Kafka clients are created on first use.
type Base struct {
	Config   *config.Config
	Logger   logger.Logger
	Producer broker.Producer
	Consumer broker.Consumer
}

func NewBase(cfg *config.Config, log logger.Logger) *Base {
	return &Base{
		Config: cfg,
		Logger: log,
	}
}

// BrokerEnabled reports whether any feature needs Kafka: publishing outcomes
// or listening for provider configuration updates.
func (b *Base) BrokerEnabled() bool {
	if b.Config.Broker.Type == "" {
		return false
	}
	return b.Config.Outcomes.Topic != "" || b.Config.Broker.Kafka.ConfigUpdateTopic != ""
}

// EnsureProducer creates the Kafka producer unless it already exists.
func (b *Base) EnsureProducer() (broker.Producer, error) {
	if b.Producer != nil {
		return b.Producer, nil
	}
	producer, err := broker.NewProducer(b.Config.Broker, b.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create producer: %w", err)
	}
	b.Producer = producer
	return producer, nil
}

// EnsureConsumer creates the Kafka consumer for provider reload events unless
// it already exists.
func (b *Base) EnsureConsumer(serviceName string) (broker.Consumer, error) {
	if b.Consumer != nil {
		return b.Consumer, nil
	}
	consumer, err := broker.NewConsumer(b.Config.Broker, b.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer: %w", err)
	}
	consumer.SetServiceName(serviceName)
	b.Consumer = consumer
	return consumer, nil
}

// Shutdown closes the Kafka clients, then runs closeStores. All errors are
// joined.
func (b *Base) Shutdown(ctx context.Context, closeStores func(ctx context.Context) []error) error {
	var errs []error

	if b.Producer != nil {
		if err := b.Producer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("producer close error: %w", err))
		}
	}
	if b.Consumer != nil {
		if err := b.Consumer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("consumer close error: %w", err))
		}
	}
	if closeStores != nil {
		errs = append(errs, closeStores(ctx)...)
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("shutdown errors: %w", err)
	}
	b.Logger.Debugw("Resources released")
	return nil
}
