// Package broker moves message envelopes over Kafka. postapi publishes
// submission outcomes and provider reload events, and consumes the reload
// events in every serve instance.
package broker

import (
	"context"
	"errors"
	"fmt"

	"postapi/internal/config"
	"postapi/internal/constants"
	"postapi/internal/logger"
	"postapi/pkg/models"
)

type Producer interface {
	Publish(ctx context.Context, topic string, msg models.MessageEnvelope) error
	Close() error
}

// Consumer hands every envelope read from topic to handler until ctx is done.
type Consumer interface {
	Consume(ctx context.Context, topic string, handler HandlerFunc) error
	Close() error
	SetServiceName(name string)
}

type HandlerFunc func(ctx context.Context, msg models.MessageEnvelope) error

func NewProducer(cfg config.BrokerConfig, log logger.Logger) (Producer, error) {
	if err := checkBroker(cfg); err != nil {
		return nil, err
	}
	return NewKafkaProducer(cfg.Kafka, log), nil
}

func NewConsumer(cfg config.BrokerConfig, log logger.Logger) (Consumer, error) {
	if err := checkBroker(cfg); err != nil {
		return nil, err
	}
	return NewKafkaConsumer(cfg.Kafka, log), nil
}

func checkBroker(cfg config.BrokerConfig) error {
	if cfg.Type != constants.BrokerTypeKafka {
		return fmt.Errorf("unsupported broker type %q", cfg.Type)
	}
	if len(cfg.Kafka.Brokers) == 0 {
		return errors.New("broker.kafka.brokers must list at least one address")
	}
	return nil
}
