package outcome

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"postapi/internal/logger"
	"postapi/internal/processor"
	"postapi/pkg/logging"
	"postapi/pkg/models"
)

type memorySink struct {
	name     string
	err      error
	recorded []processor.Outcome
}

func (s *memorySink) Name() string { return s.name }

func (s *memorySink) Record(ctx context.Context, o processor.Outcome) error {
	s.recorded = append(s.recorded, o)
	return s.err
}

type memoryProducer struct {
	topic    string
	messages []models.MessageEnvelope
	err      error
}

func (p *memoryProducer) Publish(ctx context.Context, topic string, msg models.MessageEnvelope) error {
	p.topic = topic
	p.messages = append(p.messages, msg)
	return p.err
}

func (p *memoryProducer) Close() error { return nil }

func sampleOutcome() processor.Outcome {
	return processor.Outcome{
		UUID:         "6d1c4c8e-1f6b-4a53-9b8e-0a3c2f7f2b11",
		Bundle:       processor.BundleReport,
		ProviderID:   "provider-1",
		Status:       processor.StatusCreated,
		EntityID:     12,
		NotifyEmails: []string{"editors@example.org"},
		ProcessedAt:  time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
		Duration:     42 * time.Millisecond,
	}
}

func TestMultiSink_ContinuesPastFailures(t *testing.T) {
	failing := &memorySink{name: "mongodb", err: errors.New("no primary")}
	healthy := &memorySink{name: "kafka"}

	core, observed := observer.New(zap.WarnLevel)
	sink := NewMultiSink(logger.FromZap(zap.New(core)), failing, healthy)

	err := sink.Record(context.Background(), sampleOutcome())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no primary")

	assert.Len(t, failing.recorded, 1)
	assert.Len(t, healthy.recorded, 1)
	assert.Equal(t, 2, sink.Len())

	entries := observed.FilterMessage("Outcome sink failed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "mongodb", entries[0].ContextMap()["sink"])
}

func TestMultiSink_Empty(t *testing.T) {
	assert.NoError(t, NewMultiSink(logger.NopLogger()).Record(context.Background(), sampleOutcome()))
}

func TestLogSink(t *testing.T) {
	core, observed := observer.New(zap.InfoLevel)
	sink := NewLogSink(logger.FromZap(zap.New(core)))

	o := sampleOutcome()
	require.NoError(t, sink.Record(context.Background(), o))

	o.Status = processor.StatusError
	o.EntityID = 0
	o.Message = "unknown provider nobody"
	require.NoError(t, sink.Record(context.Background(), o))

	entries := observed.FilterMessage("Submission outcome").All()
	require.Len(t, entries, 2)
	assert.Equal(t, zap.InfoLevel, entries[0].Level)
	assert.Equal(t, uint64(12), entries[0].ContextMap()["entity_id"])
	assert.Equal(t, zap.WarnLevel, entries[1].Level)
	assert.Equal(t, "unknown provider nobody", entries[1].ContextMap()["message"])
	assert.NotContains(t, entries[1].ContextMap(), "entity_id")
}

func TestKafkaSink_PublishesEnvelope(t *testing.T) {
	producer := &memoryProducer{}
	sink := NewKafkaSink(producer, "post-api-outcomes")

	ctx := logging.WithTraceID(context.Background(), "trace-1")
	require.NoError(t, sink.Record(ctx, sampleOutcome()))

	require.Len(t, producer.messages, 1)
	assert.Equal(t, "post-api-outcomes", producer.topic)

	msg := producer.messages[0]
	require.NoError(t, models.ValidateMessageEnvelope(&msg))
	assert.Equal(t, "postapi", msg.Source)
	assert.Equal(t, "trace-1", msg.Metadata.TraceID)

	eventType, ok := msg.Attribute("event_type")
	require.True(t, ok)
	assert.Equal(t, models.EventTypeSubmissionProcessed, eventType)

	assert.Equal(t, "6d1c4c8e-1f6b-4a53-9b8e-0a3c2f7f2b11", msg.GetPayloadString("uuid"))
	assert.Equal(t, "created", msg.GetPayloadString("status"))
	assert.Equal(t, int64(42), msg.Payload["duration_ms"])
	assert.Equal(t, []string{"editors@example.org"}, msg.Payload["notify_emails"])
}

func TestKafkaSink_PublishError(t *testing.T) {
	sink := NewKafkaSink(&memoryProducer{err: errors.New("leader not available")}, "t")
	err := sink.Record(context.Background(), sampleOutcome())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "leader not available")
}
