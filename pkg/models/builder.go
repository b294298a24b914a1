package models

import (
	"time"

	"github.com/google/uuid"
)

// EventBuilder assembles the envelope of one postapi event. Every event gets a
// fresh id and carries its type in the event_type attribute.
type EventBuilder struct {
	envelope MessageEnvelope
}

func NewEvent(eventType, source string) *EventBuilder {
	b := &EventBuilder{envelope: MessageEnvelope{
		ID:      uuid.NewString(),
		Source:  source,
		Payload: map[string]interface{}{},
	}}
	b.envelope.SetAttribute("event_type", eventType)
	return b
}

// At sets the event time; Build uses the current time otherwise.
func (b *EventBuilder) At(t time.Time) *EventBuilder {
	b.envelope.Timestamp = t
	return b
}

func (b *EventBuilder) Payload(payload map[string]interface{}) *EventBuilder {
	b.envelope.Payload = payload
	return b
}

// Trace records the trace id of the request or drain run that caused the event.
func (b *EventBuilder) Trace(traceID string) *EventBuilder {
	b.envelope.Metadata.TraceID = traceID
	return b
}

func (b *EventBuilder) Attribute(name string, value interface{}) *EventBuilder {
	b.envelope.SetAttribute(name, value)
	return b
}

func (b *EventBuilder) Build() MessageEnvelope {
	env := b.envelope
	if env.Timestamp.IsZero() {
		env.Timestamp = time.Now().UTC()
	}
	return env
}
