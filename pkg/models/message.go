package models

import "time"

// MessageEnvelope is the JSON document exchanged over Kafka topics.
type MessageEnvelope struct {
	ID        string                 `json:"id"`
	Source    string                 `json:"source"`
	Timestamp time.Time              `json:"timestamp"`
	Payload   map[string]interface{} `json:"payload"`
	Metadata  Metadata               `json:"metadata"`
}

type Metadata struct {
	TraceID    string                 `json:"trace_id,omitempty"`
	Attributes map[string]interface{} `json:"attributes,omitempty"`
}

func (msg *MessageEnvelope) GetPayloadString(name string) string {
	if msg.Payload == nil {
		return ""
	}
	s, _ := msg.Payload[name].(string)
	return s
}

func (msg *MessageEnvelope) SetAttribute(name string, value interface{}) {
	if msg.Metadata.Attributes == nil {
		msg.Metadata.Attributes = make(map[string]interface{})
	}
	msg.Metadata.Attributes[name] = value
}

// Attribute looks name up in the metadata attributes first, then in the payload.
func (msg *MessageEnvelope) Attribute(name string) (string, bool) {
	if v, ok := msg.Metadata.Attributes[name].(string); ok {
		return v, true
	}
	if v, ok := msg.Payload[name].(string); ok {
		return v, true
	}
	return "", false
}

func (msg *MessageEnvelope) EventType() string {
	v, _ := msg.Attribute("event_type")
	return v
}
