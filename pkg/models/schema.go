package models

import "fmt"

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid envelope: %s %s", e.Field, e.Message)
}

// ValidateMessageEnvelope checks the fields every envelope on a postapi topic
// carries. event_type may come from the attributes or the payload.
func ValidateMessageEnvelope(msg *MessageEnvelope) error {
	if msg == nil {
		return &ValidationError{Field: "envelope", Message: "is nil"}
	}

	switch {
	case msg.ID == "":
		return &ValidationError{Field: "id", Message: "is required"}
	case msg.Source == "":
		return &ValidationError{Field: "source", Message: "is required"}
	case msg.Timestamp.IsZero():
		return &ValidationError{Field: "timestamp", Message: "is required"}
	}

	if msg.EventType() == "" {
		return &ValidationError{Field: "event_type", Message: "is required"}
	}
	return nil
}
