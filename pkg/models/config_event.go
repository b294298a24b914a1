package models

import "time"

// ConfigUpdateEvent announces that provider definitions changed upstream.
type ConfigUpdateEvent struct {
	EventType  string    `json:"event_type"`
	ProviderID string    `json:"provider_id,omitempty"`
	Action     string    `json:"action"`
	Timestamp  time.Time `json:"timestamp"`
	ChangedBy  string    `json:"changed_by,omitempty"`
}

const (
	EventTypeProviderConfigUpdated = "provider_config_updated"
	EventTypeSubmissionProcessed   = "submission_processed"
)

const (
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
	ActionReload = "reload"
)

func (e ConfigUpdateEvent) ToPayload() map[string]interface{} {
	payload := map[string]interface{}{
		"event_type": e.EventType,
		"action":     e.Action,
		"timestamp":  e.Timestamp.Format(time.RFC3339),
	}
	if e.ProviderID != "" {
		payload["provider_id"] = e.ProviderID
	}
	if e.ChangedBy != "" {
		payload["changed_by"] = e.ChangedBy
	}
	return payload
}
