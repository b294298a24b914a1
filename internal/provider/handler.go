package provider

import (
	"context"

	"postapi/internal/logger"
	"postapi/pkg/models"
)

type Reloader interface {
	Reload(ctx context.Context) error
}

// ReloadHandler consumes config update events and clears the provider cache
// when provider definitions change.
type ReloadHandler struct {
	reloader Reloader
	logger   logger.Logger
}

func NewReloadHandler(reloader Reloader, log logger.Logger) *ReloadHandler {
	return &ReloadHandler{
		reloader: reloader,
		logger:   log,
	}
}

func (h *ReloadHandler) HandleConfigUpdateEvent(ctx context.Context, envelope models.MessageEnvelope) error {
	eventType, ok := envelope.Attribute("event_type")
	if !ok {
		h.logger.WarnwCtx(ctx, "Config event missing event_type", "id", envelope.ID)
		return nil
	}

	if eventType != models.EventTypeProviderConfigUpdated {
		return nil
	}

	providerID, _ := envelope.Attribute("provider_id")
	action, _ := envelope.Attribute("action")

	h.logger.InfowCtx(ctx, "Received provider config update",
		"provider_id", providerID,
		"action", action,
	)

	if err := h.reloader.Reload(ctx); err != nil {
		h.logger.ErrorwCtx(ctx, "Failed to reload providers after config update", "error", err)
		return err
	}

	return nil
}
