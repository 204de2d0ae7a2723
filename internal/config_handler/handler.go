package config_handler

import (
	"context"
	"encoding/json"

	"dripline/internal/logger"
	"dripline/pkg/models"
)

type ConfigReloader interface {
	ReloadCampaigns(ctx context.Context) error
}

type Handler struct {
	expectedEventTypes  map[string]bool
	expectedServiceType string
	reloader            ConfigReloader
	logger              logger.Logger
}

func NewHandler(expectedServiceType string, log logger.Logger, expectedEventTypes ...string) *Handler {
	types := make(map[string]bool, len(expectedEventTypes))
	for _, t := range expectedEventTypes {
		types[t] = true
	}
	return &Handler{
		expectedEventTypes:  types,
		expectedServiceType: expectedServiceType,
		logger:              log,
	}
}

func NewHandlerWithReloader(expectedServiceType string, reloader ConfigReloader, log logger.Logger, expectedEventTypes ...string) *Handler {
	return NewHandler(expectedServiceType, log, expectedEventTypes...).WithReloader(reloader)
}

func (h *Handler) WithReloader(reloader ConfigReloader) *Handler {
	h.reloader = reloader
	return h
}

func (h *Handler) HandleConfigUpdateEvent(ctx context.Context, envelope models.MessageEnvelope) error {
	eventType, ok := envelope.Metadata.Attributes["event_type"].(string)
	if !ok {
		if eventTypeVal, ok := envelope.Payload["event_type"].(string); ok {
			eventType = eventTypeVal
		} else {
			h.logger.Warnw("Config event missing event_type", "id", envelope.ID)
			return nil
		}
	}

	if !h.expectedEventTypes[eventType] {
		return nil
	}

	serviceType, ok := envelope.Metadata.Attributes["service_type"].(string)
	if !ok {
		if serviceTypeVal, ok := envelope.Payload["service_type"].(string); ok {
			serviceType = serviceTypeVal
		} else {
			h.logger.Warnw("Config event missing service_type", "id", envelope.ID)
			return nil
		}
	}

	if serviceType != h.expectedServiceType {
		return nil
	}

	var event models.ConfigUpdateEvent
	eventJSON, err := json.Marshal(envelope.Payload)
	if err != nil {
		h.logger.Errorw("Failed to marshal event payload", "error", err, "id", envelope.ID)
		return err
	}

	if err := json.Unmarshal(eventJSON, &event); err != nil {
		h.logger.Errorw("Failed to unmarshal config event", "error", err, "id", envelope.ID)
		return err
	}

	h.logger.Infow("Received config update event",
		"event_type", event.EventType,
		"action", event.Action,
		"campaign_id", event.CampaignID,
	)

	if h.reloader != nil {
		if err := h.reloader.ReloadCampaigns(ctx); err != nil {
			h.logger.Errorw("Failed to reload campaigns after config update", "error", err)
			return err
		}
		h.logger.Infow("Campaigns reloaded successfully after config update", "action", event.Action)
	}

	return nil
}
