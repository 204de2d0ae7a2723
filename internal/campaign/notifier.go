package campaign

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	kafka "dripline/internal/broker"
	"dripline/pkg/models"
)

// ConfigEventProducer tells the dispatch service that campaign state
// changed so it can reload without polling.
type ConfigEventProducer struct {
	producer kafka.Producer
	topic    string
}

func NewConfigEventProducer(producer kafka.Producer, topic string) *ConfigEventProducer {
	return &ConfigEventProducer{
		producer: producer,
		topic:    topic,
	}
}

func (p *ConfigEventProducer) PublishCampaignEvent(ctx context.Context, action, campaignID, changedBy string) error {
	event := models.ConfigUpdateEvent{
		EventType:   models.EventTypeCampaignUpdated,
		ServiceType: models.ServiceTypeDispatch,
		CampaignID:  campaignID,
		Action:      action,
		Timestamp:   time.Now(),
		ChangedBy:   changedBy,
	}
	return p.publishEvent(ctx, event)
}

func (p *ConfigEventProducer) PublishRuleEvent(ctx context.Context, action, campaignID, ruleID, changedBy string) error {
	event := models.ConfigUpdateEvent{
		EventType:   models.EventTypeCampaignRuleUpdated,
		ServiceType: models.ServiceTypeDispatch,
		CampaignID:  campaignID,
		RuleID:      ruleID,
		Action:      action,
		Timestamp:   time.Now(),
		ChangedBy:   changedBy,
	}
	return p.publishEvent(ctx, event)
}

func (p *ConfigEventProducer) publishEvent(ctx context.Context, event models.ConfigUpdateEvent) error {
	if p.producer == nil || p.topic == "" {
		return nil
	}

	eventJSON, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal config event: %w", err)
	}

	var eventData map[string]interface{}
	if err := json.Unmarshal(eventJSON, &eventData); err != nil {
		return fmt.Errorf("failed to unmarshal event data: %w", err)
	}

	envelope := models.MessageEnvelope{
		ID:        uuid.New().String(),
		Source:    "management-service",
		Timestamp: time.Now(),
		Payload:   eventData,
		Metadata:  models.Metadata{},
	}

	if envelope.Metadata.Attributes == nil {
		envelope.Metadata.Attributes = make(map[string]interface{})
	}
	envelope.Metadata.Attributes["event_type"] = event.EventType
	envelope.Metadata.Attributes["service_type"] = event.ServiceType

	return p.producer.Publish(ctx, p.topic, envelope)
}
