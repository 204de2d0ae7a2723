package models

import "time"

type ConfigUpdateEvent struct {
	EventType   string                 `json:"event_type"`   // "campaign_updated", "campaign_rule_updated"
	ServiceType string                 `json:"service_type"` // "management", "dispatch"
	CampaignID  string                 `json:"campaign_id,omitempty"`
	RuleID      string                 `json:"rule_id,omitempty"`
	Action      string                 `json:"action"` // "create", "update", "delete", "toggle"
	Timestamp   time.Time              `json:"timestamp"`
	ChangedBy   string                 `json:"changed_by,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

const (
	EventTypeCampaignUpdated     = "campaign_updated"
	EventTypeCampaignRuleUpdated = "campaign_rule_updated"
)

const (
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
	ActionToggle = "toggle"
	ActionReload = "reload"
)

const (
	ServiceTypeManagement = "management"
	ServiceTypeDispatch   = "dispatch"
)
