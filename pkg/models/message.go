package models

import "time"

type MessageEnvelope struct {
	ID        string                 `json:"id"`
	Source    string                 `json:"source"`
	Timestamp time.Time              `json:"timestamp"`
	Payload   map[string]interface{} `json:"payload"`  // Business data
	Metadata  Metadata               `json:"metadata"` // Pipeline metadata (trace_id, processing_info)
}

type Metadata struct {
	TraceID    string                 `json:"trace_id,omitempty"`
	Campaign   *CampaignInfo          `json:"campaign,omitempty"`
	SendCheck  *SendCheckInfo         `json:"send_check,omitempty"`
	Attributes map[string]interface{} `json:"attributes,omitempty"`
}

// CampaignInfo records which campaign matched the member and through
// which rules.
type CampaignInfo struct {
	CampaignID string    `json:"campaign_id"`
	RuleIDs    []string  `json:"rule_ids"`
	MatchedAt  time.Time `json:"matched_at"`
}

// SendCheckInfo records the outcome of the duplicate-send guard.
type SendCheckInfo struct {
	FirstSend bool      `json:"first_send"`
	CheckedAt time.Time `json:"checked_at"`
}
