package models

import "time"

// DripMessage is a fully rendered email queued for delivery. Downstream
// senders consume it verbatim; nothing here needs further templating.
type DripMessage struct {
	MessageID     string    `json:"message_id"`
	CampaignID    string    `json:"campaign_id"`
	CampaignName  string    `json:"campaign_name"`
	MemberID      string    `json:"member_id"`
	Email         string    `json:"email"`
	FromEmail     string    `json:"from_email"`
	FromEmailName string    `json:"from_email_name,omitempty"`
	ReplyTo       string    `json:"reply_to,omitempty"`
	Subject       string    `json:"subject"`
	Body          string    `json:"body"`
	QueuedAt      time.Time `json:"queued_at"`
}

// Payload flattens the message into an envelope payload.
func (m *DripMessage) Payload() map[string]interface{} {
	payload := map[string]interface{}{
		"message_id":    m.MessageID,
		"campaign_id":   m.CampaignID,
		"campaign_name": m.CampaignName,
		"member_id":     m.MemberID,
		"email":         m.Email,
		"from_email":    m.FromEmail,
		"subject":       m.Subject,
		"body":          m.Body,
		"queued_at":     m.QueuedAt,
	}
	if m.FromEmailName != "" {
		payload["from_email_name"] = m.FromEmailName
	}
	if m.ReplyTo != "" {
		payload["reply_to"] = m.ReplyTo
	}
	return payload
}
