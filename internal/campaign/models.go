package campaign

import (
	"time"

	"dripline/internal/rules"
)

type Campaign struct {
	ID              string         `json:"id" db:"id"`
	Name            string         `json:"name" db:"name"`
	Enabled         bool           `json:"enabled" db:"enabled"`
	FromEmail       string         `json:"from_email" db:"from_email"`
	FromEmailName   string         `json:"from_email_name" db:"from_email_name"`
	ReplyTo         string         `json:"reply_to,omitempty" db:"reply_to"`
	SubjectTemplate string         `json:"subject_template" db:"subject_template"`
	BodyTemplate    string         `json:"body_template" db:"body_template"`
	Rules           []CampaignRule `json:"rules,omitempty"`
	CreatedAt       time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at" db:"updated_at"`
}

type CampaignRule struct {
	ID         string       `json:"id" db:"id"`
	CampaignID string       `json:"campaign_id" db:"campaign_id"`
	Method     rules.Method `json:"method" db:"method"`
	FieldName  string       `json:"field_name" db:"field_name"`
	Lookup     rules.Lookup `json:"lookup" db:"lookup"`
	RawValue   string       `json:"raw_value" db:"raw_value"`
	Position   int          `json:"position" db:"position"`
	CreatedAt  time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at" db:"updated_at"`
}

// Rule converts the stored row into its engine form.
func (r CampaignRule) Rule() rules.Rule {
	return rules.Rule{
		ID:        r.ID,
		Method:    r.Method,
		FieldName: r.FieldName,
		Lookup:    r.Lookup,
		RawValue:  r.RawValue,
		Position:  r.Position,
	}
}

type CreateCampaignRequest struct {
	Name            string              `json:"name" binding:"required"`
	Enabled         *bool               `json:"enabled"`
	FromEmail       string              `json:"from_email" binding:"required"`
	FromEmailName   string              `json:"from_email_name"`
	ReplyTo         string              `json:"reply_to"`
	SubjectTemplate string              `json:"subject_template" binding:"required"`
	BodyTemplate    string              `json:"body_template" binding:"required"`
	Rules           []CreateRuleRequest `json:"rules"`
}

type UpdateCampaignRequest struct {
	Name            *string `json:"name"`
	Enabled         *bool   `json:"enabled"`
	FromEmail       *string `json:"from_email"`
	FromEmailName   *string `json:"from_email_name"`
	ReplyTo         *string `json:"reply_to"`
	SubjectTemplate *string `json:"subject_template"`
	BodyTemplate    *string `json:"body_template"`
}

type CreateRuleRequest struct {
	Method    string `json:"method" binding:"required"`
	FieldName string `json:"field_name" binding:"required"`
	Lookup    string `json:"lookup" binding:"required"`
	RawValue  string `json:"raw_value"`
	Position  int    `json:"position"`
}

type UpdateRuleRequest struct {
	Method    *string `json:"method"`
	FieldName *string `json:"field_name"`
	Lookup    *string `json:"lookup"`
	RawValue  *string `json:"raw_value"`
	Position  *int    `json:"position"`
}

// ValidationReport is the outcome of a dry run against the audience.
type ValidationReport struct {
	CampaignID string            `json:"campaign_id"`
	Valid      bool              `json:"valid"`
	Issues     []ValidationIssue `json:"issues"`
	CheckedAt  time.Time         `json:"checked_at"`
}

type ValidationIssue struct {
	RuleID   string `json:"rule_id"`
	Category string `json:"category"`
	Message  string `json:"message"`
}
