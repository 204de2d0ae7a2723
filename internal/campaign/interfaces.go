package campaign

import (
	"context"

	"dripline/internal/rules"
)

type Service interface {
	CreateCampaign(ctx context.Context, req CreateCampaignRequest) (*Campaign, error)
	ListCampaigns(ctx context.Context, enabledOnly bool) ([]Campaign, error)
	GetCampaign(ctx context.Context, id string) (*Campaign, error)
	UpdateCampaign(ctx context.Context, id string, req UpdateCampaignRequest) (*Campaign, error)
	DeleteCampaign(ctx context.Context, id string) error
	ValidateCampaign(ctx context.Context, id string) (*ValidationReport, error)

	CreateRule(ctx context.Context, campaignID string, req CreateRuleRequest) (*CampaignRule, error)
	ListRules(ctx context.Context, campaignID string) ([]CampaignRule, error)
	UpdateRule(ctx context.Context, id string, req UpdateRuleRequest) (*CampaignRule, error)
	DeleteRule(ctx context.Context, id string) error

	GetCampaignVersions(ctx context.Context, campaignID string) ([]CampaignVersion, error)
	GetAuditLogs(ctx context.Context, campaignID *string, entityType string, limit int) ([]AuditLog, error)
}

// AudienceSource hands out a queryable view of the audience for rule
// application and dry runs.
type AudienceSource interface {
	Snapshot(ctx context.Context) (rules.Queryable, error)
}
