package dispatch

import (
	"context"
	"time"

	"dripline/internal/audience"
	"dripline/internal/rules"
)

// Member aliases the audience document type for callers of this package.
type Member = audience.Member

// Source is the audience backend the dispatcher runs campaigns against.
type Source interface {
	Snapshot(ctx context.Context) (rules.Queryable, error)
	Materialize(ctx context.Context, q rules.Queryable) ([]audience.Member, error)
}

// SendGuard answers whether a campaign/member pair has been sent before.
type SendGuard interface {
	CheckAndMark(ctx context.Context, campaignID, memberID string) (bool, error)
}

// RunResult summarizes a single campaign run.
type RunResult struct {
	CampaignID string    `json:"campaign_id"`
	Matched    int       `json:"matched"`
	Queued     int       `json:"queued"`
	Skipped    int       `json:"skipped"`
	StartedAt  time.Time `json:"started_at"`
	Duration   string    `json:"duration"`
}
