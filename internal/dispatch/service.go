package dispatch

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"dripline/internal/broker"
	"dripline/internal/campaign"
	"dripline/internal/config"
	"dripline/internal/logger"
	"dripline/internal/rules"
	"dripline/internal/sendlog"
	"dripline/pkg/metrics"
	"dripline/pkg/models"
	"dripline/pkg/tracing"
)

// Service runs enabled campaigns against the audience and queues a drip
// message for every member that matches and has not been sent before.
type Service struct {
	campaigns campaign.Repository
	source    Source
	guard     SendGuard
	records   sendlog.RecordRepository
	producer  broker.Producer
	renderer  *Renderer
	topic     string
	cfg       config.DispatchConfig
	logger    logger.Logger
	clock     rules.Clock

	loaded   []campaign.Campaign
	loadedMu sync.RWMutex
}

type Option func(*Service)

// WithRecords enables durable send records alongside the Redis markers.
func WithRecords(records sendlog.RecordRepository) Option {
	return func(s *Service) { s.records = records }
}

func WithClock(clock rules.Clock) Option {
	return func(s *Service) { s.clock = clock }
}

func NewService(
	campaigns campaign.Repository,
	source Source,
	guard SendGuard,
	producer broker.Producer,
	topic string,
	cfg config.DispatchConfig,
	log logger.Logger,
	opts ...Option,
) *Service {
	s := &Service{
		campaigns: campaigns,
		source:    source,
		guard:     guard,
		producer:  producer,
		renderer:  NewRenderer(),
		topic:     topic,
		cfg:       cfg,
		logger:    log,
		clock:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ReloadCampaigns refreshes the set of enabled campaigns, rules included.
func (s *Service) ReloadCampaigns(ctx context.Context) error {
	enabled, err := s.campaigns.ListCampaigns(ctx, true)
	if err != nil {
		return fmt.Errorf("failed to load campaigns: %w", err)
	}

	for i := range enabled {
		ruleRows, err := s.campaigns.ListRules(ctx, enabled[i].ID)
		if err != nil {
			return fmt.Errorf("failed to load rules for campaign %s: %w", enabled[i].ID, err)
		}
		enabled[i].Rules = ruleRows
	}

	s.loadedMu.Lock()
	s.loaded = enabled
	s.loadedMu.Unlock()

	metrics.SetActiveCampaigns(len(enabled))
	s.logger.InfowCtx(ctx, "Successfully reloaded campaigns",
		"campaigns_count", len(enabled),
	)
	return nil
}

func (s *Service) getLoadedCampaigns() []campaign.Campaign {
	s.loadedMu.RLock()
	defer s.loadedMu.RUnlock()

	loaded := make([]campaign.Campaign, len(s.loaded))
	copy(loaded, s.loaded)
	return loaded
}

// RunAll runs every loaded campaign once. A failing campaign does not
// stop the others.
func (s *Service) RunAll(ctx context.Context) []RunResult {
	ctx, span := tracing.GetTracer("dispatch-service").Start(ctx, "dispatch.run_all")
	defer span.End()

	loaded := s.getLoadedCampaigns()
	results := make([]RunResult, 0, len(loaded))

	for i := range loaded {
		if ctx.Err() != nil {
			break
		}

		result, err := s.RunCampaign(ctx, &loaded[i])
		if err != nil {
			s.logger.ErrorwCtx(ctx, "Campaign run failed",
				"campaign_id", loaded[i].ID,
				"campaign_name", loaded[i].Name,
				"error", err,
			)
			continue
		}
		results = append(results, *result)
	}

	return results
}

// RunCampaign applies the campaign's rules to the audience and queues a
// message for each matching member not yet sent to.
func (s *Service) RunCampaign(ctx context.Context, c *campaign.Campaign) (*RunResult, error) {
	ctx, span := tracing.GetTracer("dispatch-service").Start(ctx, "dispatch.run_campaign")
	defer span.End()

	start := time.Now()
	result, err := s.runCampaign(ctx, c, start)
	duration := time.Since(start)

	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.CampaignRunsTotal.WithLabelValues(status).Inc()
	metrics.ObserveCampaignRunDuration(duration, status)

	if err != nil {
		return nil, err
	}

	result.Duration = duration.String()
	return result, nil
}

func (s *Service) runCampaign(ctx context.Context, c *campaign.Campaign, start time.Time) (*RunResult, error) {
	members, ruleIDs, err := s.matchMembers(ctx, c)
	if err != nil {
		metrics.IncRuleEvaluation(c.ID, "error")
		return nil, err
	}
	metrics.IncRuleEvaluation(c.ID, "success")

	result := &RunResult{
		CampaignID: c.ID,
		Matched:    len(members),
		StartedAt:  start,
	}

	for _, member := range members {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		queued, err := s.dispatchToMember(ctx, c, member, ruleIDs)
		if err != nil {
			s.logger.ErrorwCtx(ctx, "Failed to dispatch to member",
				"campaign_id", c.ID,
				"member_id", member.ID(),
				"error", err,
			)
			result.Skipped++
			continue
		}
		if queued {
			result.Queued++
		} else {
			result.Skipped++
		}
	}

	s.logger.InfowCtx(ctx, "Campaign run completed",
		"campaign_id", c.ID,
		"campaign_name", c.Name,
		"matched", result.Matched,
		"queued", result.Queued,
		"skipped", result.Skipped,
	)
	return result, nil
}

func (s *Service) matchMembers(ctx context.Context, c *campaign.Campaign) ([]Member, []string, error) {
	snapshot, err := s.source.Snapshot(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to snapshot audience: %w", err)
	}

	ruleRows := c.Rules
	engineRules := make([]rules.Rule, 0, len(ruleRows))
	ruleIDs := make([]string, 0, len(ruleRows))
	for _, row := range ruleRows {
		engineRules = append(engineRules, row.Rule())
		ruleIDs = append(ruleIDs, row.ID)
	}

	matched, err := rules.NewRuleSet(engineRules).Apply(snapshot, s.clock)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to apply rules for campaign %s: %w", c.ID, err)
	}

	members, err := s.source.Materialize(ctx, matched)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to materialize audience for campaign %s: %w", c.ID, err)
	}

	return members, ruleIDs, nil
}

func (s *Service) dispatchToMember(ctx context.Context, c *campaign.Campaign, member Member, ruleIDs []string) (bool, error) {
	memberID := member.ID()
	if memberID == "" {
		return false, fmt.Errorf("member has no identifier")
	}

	email := member.Email()
	if email == "" {
		s.logger.DebugwCtx(ctx, "Member has no email, skipping",
			"campaign_id", c.ID,
			"member_id", memberID,
		)
		return false, nil
	}

	firstSend, err := s.guard.CheckAndMark(ctx, c.ID, memberID)
	if err != nil {
		return false, err
	}
	checkedAt := s.clock()
	if !firstSend {
		return false, nil
	}

	subject, body, err := s.renderer.Render(c, member)
	if err != nil {
		return false, fmt.Errorf("failed to render campaign %s for member %s: %w", c.ID, memberID, err)
	}

	drip := &models.DripMessage{
		MessageID:     uuid.New().String(),
		CampaignID:    c.ID,
		CampaignName:  c.Name,
		MemberID:      memberID,
		Email:         email,
		FromEmail:     c.FromEmail,
		FromEmailName: c.FromEmailName,
		ReplyTo:       c.ReplyTo,
		Subject:       subject,
		Body:          body,
		QueuedAt:      s.clock(),
	}
	if err := models.ValidateDripMessage(drip); err != nil {
		return false, err
	}

	envelope := models.NewMessageEnvelopeBuilder().
		WithID(drip.MessageID).
		WithSource("dispatch-service").
		WithPayload(drip.Payload()).
		WithMetadata(models.Metadata{
			Campaign: &models.CampaignInfo{
				CampaignID: c.ID,
				RuleIDs:    ruleIDs,
				MatchedAt:  checkedAt,
			},
			SendCheck: &models.SendCheckInfo{
				FirstSend: true,
				CheckedAt: checkedAt,
			},
		}).
		Build()

	if err := s.producer.Publish(ctx, s.topic, *envelope); err != nil {
		return false, fmt.Errorf("failed to publish drip message: %w", err)
	}
	metrics.IncDripMessageQueued(c.ID)

	if s.records != nil {
		rec := &sendlog.SendRecord{
			ID:         uuid.New().String(),
			CampaignID: c.ID,
			MemberID:   memberID,
			Email:      email,
			MessageID:  drip.MessageID,
			SentAt:     drip.QueuedAt,
		}
		if err := s.records.RecordSend(ctx, rec); err != nil {
			// The message is already queued; the durable record is
			// best effort.
			s.logger.WarnwCtx(ctx, "Failed to write send record",
				"campaign_id", c.ID,
				"member_id", memberID,
				"error", err,
			)
		}
	}

	return true, nil
}

// StartRunner runs all campaigns on the configured interval until the
// context is cancelled.
func (s *Service) StartRunner(ctx context.Context) error {
	interval := time.Duration(s.cfg.Interval.IntervalSeconds) * time.Second
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := s.applyJitter(ctx); err != nil {
				return err
			}
			s.RunAll(ctx)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *Service) applyJitter(ctx context.Context) error {
	if s.cfg.Interval.JitterSeconds <= 0 {
		return nil
	}

	jitter := time.Duration(rand.Intn(s.cfg.Interval.JitterSeconds*1000)) * time.Millisecond
	s.logger.DebugwCtx(ctx, "Run scheduled with jitter",
		"jitter_ms", jitter.Milliseconds(),
	)

	select {
	case <-time.After(jitter):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// StartReloader refreshes the campaign set on the configured interval
// until the context is cancelled.
func (s *Service) StartReloader(ctx context.Context) error {
	interval := time.Duration(s.cfg.Reload.IntervalSeconds) * time.Second
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	if err := s.ReloadCampaigns(ctx); err != nil {
		s.logger.ErrorwCtx(ctx, "Failed to reload campaigns",
			"error", err,
		)
	}

	for {
		select {
		case <-ticker.C:
			if err := s.ReloadCampaigns(ctx); err != nil {
				s.logger.ErrorwCtx(ctx, "Failed to reload campaigns",
					"error", err,
				)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
