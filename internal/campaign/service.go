package campaign

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"dripline/internal/constants"
	"dripline/internal/rules"
	pkgerrors "dripline/pkg/errors"
	"dripline/pkg/models"
)

type service struct {
	repo                Repository
	versioningRepo      VersioningRepository
	configEventProducer *ConfigEventProducer
	audience            AudienceSource
	auditEnabled        bool
	clock               rules.Clock
}

type ServiceOption func(*service)

func WithVersioning(versioningRepo VersioningRepository) ServiceOption {
	return func(s *service) {
		s.versioningRepo = versioningRepo
		s.auditEnabled = true
	}
}

func WithConfigEvents(configEventProducer *ConfigEventProducer) ServiceOption {
	return func(s *service) {
		s.configEventProducer = configEventProducer
	}
}

func WithAudience(audience AudienceSource) ServiceOption {
	return func(s *service) {
		s.audience = audience
	}
}

func WithClock(clock rules.Clock) ServiceOption {
	return func(s *service) {
		s.clock = clock
	}
}

func NewService(repo Repository, opts ...ServiceOption) Service {
	s := &service{
		repo:  repo,
		clock: time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.versioningRepo != nil {
		s.auditEnabled = true
	}

	return s
}

func (s *service) CreateCampaign(ctx context.Context, req CreateCampaignRequest) (*Campaign, error) {
	if err := ValidateCampaignRequest(req); err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrValidation)
	}

	c := &Campaign{
		Name:            req.Name,
		Enabled:         getEnabledValue(req.Enabled),
		FromEmail:       req.FromEmail,
		FromEmailName:   req.FromEmailName,
		ReplyTo:         req.ReplyTo,
		SubjectTemplate: req.SubjectTemplate,
		BodyTemplate:    req.BodyTemplate,
	}

	if err := s.repo.CreateCampaign(ctx, c); err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrInternal)
	}

	for i, ruleReq := range req.Rules {
		rule := &CampaignRule{
			CampaignID: c.ID,
			Method:     rules.Method(ruleReq.Method),
			FieldName:  ruleReq.FieldName,
			Lookup:     rules.Lookup(ruleReq.Lookup),
			RawValue:   ruleReq.RawValue,
			Position:   ruleReq.Position,
		}
		if rule.Position == 0 {
			rule.Position = (i + 1) * constants.RulePositionStep
		}
		if err := s.repo.CreateRule(ctx, rule); err != nil {
			return nil, pkgerrors.Wrap(err, pkgerrors.ErrInternal)
		}
		c.Rules = append(c.Rules, *rule)
	}

	s.createVersionAndAudit(ctx, c, "create", nil)
	s.publishConfigEvent(ctx, models.ActionCreate, c.ID)

	return s.copyCampaign(c), nil
}

func (s *service) ListCampaigns(ctx context.Context, enabledOnly bool) ([]Campaign, error) {
	campaigns, err := s.repo.ListCampaigns(ctx, enabledOnly)
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrInternal)
	}
	return campaigns, nil
}

func (s *service) GetCampaign(ctx context.Context, id string) (*Campaign, error) {
	c, err := s.repo.GetCampaign(ctx, id)
	if err != nil {
		return nil, s.handleNotFoundError(err, id)
	}
	if c == nil {
		return nil, pkgerrors.ErrNotFound.WithDetail("id", id)
	}
	return s.copyCampaign(c), nil
}

func (s *service) UpdateCampaign(ctx context.Context, id string, req UpdateCampaignRequest) (*Campaign, error) {
	if err := ValidateUpdateCampaignRequest(req); err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrValidation)
	}

	c, err := s.repo.GetCampaign(ctx, id)
	if err != nil {
		return nil, s.handleNotFoundError(err, id)
	}
	if c == nil {
		return nil, pkgerrors.ErrNotFound.WithDetail("id", id)
	}

	oldValue, _ := s.campaignToMap(c)
	s.updateCampaignFields(c, req)

	if err := s.repo.UpdateCampaign(ctx, c); err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrInternal)
	}

	s.createVersionAndAudit(ctx, c, "update", oldValue)
	s.publishConfigEvent(ctx, models.ActionUpdate, c.ID)

	return s.copyCampaign(c), nil
}

func (s *service) DeleteCampaign(ctx context.Context, id string) error {
	c, err := s.repo.GetCampaign(ctx, id)
	if err != nil {
		return s.handleNotFoundError(err, id)
	}
	if c == nil {
		return pkgerrors.ErrNotFound.WithDetail("id", id)
	}

	oldValue, _ := s.campaignToMap(c)

	if err := s.repo.DeleteCampaign(ctx, id); err != nil {
		return pkgerrors.Wrap(err, pkgerrors.ErrInternal)
	}

	if s.auditEnabled && s.versioningRepo != nil {
		auditLog := s.buildAuditLog(id, "campaign", "delete", oldValue, nil, getChangedBy(ctx))
		_ = s.versioningRepo.CreateAuditLog(ctx, auditLog)
	}

	s.publishConfigEvent(ctx, models.ActionDelete, id)
	return nil
}

// ValidateCampaign dry-runs every rule against the current audience
// snapshot without sending anything. All problems come back in one
// report rather than stopping at the first.
func (s *service) ValidateCampaign(ctx context.Context, id string) (*ValidationReport, error) {
	c, err := s.repo.GetCampaign(ctx, id)
	if err != nil {
		return nil, s.handleNotFoundError(err, id)
	}
	if c == nil {
		return nil, pkgerrors.ErrNotFound.WithDetail("id", id)
	}

	var snapshot rules.Queryable
	if s.audience != nil {
		snapshot, err = s.audience.Snapshot(ctx)
		if err != nil {
			return nil, pkgerrors.Wrap(err, pkgerrors.ErrInternal)
		}
	} else {
		// no audience wired: syntactic checks still run
		snapshot = rules.NewCollection(nil)
	}

	engineRules := make([]rules.Rule, 0, len(c.Rules))
	for _, rule := range c.Rules {
		engineRules = append(engineRules, rule.Rule())
	}

	result := rules.NewRuleSet(engineRules).Validate(snapshot, s.clock)

	report := &ValidationReport{
		CampaignID: c.ID,
		Valid:      result.OK(),
		Issues:     make([]ValidationIssue, 0, len(result.Issues)),
		CheckedAt:  s.clock(),
	}
	for _, issue := range result.Issues {
		report.Issues = append(report.Issues, ValidationIssue{
			RuleID:   issue.RuleID,
			Category: issue.Category,
			Message:  issue.Message,
		})
	}

	return report, nil
}

func (s *service) CreateRule(ctx context.Context, campaignID string, req CreateRuleRequest) (*CampaignRule, error) {
	if err := ValidateRuleRequest(req); err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrValidation)
	}

	c, err := s.repo.GetCampaign(ctx, campaignID)
	if err != nil {
		return nil, s.handleNotFoundError(err, campaignID)
	}
	if c == nil {
		return nil, pkgerrors.ErrNotFound.WithDetail("id", campaignID)
	}

	rule := &CampaignRule{
		CampaignID: campaignID,
		Method:     rules.Method(req.Method),
		FieldName:  req.FieldName,
		Lookup:     rules.Lookup(req.Lookup),
		RawValue:   req.RawValue,
		Position:   req.Position,
	}
	if rule.Position == 0 {
		rule.Position = (len(c.Rules) + 1) * constants.RulePositionStep
	}

	if err := s.repo.CreateRule(ctx, rule); err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrInternal)
	}

	if s.configEventProducer != nil {
		_ = s.configEventProducer.PublishRuleEvent(ctx, models.ActionCreate, campaignID, rule.ID, getChangedBy(ctx))
	}

	return rule, nil
}

func (s *service) ListRules(ctx context.Context, campaignID string) ([]CampaignRule, error) {
	out, err := s.repo.ListRules(ctx, campaignID)
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrInternal)
	}
	return out, nil
}

func (s *service) UpdateRule(ctx context.Context, id string, req UpdateRuleRequest) (*CampaignRule, error) {
	if err := ValidateUpdateRuleRequest(req); err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrValidation)
	}

	rule, err := s.repo.GetRule(ctx, id)
	if err != nil {
		return nil, s.handleNotFoundError(err, id)
	}
	if rule == nil {
		return nil, pkgerrors.ErrNotFound.WithDetail("id", id)
	}

	if req.Method != nil {
		rule.Method = rules.Method(*req.Method)
	}
	if req.FieldName != nil {
		rule.FieldName = *req.FieldName
	}
	if req.Lookup != nil {
		rule.Lookup = rules.Lookup(*req.Lookup)
	}
	if req.RawValue != nil {
		rule.RawValue = *req.RawValue
	}
	if req.Position != nil {
		rule.Position = *req.Position
	}

	if err := s.repo.UpdateRule(ctx, rule); err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrInternal)
	}

	if s.configEventProducer != nil {
		_ = s.configEventProducer.PublishRuleEvent(ctx, models.ActionUpdate, rule.CampaignID, rule.ID, getChangedBy(ctx))
	}

	return rule, nil
}

func (s *service) DeleteRule(ctx context.Context, id string) error {
	rule, err := s.repo.GetRule(ctx, id)
	if err != nil {
		return s.handleNotFoundError(err, id)
	}
	if rule == nil {
		return pkgerrors.ErrNotFound.WithDetail("id", id)
	}

	if err := s.repo.DeleteRule(ctx, id); err != nil {
		return pkgerrors.Wrap(err, pkgerrors.ErrInternal)
	}

	if s.configEventProducer != nil {
		_ = s.configEventProducer.PublishRuleEvent(ctx, models.ActionDelete, rule.CampaignID, rule.ID, getChangedBy(ctx))
	}

	return nil
}

func (s *service) GetCampaignVersions(ctx context.Context, campaignID string) ([]CampaignVersion, error) {
	if s.versioningRepo == nil {
		return nil, pkgerrors.ErrInternal.WithDetail("message", "versioning not enabled")
	}
	versions, err := s.versioningRepo.GetVersions(ctx, campaignID)
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrInternal)
	}
	return versions, nil
}

func (s *service) GetAuditLogs(ctx context.Context, campaignID *string, entityType string, limit int) ([]AuditLog, error) {
	if s.versioningRepo == nil {
		return nil, pkgerrors.ErrInternal.WithDetail("message", "audit logging not enabled")
	}
	if limit <= 0 || limit > constants.MaxLimit {
		limit = constants.DefaultLimit
	}
	logs, err := s.versioningRepo.GetAuditLogs(ctx, campaignID, entityType, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrInternal)
	}
	return logs, nil
}

func (s *service) handleNotFoundError(err error, id string) error {
	if err == nil {
		return nil
	}
	if strings.Contains(err.Error(), "not found") {
		return pkgerrors.ErrNotFound.WithDetail("id", id)
	}
	return pkgerrors.Wrap(err, pkgerrors.ErrInternal)
}

func (s *service) createVersionAndAudit(ctx context.Context, c *Campaign, action string, oldValue map[string]interface{}) {
	if !s.auditEnabled || s.versioningRepo == nil {
		return
	}

	campaignJSON, err := campaignToJSON(c)
	if err != nil {
		return
	}

	version := s.buildVersion(ctx, c, campaignJSON)
	if err := s.versioningRepo.CreateVersion(ctx, version); err != nil {
		return
	}

	newValue, err := s.campaignToMap(c)
	if err != nil {
		return
	}

	auditLog := s.buildAuditLog(c.ID, "campaign", action, oldValue, newValue, getChangedBy(ctx))
	_ = s.versioningRepo.CreateAuditLog(ctx, auditLog)
}

func (s *service) buildVersion(ctx context.Context, c *Campaign, campaignJSON string) *CampaignVersion {
	version := 1
	if s.versioningRepo != nil {
		if nextVersion, err := s.versioningRepo.GetNextVersion(ctx, c.ID); err == nil {
			version = nextVersion
		}
	}

	return &CampaignVersion{
		CampaignID:   c.ID,
		CampaignData: campaignJSON,
		Version:      version,
		ChangedBy:    getChangedBy(ctx),
	}
}

func (s *service) buildAuditLog(campaignID, entityType, action string, oldValue, newValue map[string]interface{}, changedBy string) *AuditLog {
	return &AuditLog{
		CampaignID: &campaignID,
		EntityType: entityType,
		Action:     action,
		OldValue:   oldValue,
		NewValue:   newValue,
		ChangedBy:  changedBy,
	}
}

func (s *service) campaignToMap(c *Campaign) (map[string]interface{}, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	var result map[string]interface{}
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) publishConfigEvent(ctx context.Context, action, campaignID string) {
	if s.configEventProducer != nil {
		_ = s.configEventProducer.PublishCampaignEvent(ctx, action, campaignID, getChangedBy(ctx))
	}
}

func (s *service) updateCampaignFields(c *Campaign, req UpdateCampaignRequest) {
	if req.Name != nil {
		c.Name = *req.Name
	}
	if req.Enabled != nil {
		c.Enabled = *req.Enabled
	}
	if req.FromEmail != nil {
		c.FromEmail = *req.FromEmail
	}
	if req.FromEmailName != nil {
		c.FromEmailName = *req.FromEmailName
	}
	if req.ReplyTo != nil {
		c.ReplyTo = *req.ReplyTo
	}
	if req.SubjectTemplate != nil {
		c.SubjectTemplate = *req.SubjectTemplate
	}
	if req.BodyTemplate != nil {
		c.BodyTemplate = *req.BodyTemplate
	}
}

func (s *service) copyCampaign(c *Campaign) *Campaign {
	out := &Campaign{
		ID:              c.ID,
		Name:            c.Name,
		Enabled:         c.Enabled,
		FromEmail:       c.FromEmail,
		FromEmailName:   c.FromEmailName,
		ReplyTo:         c.ReplyTo,
		SubjectTemplate: c.SubjectTemplate,
		BodyTemplate:    c.BodyTemplate,
		CreatedAt:       c.CreatedAt,
		UpdatedAt:       c.UpdatedAt,
	}
	out.Rules = make([]CampaignRule, len(c.Rules))
	copy(out.Rules, c.Rules)
	return out
}

func getEnabledValue(reqEnabled *bool) bool {
	if reqEnabled == nil {
		return true
	}
	return *reqEnabled
}

func getChangedBy(ctx context.Context) string {
	if userID := ctx.Value("user_id"); userID != nil {
		if id, ok := userID.(string); ok {
			return id
		}
	}
	return "system"
}
