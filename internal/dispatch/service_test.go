package dispatch

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dripline/internal/audience"
	"dripline/internal/campaign"
	"dripline/internal/config"
	"dripline/internal/logger"
	"dripline/internal/rules"
	"dripline/pkg/models"
)

type fakeCampaignRepo struct {
	campaigns []campaign.Campaign
	rules     map[string][]campaign.CampaignRule
}

func (f *fakeCampaignRepo) CreateCampaign(ctx context.Context, c *campaign.Campaign) error {
	return errors.New("not implemented")
}

func (f *fakeCampaignRepo) ListCampaigns(ctx context.Context, enabledOnly bool) ([]campaign.Campaign, error) {
	if !enabledOnly {
		return f.campaigns, nil
	}
	var enabled []campaign.Campaign
	for _, c := range f.campaigns {
		if c.Enabled {
			enabled = append(enabled, c)
		}
	}
	return enabled, nil
}

func (f *fakeCampaignRepo) GetCampaign(ctx context.Context, id string) (*campaign.Campaign, error) {
	for i := range f.campaigns {
		if f.campaigns[i].ID == id {
			return &f.campaigns[i], nil
		}
	}
	return nil, errors.New("not found")
}

func (f *fakeCampaignRepo) UpdateCampaign(ctx context.Context, c *campaign.Campaign) error {
	return errors.New("not implemented")
}

func (f *fakeCampaignRepo) DeleteCampaign(ctx context.Context, id string) error {
	return errors.New("not implemented")
}

func (f *fakeCampaignRepo) CreateRule(ctx context.Context, rule *campaign.CampaignRule) error {
	return errors.New("not implemented")
}

func (f *fakeCampaignRepo) ListRules(ctx context.Context, campaignID string) ([]campaign.CampaignRule, error) {
	return f.rules[campaignID], nil
}

func (f *fakeCampaignRepo) GetRule(ctx context.Context, id string) (*campaign.CampaignRule, error) {
	return nil, errors.New("not found")
}

func (f *fakeCampaignRepo) UpdateRule(ctx context.Context, rule *campaign.CampaignRule) error {
	return errors.New("not implemented")
}

func (f *fakeCampaignRepo) DeleteRule(ctx context.Context, id string) error {
	return errors.New("not implemented")
}

type fakeGuard struct {
	seen     map[string]bool
	checkErr error
}

func newFakeGuard() *fakeGuard {
	return &fakeGuard{seen: make(map[string]bool)}
}

func (f *fakeGuard) CheckAndMark(ctx context.Context, campaignID, memberID string) (bool, error) {
	if f.checkErr != nil {
		return false, f.checkErr
	}
	key := campaignID + ":" + memberID
	if f.seen[key] {
		return false, nil
	}
	f.seen[key] = true
	return true, nil
}

type fakeProducer struct {
	published []models.MessageEnvelope
	topics    []string
}

func (f *fakeProducer) Publish(ctx context.Context, topic string, msg models.MessageEnvelope) error {
	f.published = append(f.published, msg)
	f.topics = append(f.topics, topic)
	return nil
}

func (f *fakeProducer) Close() error { return nil }

func testCampaign() campaign.Campaign {
	return campaign.Campaign{
		ID:              "camp-1",
		Name:            "Welcome drip",
		Enabled:         true,
		FromEmail:       "hello@example.com",
		SubjectTemplate: "Welcome, {{.name}}!",
		BodyTemplate:    "Hi {{.name}}, thanks for signing up.",
		Rules: []campaign.CampaignRule{
			{
				ID:         "rule-1",
				CampaignID: "camp-1",
				Method:     rules.MethodFilter,
				FieldName:  "age",
				Lookup:     rules.LookupGTE,
				RawValue:   "18",
				Position:   10,
			},
		},
	}
}

func testAudience() *audience.MemorySource {
	return audience.NewMemorySource([]audience.Member{
		{"member_id": "u1", "email": "alice@example.com", "name": "Alice", "age": 30},
		{"member_id": "u2", "email": "bob@example.com", "name": "Bob", "age": 16},
		{"member_id": "u3", "email": "carol@example.com", "name": "Carol", "age": 25},
	})
}

func newTestService(repo campaign.Repository, source Source, guard SendGuard, producer *fakeProducer) *Service {
	return NewService(
		repo,
		source,
		guard,
		producer,
		"drip_messages",
		config.DispatchConfig{},
		logger.NopLogger(),
		WithClock(func() time.Time {
			return time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
		}),
	)
}

func TestRunCampaign_QueuesMatchingMembers(t *testing.T) {
	c := testCampaign()
	producer := &fakeProducer{}
	svc := newTestService(&fakeCampaignRepo{}, testAudience(), newFakeGuard(), producer)

	result, err := svc.RunCampaign(context.Background(), &c)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Matched)
	assert.Equal(t, 2, result.Queued)
	assert.Equal(t, 0, result.Skipped)
	require.Len(t, producer.published, 2)
	assert.Equal(t, "drip_messages", producer.topics[0])
}

func TestRunCampaign_RendersTemplates(t *testing.T) {
	c := testCampaign()
	producer := &fakeProducer{}
	svc := newTestService(&fakeCampaignRepo{}, testAudience(), newFakeGuard(), producer)

	_, err := svc.RunCampaign(context.Background(), &c)
	require.NoError(t, err)

	require.NotEmpty(t, producer.published)
	first := producer.published[0]
	assert.Equal(t, "Welcome, Alice!", first.Payload["subject"])
	assert.Equal(t, "Hi Alice, thanks for signing up.", first.Payload["body"])
	assert.Equal(t, "alice@example.com", first.Payload["email"])
	assert.Equal(t, "camp-1", first.Payload["campaign_id"])
}

func TestRunCampaign_EnvelopeMetadata(t *testing.T) {
	c := testCampaign()
	producer := &fakeProducer{}
	svc := newTestService(&fakeCampaignRepo{}, testAudience(), newFakeGuard(), producer)

	_, err := svc.RunCampaign(context.Background(), &c)
	require.NoError(t, err)

	require.NotEmpty(t, producer.published)
	meta := producer.published[0].Metadata
	require.NotNil(t, meta.Campaign)
	assert.Equal(t, "camp-1", meta.Campaign.CampaignID)
	assert.Equal(t, []string{"rule-1"}, meta.Campaign.RuleIDs)
	require.NotNil(t, meta.SendCheck)
	assert.True(t, meta.SendCheck.FirstSend)
}

func TestRunCampaign_SecondRunSendsNothing(t *testing.T) {
	c := testCampaign()
	producer := &fakeProducer{}
	svc := newTestService(&fakeCampaignRepo{}, testAudience(), newFakeGuard(), producer)

	ctx := context.Background()
	_, err := svc.RunCampaign(ctx, &c)
	require.NoError(t, err)

	result, err := svc.RunCampaign(ctx, &c)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Matched)
	assert.Equal(t, 0, result.Queued)
	assert.Equal(t, 2, result.Skipped)
	assert.Len(t, producer.published, 2)
}

func TestRunCampaign_ExcludeRule(t *testing.T) {
	c := testCampaign()
	c.Rules = append(c.Rules, campaign.CampaignRule{
		ID:         "rule-2",
		CampaignID: "camp-1",
		Method:     rules.MethodExclude,
		FieldName:  "name",
		Lookup:     rules.LookupExact,
		RawValue:   "Carol",
		Position:   20,
	})
	producer := &fakeProducer{}
	svc := newTestService(&fakeCampaignRepo{}, testAudience(), newFakeGuard(), producer)

	result, err := svc.RunCampaign(context.Background(), &c)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Matched)
	require.Len(t, producer.published, 1)
	assert.Equal(t, "alice@example.com", producer.published[0].Payload["email"])
}

func TestRunCampaign_SkipsMembersWithoutEmail(t *testing.T) {
	c := testCampaign()
	source := audience.NewMemorySource([]audience.Member{
		{"member_id": "u1", "name": "Alice", "age": 30},
	})
	producer := &fakeProducer{}
	svc := newTestService(&fakeCampaignRepo{}, source, newFakeGuard(), producer)

	result, err := svc.RunCampaign(context.Background(), &c)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Matched)
	assert.Equal(t, 0, result.Queued)
	assert.Empty(t, producer.published)
}

func TestRunCampaign_BadRuleFailsRun(t *testing.T) {
	c := testCampaign()
	c.Rules[0].Lookup = rules.Lookup("between")
	producer := &fakeProducer{}
	svc := newTestService(&fakeCampaignRepo{}, testAudience(), newFakeGuard(), producer)

	_, err := svc.RunCampaign(context.Background(), &c)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rule-1")
	assert.Empty(t, producer.published)
}

func TestRunCampaign_GuardErrorSkipsMember(t *testing.T) {
	c := testCampaign()
	guard := newFakeGuard()
	guard.checkErr = errors.New("redis down")
	producer := &fakeProducer{}
	svc := newTestService(&fakeCampaignRepo{}, testAudience(), guard, producer)

	result, err := svc.RunCampaign(context.Background(), &c)
	require.NoError(t, err)

	assert.Equal(t, 0, result.Queued)
	assert.Equal(t, 2, result.Skipped)
	assert.Empty(t, producer.published)
}

func TestReloadCampaigns_LoadsEnabledWithRules(t *testing.T) {
	enabled := testCampaign()
	enabled.Rules = nil
	disabled := campaign.Campaign{ID: "camp-2", Name: "Paused", Enabled: false}

	repo := &fakeCampaignRepo{
		campaigns: []campaign.Campaign{enabled, disabled},
		rules: map[string][]campaign.CampaignRule{
			"camp-1": {{ID: "rule-1", CampaignID: "camp-1", Method: rules.MethodFilter, FieldName: "age", Lookup: rules.LookupGTE, RawValue: "18"}},
		},
	}
	svc := newTestService(repo, testAudience(), newFakeGuard(), &fakeProducer{})

	require.NoError(t, svc.ReloadCampaigns(context.Background()))

	loaded := svc.getLoadedCampaigns()
	require.Len(t, loaded, 1)
	assert.Equal(t, "camp-1", loaded[0].ID)
	require.Len(t, loaded[0].Rules, 1)
}

func TestRunAll_ContinuesPastFailingCampaign(t *testing.T) {
	bad := testCampaign()
	bad.ID = "camp-bad"
	bad.Rules[0].Lookup = rules.Lookup("between")
	good := testCampaign()

	repo := &fakeCampaignRepo{campaigns: []campaign.Campaign{bad, good}}
	producer := &fakeProducer{}
	svc := newTestService(repo, testAudience(), newFakeGuard(), producer)

	svc.loadedMu.Lock()
	svc.loaded = []campaign.Campaign{bad, good}
	svc.loadedMu.Unlock()

	results := svc.RunAll(context.Background())
	require.Len(t, results, 1)
	assert.Equal(t, "camp-1", results[0].CampaignID)
	assert.Len(t, producer.published, 2)
}

func TestRunCampaign_RelativeTimeRule(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	source := audience.NewMemorySource([]audience.Member{
		{"member_id": "u1", "email": "a@example.com", "joined_at": now.Add(-48 * time.Hour)},
		{"member_id": "u2", "email": "b@example.com", "joined_at": now.Add(-2 * time.Hour)},
	})

	c := testCampaign()
	c.Rules = []campaign.CampaignRule{{
		ID:         "rule-1",
		CampaignID: "camp-1",
		Method:     rules.MethodFilter,
		FieldName:  "joined_at",
		Lookup:     rules.LookupLTE,
		RawValue:   "now-1 day",
	}}

	producer := &fakeProducer{}
	svc := newTestService(&fakeCampaignRepo{}, source, newFakeGuard(), producer)

	result, err := svc.RunCampaign(context.Background(), &c)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Matched)
	require.Len(t, producer.published, 1)
	assert.Equal(t, "a@example.com", producer.published[0].Payload["email"])
}

func TestRunCampaign_MessageIDsUnique(t *testing.T) {
	c := testCampaign()
	producer := &fakeProducer{}
	svc := newTestService(&fakeCampaignRepo{}, testAudience(), newFakeGuard(), producer)

	_, err := svc.RunCampaign(context.Background(), &c)
	require.NoError(t, err)

	seen := make(map[string]bool)
	for i, env := range producer.published {
		require.NotEmpty(t, env.ID, fmt.Sprintf("envelope %d has empty ID", i))
		assert.False(t, seen[env.ID])
		seen[env.ID] = true
	}
}
