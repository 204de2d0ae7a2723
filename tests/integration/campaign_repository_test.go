package integration

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dripline/internal/campaign"
	pkgerrors "dripline/pkg/errors"
)

func TestCampaignRepository_CreateAndGet(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false, false)
	repo := campaign.NewRepository(infra.PostgresDB)
	ctx := context.Background()

	c := createTestCampaign("welcome-drip")
	require.NoError(t, repo.CreateCampaign(ctx, c))
	require.NotEmpty(t, c.ID)

	require.NoError(t, repo.CreateRule(ctx, createTestRule(c.ID, "age", "gte", "18", 20)))
	require.NoError(t, repo.CreateRule(ctx, createTestRule(c.ID, "status", "exact", "active", 10)))

	got, err := repo.GetCampaign(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "welcome-drip", got.Name)
	assert.True(t, got.Enabled)
	require.Len(t, got.Rules, 2)
	assert.Equal(t, "status", got.Rules[0].FieldName)
	assert.Equal(t, "age", got.Rules[1].FieldName)
}

func TestCampaignRepository_DuplicateNameConflicts(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false, false)
	repo := campaign.NewRepository(infra.PostgresDB)
	ctx := context.Background()

	first := createTestCampaign("unique-name")
	require.NoError(t, repo.CreateCampaign(ctx, first))

	second := createTestCampaign("unique-name")
	err := repo.CreateCampaign(ctx, second)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsConflict(err))
}

func TestCampaignRepository_DeleteCascadesRules(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false, false)
	repo := campaign.NewRepository(infra.PostgresDB)
	ctx := context.Background()

	c := createTestCampaign("cascade-drip")
	require.NoError(t, repo.CreateCampaign(ctx, c))
	require.NoError(t, repo.CreateRule(ctx, createTestRule(c.ID, "age", "gte", "18", 10)))

	require.NoError(t, repo.DeleteCampaign(ctx, c.ID))

	rulesLeft, err := repo.ListRules(ctx, c.ID)
	require.NoError(t, err)
	assert.Empty(t, rulesLeft)
}

func TestCampaignRepository_RuleForUnknownCampaign(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false, false)
	repo := campaign.NewRepository(infra.PostgresDB)
	ctx := context.Background()

	err := repo.CreateRule(ctx, createTestRule("00000000-0000-0000-0000-000000000000", "age", "gte", "18", 10))
	require.Error(t, err)
}

func TestCampaignRepository_UpdateRule(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false, false)
	repo := campaign.NewRepository(infra.PostgresDB)
	ctx := context.Background()

	c := createTestCampaign("update-drip")
	require.NoError(t, repo.CreateCampaign(ctx, c))

	rule := createTestRule(c.ID, "age", "gte", "18", 10)
	require.NoError(t, repo.CreateRule(ctx, rule))

	rule.RawValue = "21"
	rule.Position = 30
	require.NoError(t, repo.UpdateRule(ctx, rule))

	got, err := repo.GetRule(ctx, rule.ID)
	require.NoError(t, err)
	assert.Equal(t, "21", got.RawValue)
	assert.Equal(t, 30, got.Position)
}

func TestCampaignRepository_ListEnabledOnly(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false, false)
	repo := campaign.NewRepository(infra.PostgresDB)
	ctx := context.Background()

	enabled := createTestCampaign("enabled-drip")
	require.NoError(t, repo.CreateCampaign(ctx, enabled))

	disabled := createTestCampaign("disabled-drip")
	disabled.Enabled = false
	require.NoError(t, repo.CreateCampaign(ctx, disabled))

	campaigns, err := repo.ListCampaigns(ctx, true)
	require.NoError(t, err)

	for _, c := range campaigns {
		assert.True(t, c.Enabled)
	}
}

func TestVersioningRepository_VersionsAndAudit(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false, false)
	repo := campaign.NewRepository(infra.PostgresDB)
	versioning := campaign.NewVersioningRepository(infra.PostgresDB)
	ctx := context.Background()

	svc := campaign.NewService(repo, campaign.WithVersioning(versioning))

	created, err := svc.CreateCampaign(ctx, campaign.CreateCampaignRequest{
		Name:            "versioned-drip",
		FromEmail:       "drip@example.com",
		SubjectTemplate: "s",
		BodyTemplate:    "b",
	})
	require.NoError(t, err)

	newName := "versioned-drip-v2"
	_, err = svc.UpdateCampaign(ctx, created.ID, campaign.UpdateCampaignRequest{Name: &newName})
	require.NoError(t, err)

	versions, err := versioning.GetVersions(ctx, created.ID)
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, 2, versions[0].Version)

	logs, err := versioning.GetAuditLogs(ctx, &created.ID, "", 10)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(logs), 2)
}
