package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dripline/internal/campaign"
)

const (
	managementServiceURL = "http://localhost:8084"
)

func TestManagementServiceHealth(t *testing.T) {
	url := fmt.Sprintf("%s/health", managementServiceURL)
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var health map[string]interface{}
	err = json.NewDecoder(resp.Body).Decode(&health)
	require.NoError(t, err)
	assert.NotNil(t, health["status"])
}

func TestCampaignCRUD(t *testing.T) {
	createReq := campaign.CreateCampaignRequest{
		Name:            fmt.Sprintf("e2e-welcome-%d", time.Now().UnixNano()),
		FromEmail:       "drip@example.com",
		FromEmailName:   "Drip",
		SubjectTemplate: "Welcome, {{.name}}!",
		BodyTemplate:    "Hi {{.name}}, thanks for signing up.",
		Rules: []campaign.CreateRuleRequest{
			{Method: "filter", FieldName: "age", Lookup: "gte", RawValue: "18"},
			{Method: "exclude", FieldName: "status", Lookup: "exact", RawValue: "banned"},
		},
	}

	created := createCampaign(t, createReq)
	defer deleteCampaign(t, created.ID)

	got := getCampaign(t, created.ID)
	assert.Equal(t, createReq.Name, got.Name)
	assert.Equal(t, createReq.FromEmail, got.FromEmail)
	require.Len(t, got.Rules, 2)
	assert.Equal(t, 10, got.Rules[0].Position)
	assert.Equal(t, 20, got.Rules[1].Position)

	campaigns := listCampaigns(t)
	found := false
	for _, c := range campaigns {
		if c.ID == created.ID {
			found = true
			break
		}
	}
	assert.True(t, found, "created campaign should be in the list")

	newName := createReq.Name + "-v2"
	enabled := false
	updated := updateCampaign(t, created.ID, campaign.UpdateCampaignRequest{
		Name:    &newName,
		Enabled: &enabled,
	})
	assert.Equal(t, newName, updated.Name)
	assert.False(t, updated.Enabled)

	versions := getCampaignVersions(t, created.ID)
	assert.GreaterOrEqual(t, len(versions), 2)

	auditLogs := getCampaignAuditLogs(t, created.ID)
	assert.GreaterOrEqual(t, len(auditLogs), 1)
}

func TestRuleCRUD(t *testing.T) {
	created := createCampaign(t, campaign.CreateCampaignRequest{
		Name:            fmt.Sprintf("e2e-rules-%d", time.Now().UnixNano()),
		FromEmail:       "drip@example.com",
		SubjectTemplate: "s",
		BodyTemplate:    "b",
	})
	defer deleteCampaign(t, created.ID)

	rule := createRule(t, created.ID, campaign.CreateRuleRequest{
		Method:    "filter",
		FieldName: "last_login",
		Lookup:    "gte",
		RawValue:  "now-7 days",
	})
	assert.Equal(t, 10, rule.Position)

	ruleList := listRules(t, created.ID)
	require.Len(t, ruleList, 1)

	newValue := "now-30 days"
	updatedRule := updateRule(t, rule.ID, campaign.UpdateRuleRequest{RawValue: &newValue})
	assert.Equal(t, newValue, updatedRule.RawValue)

	deleteRule(t, rule.ID)
	ruleList = listRules(t, created.ID)
	assert.Empty(t, ruleList)
}

func TestValidateCampaign(t *testing.T) {
	created := createCampaign(t, campaign.CreateCampaignRequest{
		Name:            fmt.Sprintf("e2e-validate-%d", time.Now().UnixNano()),
		FromEmail:       "drip@example.com",
		SubjectTemplate: "s",
		BodyTemplate:    "b",
		Rules: []campaign.CreateRuleRequest{
			{Method: "filter", FieldName: "age", Lookup: "gte", RawValue: "18"},
		},
	})
	defer deleteCampaign(t, created.ID)

	report := validateCampaign(t, created.ID)
	assert.Equal(t, created.ID, report.CampaignID)
	assert.True(t, report.Valid)
	assert.Empty(t, report.Issues)
}

func TestValidationErrors(t *testing.T) {
	resp := createCampaignWithError(t, campaign.CreateCampaignRequest{Name: ""})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = createCampaignWithError(t, campaign.CreateCampaignRequest{
		Name:            fmt.Sprintf("e2e-badrule-%d", time.Now().UnixNano()),
		FromEmail:       "drip@example.com",
		SubjectTemplate: "s",
		BodyTemplate:    "b",
		Rules: []campaign.CreateRuleRequest{
			{Method: "filter", FieldName: "age", Lookup: "between", RawValue: "1"},
		},
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAuditLogs(t *testing.T) {
	created := createCampaign(t, campaign.CreateCampaignRequest{
		Name:            fmt.Sprintf("e2e-audit-%d", time.Now().UnixNano()),
		FromEmail:       "drip@example.com",
		SubjectTemplate: "s",
		BodyTemplate:    "b",
	})
	defer deleteCampaign(t, created.ID)

	newName := created.Name + "-renamed"
	_ = updateCampaign(t, created.ID, campaign.UpdateCampaignRequest{Name: &newName})

	time.Sleep(1 * time.Second)

	logs := getAllAuditLogs(t, created.ID, "campaign")
	assert.GreaterOrEqual(t, len(logs), 1)
}

func createCampaign(t *testing.T, req campaign.CreateCampaignRequest) campaign.Campaign {
	t.Helper()

	body, err := json.Marshal(req)
	require.NoError(t, err)

	resp, err := http.Post(
		fmt.Sprintf("%s/api/v1/campaigns", managementServiceURL),
		"application/json",
		bytes.NewBuffer(body),
	)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var c campaign.Campaign
	err = json.NewDecoder(resp.Body).Decode(&c)
	require.NoError(t, err)

	return c
}

func createCampaignWithError(t *testing.T, req campaign.CreateCampaignRequest) *http.Response {
	t.Helper()

	body, err := json.Marshal(req)
	require.NoError(t, err)

	resp, err := http.Post(
		fmt.Sprintf("%s/api/v1/campaigns", managementServiceURL),
		"application/json",
		bytes.NewBuffer(body),
	)
	require.NoError(t, err)

	return resp
}

func getCampaign(t *testing.T, id string) campaign.Campaign {
	t.Helper()

	resp, err := http.Get(fmt.Sprintf("%s/api/v1/campaigns/%s", managementServiceURL, id))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var c campaign.Campaign
	err = json.NewDecoder(resp.Body).Decode(&c)
	require.NoError(t, err)

	return c
}

func listCampaigns(t *testing.T) []campaign.Campaign {
	t.Helper()

	resp, err := http.Get(fmt.Sprintf("%s/api/v1/campaigns", managementServiceURL))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var campaigns []campaign.Campaign
	err = json.NewDecoder(resp.Body).Decode(&campaigns)
	require.NoError(t, err)

	return campaigns
}

func updateCampaign(t *testing.T, id string, req campaign.UpdateCampaignRequest) campaign.Campaign {
	t.Helper()

	body, err := json.Marshal(req)
	require.NoError(t, err)

	httpReq, err := http.NewRequest(
		"PUT",
		fmt.Sprintf("%s/api/v1/campaigns/%s", managementServiceURL, id),
		bytes.NewBuffer(body),
	)
	require.NoError(t, err)
	httpReq.Header.Set("Content-Type", "application/json")

	client := &http.Client{}
	resp, err := client.Do(httpReq)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var c campaign.Campaign
	err = json.NewDecoder(resp.Body).Decode(&c)
	require.NoError(t, err)

	return c
}

func deleteCampaign(t *testing.T, id string) {
	t.Helper()

	httpReq, err := http.NewRequest(
		"DELETE",
		fmt.Sprintf("%s/api/v1/campaigns/%s", managementServiceURL, id),
		nil,
	)
	require.NoError(t, err)

	client := &http.Client{}
	resp, err := client.Do(httpReq)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func validateCampaign(t *testing.T, id string) campaign.ValidationReport {
	t.Helper()

	resp, err := http.Post(
		fmt.Sprintf("%s/api/v1/campaigns/%s/validate", managementServiceURL, id),
		"application/json",
		nil,
	)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var report campaign.ValidationReport
	err = json.NewDecoder(resp.Body).Decode(&report)
	require.NoError(t, err)

	return report
}

func getCampaignVersions(t *testing.T, id string) []campaign.CampaignVersion {
	t.Helper()

	resp, err := http.Get(fmt.Sprintf("%s/api/v1/campaigns/%s/versions", managementServiceURL, id))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var versions []campaign.CampaignVersion
	err = json.NewDecoder(resp.Body).Decode(&versions)
	require.NoError(t, err)

	return versions
}

func getCampaignAuditLogs(t *testing.T, id string) []campaign.AuditLog {
	t.Helper()

	resp, err := http.Get(fmt.Sprintf("%s/api/v1/campaigns/%s/audit", managementServiceURL, id))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var logs []campaign.AuditLog
	err = json.NewDecoder(resp.Body).Decode(&logs)
	require.NoError(t, err)

	return logs
}

func getAllAuditLogs(t *testing.T, campaignID, entityType string) []campaign.AuditLog {
	t.Helper()

	url := fmt.Sprintf("%s/api/v1/audit/logs?campaign_id=%s&entity_type=%s", managementServiceURL, campaignID, entityType)
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var logs []campaign.AuditLog
	err = json.NewDecoder(resp.Body).Decode(&logs)
	require.NoError(t, err)

	return logs
}

func createRule(t *testing.T, campaignID string, req campaign.CreateRuleRequest) campaign.CampaignRule {
	t.Helper()

	body, err := json.Marshal(req)
	require.NoError(t, err)

	resp, err := http.Post(
		fmt.Sprintf("%s/api/v1/campaigns/%s/rules", managementServiceURL, campaignID),
		"application/json",
		bytes.NewBuffer(body),
	)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var rule campaign.CampaignRule
	err = json.NewDecoder(resp.Body).Decode(&rule)
	require.NoError(t, err)

	return rule
}

func listRules(t *testing.T, campaignID string) []campaign.CampaignRule {
	t.Helper()

	resp, err := http.Get(fmt.Sprintf("%s/api/v1/campaigns/%s/rules", managementServiceURL, campaignID))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var ruleList []campaign.CampaignRule
	err = json.NewDecoder(resp.Body).Decode(&ruleList)
	require.NoError(t, err)

	return ruleList
}

func updateRule(t *testing.T, id string, req campaign.UpdateRuleRequest) campaign.CampaignRule {
	t.Helper()

	body, err := json.Marshal(req)
	require.NoError(t, err)

	httpReq, err := http.NewRequest(
		"PUT",
		fmt.Sprintf("%s/api/v1/rules/%s", managementServiceURL, id),
		bytes.NewBuffer(body),
	)
	require.NoError(t, err)
	httpReq.Header.Set("Content-Type", "application/json")

	client := &http.Client{}
	resp, err := client.Do(httpReq)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var rule campaign.CampaignRule
	err = json.NewDecoder(resp.Body).Decode(&rule)
	require.NoError(t, err)

	return rule
}

func deleteRule(t *testing.T, id string) {
	t.Helper()

	httpReq, err := http.NewRequest(
		"DELETE",
		fmt.Sprintf("%s/api/v1/rules/%s", managementServiceURL, id),
		nil,
	)
	require.NoError(t, err)

	client := &http.Client{}
	resp, err := client.Do(httpReq)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusNoContent, resp.StatusCode)
}
