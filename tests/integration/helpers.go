package integration

import (
	"dripline/internal/campaign"
	"dripline/internal/config"
	"dripline/internal/constants"
	"dripline/internal/logger"
	"dripline/internal/rules"
)

const containerStartupTimeout = 60

func createTestLogger() logger.Logger {
	return logger.NopLogger()
}

func createTestSendLogConfig() config.SendLogConfig {
	return config.SendLogConfig{
		TTLSeconds:   300,
		OnRedisError: constants.FallbackAllow,
	}
}

func createTestCampaign(name string) *campaign.Campaign {
	return &campaign.Campaign{
		Name:            name,
		Enabled:         true,
		FromEmail:       "drip@example.com",
		FromEmailName:   "Drip",
		SubjectTemplate: "Hello {{.name}}",
		BodyTemplate:    "Hi {{.name}}, welcome aboard.",
	}
}

func createTestRule(campaignID, field, lookup, rawValue string, position int) *campaign.CampaignRule {
	return &campaign.CampaignRule{
		CampaignID: campaignID,
		Method:     rules.MethodFilter,
		FieldName:  field,
		Lookup:     rules.Lookup(lookup),
		RawValue:   rawValue,
		Position:   position,
	}
}
