package campaign

import (
	"fmt"
	"strings"
	"time"

	"dripline/internal/rules"
)

func ValidateCampaignRequest(req CreateCampaignRequest) error {
	if req.Name == "" {
		return fmt.Errorf("name is required")
	}
	if req.FromEmail == "" {
		return fmt.Errorf("from_email is required")
	}
	if !strings.Contains(req.FromEmail, "@") {
		return fmt.Errorf("from_email is not a valid address: %s", req.FromEmail)
	}
	if req.SubjectTemplate == "" {
		return fmt.Errorf("subject_template is required")
	}
	if req.BodyTemplate == "" {
		return fmt.Errorf("body_template is required")
	}
	for i, rule := range req.Rules {
		if err := validateRuleFields(rule.Method, rule.Lookup, rule.RawValue, rule.FieldName); err != nil {
			return fmt.Errorf("rule[%d]: %w", i, err)
		}
	}
	return nil
}

func ValidateUpdateCampaignRequest(req UpdateCampaignRequest) error {
	if req.Name != nil && *req.Name == "" {
		return fmt.Errorf("name cannot be empty")
	}
	if req.FromEmail != nil && !strings.Contains(*req.FromEmail, "@") {
		return fmt.Errorf("from_email is not a valid address: %s", *req.FromEmail)
	}
	return nil
}

func ValidateRuleRequest(req CreateRuleRequest) error {
	return validateRuleFields(req.Method, req.Lookup, req.RawValue, req.FieldName)
}

func ValidateUpdateRuleRequest(req UpdateRuleRequest) error {
	if req.Method != nil {
		if !rules.Method(*req.Method).Valid() {
			return fmt.Errorf("invalid method: %s. Allowed: filter, exclude", *req.Method)
		}
	}
	if req.Lookup != nil {
		if _, err := rules.ParseLookup(*req.Lookup); err != nil {
			return err
		}
	}
	if req.FieldName != nil && *req.FieldName == "" {
		return fmt.Errorf("field_name cannot be empty")
	}
	if req.RawValue != nil {
		if _, err := rules.ParseValue(*req.RawValue, time.Now); err != nil {
			return err
		}
	}
	if req.Position != nil && *req.Position < 0 {
		return fmt.Errorf("position must be non-negative")
	}
	return nil
}

func validateRuleFields(method, lookup, rawValue, fieldName string) error {
	if !rules.Method(method).Valid() {
		return fmt.Errorf("invalid method: %s. Allowed: filter, exclude", method)
	}
	if fieldName == "" {
		return fmt.Errorf("field_name is required")
	}
	if _, err := rules.ParseLookup(lookup); err != nil {
		return err
	}
	// catches malformed relative-time values before they reach storage
	if _, err := rules.ParseValue(rawValue, time.Now); err != nil {
		return err
	}
	return nil
}
