package services

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func mustDate(t *testing.T, value string) time.Time {
	t.Helper()
	parsed, err := ParseDate(value)
	assert.NoError(t, err)
	return parsed
}

func floatPtr(v float64) *float64 {
	return &v
}

func intPtr(v int) *int {
	return &v
}

func datePtr(t *testing.T, value string) *time.Time {
	d := mustDate(t, value)
	return &d
}

func validInstancePayload(t *testing.T) InstancePayload {
	return InstancePayload{
		TemplateID:       "tpl-1",
		ClientID:         "c1",
		PremiumAmount:    floatPtr(1000),
		CommissionAmount: floatPtr(100),
		StartDate:        datePtr(t, "2024-01-01"),
		ExpiryDate:       datePtr(t, "2025-01-01"),
	}
}

func TestValidateTemplate_Valid(t *testing.T) {
	result := ValidateTemplate(TemplatePayload{
		PolicyNumber: "POL-2024-001",
		PolicyType:   "Life",
		Provider:     "Acme Life",
	}, DefaultValidationConfig())

	assert.True(t, result.IsValid)
	assert.Empty(t, result.Errors)
	assert.Empty(t, result.Warnings)
}

func TestValidateTemplate_PolicyNumberRules(t *testing.T) {
	cfg := DefaultValidationConfig()

	tests := []struct {
		name    string
		number  string
		message string
	}{
		{"required", "", "Policy number is required"},
		{"too short", "AB", "Policy number must be at least 3 characters"},
		{"too long", "POL-" + strings.Repeat("X", 47), "Policy number cannot exceed 50 characters"},
		{"bad charset", "POL 2024/001", "Policy number can only contain letters, numbers, hyphens, underscores"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result := ValidateTemplate(TemplatePayload{
				PolicyNumber: tc.number,
				PolicyType:   "Auto",
				Provider:     "Acme",
			}, cfg)
			assert.False(t, result.IsValid)
			assert.Equal(t, tc.message, result.Errors["policy_number"])
		})
	}
}

func TestValidateTemplate_PolicyNumberWarnings(t *testing.T) {
	cfg := DefaultValidationConfig()

	// 4+ repeated identical characters warn but do not block
	result := ValidateTemplate(TemplatePayload{
		PolicyNumber: "POL-AAAA-01",
		PolicyType:   "Home",
		Provider:     "Acme",
	}, cfg)
	assert.True(t, result.IsValid)
	assert.Contains(t, result.Warnings, "policy_number")

	// "test"/"example" substrings are advisory
	result = ValidateTemplate(TemplatePayload{
		PolicyNumber: "POL-test-01",
		PolicyType:   "Home",
		Provider:     "Acme",
	}, cfg)
	assert.True(t, result.IsValid)
	assert.Contains(t, result.Warnings, "policy_number")
}

func TestValidateTemplate_PolicyType(t *testing.T) {
	cfg := DefaultValidationConfig()

	result := ValidateTemplate(TemplatePayload{PolicyNumber: "POL-001", Provider: "Acme"}, cfg)
	assert.Equal(t, "Policy type is required", result.Errors["policy_type"])

	result = ValidateTemplate(TemplatePayload{PolicyNumber: "POL-001", PolicyType: "PET", Provider: "Acme"}, cfg)
	assert.Equal(t, "Policy type must be one of: Life, Health, Auto, Home, Business", result.Errors["policy_type"])

	// Case-insensitive enum match
	for _, policyType := range []string{"Life", "HEALTH", "auto", "Home", "Business"} {
		result = ValidateTemplate(TemplatePayload{PolicyNumber: "POL-001", PolicyType: policyType, Provider: "Acme"}, cfg)
		assert.NotContains(t, result.Errors, "policy_type", "type %s should be valid", policyType)
	}
}

func TestValidateTemplate_ProviderRules(t *testing.T) {
	cfg := DefaultValidationConfig()

	result := ValidateTemplate(TemplatePayload{PolicyNumber: "POL-001", PolicyType: "Life", Provider: "A"}, cfg)
	assert.Equal(t, "Provider must be at least 2 characters", result.Errors["provider"])

	// Allowed punctuation
	result = ValidateTemplate(TemplatePayload{PolicyNumber: "POL-001", PolicyType: "Life", Provider: "Acme & Sons (Life), Inc."}, cfg)
	assert.True(t, result.IsValid)

	// Disallowed characters are a hard error in strict mode
	result = ValidateTemplate(TemplatePayload{PolicyNumber: "POL-001", PolicyType: "Life", Provider: "Acme #1"}, cfg)
	assert.False(t, result.IsValid)
	assert.Contains(t, result.Errors, "provider")

	// ...but only a warning when relaxed, so legacy names can migrate
	relaxed := cfg
	relaxed.StrictMode = false
	result = ValidateTemplate(TemplatePayload{PolicyNumber: "POL-001", PolicyType: "Life", Provider: "Acme #1"}, relaxed)
	assert.True(t, result.IsValid)
	assert.Contains(t, result.Warnings, "provider")
}

func TestValidateTemplate_DescriptionLength(t *testing.T) {
	long := strings.Repeat("d", 501)
	result := ValidateTemplate(TemplatePayload{
		PolicyNumber: "POL-001",
		PolicyType:   "Life",
		Provider:     "Acme",
		Description:  long,
	}, DefaultValidationConfig())
	assert.Equal(t, "Description cannot exceed 500 characters", result.Errors["description"])
}

func TestValidateInstance_Valid(t *testing.T) {
	now := mustDate(t, "2024-01-05")
	result := ValidateInstance(validInstancePayload(t), DefaultValidationConfig(), now)
	assert.True(t, result.IsValid)
	assert.Empty(t, result.Errors)
}

func TestValidateInstance_CommissionGreaterThanPremium(t *testing.T) {
	now := mustDate(t, "2024-01-05")
	payload := validInstancePayload(t)
	payload.PremiumAmount = floatPtr(500)
	payload.CommissionAmount = floatPtr(600)

	result := ValidateInstance(payload, DefaultValidationConfig(), now)
	assert.False(t, result.IsValid)
	assert.Equal(t, "Commission cannot be greater than premium amount", result.Errors["commission_amount"])
}

func TestValidateInstance_PremiumBounds(t *testing.T) {
	now := mustDate(t, "2024-01-05")
	cfg := DefaultValidationConfig()

	payload := validInstancePayload(t)
	payload.PremiumAmount = nil
	result := ValidateInstance(payload, cfg, now)
	assert.Equal(t, "Premium amount is required", result.Errors["premium_amount"])

	payload.PremiumAmount = floatPtr(0)
	result = ValidateInstance(payload, cfg, now)
	assert.Equal(t, "Premium amount must be greater than 0", result.Errors["premium_amount"])

	payload.PremiumAmount = floatPtr(10_000_001)
	result = ValidateInstance(payload, cfg, now)
	assert.Equal(t, "Premium amount cannot exceed 10,000,000", result.Errors["premium_amount"])

	// Warning bands
	payload.PremiumAmount = floatPtr(50)
	payload.CommissionAmount = floatPtr(10)
	result = ValidateInstance(payload, cfg, now)
	assert.True(t, result.IsValid)
	assert.Equal(t, "Premium amount is unusually low", result.Warnings["premium_amount"])

	payload.PremiumAmount = floatPtr(600_000)
	payload.CommissionAmount = floatPtr(10_000)
	result = ValidateInstance(payload, cfg, now)
	assert.True(t, result.IsValid)
	assert.Equal(t, "Premium amount above 500,000 may require approval", result.Warnings["premium_amount"])
}

func TestValidateInstance_CommissionRatioWarnings(t *testing.T) {
	now := mustDate(t, "2024-01-05")
	cfg := DefaultValidationConfig()

	payload := validInstancePayload(t)
	payload.PremiumAmount = floatPtr(1000)
	payload.CommissionAmount = floatPtr(600)
	result := ValidateInstance(payload, cfg, now)
	assert.True(t, result.IsValid)
	assert.Equal(t, "Commission exceeds 50% of the premium", result.Warnings["commission_amount"])

	payload.CommissionAmount = floatPtr(5)
	result = ValidateInstance(payload, cfg, now)
	assert.True(t, result.IsValid)
	assert.Equal(t, "Commission is below 1% of the premium", result.Warnings["commission_amount"])

	// Zero commission raises no ratio warning
	payload.CommissionAmount = floatPtr(0)
	result = ValidateInstance(payload, cfg, now)
	assert.True(t, result.IsValid)
	assert.NotContains(t, result.Warnings, "commission_amount")
}

func TestValidateInstance_StartDateWindow(t *testing.T) {
	now := mustDate(t, "2024-06-01")
	cfg := DefaultValidationConfig()

	payload := validInstancePayload(t)
	payload.StartDate = datePtr(t, "2025-07-01") // 13 months out
	payload.ExpiryDate = datePtr(t, "2026-07-01")
	result := ValidateInstance(payload, cfg, now)
	assert.Equal(t, "Start date cannot be more than 1 year in the future", result.Errors["start_date"])

	payload.StartDate = datePtr(t, "2022-01-01") // more than 2 years back
	payload.ExpiryDate = datePtr(t, "2026-01-01")
	result = ValidateInstance(payload, cfg, now)
	assert.Equal(t, "Start date cannot be more than 2 years in the past", result.Errors["start_date"])

	// Relaxed mode downgrades the window to warnings
	relaxed := cfg
	relaxed.StrictMode = false
	result = ValidateInstance(payload, relaxed, now)
	assert.True(t, result.IsValid)
	assert.Contains(t, result.Warnings, "start_date")

	// Advisory bands inside the hard window
	payload.StartDate = datePtr(t, "2024-10-01") // ~120 days out
	payload.ExpiryDate = datePtr(t, "2025-10-01")
	result = ValidateInstance(payload, cfg, now)
	assert.True(t, result.IsValid)
	assert.Equal(t, "Start date is more than 90 days in the future", result.Warnings["start_date"])

	payload.StartDate = datePtr(t, "2023-01-01") // ~17 months back
	payload.ExpiryDate = datePtr(t, "2025-01-01")
	result = ValidateInstance(payload, cfg, now)
	assert.True(t, result.IsValid)
	assert.Equal(t, "Start date is more than 365 days in the past", result.Warnings["start_date"])
}

func TestValidateInstance_ExpiryRules(t *testing.T) {
	now := mustDate(t, "2024-01-05")
	cfg := DefaultValidationConfig()

	payload := validInstancePayload(t)
	payload.ExpiryDate = nil
	payload.DurationMonths = nil
	result := ValidateInstance(payload, cfg, now)
	assert.Equal(t, "Expiry date is required", result.Errors["expiry_date"])

	payload.ExpiryDate = datePtr(t, "2024-01-01") // equals start
	result = ValidateInstance(payload, cfg, now)
	assert.Equal(t, "Expiry date must be after start date", result.Errors["expiry_date"])

	payload.ExpiryDate = datePtr(t, "2034-06-01") // beyond 10 years
	result = ValidateInstance(payload, cfg, now)
	assert.Equal(t, "Policy duration cannot exceed 10 years", result.Errors["expiry_date"])
}

func TestValidateInstance_DurationMonths(t *testing.T) {
	now := mustDate(t, "2024-01-05")
	cfg := DefaultValidationConfig()

	payload := validInstancePayload(t)
	payload.ExpiryDate = nil
	payload.DurationMonths = intPtr(12)
	result := ValidateInstance(payload, cfg, now)
	assert.True(t, result.IsValid)

	payload.DurationMonths = intPtr(121)
	result = ValidateInstance(payload, cfg, now)
	assert.Equal(t, "Duration must be between 1 and 120 months", result.Errors["duration_months"])

	payload.DurationMonths = intPtr(3)
	result = ValidateInstance(payload, cfg, now)
	assert.True(t, result.IsValid)
	assert.Equal(t, "Duration under 6 months is unusually short", result.Warnings["duration_months"])

	payload.DurationMonths = intPtr(72)
	result = ValidateInstance(payload, cfg, now)
	assert.True(t, result.IsValid)
	assert.Equal(t, "Duration over 60 months is unusually long", result.Warnings["duration_months"])
}

func TestValidateInstance_ConfigSkipsRuleGroups(t *testing.T) {
	now := mustDate(t, "2024-01-05")

	payload := validInstancePayload(t)
	payload.PremiumAmount = floatPtr(500)
	payload.CommissionAmount = floatPtr(600)
	payload.ExpiryDate = datePtr(t, "2023-01-01") // before start

	cfg := DefaultValidationConfig()
	cfg.ValidateAmounts = false
	cfg.ValidateDates = false
	result := ValidateInstance(payload, cfg, now)
	assert.True(t, result.IsValid, "disabled rule groups must not run")

	cfg.ValidateAmounts = true
	result = ValidateInstance(payload, cfg, now)
	assert.Contains(t, result.Errors, "commission_amount")
	assert.NotContains(t, result.Errors, "expiry_date")
}

func TestValidateInstance_ReferenceShape(t *testing.T) {
	now := mustDate(t, "2024-01-05")
	cfg := DefaultValidationConfig()

	payload := validInstancePayload(t)
	payload.TemplateID = ""
	result := ValidateInstance(payload, cfg, now)
	assert.Equal(t, "Template is required", result.Errors["template_id"])

	payload.TemplateID = "tpl 1"
	result = ValidateInstance(payload, cfg, now)
	assert.Equal(t, "Template identifier is not valid", result.Errors["template_id"])
}

func TestDeriveExpiryDate(t *testing.T) {
	start := mustDate(t, "2024-01-15")
	assert.Equal(t, mustDate(t, "2025-01-15"), DeriveExpiryDate(start, 12))
	assert.Equal(t, mustDate(t, "2024-07-15"), DeriveExpiryDate(start, 6))
}

func TestValidationIsPure(t *testing.T) {
	now := mustDate(t, "2024-01-05")
	payload := validInstancePayload(t)
	cfg := DefaultValidationConfig()

	first := ValidateInstance(payload, cfg, now)
	second := ValidateInstance(payload, cfg, now)
	assert.Equal(t, first, second)
}
