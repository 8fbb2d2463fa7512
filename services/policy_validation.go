package services

import (
	"fmt"
	"insurance_crm_go/models"
	"regexp"
	"strings"
	"time"
)

// Validation bounds for policy templates and instances
const (
	PolicyNumberMinLength = 3
	PolicyNumberMaxLength = 50
	ProviderMinLength     = 2
	ProviderMaxLength     = 100
	DescriptionMaxLength  = 500

	MaxPremiumAmount    = 10_000_000.0
	MaxCommissionAmount = 1_000_000.0

	MinDurationMonths = 1
	MaxDurationMonths = 120
	MaxPolicyYears    = 10
)

var (
	policyNumberPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
	providerPattern     = regexp.MustCompile(`^[A-Za-z0-9 &.,()\-]+$`)
)

// ValidationConfig controls which rule groups run and how strictly. It is
// passed in explicitly so the validators stay pure; the migration phase in
// effect decides the values (see PhaseByName). AllowDuplicates is consumed
// by the stores and the migration layer, not by the pure validators.
type ValidationConfig struct {
	StrictMode      bool `json:"strict_mode"`
	AllowDuplicates bool `json:"allow_duplicates"`
	ValidateDates   bool `json:"validate_dates"`
	ValidateAmounts bool `json:"validate_amounts"`
}

// DefaultValidationConfig returns the strict configuration used outside of
// migration runs
func DefaultValidationConfig() ValidationConfig {
	return ValidationConfig{
		StrictMode:      true,
		AllowDuplicates: false,
		ValidateDates:   true,
		ValidateAmounts: true,
	}
}

// ValidationResult carries field-level errors and advisory warnings.
// Errors block the mutation; warnings are surfaced to the caller but never do.
type ValidationResult struct {
	IsValid  bool              `json:"is_valid"`
	Errors   map[string]string `json:"errors"`
	Warnings map[string]string `json:"warnings"`
}

func newValidationResult() *ValidationResult {
	return &ValidationResult{
		IsValid:  true,
		Errors:   map[string]string{},
		Warnings: map[string]string{},
	}
}

func (r *ValidationResult) addError(field, message string) {
	if _, exists := r.Errors[field]; !exists {
		r.Errors[field] = message
	}
	r.IsValid = false
}

func (r *ValidationResult) addWarning(field, message string) {
	if _, exists := r.Warnings[field]; !exists {
		r.Warnings[field] = message
	}
}

// TemplatePayload is a candidate policy template submitted for validation
type TemplatePayload struct {
	PolicyNumber string `json:"policy_number"`
	PolicyType   string `json:"policy_type"`
	Provider     string `json:"provider"`
	Description  string `json:"description"`
}

// InstancePayload is a candidate policy instance submitted for validation.
// Pointer fields distinguish "absent" from zero values so partial updates can
// be validated against the merged record.
type InstancePayload struct {
	TemplateID       string     `json:"template_id"`
	ClientID         string     `json:"client_id"`
	PremiumAmount    *float64   `json:"premium_amount"`
	CommissionAmount *float64   `json:"commission_amount"`
	StartDate        *time.Time `json:"start_date"`
	ExpiryDate       *time.Time `json:"expiry_date"`
	DurationMonths   *int       `json:"duration_months"`
	Status           string     `json:"status"`
}

// ValidateTemplate checks a candidate template against field-level rules.
// Pure and side-effect-free; uniqueness belongs to the template store.
func ValidateTemplate(payload TemplatePayload, cfg ValidationConfig) *ValidationResult {
	result := newValidationResult()

	validatePolicyNumber(result, payload.PolicyNumber)
	validatePolicyType(result, payload.PolicyType)
	validateProvider(result, payload.Provider, cfg)

	if len(payload.Description) > DescriptionMaxLength {
		result.addError("description", fmt.Sprintf("Description cannot exceed %d characters", DescriptionMaxLength))
	}

	return result
}

// ValidateInstance checks a candidate instance against field-level and
// cross-field rules. The reference time is passed in so the date-window rules
// stay pure; existence of the referenced template and client is delegated to
// the stores.
func ValidateInstance(payload InstancePayload, cfg ValidationConfig, now time.Time) *ValidationResult {
	result := newValidationResult()

	validateEntityRef(result, "template_id", "Template", payload.TemplateID)
	validateEntityRef(result, "client_id", "Client", payload.ClientID)

	if payload.Status != "" && !isValidStoredStatus(payload.Status) {
		result.addError("status", "Status must be one of: Active, Expired, Cancelled")
	}

	if cfg.ValidateAmounts {
		validateAmounts(result, payload)
	}
	if cfg.ValidateDates {
		validateDates(result, payload, cfg, now)
	}

	return result
}

// DeriveExpiryDate computes the expiry for payloads that supply a duration
// instead of an explicit expiry date. An explicit expiry date always wins.
func DeriveExpiryDate(startDate time.Time, durationMonths int) time.Time {
	return startDate.AddDate(0, durationMonths, 0)
}

func validatePolicyNumber(result *ValidationResult, number string) {
	number = strings.TrimSpace(number)
	if number == "" {
		result.addError("policy_number", "Policy number is required")
		return
	}
	if len(number) < PolicyNumberMinLength {
		result.addError("policy_number", fmt.Sprintf("Policy number must be at least %d characters", PolicyNumberMinLength))
		return
	}
	if len(number) > PolicyNumberMaxLength {
		result.addError("policy_number", fmt.Sprintf("Policy number cannot exceed %d characters", PolicyNumberMaxLength))
		return
	}
	if !policyNumberPattern.MatchString(number) {
		result.addError("policy_number", "Policy number can only contain letters, numbers, hyphens, underscores")
		return
	}

	// Advisory only: suspicious numbers are flagged but never blocked
	if hasRepeatedRun(number, 4) {
		result.addWarning("policy_number", "Policy number contains 4 or more repeated identical characters")
	} else if containsTestMarker(number) {
		result.addWarning("policy_number", "Policy number looks like a test value")
	}
}

func validatePolicyType(result *ValidationResult, policyType string) {
	if policyType == "" {
		result.addError("policy_type", "Policy type is required")
		return
	}
	if !isValidPolicyTypeName(policyType) {
		result.addError("policy_type", "Policy type must be one of: Life, Health, Auto, Home, Business")
	}
}

func validateProvider(result *ValidationResult, provider string, cfg ValidationConfig) {
	provider = strings.TrimSpace(provider)
	if provider == "" {
		result.addError("provider", "Provider is required")
		return
	}
	if len(provider) < ProviderMinLength {
		result.addError("provider", fmt.Sprintf("Provider must be at least %d characters", ProviderMinLength))
		return
	}
	if len(provider) > ProviderMaxLength {
		result.addError("provider", fmt.Sprintf("Provider cannot exceed %d characters", ProviderMaxLength))
		return
	}
	if !providerPattern.MatchString(provider) {
		message := "Provider can only contain letters, numbers, spaces, and - & . , ( )"
		if cfg.StrictMode {
			result.addError("provider", message)
			return
		}
		// Relaxed mode admits legacy provider names that predate the charset rule
		result.addWarning("provider", message)
	}

	if containsTestMarker(provider) {
		result.addWarning("provider", "Provider looks like a test value")
	}
}

func validateEntityRef(result *ValidationResult, field, label, id string) {
	id = strings.TrimSpace(id)
	if id == "" {
		result.addError(field, label+" is required")
		return
	}
	// Shape check only; the stores verify existence
	if len(id) > 64 || strings.ContainsAny(id, " \t\n") {
		result.addError(field, label+" identifier is not valid")
	}
}

func validateAmounts(result *ValidationResult, payload InstancePayload) {
	premium := payload.PremiumAmount
	if premium == nil {
		result.addError("premium_amount", "Premium amount is required")
	} else if *premium <= 0 {
		result.addError("premium_amount", "Premium amount must be greater than 0")
	} else if *premium > MaxPremiumAmount {
		result.addError("premium_amount", "Premium amount cannot exceed 10,000,000")
	} else if *premium < 100 {
		result.addWarning("premium_amount", "Premium amount is unusually low")
	} else if *premium > 500_000 {
		result.addWarning("premium_amount", "Premium amount above 500,000 may require approval")
	}

	commission := payload.CommissionAmount
	if commission == nil {
		result.addError("commission_amount", "Commission amount is required")
		return
	}
	if *commission < 0 {
		result.addError("commission_amount", "Commission amount cannot be negative")
		return
	}
	if *commission > MaxCommissionAmount {
		result.addError("commission_amount", "Commission amount cannot exceed 1,000,000")
		return
	}
	if premium != nil && *premium > 0 {
		if *commission > *premium {
			result.addError("commission_amount", "Commission cannot be greater than premium amount")
			return
		}
		ratio := *commission / *premium
		if ratio > 0.5 {
			result.addWarning("commission_amount", "Commission exceeds 50% of the premium")
		} else if *commission > 0 && ratio < 0.01 {
			result.addWarning("commission_amount", "Commission is below 1% of the premium")
		}
	}
}

func validateDates(result *ValidationResult, payload InstancePayload, cfg ValidationConfig, now time.Time) {
	start := payload.StartDate
	if start == nil {
		result.addError("start_date", "Start date is required")
	} else {
		daysAhead := DaysBetween(now, *start)
		switch {
		case daysAhead > 365:
			message := "Start date cannot be more than 1 year in the future"
			if cfg.StrictMode {
				result.addError("start_date", message)
			} else {
				result.addWarning("start_date", message)
			}
		case daysAhead < -730:
			message := "Start date cannot be more than 2 years in the past"
			if cfg.StrictMode {
				result.addError("start_date", message)
			} else {
				result.addWarning("start_date", message)
			}
		case daysAhead > 90:
			result.addWarning("start_date", "Start date is more than 90 days in the future")
		case daysAhead < -365:
			result.addWarning("start_date", "Start date is more than 365 days in the past")
		}
	}

	if payload.DurationMonths != nil {
		months := *payload.DurationMonths
		if months < MinDurationMonths || months > MaxDurationMonths {
			result.addError("duration_months", fmt.Sprintf("Duration must be between %d and %d months", MinDurationMonths, MaxDurationMonths))
		} else if months < 6 {
			result.addWarning("duration_months", "Duration under 6 months is unusually short")
		} else if months > 60 {
			result.addWarning("duration_months", "Duration over 60 months is unusually long")
		}
	}

	expiry := payload.ExpiryDate
	if expiry == nil && payload.DurationMonths == nil {
		result.addError("expiry_date", "Expiry date is required")
		return
	}
	if expiry == nil && start != nil && payload.DurationMonths != nil {
		derived := DeriveExpiryDate(*start, *payload.DurationMonths)
		expiry = &derived
	}
	if expiry == nil || start == nil {
		return
	}

	if !DateOnly(*expiry).After(DateOnly(*start)) {
		result.addError("expiry_date", "Expiry date must be after start date")
		return
	}
	if DateOnly(*expiry).After(DateOnly(start.AddDate(MaxPolicyYears, 0, 0))) {
		result.addError("expiry_date", fmt.Sprintf("Policy duration cannot exceed %d years", MaxPolicyYears))
	}
}

// hasRepeatedRun reports whether the string contains a run of n or more
// identical characters
func hasRepeatedRun(s string, n int) bool {
	run := 0
	var prev rune
	for i, r := range s {
		if i > 0 && r == prev {
			run++
		} else {
			run = 1
		}
		if run >= n {
			return true
		}
		prev = r
	}
	return false
}

func containsTestMarker(s string) bool {
	lower := strings.ToLower(s)
	return strings.Contains(lower, "test") || strings.Contains(lower, "example")
}

// Payloads may carry enum values in any casing ("Life", "LIFE"); the stores
// persist the uppercase form.
func isValidPolicyTypeName(policyType string) bool {
	return models.IsValidPolicyType(strings.ToUpper(policyType))
}

func isValidStoredStatus(status string) bool {
	return models.IsValidInstanceStatus(strings.ToUpper(status))
}
