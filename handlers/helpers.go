package handlers

import (
	"errors"
	"insurance_crm_go/config"
	"insurance_crm_go/services"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
)

// Error kind constants returned in the response envelope
const (
	KindValidationError = "ValidationError"
	KindConflict        = "Conflict"
	KindNotFound        = "NotFound"
	KindMigrationError  = "MigrationError"
	KindInternalError   = "InternalError"
)

const ContextKeyConfig = "config"
const ContextKeyPolicyReader = "policy_reader"

// GetConfig retrieves the loaded configuration from the request context
func GetConfig(c echo.Context) *config.Config {
	if cfg, ok := c.Get(ContextKeyConfig).(*config.Config); ok {
		return cfg
	}
	return nil
}

// GetPolicyReader retrieves the phase-bound policy reader
func GetPolicyReader(c echo.Context) *services.PolicyReader {
	if reader, ok := c.Get(ContextKeyPolicyReader).(*services.PolicyReader); ok {
		return reader
	}
	return nil
}

// validationCfg returns the validation strictness the current phase dictates
func validationCfg(c echo.Context) services.ValidationConfig {
	if cfg := GetConfig(c); cfg != nil {
		return cfg.MigrationPhase.Validation
	}
	return services.DefaultValidationConfig()
}

// respondError writes the structured error envelope
func respondError(c echo.Context, status int, kind, message string) error {
	return c.JSON(status, map[string]interface{}{
		"error": message,
		"kind":  kind,
	})
}

// respondValidationFailure re-renders field-level errors for the caller's form
func respondValidationFailure(c echo.Context, result *services.ValidationResult) error {
	return c.JSON(http.StatusBadRequest, map[string]interface{}{
		"error":    "Validation failed",
		"kind":     KindValidationError,
		"fields":   result.Errors,
		"warnings": result.Warnings,
	})
}

// mapServiceError translates store sentinels into HTTP responses
func mapServiceError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, services.ErrTemplateNotFound),
		errors.Is(err, services.ErrInstanceNotFound),
		errors.Is(err, services.ErrClientNotFound):
		return respondError(c, http.StatusNotFound, KindNotFound, err.Error())
	case errors.Is(err, services.ErrPolicyNumberExists):
		return respondError(c, http.StatusConflict, KindConflict, "Policy number already exists")
	case errors.Is(err, services.ErrInvalidStatus):
		return respondError(c, http.StatusBadRequest, KindValidationError, err.Error())
	default:
		return respondError(c, http.StatusInternalServerError, KindInternalError, "Unexpected store failure")
	}
}

// parsePagination reads page/limit query params with the usual clamping
func parsePagination(c echo.Context) (page, limit int) {
	page = 1
	limit = 20
	if p, err := strconv.Atoi(c.QueryParam("page")); err == nil && p > 0 {
		page = p
	}
	if l, err := strconv.Atoi(c.QueryParam("limit")); err == nil && l > 0 && l <= 100 {
		limit = l
	}
	return page, limit
}

// instanceRequest is the JSON body for instance create/update/validate calls
type instanceRequest struct {
	TemplateID       string   `json:"template_id"`
	ClientID         string   `json:"client_id"`
	PremiumAmount    *float64 `json:"premium_amount"`
	CommissionAmount *float64 `json:"commission_amount"`
	StartDate        string   `json:"start_date"`
	ExpiryDate       string   `json:"expiry_date"`
	DurationMonths   *int     `json:"duration_months"`
	Status           string   `json:"status"`
}

// toPayload parses the request dates; unparseable dates come back as field
// errors so the form can re-render inline
func (r instanceRequest) toPayload() (services.InstancePayload, map[string]string) {
	payload := services.InstancePayload{
		TemplateID:       r.TemplateID,
		ClientID:         r.ClientID,
		PremiumAmount:    r.PremiumAmount,
		CommissionAmount: r.CommissionAmount,
		DurationMonths:   r.DurationMonths,
		Status:           r.Status,
	}
	fieldErrors := map[string]string{}

	if r.StartDate != "" {
		if parsed, err := services.ParseDate(r.StartDate); err == nil {
			payload.StartDate = &parsed
		} else {
			fieldErrors["start_date"] = "Start date must be a valid date (YYYY-MM-DD)"
		}
	}
	if r.ExpiryDate != "" {
		if parsed, err := services.ParseDate(r.ExpiryDate); err == nil {
			payload.ExpiryDate = &parsed
		} else {
			fieldErrors["expiry_date"] = "Expiry date must be a valid date (YYYY-MM-DD)"
		}
	}
	return payload, fieldErrors
}

func respondFieldErrors(c echo.Context, fieldErrors map[string]string) error {
	return c.JSON(http.StatusBadRequest, map[string]interface{}{
		"error":  "Validation failed",
		"kind":   KindValidationError,
		"fields": fieldErrors,
	})
}

// requestNow returns the reference time for display-status computation
func requestNow() time.Time {
	return time.Now()
}
