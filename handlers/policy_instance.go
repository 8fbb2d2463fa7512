package handlers

import (
	"insurance_crm_go/db"
	"insurance_crm_go/middleware"
	"insurance_crm_go/services"
	"net/http"

	"github.com/labstack/echo/v4"
)

// CreateInstanceHandler attaches a template to a client
func CreateInstanceHandler(c echo.Context) error {
	var req instanceRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, http.StatusBadRequest, KindValidationError, "Invalid request body")
	}
	payload, fieldErrors := req.toPayload()
	if len(fieldErrors) > 0 {
		return respondFieldErrors(c, fieldErrors)
	}

	actor := middleware.GetActor(c)
	instance, result, err := services.CreateInstance(db.DB, actor, req.ClientID, req.TemplateID, payload, validationCfg(c), requestNow())
	if err != nil {
		return mapServiceError(c, err)
	}
	if !result.IsValid {
		return respondValidationFailure(c, result)
	}

	return c.JSON(http.StatusCreated, map[string]interface{}{
		"data":     instance,
		"warnings": result.Warnings,
	})
}

// GetInstanceHandler returns one instance annotated with its display status
func GetInstanceHandler(c echo.Context) error {
	view, err := services.GetInstanceByID(db.DB, c.Param("id"), requestNow())
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"data": view})
}

// UpdateInstanceHandler applies a partial term update; the merged record is
// revalidated server-side
func UpdateInstanceHandler(c echo.Context) error {
	var req instanceRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, http.StatusBadRequest, KindValidationError, "Invalid request body")
	}
	payload, fieldErrors := req.toPayload()
	if len(fieldErrors) > 0 {
		return respondFieldErrors(c, fieldErrors)
	}

	actor := middleware.GetActor(c)
	instance, result, err := services.UpdateInstance(db.DB, actor, c.Param("id"), payload, validationCfg(c), requestNow())
	if err != nil {
		return mapServiceError(c, err)
	}
	if !result.IsValid {
		return respondValidationFailure(c, result)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"data":     instance,
		"warnings": result.Warnings,
	})
}

// UpdateInstanceStatusHandler performs a direct status transition
func UpdateInstanceStatusHandler(c echo.Context) error {
	var req struct {
		Status string `json:"status"`
	}
	if err := c.Bind(&req); err != nil {
		return respondError(c, http.StatusBadRequest, KindValidationError, "Invalid request body")
	}

	actor := middleware.GetActor(c)
	instance, err := services.UpdateInstanceStatus(db.DB, actor, c.Param("id"), req.Status)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"data": instance})
}

// DeleteInstanceHandler removes one instance; its template is untouched
func DeleteInstanceHandler(c echo.Context) error {
	actor := middleware.GetActor(c)
	if err := services.DeleteInstance(db.DB, actor, c.Param("id")); err != nil {
		return mapServiceError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ValidateAssociationHandler runs the pre-submit check without persisting
func ValidateAssociationHandler(c echo.Context) error {
	var req instanceRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, http.StatusBadRequest, KindValidationError, "Invalid request body")
	}
	payload, fieldErrors := req.toPayload()
	if len(fieldErrors) > 0 {
		return respondFieldErrors(c, fieldErrors)
	}

	result, err := services.ValidateAssociation(db.DB, req.ClientID, req.TemplateID, payload, validationCfg(c), requestNow())
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

// CalculateExpiryHandler mirrors the expiry derivation without persistence
func CalculateExpiryHandler(c echo.Context) error {
	var req struct {
		StartDate      string `json:"start_date"`
		DurationMonths *int   `json:"duration_months"`
	}
	if err := c.Bind(&req); err != nil {
		return respondError(c, http.StatusBadRequest, KindValidationError, "Invalid request body")
	}

	start, err := services.ParseDate(req.StartDate)
	if err != nil {
		return respondFieldErrors(c, map[string]string{"start_date": "Start date must be a valid date (YYYY-MM-DD)"})
	}
	if req.DurationMonths == nil {
		return respondFieldErrors(c, map[string]string{"duration_months": "Duration is required"})
	}
	if *req.DurationMonths < services.MinDurationMonths || *req.DurationMonths > services.MaxDurationMonths {
		return respondFieldErrors(c, map[string]string{"duration_months": "Duration must be between 1 and 120 months"})
	}

	expiry := services.DeriveExpiryDate(start, *req.DurationMonths)
	return c.JSON(http.StatusOK, map[string]interface{}{
		"start_date":      start.Format("2006-01-02"),
		"duration_months": *req.DurationMonths,
		"expiry_date":     expiry.Format("2006-01-02"),
	})
}

// ClientPoliciesHandler serves a client's policies through the phase-routed
// compatibility layer
func ClientPoliciesHandler(c echo.Context) error {
	reader := GetPolicyReader(c)
	if reader == nil {
		return respondError(c, http.StatusInternalServerError, KindInternalError, "Policy reader not configured")
	}

	policies, err := reader.ClientPolicies(c.Param("id"), requestNow())
	if err != nil {
		return respondError(c, http.StatusInternalServerError, KindMigrationError,
			"Failed to read client policies through the migration layer")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"data":  policies,
		"phase": reader.Phase().Name,
	})
}

// ClientPolicyStatsHandler aggregates a client's policy figures over the
// display status
func ClientPolicyStatsHandler(c echo.Context) error {
	stats, err := services.StatsForClient(db.DB, c.Param("id"), requestNow())
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"data": stats})
}
