package handlers

import (
	"fmt"
	"insurance_crm_go/db"
	"insurance_crm_go/models"
	"insurance_crm_go/services"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// activeWindow returns start/expiry strings bracketing today so validation and
// display status behave deterministically against the wall clock
func activeWindow() (string, string) {
	now := time.Now().UTC()
	return now.AddDate(0, -6, 0).Format("2006-01-02"), now.AddDate(0, 6, 0).Format("2006-01-02")
}

func TestCreateInstanceHandler(t *testing.T) {
	e := setupTestServer(t, "complete")
	seedClient(t, "c1", "Ana Torres")
	template := seedTemplate(t, "POL-001", models.PolicyTypeAuto, "Acme")

	start, expiry := activeWindow()
	rec := doJSON(e, http.MethodPost, "/api/policy-instances", fmt.Sprintf(
		`{"template_id":%q,"client_id":"c1","premium_amount":1200,"commission_amount":150,"start_date":%q,"expiry_date":%q}`,
		template.ID, start, expiry))
	assert.Equal(t, http.StatusCreated, rec.Code)

	data := decodeBody(t, rec)["data"].(map[string]interface{})
	assert.Equal(t, models.InstanceStatusActive, data["status"])
	assert.Equal(t, "c1", data["client_id"])
}

func TestCreateInstanceHandler_CommissionRule(t *testing.T) {
	e := setupTestServer(t, "complete")
	seedClient(t, "c1", "Ana Torres")
	template := seedTemplate(t, "POL-001", models.PolicyTypeAuto, "Acme")

	start, expiry := activeWindow()
	rec := doJSON(e, http.MethodPost, "/api/policy-instances", fmt.Sprintf(
		`{"template_id":%q,"client_id":"c1","premium_amount":500,"commission_amount":600,"start_date":%q,"expiry_date":%q}`,
		template.ID, start, expiry))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	body := decodeBody(t, rec)
	fields := body["fields"].(map[string]interface{})
	assert.Equal(t, "Commission cannot be greater than premium amount", fields["commission_amount"])
}

func TestCreateInstanceHandler_BadDate(t *testing.T) {
	e := setupTestServer(t, "complete")

	rec := doJSON(e, http.MethodPost, "/api/policy-instances",
		`{"template_id":"t1","client_id":"c1","premium_amount":1200,"commission_amount":150,"start_date":"01/15/2024","expiry_date":"2025-01-01"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	fields := decodeBody(t, rec)["fields"].(map[string]interface{})
	assert.Contains(t, fields, "start_date")
}

func TestGetInstanceHandler_Annotated(t *testing.T) {
	e := setupTestServer(t, "complete")
	client := seedClient(t, "c1", "Ana Torres")
	template := seedTemplate(t, "POL-001", models.PolicyTypeAuto, "Acme")

	// Expires in 10 days relative to the request clock
	now := services.DateOnly(time.Now())
	instance := seedInstance(t, template.ID, client.ID, models.InstanceStatusActive,
		now.AddDate(0, -6, 0), now.AddDate(0, 0, 10))

	rec := doJSON(e, http.MethodGet, "/api/policy-instances/"+instance.ID, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	data := decodeBody(t, rec)["data"].(map[string]interface{})
	assert.Equal(t, models.DisplayStatusExpiringSoon, data["display_status"])
	assert.Equal(t, "Expires in 10 days", data["expiry_warning"])
	assert.Equal(t, float64(10), data["days_until_expiry"])
}

func TestUpdateInstanceStatusHandler(t *testing.T) {
	e := setupTestServer(t, "complete")
	client := seedClient(t, "c1", "Ana Torres")
	template := seedTemplate(t, "POL-001", models.PolicyTypeAuto, "Acme")
	instance := seedInstance(t, template.ID, client.ID, models.InstanceStatusActive,
		mustDate(t, "2024-01-01"), mustDate(t, "2025-01-01"))

	rec := doJSON(e, http.MethodPatch, "/api/policy-instances/"+instance.ID+"/status", `{"status":"Cancelled"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	data := decodeBody(t, rec)["data"].(map[string]interface{})
	assert.Equal(t, models.InstanceStatusCancelled, data["status"])

	rec = doJSON(e, http.MethodPatch, "/api/policy-instances/"+instance.ID+"/status", `{"status":"SUSPENDED"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "ValidationError", decodeBody(t, rec)["kind"])
}

func TestValidateAssociationHandler(t *testing.T) {
	e := setupTestServer(t, "complete")
	seedClient(t, "c1", "Ana Torres")

	start, expiry := activeWindow()
	rec := doJSON(e, http.MethodPost, "/api/policy-instances/validate-association", fmt.Sprintf(
		`{"template_id":"missing-template","client_id":"c1","premium_amount":1200,"commission_amount":150,"start_date":%q,"expiry_date":%q}`,
		start, expiry))
	assert.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, false, body["is_valid"])
	errors := body["errors"].(map[string]interface{})
	assert.Equal(t, "Template does not exist", errors["template_id"])

	// Nothing persisted
	var count int64
	assert.NoError(t, db.DB.Model(&models.PolicyInstance{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)
}

func TestCalculateExpiryHandler(t *testing.T) {
	e := setupTestServer(t, "complete")

	rec := doJSON(e, http.MethodPost, "/api/policy-instances/calculate-expiry",
		`{"start_date":"2024-01-15","duration_months":12}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "2025-01-15", body["expiry_date"])

	rec = doJSON(e, http.MethodPost, "/api/policy-instances/calculate-expiry",
		`{"start_date":"2024-01-15","duration_months":121}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(e, http.MethodPost, "/api/policy-instances/calculate-expiry",
		`{"start_date":"2024-01-15"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestClientPoliciesHandler_PhaseRouting(t *testing.T) {
	// Preparation serves the legacy shape
	e := setupTestServer(t, "preparation")
	now := services.DateOnly(time.Now())
	legacy := &models.LegacyPolicy{
		ClientID:         "c1",
		PolicyNumber:     "LEG-001",
		PolicyType:       models.PolicyTypeAuto,
		Provider:         "Acme",
		PremiumAmount:    1000,
		CommissionAmount: 100,
		StartDate:        now.AddDate(0, -6, 0),
		ExpiryDate:       now.AddDate(1, 0, 0),
		Status:           models.InstanceStatusActive,
	}
	assert.NoError(t, db.DB.Create(legacy).Error)

	rec := doJSON(e, http.MethodGet, "/api/clients/c1/policies", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "preparation", body["phase"])
	policies := body["data"].([]interface{})
	assert.Len(t, policies, 1)
	assert.Equal(t, "legacy", policies[0].(map[string]interface{})["source"])

	// Complete ignores legacy rows entirely
	e = setupTestServer(t, "complete")
	assert.NoError(t, db.DB.Create(legacy).Error)
	rec = doJSON(e, http.MethodGet, "/api/clients/c1/policies", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	body = decodeBody(t, rec)
	assert.Equal(t, "complete", body["phase"])
	assert.Empty(t, body["data"])
}

func TestClientPoliciesHandler_ReadFailure(t *testing.T) {
	e := setupTestServer(t, "preparation")

	// A broken legacy store surfaces as a migration-layer failure, not a
	// generic store error
	assert.NoError(t, db.DB.Migrator().DropTable(&models.LegacyPolicy{}))

	rec := doJSON(e, http.MethodGet, "/api/clients/c1/policies", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "MigrationError", decodeBody(t, rec)["kind"])
}

func TestClientPolicyStatsHandler(t *testing.T) {
	e := setupTestServer(t, "complete")
	client := seedClient(t, "c1", "Ana Torres")
	template := seedTemplate(t, "POL-001", models.PolicyTypeAuto, "Acme")

	now := services.DateOnly(time.Now())
	seedInstance(t, template.ID, client.ID, models.InstanceStatusActive,
		now.AddDate(0, -6, 0), now.AddDate(0, 6, 0))
	seedInstance(t, template.ID, client.ID, models.InstanceStatusCancelled,
		now.AddDate(0, -6, 0), now.AddDate(0, 6, 0))

	rec := doJSON(e, http.MethodGet, "/api/clients/c1/policy-stats", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	data := decodeBody(t, rec)["data"].(map[string]interface{})
	assert.Equal(t, float64(2), data["total_policies"])
	assert.Equal(t, float64(1), data["active_policies"])
	assert.Equal(t, float64(2000), data["total_premium"])
}
