package handlers

import (
	"encoding/json"
	"fmt"
	"insurance_crm_go/config"
	"insurance_crm_go/db"
	"insurance_crm_go/middleware"
	"insurance_crm_go/models"
	"insurance_crm_go/services"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestServer builds an Echo instance with the same middleware and routes
// the server wires up, backed by an isolated in-memory database bound to the
// named migration phase.
func setupTestServer(t *testing.T, phaseName string) *echo.Echo {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.New().String())
	testDB, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	assert.NoError(t, err)
	assert.NoError(t, testDB.AutoMigrate(
		&models.Client{},
		&models.PolicyTemplate{},
		&models.PolicyInstance{},
		&models.LegacyPolicy{},
		&models.PolicyMigrationRecord{},
		&models.MigrationCheckpoint{},
		&models.AuditLog{},
	))
	db.DB = testDB

	phase, err := services.PhaseByName(phaseName)
	assert.NoError(t, err)
	cfg := &config.Config{MigrationPhase: phase}
	reader := services.NewPolicyReader(testDB, phase)

	e := echo.New()
	e.Use(middleware.ActorContext())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set(ContextKeyConfig, cfg)
			c.Set(ContextKeyPolicyReader, reader)
			return next(c)
		}
	})

	api := e.Group("/api")
	api.GET("/policy-templates", GetTemplatesHandler)
	api.POST("/policy-templates", CreateTemplateHandler)
	api.GET("/policy-templates/search", SearchTemplatesHandler)
	api.GET("/policy-templates/expiry/warnings", ExpiryWarningsHandler)
	api.GET("/policy-templates/expiry/summary", ExpirySummaryHandler)
	api.POST("/policy-templates/expiry/update-expired", UpdateExpiredHandler)
	api.GET("/policy-templates/:id", GetTemplateHandler)
	api.PUT("/policy-templates/:id", UpdateTemplateHandler)
	api.DELETE("/policy-templates/:id", DeleteTemplateHandler)

	api.POST("/policy-instances", CreateInstanceHandler)
	api.POST("/policy-instances/validate-association", ValidateAssociationHandler)
	api.POST("/policy-instances/calculate-expiry", CalculateExpiryHandler)
	api.GET("/policy-instances/:id", GetInstanceHandler)
	api.PUT("/policy-instances/:id", UpdateInstanceHandler)
	api.PATCH("/policy-instances/:id/status", UpdateInstanceStatusHandler)
	api.DELETE("/policy-instances/:id", DeleteInstanceHandler)

	api.GET("/clients/:id/policies", ClientPoliciesHandler)
	api.GET("/clients/:id/policy-stats", ClientPolicyStatsHandler)
	api.GET("/clients/:id/audit-log", ClientAuditLogHandler)
	api.GET("/clients/:id/audit-stats", ClientAuditStatsHandler)
	api.GET("/audit-report", AuditReportHandler)

	return e
}

// doJSON performs a request against the test server with the actor headers an
// authenticated gateway would set
func doJSON(e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set(middleware.HeaderActorID, "agent-1")
	req.Header.Set(middleware.HeaderActorName, "Test Agent")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func mustDate(t *testing.T, value string) time.Time {
	t.Helper()
	parsed, err := services.ParseDate(value)
	assert.NoError(t, err)
	return parsed
}

func seedClient(t *testing.T, id, name string) *models.Client {
	t.Helper()
	client := &models.Client{ID: id, Name: name}
	assert.NoError(t, db.DB.Create(client).Error)
	return client
}

func seedTemplate(t *testing.T, number, policyType, provider string) *models.PolicyTemplate {
	t.Helper()
	template := &models.PolicyTemplate{PolicyNumber: number, PolicyType: policyType, Provider: provider}
	assert.NoError(t, db.DB.Create(template).Error)
	return template
}

func seedInstance(t *testing.T, templateID, clientID, status string, start, expiry time.Time) *models.PolicyInstance {
	t.Helper()
	instance := &models.PolicyInstance{
		TemplateID:       templateID,
		ClientID:         clientID,
		PremiumAmount:    1000,
		CommissionAmount: 100,
		StartDate:        start,
		ExpiryDate:       expiry,
		Status:           status,
	}
	assert.NoError(t, db.DB.Create(instance).Error)
	return instance
}
