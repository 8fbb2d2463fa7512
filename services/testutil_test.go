package services

import (
	"fmt"
	"insurance_crm_go/models"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestDB creates an isolated in-memory database. The shared-cache DSN
// keeps every pooled connection on the same database, which matters for the
// migrate-on-read path that touches the DB from a goroutine.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.New().String())
	testDB, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	assert.NoError(t, err)

	err = testDB.AutoMigrate(
		&models.Client{},
		&models.PolicyTemplate{},
		&models.PolicyInstance{},
		&models.LegacyPolicy{},
		&models.PolicyMigrationRecord{},
		&models.MigrationCheckpoint{},
		&models.AuditLog{},
	)
	assert.NoError(t, err)
	return testDB
}

func createTestClient(t *testing.T, db *gorm.DB, id, name string) *models.Client {
	t.Helper()
	client := &models.Client{ID: id, Name: name}
	assert.NoError(t, db.Create(client).Error)
	return client
}

func createTestTemplate(t *testing.T, db *gorm.DB, number, policyType, provider string) *models.PolicyTemplate {
	t.Helper()
	template := &models.PolicyTemplate{
		PolicyNumber: number,
		PolicyType:   policyType,
		Provider:     provider,
	}
	assert.NoError(t, db.Create(template).Error)
	return template
}

func createTestInstance(t *testing.T, db *gorm.DB, templateID, clientID, status string, start, expiry time.Time) *models.PolicyInstance {
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
	assert.NoError(t, db.Create(instance).Error)
	return instance
}

var testActor = AuditActor{ID: "agent-1", Name: "Test Agent"}
