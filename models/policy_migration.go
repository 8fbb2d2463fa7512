package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Migration record status constants
const (
	MigrationStatusMigrated   = "MIGRATED"
	MigrationStatusSkipped    = "SKIPPED"
	MigrationStatusRolledBack = "ROLLED_BACK"
)

// PolicyMigrationRecord tracks one legacy row's conversion into the
// template/instance shape. The snapshot holds the legacy row as JSON so the
// conversion can be reverted while the backup retention window is open.
type PolicyMigrationRecord struct {
	ID        string    `gorm:"type:uuid;primarykey" json:"id"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`

	RunName     string `gorm:"not null;index" json:"run_name"`
	LegacyID    uint   `gorm:"not null;index" json:"legacy_id"`
	BatchNumber int    `gorm:"not null" json:"batch_number"`

	// Produced entities (empty for skipped records)
	TemplateID string `gorm:"type:uuid" json:"template_id,omitempty"`
	InstanceID string `gorm:"type:uuid" json:"instance_id,omitempty"`

	Snapshot string `gorm:"type:text" json:"snapshot,omitempty"` // JSON encoded legacy row
	Status   string `gorm:"not null;index" json:"status"`
	Error    string `gorm:"type:text" json:"error,omitempty"` // why a record was skipped
}

// BeforeCreate hook to generate UUID
func (r *PolicyMigrationRecord) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	return nil
}

// TableName specifies the table name for PolicyMigrationRecord model
func (PolicyMigrationRecord) TableName() string {
	return "policy_migration_records"
}

// MigrationCheckpoint is the resumable high-water mark for a named batch
// migration run. One row per run name; re-running a name continues above
// LastLegacyID instead of starting over.
type MigrationCheckpoint struct {
	ID        string    `gorm:"type:uuid;primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	RunName          string `gorm:"not null;uniqueIndex" json:"run_name"`
	LastLegacyID     uint   `gorm:"not null;default:0" json:"last_legacy_id"`
	BatchesCompleted int    `gorm:"not null;default:0" json:"batches_completed"`
	MigratedCount    int    `gorm:"not null;default:0" json:"migrated_count"`
	SkippedCount     int    `gorm:"not null;default:0" json:"skipped_count"`
}

// BeforeCreate hook to generate UUID
func (c *MigrationCheckpoint) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	return nil
}

// TableName specifies the table name for MigrationCheckpoint model
func (MigrationCheckpoint) TableName() string {
	return "policy_migration_checkpoints"
}
