package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"insurance_crm_go/models"
	"log"
	"sort"
	"strings"
	"time"

	"gorm.io/gorm"
)

// Migration phase names
const (
	PhasePreparation = "preparation"
	PhaseMigration   = "migration"
	PhaseTransition  = "transition"
	PhaseComplete    = "complete"
)

// DefaultMigrationBatchSize is used when a phase carries no explicit batch size
const DefaultMigrationBatchSize = 100

// DefaultBatchTimeout bounds each batch's transaction; a batch that exceeds
// it is marked failed rather than retried indefinitely
const DefaultBatchTimeout = 60 * time.Second

// ErrUnknownPhase is returned for a phase name outside the four known ones
var ErrUnknownPhase = errors.New("unknown migration phase")

// PhaseConfig bundles the knobs controlling legacy/template coexistence.
// It is read once at process start; changing phases requires restarting any
// running migration.
type PhaseConfig struct {
	Name string `json:"name"`

	// Read/write routing
	UseTemplateSystem bool `json:"use_template_system"`
	AllowFallback     bool `json:"allow_fallback"`
	MigrateOnRead     bool `json:"migrate_on_read"`

	// Batch migration
	BatchSize           int  `json:"batch_size"`
	EnableAutoMigration bool `json:"enable_auto_migration"`
	EnableRollback      bool `json:"enable_rollback"`
	BackupRetentionDays int  `json:"backup_retention_days"`

	// Validation strictness
	Validation ValidationConfig `json:"validation"`

	// BatchTimeout bounds each batch transaction; zero means DefaultBatchTimeout
	BatchTimeout time.Duration `json:"-"`
}

// PhaseByName returns the named phase's default configuration
func PhaseByName(name string) (PhaseConfig, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case PhasePreparation:
		// Legacy only; template tables exist but take no traffic yet
		return PhaseConfig{
			Name:                PhasePreparation,
			UseTemplateSystem:   false,
			AllowFallback:       false,
			MigrateOnRead:       false,
			BatchSize:           DefaultMigrationBatchSize,
			EnableAutoMigration: false,
			EnableRollback:      true,
			BackupRetentionDays: 30,
			Validation: ValidationConfig{
				StrictMode:      true,
				AllowDuplicates: false,
				ValidateDates:   true,
				ValidateAmounts: true,
			},
		}, nil
	case PhaseMigration:
		// Bulk copy in progress; duplicates tolerated while both shapes
		// transiently hold the same records
		return PhaseConfig{
			Name:                PhaseMigration,
			UseTemplateSystem:   true,
			AllowFallback:       true,
			MigrateOnRead:       false,
			BatchSize:           DefaultMigrationBatchSize,
			EnableAutoMigration: true,
			EnableRollback:      true,
			BackupRetentionDays: 30,
			Validation: ValidationConfig{
				StrictMode:      true,
				AllowDuplicates: true,
				ValidateDates:   true,
				ValidateAmounts: true,
			},
		}, nil
	case PhaseTransition:
		// Lazy migration on read; relaxed validation admits legacy records
		// that predate the current rules, amount/date checks retained
		return PhaseConfig{
			Name:                PhaseTransition,
			UseTemplateSystem:   true,
			AllowFallback:       true,
			MigrateOnRead:       true,
			BatchSize:           DefaultMigrationBatchSize,
			EnableAutoMigration: true,
			EnableRollback:      true,
			BackupRetentionDays: 14,
			Validation: ValidationConfig{
				StrictMode:      false,
				AllowDuplicates: true,
				ValidateDates:   true,
				ValidateAmounts: true,
			},
		}, nil
	case PhaseComplete:
		return PhaseConfig{
			Name:                PhaseComplete,
			UseTemplateSystem:   true,
			AllowFallback:       false,
			MigrateOnRead:       false,
			BatchSize:           DefaultMigrationBatchSize,
			EnableAutoMigration: false,
			EnableRollback:      false,
			BackupRetentionDays: 7,
			Validation: ValidationConfig{
				StrictMode:      true,
				AllowDuplicates: false,
				ValidateDates:   true,
				ValidateAmounts: true,
			},
		}, nil
	default:
		return PhaseConfig{}, fmt.Errorf("%w: %q", ErrUnknownPhase, name)
	}
}

// PhaseOverrides carries optional environment overrides. A nil field means
// the variable was unset and the phase default stands; only an explicitly
// set variable overrides.
type PhaseOverrides struct {
	UseTemplateSystem   *bool
	AllowFallback       *bool
	MigrateOnRead       *bool
	BatchSize           *int
	EnableAutoMigration *bool
	EnableRollback      *bool
	BackupRetentionDays *int
	StrictMode          *bool
	AllowDuplicates     *bool
	ValidateDates       *bool
	ValidateAmounts     *bool
	BatchTimeoutSeconds *int
}

// Apply returns the phase with any set overrides applied on top
func (p PhaseConfig) Apply(o PhaseOverrides) PhaseConfig {
	if o.UseTemplateSystem != nil {
		p.UseTemplateSystem = *o.UseTemplateSystem
	}
	if o.AllowFallback != nil {
		p.AllowFallback = *o.AllowFallback
	}
	if o.MigrateOnRead != nil {
		p.MigrateOnRead = *o.MigrateOnRead
	}
	if o.BatchSize != nil && *o.BatchSize > 0 {
		p.BatchSize = *o.BatchSize
	}
	if o.EnableAutoMigration != nil {
		p.EnableAutoMigration = *o.EnableAutoMigration
	}
	if o.EnableRollback != nil {
		p.EnableRollback = *o.EnableRollback
	}
	if o.BackupRetentionDays != nil && *o.BackupRetentionDays > 0 {
		p.BackupRetentionDays = *o.BackupRetentionDays
	}
	if o.StrictMode != nil {
		p.Validation.StrictMode = *o.StrictMode
	}
	if o.AllowDuplicates != nil {
		p.Validation.AllowDuplicates = *o.AllowDuplicates
	}
	if o.ValidateDates != nil {
		p.Validation.ValidateDates = *o.ValidateDates
	}
	if o.ValidateAmounts != nil {
		p.Validation.ValidateAmounts = *o.ValidateAmounts
	}
	if o.BatchTimeoutSeconds != nil && *o.BatchTimeoutSeconds > 0 {
		p.BatchTimeout = time.Duration(*o.BatchTimeoutSeconds) * time.Second
	}
	return p
}

// ClientPolicy is the unified read shape served from either representation
type ClientPolicy struct {
	Source string `json:"source"` // "template" or "legacy"

	InstanceID string `json:"instance_id,omitempty"`
	TemplateID string `json:"template_id,omitempty"`
	LegacyID   uint   `json:"legacy_id,omitempty"`

	ClientID         string    `json:"client_id"`
	PolicyNumber     string    `json:"policy_number"`
	PolicyType       string    `json:"policy_type"`
	Provider         string    `json:"provider"`
	Description      string    `json:"description,omitempty"`
	PremiumAmount    float64   `json:"premium_amount"`
	CommissionAmount float64   `json:"commission_amount"`
	StartDate        time.Time `json:"start_date"`
	ExpiryDate       time.Time `json:"expiry_date"`

	Status        string `json:"status"`
	DisplayStatus string `json:"display_status"`
	ExpiryWarning string `json:"expiry_warning,omitempty"`
}

// PolicyReader serves client policy reads through the phase-selected
// strategy. One reader is built at startup; the phase never changes
// mid-process.
type PolicyReader struct {
	db    *gorm.DB
	phase PhaseConfig
}

// NewPolicyReader builds a reader bound to the phase in effect
func NewPolicyReader(db *gorm.DB, phase PhaseConfig) *PolicyReader {
	return &PolicyReader{db: db, phase: phase}
}

// Phase exposes the phase the reader was bound to
func (r *PolicyReader) Phase() PhaseConfig {
	return r.phase
}

// ClientPolicies returns a client's policies from the representation the
// phase dictates. A template-shape miss falls back to the legacy shape when
// the phase allows it; with migrate-on-read, a successful fallback also
// triggers an asynchronous write-through whose failure is logged but never
// fails the read.
func (r *PolicyReader) ClientPolicies(clientID string, now time.Time) ([]ClientPolicy, error) {
	if !r.phase.UseTemplateSystem {
		return r.readLegacy(clientID, now)
	}

	policies, err := r.readTemplate(clientID, now)
	if err != nil {
		return nil, err
	}
	if len(policies) > 0 || !r.phase.AllowFallback {
		return policies, nil
	}

	legacy, err := r.readLegacy(clientID, now)
	if err != nil {
		return nil, err
	}
	if len(legacy) > 0 && r.phase.MigrateOnRead {
		go func() {
			runName := "read-" + clientID
			if _, err := MigrateClientPolicies(context.Background(), r.db, r.phase, runName, clientID); err != nil {
				log.Printf("[MIGRATION] migrate-on-read failed for client %s: %v", clientID, err)
			}
		}()
	}
	return legacy, nil
}

func (r *PolicyReader) readTemplate(clientID string, now time.Time) ([]ClientPolicy, error) {
	views, err := ListInstancesForClient(r.db, clientID, now)
	if err != nil {
		return nil, err
	}

	policies := make([]ClientPolicy, 0, len(views))
	for _, view := range views {
		policies = append(policies, ClientPolicy{
			Source:           "template",
			InstanceID:       view.ID,
			TemplateID:       view.TemplateID,
			ClientID:         view.ClientID,
			PolicyNumber:     view.Template.PolicyNumber,
			PolicyType:       view.Template.PolicyType,
			Provider:         view.Template.Provider,
			Description:      view.Template.Description,
			PremiumAmount:    view.PremiumAmount,
			CommissionAmount: view.CommissionAmount,
			StartDate:        view.StartDate,
			ExpiryDate:       view.ExpiryDate,
			Status:           view.Status,
			DisplayStatus:    view.DisplayStatus,
			ExpiryWarning:    view.ExpiryWarning,
		})
	}
	return policies, nil
}

func (r *PolicyReader) readLegacy(clientID string, now time.Time) ([]ClientPolicy, error) {
	var rows []models.LegacyPolicy
	err := r.db.Where("client_id = ?", clientID).
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	policies := make([]ClientPolicy, 0, len(rows))
	for _, row := range rows {
		// Reuse the instance status machine for the derived state
		shadow := models.PolicyInstance{
			Status:     row.Status,
			StartDate:  row.StartDate,
			ExpiryDate: row.ExpiryDate,
		}
		policies = append(policies, ClientPolicy{
			Source:           "legacy",
			LegacyID:         row.ID,
			ClientID:         row.ClientID,
			PolicyNumber:     row.PolicyNumber,
			PolicyType:       row.PolicyType,
			Provider:         row.Provider,
			Description:      row.Description,
			PremiumAmount:    row.PremiumAmount,
			CommissionAmount: row.CommissionAmount,
			StartDate:        row.StartDate,
			ExpiryDate:       row.ExpiryDate,
			Status:           row.Status,
			DisplayStatus:    ComputeDisplayStatus(&shadow, now),
			ExpiryWarning:    ExpiryWarningText(&shadow, now),
		})
	}
	return policies, nil
}

// MigrationSummary reports a batch run's outcome
type MigrationSummary struct {
	RunName          string `json:"run_name"`
	BatchesCompleted int    `json:"batches_completed"`
	Migrated         int    `json:"migrated"`
	Skipped          int    `json:"skipped"`
	LastLegacyID     uint   `json:"last_legacy_id"`
	Halted           bool   `json:"halted"`
	HaltReason       string `json:"halt_reason,omitempty"`
}

// MigrateLegacyPolicies converts legacy rows into the template/instance
// shape in fixed-size batches. Each batch runs in its own bounded-timeout
// transaction so partial progress survives a crash; the checkpoint row makes
// the run resumable; cancellation is honored between batches. Records that
// fail validation are skipped and recorded, never fatal to the batch.
func MigrateLegacyPolicies(ctx context.Context, db *gorm.DB, phase PhaseConfig, runName string, actor AuditActor) (*MigrationSummary, error) {
	checkpoint, err := loadOrCreateCheckpoint(db, runName)
	if err != nil {
		return nil, err
	}

	batchSize := phase.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultMigrationBatchSize
	}

	summary := &MigrationSummary{
		RunName:          runName,
		BatchesCompleted: checkpoint.BatchesCompleted,
		Migrated:         checkpoint.MigratedCount,
		Skipped:          checkpoint.SkippedCount,
		LastLegacyID:     checkpoint.LastLegacyID,
	}

	for {
		select {
		case <-ctx.Done():
			summary.Halted = true
			summary.HaltReason = "cancelled"
			return summary, ctx.Err()
		default:
		}

		var batch []models.LegacyPolicy
		err := db.Where("id > ?", checkpoint.LastLegacyID).
			Order("id ASC").
			Limit(batchSize).
			Find(&batch).Error
		if err != nil {
			return summary, fmt.Errorf("failed to load legacy batch: %w", err)
		}
		if len(batch) == 0 {
			break
		}

		batchNumber := checkpoint.BatchesCompleted + 1
		migrated, skipped, err := migrateBatch(ctx, db, phase, runName, batchNumber, batch)
		if err != nil {
			if !phase.EnableRollback {
				// Without rollback snapshots a partial conversion cannot be
				// repaired; halt and report the last good high-water mark
				summary.Halted = true
				summary.HaltReason = err.Error()
				return summary, fmt.Errorf("migration halted at legacy id %d: %w", checkpoint.LastLegacyID, err)
			}
			log.Printf("[MIGRATION] batch %d failed, skipping batch: %v", batchNumber, err)
			skipped = len(batch)
			migrated = 0
			recordSkippedBatch(db, runName, batchNumber, batch, err)
		}

		checkpoint.LastLegacyID = batch[len(batch)-1].ID
		checkpoint.BatchesCompleted = batchNumber
		checkpoint.MigratedCount += migrated
		checkpoint.SkippedCount += skipped
		if err := db.Save(checkpoint).Error; err != nil {
			return summary, fmt.Errorf("failed to persist migration checkpoint: %w", err)
		}

		summary.BatchesCompleted = checkpoint.BatchesCompleted
		summary.Migrated = checkpoint.MigratedCount
		summary.Skipped = checkpoint.SkippedCount
		summary.LastLegacyID = checkpoint.LastLegacyID

		RecordAuditEvent(db, actor, models.AuditActionMigrate,
			models.AuditEntityMigration, runName, "", "",
			fmt.Sprintf("Completed migration batch %d: %d migrated, %d skipped", batchNumber, migrated, skipped),
			nil, map[string]interface{}{
				"batch":          batchNumber,
				"migrated":       migrated,
				"skipped":        skipped,
				"last_legacy_id": checkpoint.LastLegacyID,
			})
	}

	return summary, nil
}

// migrateBatch converts one batch inside its own transaction
func migrateBatch(ctx context.Context, db *gorm.DB, phase PhaseConfig, runName string, batchNumber int, batch []models.LegacyPolicy) (migrated, skipped int, err error) {
	timeout := phase.BatchTimeout
	if timeout <= 0 {
		timeout = DefaultBatchTimeout
	}
	batchCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err = db.WithContext(batchCtx).Transaction(func(tx *gorm.DB) error {
		for _, row := range batch {
			if reason := validateLegacyRow(row, phase.Validation); reason != "" {
				skipped++
				record := models.PolicyMigrationRecord{
					RunName:     runName,
					LegacyID:    row.ID,
					BatchNumber: batchNumber,
					Status:      models.MigrationStatusSkipped,
					Error:       reason,
				}
				if err := tx.Create(&record).Error; err != nil {
					return err
				}
				continue
			}

			template, err := findOrCreateTemplate(tx, row, phase)
			if err != nil {
				if errors.Is(err, ErrPolicyNumberExists) {
					skipped++
					record := models.PolicyMigrationRecord{
						RunName:     runName,
						LegacyID:    row.ID,
						BatchNumber: batchNumber,
						Status:      models.MigrationStatusSkipped,
						Error:       fmt.Sprintf("duplicate policy number %s with conflicting metadata", row.PolicyNumber),
					}
					if cerr := tx.Create(&record).Error; cerr != nil {
						return cerr
					}
					continue
				}
				return err
			}

			status := strings.ToUpper(row.Status)
			if !models.IsValidInstanceStatus(status) {
				status = models.InstanceStatusActive
			}
			instance := models.PolicyInstance{
				TemplateID:       template.ID,
				ClientID:         row.ClientID,
				PremiumAmount:    row.PremiumAmount,
				CommissionAmount: row.CommissionAmount,
				StartDate:        DateOnly(row.StartDate),
				ExpiryDate:       DateOnly(row.ExpiryDate),
				Status:           status,
			}
			if err := tx.Create(&instance).Error; err != nil {
				return err
			}

			record := models.PolicyMigrationRecord{
				RunName:     runName,
				LegacyID:    row.ID,
				BatchNumber: batchNumber,
				TemplateID:  template.ID,
				InstanceID:  instance.ID,
				Status:      models.MigrationStatusMigrated,
			}
			if phase.EnableRollback {
				if snapshot, err := json.Marshal(row); err == nil {
					record.Snapshot = string(snapshot)
				}
			}
			if err := tx.Create(&record).Error; err != nil {
				return err
			}
			migrated++
		}
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	return migrated, skipped, nil
}

// validateLegacyRow runs the pure validators against a legacy row under the
// phase's strictness, returning a skip reason or ""
func validateLegacyRow(row models.LegacyPolicy, cfg ValidationConfig) string {
	templateResult := ValidateTemplate(TemplatePayload{
		PolicyNumber: row.PolicyNumber,
		PolicyType:   row.PolicyType,
		Provider:     row.Provider,
		Description:  row.Description,
	}, cfg)

	instanceResult := ValidateInstance(InstancePayload{
		TemplateID:       "pending", // assigned during conversion
		ClientID:         row.ClientID,
		PremiumAmount:    &row.PremiumAmount,
		CommissionAmount: &row.CommissionAmount,
		StartDate:        &row.StartDate,
		ExpiryDate:       &row.ExpiryDate,
	}, cfg, time.Now())

	if templateResult.IsValid && instanceResult.IsValid {
		return ""
	}

	var reasons []string
	for field, message := range templateResult.Errors {
		reasons = append(reasons, field+": "+message)
	}
	for field, message := range instanceResult.Errors {
		reasons = append(reasons, field+": "+message)
	}
	sort.Strings(reasons)
	return strings.Join(reasons, "; ")
}

// findOrCreateTemplate resolves the shared template for a legacy row. Rows
// from different clients carrying the same policy number collapse onto one
// template; a metadata conflict is tolerated only when the phase allows
// duplicates.
func findOrCreateTemplate(tx *gorm.DB, row models.LegacyPolicy, phase PhaseConfig) (*models.PolicyTemplate, error) {
	norm := models.NormalizePolicyNumber(row.PolicyNumber)

	var existing models.PolicyTemplate
	err := tx.Where("policy_number_norm = ?", norm).First(&existing).Error
	if err == nil {
		sameMetadata := existing.PolicyType == strings.ToUpper(row.PolicyType) &&
			strings.EqualFold(existing.Provider, row.Provider)
		if sameMetadata || phase.Validation.AllowDuplicates {
			return &existing, nil
		}
		return nil, ErrPolicyNumberExists
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	template := models.PolicyTemplate{
		PolicyNumber: strings.TrimSpace(row.PolicyNumber),
		PolicyType:   strings.ToUpper(row.PolicyType),
		Provider:     strings.TrimSpace(row.Provider),
		Description:  row.Description,
	}
	if err := tx.Create(&template).Error; err != nil {
		return nil, err
	}
	return &template, nil
}

// MigrateClientPolicies lazily converts a single client's legacy rows; this
// is the migrate-on-read write-through path.
func MigrateClientPolicies(ctx context.Context, db *gorm.DB, phase PhaseConfig, runName, clientID string) (*MigrationSummary, error) {
	var rows []models.LegacyPolicy
	if err := db.Where("client_id = ?", clientID).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return &MigrationSummary{RunName: runName}, nil
	}

	// Skip rows already converted by an earlier run or read
	pending := rows[:0]
	for _, row := range rows {
		var count int64
		if err := db.Model(&models.PolicyMigrationRecord{}).
			Where("legacy_id = ? AND status = ?", row.ID, models.MigrationStatusMigrated).
			Count(&count).Error; err != nil {
			return nil, err
		}
		if count == 0 {
			pending = append(pending, row)
		}
	}
	if len(pending) == 0 {
		return &MigrationSummary{RunName: runName}, nil
	}

	migrated, skipped, err := migrateBatch(ctx, db, phase, runName, 1, pending)
	if err != nil {
		return nil, err
	}

	summary := &MigrationSummary{
		RunName:          runName,
		BatchesCompleted: 1,
		Migrated:         migrated,
		Skipped:          skipped,
		LastLegacyID:     pending[len(pending)-1].ID,
	}
	RecordAuditEvent(db, SystemActor, models.AuditActionMigrate,
		models.AuditEntityMigration, runName, "", clientID,
		fmt.Sprintf("Lazily migrated client policies: %d migrated, %d skipped", migrated, skipped),
		nil, summary)
	return summary, nil
}

// RollbackMigration reverts a run's conversions: restores legacy rows from
// their snapshots, deletes the produced instances (and templates left with
// no instances), and marks the records rolled back.
func RollbackMigration(db *gorm.DB, phase PhaseConfig, runName string, actor AuditActor) (int, error) {
	if !phase.EnableRollback {
		return 0, fmt.Errorf("rollback is disabled in phase %q", phase.Name)
	}

	var records []models.PolicyMigrationRecord
	err := db.Where("run_name = ? AND status = ?", runName, models.MigrationStatusMigrated).
		Find(&records).Error
	if err != nil {
		return 0, err
	}

	reverted := 0
	err = db.Transaction(func(tx *gorm.DB) error {
		for _, record := range records {
			if record.Snapshot != "" {
				var row models.LegacyPolicy
				if err := json.Unmarshal([]byte(record.Snapshot), &row); err == nil {
					// Restore the legacy row if a later phase removed or mutated it
					var count int64
					tx.Model(&models.LegacyPolicy{}).Where("id = ?", row.ID).Count(&count)
					if count == 0 {
						if err := tx.Create(&row).Error; err != nil {
							return err
						}
					}
				}
			}

			if record.InstanceID != "" {
				if err := tx.Where("id = ?", record.InstanceID).Delete(&models.PolicyInstance{}).Error; err != nil {
					return err
				}
			}
			if record.TemplateID != "" {
				var remaining int64
				if err := tx.Model(&models.PolicyInstance{}).
					Where("template_id = ?", record.TemplateID).
					Count(&remaining).Error; err != nil {
					return err
				}
				if remaining == 0 {
					if err := tx.Where("id = ?", record.TemplateID).Delete(&models.PolicyTemplate{}).Error; err != nil {
						return err
					}
				}
			}

			if err := tx.Model(&models.PolicyMigrationRecord{}).
				Where("id = ?", record.ID).
				Update("status", models.MigrationStatusRolledBack).Error; err != nil {
				return err
			}
			reverted++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	if reverted > 0 {
		RecordAuditEvent(db, actor, models.AuditActionMigrate,
			models.AuditEntityMigration, runName, "", "",
			fmt.Sprintf("Rolled back %d migrated record(s)", reverted),
			nil, map[string]interface{}{"reverted": reverted})
	}
	return reverted, nil
}

// PurgeExpiredSnapshots removes migration records older than the retention
// window. Rolled-back records are kept for the audit trail.
func PurgeExpiredSnapshots(db *gorm.DB, retentionDays int, now time.Time) (int64, error) {
	if retentionDays <= 0 {
		return 0, nil
	}
	cutoff := now.AddDate(0, 0, -retentionDays)
	res := db.Where("created_at < ? AND status <> ?", cutoff, models.MigrationStatusRolledBack).
		Delete(&models.PolicyMigrationRecord{})
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected > 0 {
		log.Printf("[MIGRATION] Purged %d migration snapshot(s) past retention", res.RowsAffected)
	}
	return res.RowsAffected, nil
}

// recordSkippedBatch records each row of a failed batch as skipped, best
// effort outside the rolled-back transaction
func recordSkippedBatch(db *gorm.DB, runName string, batchNumber int, batch []models.LegacyPolicy, cause error) {
	for _, row := range batch {
		record := models.PolicyMigrationRecord{
			RunName:     runName,
			LegacyID:    row.ID,
			BatchNumber: batchNumber,
			Status:      models.MigrationStatusSkipped,
			Error:       "batch failed: " + cause.Error(),
		}
		if err := db.Create(&record).Error; err != nil {
			log.Printf("[MIGRATION] failed to record skipped row %d: %v", row.ID, err)
		}
	}
}

func loadOrCreateCheckpoint(db *gorm.DB, runName string) (*models.MigrationCheckpoint, error) {
	var checkpoint models.MigrationCheckpoint
	err := db.Where("run_name = ?", runName).First(&checkpoint).Error
	if err == nil {
		return &checkpoint, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	checkpoint = models.MigrationCheckpoint{RunName: runName}
	if err := db.Create(&checkpoint).Error; err != nil {
		return nil, fmt.Errorf("failed to create migration checkpoint: %w", err)
	}
	return &checkpoint, nil
}
