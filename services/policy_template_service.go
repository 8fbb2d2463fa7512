package services

import (
	"errors"
	"fmt"
	"insurance_crm_go/models"
	"strings"
	"time"

	"gorm.io/gorm"
)

// Template-related errors
var (
	ErrTemplateNotFound   = errors.New("policy template not found")
	ErrPolicyNumberExists = errors.New("policy number already exists")
)

// TemplateFilters holds filter options for listing templates
type TemplateFilters struct {
	Search       string
	PolicyTypes  []string
	Providers    []string
	HasInstances *bool
	SortBy       string
	SortDir      string
}

// templateSortColumns whitelists sortable columns
var templateSortColumns = map[string]string{
	"policy_number": "policy_number_norm",
	"policy_type":   "policy_type",
	"provider":      "provider",
	"created_at":    "created_at",
}

// CreateTemplate validates and persists a new policy template. The
// case-insensitive uniqueness pre-check gives a friendly conflict early, but
// the unique index on the normalized number is the real guard: two
// concurrent creates for the same number cannot both commit.
func CreateTemplate(db *gorm.DB, actor AuditActor, payload TemplatePayload, cfg ValidationConfig) (*models.PolicyTemplate, *ValidationResult, error) {
	result := ValidateTemplate(payload, cfg)
	if !result.IsValid {
		return nil, result, nil
	}

	norm := models.NormalizePolicyNumber(payload.PolicyNumber)
	var count int64
	if err := db.Model(&models.PolicyTemplate{}).
		Where("policy_number_norm = ?", norm).
		Count(&count).Error; err != nil {
		return nil, result, fmt.Errorf("failed to check policy number uniqueness: %w", err)
	}
	if count > 0 {
		return nil, result, ErrPolicyNumberExists
	}

	template := models.PolicyTemplate{
		PolicyNumber: strings.TrimSpace(payload.PolicyNumber),
		PolicyType:   strings.ToUpper(payload.PolicyType),
		Provider:     strings.TrimSpace(payload.Provider),
		Description:  payload.Description,
	}
	if err := db.Create(&template).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, result, ErrPolicyNumberExists
		}
		return nil, result, fmt.Errorf("failed to create policy template: %w", err)
	}

	RecordAuditEvent(db, actor, models.AuditActionCreate,
		models.AuditEntityTemplate, template.ID, template.PolicyNumber, "",
		fmt.Sprintf("Created policy template %s (%s)", template.PolicyNumber, template.Provider),
		nil, template)

	return &template, result, nil
}

// UpdateTemplate revalidates and persists changes to a template. When the
// policy number changes, uniqueness is re-checked excluding the record's own
// prior value.
func UpdateTemplate(db *gorm.DB, actor AuditActor, id string, payload TemplatePayload, cfg ValidationConfig) (*models.PolicyTemplate, *ValidationResult, error) {
	result := ValidateTemplate(payload, cfg)
	if !result.IsValid {
		return nil, result, nil
	}

	var template models.PolicyTemplate
	if err := db.First(&template, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, result, ErrTemplateNotFound
		}
		return nil, result, err
	}

	norm := models.NormalizePolicyNumber(payload.PolicyNumber)
	if norm != template.PolicyNumberNorm {
		var count int64
		if err := db.Model(&models.PolicyTemplate{}).
			Where("policy_number_norm = ? AND id <> ?", norm, id).
			Count(&count).Error; err != nil {
			return nil, result, fmt.Errorf("failed to check policy number uniqueness: %w", err)
		}
		if count > 0 {
			return nil, result, ErrPolicyNumberExists
		}
	}

	oldValues := templateAuditValues(&template)

	template.PolicyNumber = strings.TrimSpace(payload.PolicyNumber)
	template.PolicyType = strings.ToUpper(payload.PolicyType)
	template.Provider = strings.TrimSpace(payload.Provider)
	template.Description = payload.Description

	if err := db.Save(&template).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, result, ErrPolicyNumberExists
		}
		return nil, result, fmt.Errorf("failed to update policy template: %w", err)
	}

	RecordAuditEvent(db, actor, models.AuditActionUpdate,
		models.AuditEntityTemplate, template.ID, template.PolicyNumber, "",
		fmt.Sprintf("Updated policy template %s", template.PolicyNumber),
		oldValues, templateAuditValues(&template))

	return &template, result, nil
}

// DeleteTemplate removes a template and all its instances in one
// transaction. A crash mid-cascade must not leave orphaned instances.
func DeleteTemplate(db *gorm.DB, actor AuditActor, id string) error {
	var template models.PolicyTemplate
	var cascaded int64

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&template, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrTemplateNotFound
			}
			return err
		}

		// Cascade first so no instance can outlive its template
		res := tx.Where("template_id = ?", id).Delete(&models.PolicyInstance{})
		if res.Error != nil {
			return res.Error
		}
		cascaded = res.RowsAffected

		return tx.Delete(&template).Error
	})
	if err != nil {
		return err
	}

	RecordAuditEvent(db, actor, models.AuditActionDelete,
		models.AuditEntityTemplate, template.ID, template.PolicyNumber, "",
		fmt.Sprintf("Deleted policy template %s and %d dependent instance(s)", template.PolicyNumber, cascaded),
		templateAuditValues(&template), nil)

	return nil
}

// GetTemplateByID retrieves a template by ID
func GetTemplateByID(db *gorm.DB, id string) (*models.PolicyTemplate, error) {
	var template models.PolicyTemplate
	if err := db.First(&template, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTemplateNotFound
		}
		return nil, err
	}
	return &template, nil
}

// SearchTemplates does a case-insensitive substring match over policy number
// and provider. Both the uniqueness pre-check on the client form and the UI
// search box go through this one code path.
func SearchTemplates(db *gorm.DB, query string) ([]models.PolicyTemplate, error) {
	var templates []models.PolicyTemplate
	kw := "%" + strings.ToLower(strings.TrimSpace(query)) + "%"
	err := db.Where("policy_number_norm LIKE ? OR LOWER(provider) LIKE ?", kw, kw).
		Order("policy_number_norm ASC").
		Find(&templates).Error
	return templates, err
}

// ListTemplates retrieves templates with filters, sorting and pagination
func ListTemplates(db *gorm.DB, filters TemplateFilters, page, limit int) ([]models.PolicyTemplate, int64, error) {
	query := db.Model(&models.PolicyTemplate{})

	if filters.Search != "" {
		kw := "%" + strings.ToLower(filters.Search) + "%"
		query = query.Where("policy_number_norm LIKE ? OR LOWER(provider) LIKE ?", kw, kw)
	}
	if len(filters.PolicyTypes) > 0 {
		types := make([]string, 0, len(filters.PolicyTypes))
		for _, t := range filters.PolicyTypes {
			types = append(types, strings.ToUpper(t))
		}
		query = query.Where("policy_type IN ?", types)
	}
	if len(filters.Providers) > 0 {
		query = query.Where("provider IN ?", filters.Providers)
	}
	if filters.HasInstances != nil {
		sub := db.Model(&models.PolicyInstance{}).
			Select("1").
			Where("policy_instances.template_id = policy_templates.id")
		if *filters.HasInstances {
			query = query.Where("EXISTS (?)", sub)
		} else {
			query = query.Where("NOT EXISTS (?)", sub)
		}
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	sortCol, ok := templateSortColumns[filters.SortBy]
	if !ok {
		sortCol = "created_at"
	}
	dir := "ASC"
	if strings.EqualFold(filters.SortDir, "desc") {
		dir = "DESC"
	}

	var templates []models.PolicyTemplate
	offset := (page - 1) * limit
	err := query.Order(sortCol + " " + dir).
		Limit(limit).
		Offset(offset).
		Find(&templates).Error

	return templates, total, err
}

// TemplateStats holds aggregate figures for one template
type TemplateStats struct {
	TemplateID      string  `json:"template_id"`
	InstanceCount   int64   `json:"instance_count"`
	ClientCount     int64   `json:"client_count"`
	ActiveCount     int64   `json:"active_count"`
	TotalPremium    float64 `json:"total_premium"`
	TotalCommission float64 `json:"total_commission"`
}

// GetTemplateStats aggregates instance figures for a template. The active
// count uses the display status so lapsed-but-unswept instances are excluded.
func GetTemplateStats(db *gorm.DB, templateID string, now time.Time) (*TemplateStats, error) {
	var instances []models.PolicyInstance
	if err := db.Where("template_id = ?", templateID).Find(&instances).Error; err != nil {
		return nil, err
	}

	stats := &TemplateStats{TemplateID: templateID, InstanceCount: int64(len(instances))}
	clients := map[string]struct{}{}
	for i := range instances {
		clients[instances[i].ClientID] = struct{}{}
		stats.TotalPremium += instances[i].PremiumAmount
		stats.TotalCommission += instances[i].CommissionAmount
		switch ComputeDisplayStatus(&instances[i], now) {
		case models.DisplayStatusActive, models.DisplayStatusExpiringSoon:
			stats.ActiveCount++
		}
	}
	stats.ClientCount = int64(len(clients))
	return stats, nil
}

// isUniqueConstraintError detects the SQLite unique constraint violation the
// policy_number_norm index raises on a lost create race
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "constraint failed")
}
