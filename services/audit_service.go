package services

import (
	"encoding/json"
	"insurance_crm_go/models"
	"log"
	"time"

	"gorm.io/gorm"
)

// AuditActor identifies who performed an operation
type AuditActor struct {
	ID   string
	Name string
}

// SystemActor is used for scheduler-initiated operations (sweeps, batch runs)
var SystemActor = AuditActor{ID: "", Name: "system"}

// RecordAuditEvent appends one audit record. It is called synchronously after
// a mutation succeeds so that every successful operation emits exactly one
// record; an insert failure is logged but never fails the mutation it
// describes.
func RecordAuditEvent(
	db *gorm.DB,
	actor AuditActor,
	action models.AuditAction,
	entityType string,
	entityID string,
	entityName string,
	clientID string,
	description string,
	oldValues interface{},
	newValues interface{},
) {
	var oldJSON, newJSON string

	if oldValues != nil {
		if bytes, err := json.Marshal(oldValues); err == nil {
			oldJSON = string(bytes)
		}
	}
	if newValues != nil {
		if bytes, err := json.Marshal(newValues); err == nil {
			newJSON = string(bytes)
		}
	}

	auditLog := models.AuditLog{
		ActorID:     ptrIfNotEmpty(actor.ID),
		ActorName:   actor.Name,
		ClientID:    ptrIfNotEmpty(clientID),
		EntityType:  entityType,
		EntityID:    entityID,
		EntityName:  entityName,
		Action:      action,
		Description: description,
		OldValues:   oldJSON,
		NewValues:   newJSON,
	}

	if err := db.Create(&auditLog).Error; err != nil {
		log.Printf("[AUDIT] Failed to create audit log: %v", err)
	}
}

// ptrIfNotEmpty returns a pointer to the string if not empty, nil otherwise
func ptrIfNotEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// AuditLogFilters contains filter options for audit log queries
type AuditLogFilters struct {
	EntityType  string
	Action      string
	DateFrom    time.Time
	DateTo      time.Time
	SearchQuery string
}

// AuditLogForClient retrieves paginated audit logs scoped to a client
func AuditLogForClient(
	db *gorm.DB,
	clientID string,
	filters AuditLogFilters,
	page, pageSize int,
) ([]models.AuditLog, int64, error) {
	query := db.Model(&models.AuditLog{}).Where("client_id = ?", clientID)

	if filters.EntityType != "" {
		query = query.Where("entity_type = ?", filters.EntityType)
	}
	if filters.Action != "" {
		query = query.Where("action = ?", filters.Action)
	}
	if !filters.DateFrom.IsZero() {
		query = query.Where("created_at >= ?", filters.DateFrom)
	}
	if !filters.DateTo.IsZero() {
		query = query.Where("created_at <= ?", filters.DateTo)
	}
	if filters.SearchQuery != "" {
		searchPattern := "%" + filters.SearchQuery + "%"
		query = query.Where(
			"entity_name LIKE ? OR description LIKE ? OR actor_name LIKE ?",
			searchPattern, searchPattern, searchPattern,
		)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var logs []models.AuditLog
	offset := (page - 1) * pageSize
	err := query.Order("created_at DESC").
		Offset(offset).
		Limit(pageSize).
		Find(&logs).Error

	return logs, total, err
}

// AuditStats summarizes a client's audit activity
type AuditStats struct {
	TotalEvents  int64                        `json:"total_events"`
	ByAction     map[models.AuditAction]int64 `json:"by_action"`
	LastActivity *time.Time                   `json:"last_activity,omitempty"`
}

// AuditStatsForClient aggregates audit counts per action for a client
func AuditStatsForClient(db *gorm.DB, clientID string) (*AuditStats, error) {
	stats := &AuditStats{ByAction: map[models.AuditAction]int64{}}

	if err := db.Model(&models.AuditLog{}).
		Where("client_id = ?", clientID).
		Count(&stats.TotalEvents).Error; err != nil {
		return nil, err
	}

	type actionCount struct {
		Action models.AuditAction
		Count  int64
	}
	var counts []actionCount
	if err := db.Model(&models.AuditLog{}).
		Select("action, COUNT(*) as count").
		Where("client_id = ?", clientID).
		Group("action").
		Scan(&counts).Error; err != nil {
		return nil, err
	}
	for _, c := range counts {
		stats.ByAction[c.Action] = c.Count
	}

	var latest models.AuditLog
	err := db.Where("client_id = ?", clientID).
		Order("created_at DESC").
		First(&latest).Error
	if err == nil {
		stats.LastActivity = &latest.CreatedAt
	} else if err != gorm.ErrRecordNotFound {
		return nil, err
	}

	return stats, nil
}

// AuditReport retrieves all audit records within a date range, oldest first
func AuditReport(db *gorm.DB, from, to time.Time) ([]models.AuditLog, error) {
	var logs []models.AuditLog
	err := db.Where("created_at >= ? AND created_at <= ?", from, to).
		Order("created_at ASC").
		Find(&logs).Error
	return logs, err
}
