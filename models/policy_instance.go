package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Stored instance status constants. EXPIRED is persisted only by an explicit
// status change or by the expiry sweep; day-to-day reads derive the display
// status from the dates instead.
const (
	InstanceStatusActive    = "ACTIVE"
	InstanceStatusExpired   = "EXPIRED"
	InstanceStatusCancelled = "CANCELLED"
)

// Display status constants (derived at read time, never persisted)
const (
	DisplayStatusActive       = "ACTIVE"
	DisplayStatusExpiringSoon = "EXPIRING_SOON"
	DisplayStatusExpired      = "EXPIRED"
	DisplayStatusCancelled    = "CANCELLED"
)

// PolicyInstance binds one client to one template with concrete terms.
// Many instances may share a template; deleting an instance never touches
// the template or its sibling instances.
type PolicyInstance struct {
	ID        string    `gorm:"type:uuid;primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Template relationship
	TemplateID string         `gorm:"type:uuid;not null;index" json:"template_id"`
	Template   PolicyTemplate `gorm:"foreignKey:TemplateID" json:"template,omitempty"`

	// Client relationship (client records are owned by the CRM module)
	ClientID string `gorm:"not null;index" json:"client_id"`
	Client   Client `gorm:"foreignKey:ClientID" json:"client,omitempty"`

	// Terms
	PremiumAmount    float64   `gorm:"not null" json:"premium_amount"`
	CommissionAmount float64   `gorm:"not null" json:"commission_amount"`
	StartDate        time.Time `gorm:"not null" json:"start_date"`
	ExpiryDate       time.Time `gorm:"not null;index" json:"expiry_date"`

	// Stored status, authoritative for non-time-derived states
	Status          string     `gorm:"not null;default:ACTIVE;index" json:"status"`
	StatusChangedAt *time.Time `json:"status_changed_at,omitempty"`
	StatusChangedBy *string    `json:"status_changed_by,omitempty"`
}

// BeforeCreate hook to generate UUID and default status
func (i *PolicyInstance) BeforeCreate(tx *gorm.DB) error {
	if i.ID == "" {
		i.ID = uuid.New().String()
	}
	if i.Status == "" {
		i.Status = InstanceStatusActive
	}
	return nil
}

// TableName specifies the table name for PolicyInstance model
func (PolicyInstance) TableName() string {
	return "policy_instances"
}

// IsCancelled checks if the instance was manually cancelled
func (i *PolicyInstance) IsCancelled() bool {
	return i.Status == InstanceStatusCancelled
}

// IsValidInstanceStatus checks if the stored status is valid
func IsValidInstanceStatus(status string) bool {
	validStatuses := []string{
		InstanceStatusActive,
		InstanceStatusExpired,
		InstanceStatusCancelled,
	}
	for _, s := range validStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// GetInstanceStatusDisplayName returns human-readable status name
func GetInstanceStatusDisplayName(status string) string {
	names := map[string]string{
		InstanceStatusActive:      "Active",
		InstanceStatusExpired:     "Expired",
		InstanceStatusCancelled:   "Cancelled",
		DisplayStatusExpiringSoon: "Expiring Soon",
	}
	if name, ok := names[status]; ok {
		return name
	}
	return status
}
