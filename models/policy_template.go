package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Policy type constants
const (
	PolicyTypeLife     = "LIFE"
	PolicyTypeHealth   = "HEALTH"
	PolicyTypeAuto     = "AUTO"
	PolicyTypeHome     = "HOME"
	PolicyTypeBusiness = "BUSINESS"
)

// PolicyTemplate represents a reusable policy definition shared across clients.
// The policy number is globally unique regardless of which clients reference it.
type PolicyTemplate struct {
	ID        string    `gorm:"type:uuid;primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// PolicyNumber keeps the casing the agent typed; PolicyNumberNorm is the
	// lowercase copy carrying the unique index so that case-insensitive
	// uniqueness is enforced by the database, not just the pre-check.
	PolicyNumber     string `gorm:"size:50;not null" json:"policy_number"`
	PolicyNumberNorm string `gorm:"size:50;not null;uniqueIndex" json:"-"`

	PolicyType  string `gorm:"not null;index" json:"policy_type"`
	Provider    string `gorm:"size:100;not null;index" json:"provider"`
	Description string `gorm:"size:500" json:"description,omitempty"`

	// Relationships
	Instances []PolicyInstance `gorm:"foreignKey:TemplateID" json:"instances,omitempty"`
}

// BeforeCreate hook to generate UUID
func (t *PolicyTemplate) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	return nil
}

// BeforeSave keeps the normalized policy number in sync on create and update
func (t *PolicyTemplate) BeforeSave(tx *gorm.DB) error {
	t.PolicyNumberNorm = NormalizePolicyNumber(t.PolicyNumber)
	return nil
}

// TableName specifies the table name for PolicyTemplate model
func (PolicyTemplate) TableName() string {
	return "policy_templates"
}

// NormalizePolicyNumber lowercases a policy number for case-insensitive comparison
func NormalizePolicyNumber(number string) string {
	return strings.ToLower(strings.TrimSpace(number))
}

// IsValidPolicyType checks if the policy type is valid
func IsValidPolicyType(policyType string) bool {
	validTypes := []string{
		PolicyTypeLife,
		PolicyTypeHealth,
		PolicyTypeAuto,
		PolicyTypeHome,
		PolicyTypeBusiness,
	}
	for _, t := range validTypes {
		if t == policyType {
			return true
		}
	}
	return false
}

// GetPolicyTypeDisplayName returns human-readable policy type name
func GetPolicyTypeDisplayName(policyType string) string {
	names := map[string]string{
		PolicyTypeLife:     "Life",
		PolicyTypeHealth:   "Health",
		PolicyTypeAuto:     "Auto",
		PolicyTypeHome:     "Home",
		PolicyTypeBusiness: "Business",
	}
	if name, ok := names[policyType]; ok {
		return name
	}
	return policyType
}
