package models

import (
	"time"
)

// LegacyPolicy is the pre-template policy shape: one row per client and
// policy number, with the template and instance fields flattened together.
// It is retained while the migration phases run and is never shared across
// clients. The integer primary key doubles as the batch migration's
// high-water mark.
type LegacyPolicy struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	ClientID     string `gorm:"not null;index;uniqueIndex:idx_legacy_client_number" json:"client_id"`
	PolicyNumber string `gorm:"size:50;not null;uniqueIndex:idx_legacy_client_number" json:"policy_number"`

	PolicyType  string `gorm:"not null" json:"policy_type"`
	Provider    string `gorm:"size:100;not null" json:"provider"`
	Description string `gorm:"size:500" json:"description,omitempty"`

	PremiumAmount    float64   `gorm:"not null" json:"premium_amount"`
	CommissionAmount float64   `gorm:"not null" json:"commission_amount"`
	StartDate        time.Time `gorm:"not null" json:"start_date"`
	ExpiryDate       time.Time `gorm:"not null" json:"expiry_date"`

	Status string `gorm:"not null;default:ACTIVE" json:"status"`
}

// TableName keeps the legacy table name the old system wrote to
func (LegacyPolicy) TableName() string {
	return "policies"
}
