package services

import (
	"fmt"
	"insurance_crm_go/models"
	"log"
	"time"

	"gorm.io/gorm"
)

// ExpiringSoonDays is the window, in days, before expiry in which an active
// instance is displayed as expiring soon (inclusive).
const ExpiringSoonDays = 30

// ComputeDisplayStatus derives the status shown for an instance from its
// stored status and dates. Pure function of (status, expiryDate, now);
// comparisons are date-only.
//
// A manual cancellation always wins. An instance whose expiry date has
// lapsed is displayed as expired even while its persisted status still says
// ACTIVE; the stored flag lags until the expiry sweep runs, and the display
// layer must never show a stale "Active" for a lapsed policy.
func ComputeDisplayStatus(instance *models.PolicyInstance, now time.Time) string {
	if instance.IsCancelled() {
		return models.DisplayStatusCancelled
	}
	if instance.Status == models.InstanceStatusExpired {
		return models.DisplayStatusExpired
	}

	days := DaysUntilExpiry(instance, now)
	switch {
	case days <= 0:
		return models.DisplayStatusExpired
	case days <= ExpiringSoonDays:
		return models.DisplayStatusExpiringSoon
	default:
		return models.DisplayStatusActive
	}
}

// DaysUntilExpiry returns whole calendar days until the instance expires
// (zero or negative once lapsed).
func DaysUntilExpiry(instance *models.PolicyInstance, now time.Time) int {
	return DaysBetween(now, instance.ExpiryDate)
}

// ExpiryWarningText returns the banner text for an instance, or the empty
// string when no warning applies. Kept consistent with ComputeDisplayStatus
// by deriving from it.
func ExpiryWarningText(instance *models.PolicyInstance, now time.Time) string {
	switch ComputeDisplayStatus(instance, now) {
	case models.DisplayStatusExpired:
		return "This policy has expired"
	case models.DisplayStatusExpiringSoon:
		days := DaysUntilExpiry(instance, now)
		if days == 1 {
			return "Expires tomorrow"
		}
		return fmt.Sprintf("Expires in %d days", days)
	default:
		return ""
	}
}

// InstanceView is a PolicyInstance annotated with its derived display state
type InstanceView struct {
	models.PolicyInstance
	DisplayStatus   string `json:"display_status"`
	ExpiryWarning   string `json:"expiry_warning,omitempty"`
	DaysUntilExpiry int    `json:"days_until_expiry"`
}

// AnnotateInstance attaches the derived display status and warning text
func AnnotateInstance(instance models.PolicyInstance, now time.Time) InstanceView {
	return InstanceView{
		PolicyInstance:  instance,
		DisplayStatus:   ComputeDisplayStatus(&instance, now),
		ExpiryWarning:   ExpiryWarningText(&instance, now),
		DaysUntilExpiry: DaysUntilExpiry(&instance, now),
	}
}

// SweepExpiredInstances persists EXPIRED onto instances whose stored status
// is still ACTIVE but whose expiry date has passed. This is the only path
// that writes the derived state back to storage. The conditional WHERE makes
// the sweep idempotent and safe to run from multiple schedulers at once.
func SweepExpiredInstances(db *gorm.DB, now time.Time) (int64, error) {
	res := db.Model(&models.PolicyInstance{}).
		Where("status = ? AND expiry_date <= ?", models.InstanceStatusActive, DateOnly(now)).
		Updates(map[string]interface{}{
			"status":            models.InstanceStatusExpired,
			"status_changed_at": now,
		})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to sweep expired instances: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		log.Printf("[EXPIRY] Sweep marked %d instance(s) as expired", res.RowsAffected)
	}
	return res.RowsAffected, nil
}

// ExpirySummary holds counts per display status across all instances
type ExpirySummary struct {
	Total        int `json:"total"`
	Active       int `json:"active"`
	ExpiringSoon int `json:"expiring_soon"`
	Expired      int `json:"expired"`
	Cancelled    int `json:"cancelled"`
}

// ComputeExpirySummary aggregates display statuses over all instances.
// Computed from the derived status, not the stored flag, so instances the
// sweep has not reached yet are counted as expired.
func ComputeExpirySummary(db *gorm.DB, now time.Time) (*ExpirySummary, error) {
	var instances []models.PolicyInstance
	if err := db.Select("id", "status", "start_date", "expiry_date").Find(&instances).Error; err != nil {
		return nil, err
	}

	summary := &ExpirySummary{Total: len(instances)}
	for i := range instances {
		switch ComputeDisplayStatus(&instances[i], now) {
		case models.DisplayStatusActive:
			summary.Active++
		case models.DisplayStatusExpiringSoon:
			summary.ExpiringSoon++
		case models.DisplayStatusExpired:
			summary.Expired++
		case models.DisplayStatusCancelled:
			summary.Cancelled++
		}
	}
	return summary, nil
}

// ExpiryWarnings returns the instances currently expiring soon or lapsed,
// annotated with warning text, soonest expiry first.
func ExpiryWarnings(db *gorm.DB, now time.Time) ([]InstanceView, error) {
	var instances []models.PolicyInstance
	err := db.Preload("Template").
		Where("status <> ?", models.InstanceStatusCancelled).
		Where("expiry_date <= ?", DateOnly(now).AddDate(0, 0, ExpiringSoonDays)).
		Order("expiry_date ASC").
		Find(&instances).Error
	if err != nil {
		return nil, err
	}

	views := make([]InstanceView, 0, len(instances))
	for _, instance := range instances {
		views = append(views, AnnotateInstance(instance, now))
	}
	return views, nil
}
