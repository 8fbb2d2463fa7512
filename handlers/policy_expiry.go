package handlers

import (
	"insurance_crm_go/db"
	"insurance_crm_go/services"
	"net/http"

	"github.com/labstack/echo/v4"
)

// ExpiryWarningsHandler lists instances that are expiring soon or lapsed
func ExpiryWarningsHandler(c echo.Context) error {
	warnings, err := services.ExpiryWarnings(db.DB, requestNow())
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"data": warnings})
}

// ExpirySummaryHandler returns counts per display status
func ExpirySummaryHandler(c echo.Context) error {
	summary, err := services.ComputeExpirySummary(db.DB, requestNow())
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"data": summary})
}

// UpdateExpiredHandler triggers the sweep that persists EXPIRED onto lapsed
// instances. Idempotent; schedulers and operators may both call it.
func UpdateExpiredHandler(c echo.Context) error {
	updated, err := services.SweepExpiredInstances(db.DB, requestNow())
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"updated": updated})
}
