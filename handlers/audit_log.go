package handlers

import (
	"insurance_crm_go/db"
	"insurance_crm_go/services"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// ClientAuditLogHandler returns a client's audit history with filters
func ClientAuditLogHandler(c echo.Context) error {
	filters := services.AuditLogFilters{
		EntityType:  c.QueryParam("entity_type"),
		Action:      c.QueryParam("action"),
		SearchQuery: c.QueryParam("search"),
	}
	if from := c.QueryParam("date_from"); from != "" {
		if t, err := services.ParseDate(from); err == nil {
			filters.DateFrom = t
		}
	}
	if to := c.QueryParam("date_to"); to != "" {
		if t, err := services.ParseDate(to); err == nil {
			// Include the entire day
			filters.DateTo = t.Add(24 * time.Hour)
		}
	}

	page, pageSize := parsePagination(c)
	logs, total, err := services.AuditLogForClient(db.DB, c.Param("id"), filters, page, pageSize)
	if err != nil {
		return mapServiceError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"data": logs,
		"pagination": map[string]interface{}{
			"page":        page,
			"limit":       pageSize,
			"total":       total,
			"total_pages": int((total + int64(pageSize) - 1) / int64(pageSize)),
		},
	})
}

// ClientAuditStatsHandler summarizes a client's audit activity
func ClientAuditStatsHandler(c echo.Context) error {
	stats, err := services.AuditStatsForClient(db.DB, c.Param("id"))
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"data": stats})
}

// AuditReportHandler returns all audit records in a date range
func AuditReportHandler(c echo.Context) error {
	from, err := services.ParseDate(c.QueryParam("from"))
	if err != nil {
		return respondFieldErrors(c, map[string]string{"from": "From date must be a valid date (YYYY-MM-DD)"})
	}
	to, err := services.ParseDate(c.QueryParam("to"))
	if err != nil {
		return respondFieldErrors(c, map[string]string{"to": "To date must be a valid date (YYYY-MM-DD)"})
	}

	logs, err := services.AuditReport(db.DB, from, to.Add(24*time.Hour))
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"data": logs})
}
