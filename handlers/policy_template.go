package handlers

import (
	"insurance_crm_go/db"
	"insurance_crm_go/middleware"
	"insurance_crm_go/services"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
)

// templateRequest is the JSON body for template create/update
type templateRequest struct {
	PolicyNumber string `json:"policy_number"`
	PolicyType   string `json:"policy_type"`
	Provider     string `json:"provider"`
	Description  string `json:"description"`
}

func (r templateRequest) toPayload() services.TemplatePayload {
	return services.TemplatePayload{
		PolicyNumber: r.PolicyNumber,
		PolicyType:   r.PolicyType,
		Provider:     r.Provider,
		Description:  r.Description,
	}
}

// GetTemplatesHandler lists templates with filters, sorting and pagination
func GetTemplatesHandler(c echo.Context) error {
	filters := services.TemplateFilters{
		Search:  c.QueryParam("search"),
		SortBy:  c.QueryParam("sort_by"),
		SortDir: c.QueryParam("sort_dir"),
	}
	if types := c.QueryParam("policy_types"); types != "" {
		filters.PolicyTypes = strings.Split(types, ",")
	}
	if providers := c.QueryParam("providers"); providers != "" {
		filters.Providers = strings.Split(providers, ",")
	}
	if has := c.QueryParam("has_instances"); has != "" {
		if b, err := strconv.ParseBool(has); err == nil {
			filters.HasInstances = &b
		}
	}

	page, limit := parsePagination(c)
	templates, total, err := services.ListTemplates(db.DB, filters, page, limit)
	if err != nil {
		return mapServiceError(c, err)
	}

	response := map[string]interface{}{
		"data": templates,
		"pagination": map[string]interface{}{
			"page":        page,
			"limit":       limit,
			"total":       total,
			"total_pages": int((total + int64(limit) - 1) / int64(limit)),
		},
	}

	if c.QueryParam("include_stats") == "true" {
		now := requestNow()
		stats := make([]*services.TemplateStats, 0, len(templates))
		for _, template := range templates {
			s, err := services.GetTemplateStats(db.DB, template.ID, now)
			if err != nil {
				return mapServiceError(c, err)
			}
			stats = append(stats, s)
		}
		response["stats"] = stats
	}

	return c.JSON(http.StatusOK, response)
}

// CreateTemplateHandler registers a new policy number
func CreateTemplateHandler(c echo.Context) error {
	var req templateRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, http.StatusBadRequest, KindValidationError, "Invalid request body")
	}

	actor := middleware.GetActor(c)
	template, result, err := services.CreateTemplate(db.DB, actor, req.toPayload(), validationCfg(c))
	if err != nil {
		return mapServiceError(c, err)
	}
	if !result.IsValid {
		return respondValidationFailure(c, result)
	}

	return c.JSON(http.StatusCreated, map[string]interface{}{
		"data":     template,
		"warnings": result.Warnings,
	})
}

// GetTemplateHandler returns one template, optionally with stats
func GetTemplateHandler(c echo.Context) error {
	template, err := services.GetTemplateByID(db.DB, c.Param("id"))
	if err != nil {
		return mapServiceError(c, err)
	}

	response := map[string]interface{}{"data": template}
	if c.QueryParam("include_stats") == "true" {
		stats, err := services.GetTemplateStats(db.DB, template.ID, requestNow())
		if err != nil {
			return mapServiceError(c, err)
		}
		response["stats"] = stats
	}
	return c.JSON(http.StatusOK, response)
}

// UpdateTemplateHandler edits template metadata
func UpdateTemplateHandler(c echo.Context) error {
	var req templateRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, http.StatusBadRequest, KindValidationError, "Invalid request body")
	}

	actor := middleware.GetActor(c)
	template, result, err := services.UpdateTemplate(db.DB, actor, c.Param("id"), req.toPayload(), validationCfg(c))
	if err != nil {
		return mapServiceError(c, err)
	}
	if !result.IsValid {
		return respondValidationFailure(c, result)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"data":     template,
		"warnings": result.Warnings,
	})
}

// DeleteTemplateHandler deletes a template and cascades to its instances
func DeleteTemplateHandler(c echo.Context) error {
	actor := middleware.GetActor(c)
	if err := services.DeleteTemplate(db.DB, actor, c.Param("id")); err != nil {
		return mapServiceError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// SearchTemplatesHandler backs both the uniqueness pre-check and the UI
// search box
func SearchTemplatesHandler(c echo.Context) error {
	q := c.QueryParam("q")
	if strings.TrimSpace(q) == "" {
		return respondError(c, http.StatusBadRequest, KindValidationError, "Query parameter q is required")
	}

	templates, err := services.SearchTemplates(db.DB, q)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"data": templates})
}
