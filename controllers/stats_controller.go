package controllers

import (
	"bytes"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sortirkopi/bean-order-api/services"
	"github.com/sortirkopi/bean-order-api/stats"
)

// scopeFromQuery reads ?scope=order|month|year with order_id, year and month.
// An absent scope means every visible order.
func scopeFromQuery(c *gin.Context) (stats.Scope, bool) {
	kind := stats.ScopeKind(c.DefaultQuery("scope", string(stats.ScopePerOrder)))

	num := func(name string) (int, bool) {
		raw := c.Query(name)
		if raw == "" {
			return 0, true
		}
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			errorResponse(c, http.StatusBadRequest, "VALIDATION_ERROR", name+" must be a non-negative integer")
			return 0, false
		}
		return v, true
	}

	orderID, ok := num("order_id")
	if !ok {
		return stats.Scope{}, false
	}
	year, ok := num("year")
	if !ok {
		return stats.Scope{}, false
	}
	month, ok := num("month")
	if !ok {
		return stats.Scope{}, false
	}

	return stats.Scope{
		Kind:    kind,
		OrderID: uint(orderID),
		Year:    year,
		Month:   time.Month(month),
	}, true
}

// GetStats handles GET /api/v1/stats - bean sorting totals for the dashboard
func GetStats(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	scope, ok := scopeFromQuery(c)
	if !ok {
		return
	}

	result, err := services.Get().Reports.Stats(c.Request.Context(), user, scope)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    result,
	})
}

// ExportReport handles GET /api/v1/stats/export - the same scope as a CSV download
func ExportReport(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	scope, ok := scopeFromQuery(c)
	if !ok {
		return
	}

	report, err := services.Get().Reports.Build(c.Request.Context(), user, scope)
	if err != nil {
		respondError(c, err)
		return
	}

	// Render fully before writing headers so a failure still gets the JSON envelope
	var buf bytes.Buffer
	if err := services.WriteCSV(&buf, report); err != nil {
		respondError(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+services.ReportFilename(scope)+`"`)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}
