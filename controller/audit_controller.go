// api/controller/audit_controller.go
package controller

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/aegis-governance/aegis/api/audit"
	aegis_errors "github.com/aegis-governance/aegis/api/errors"
	"github.com/aegis-governance/aegis/api/util"
)

type AuditController struct {
	auditService audit.Service
}

func NewAuditController(auditService audit.Service) *AuditController {
	return &AuditController{
		auditService: auditService,
	}
}

// RegisterRoutes registers the API routes
func (ac *AuditController) RegisterRoutes(r *gin.RouterGroup) {
	records := r.Group("/audit")
	{
		records.GET("/records", ac.QueryRecords)
		records.GET("/records/:id", ac.GetRecord)
		records.GET("/analytics", ac.GetAnalytics)
		records.POST("/replay", ac.ReplayFallback)
	}
}

// QueryRecords endpoint
func (ac *AuditController) QueryRecords(c *gin.Context) {
	from, to, err := parseWindow(c)
	if err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid time window", err)
		return
	}

	records, err := ac.auditService.Query(c, from, to, c.Query("session_id"), c.Query("user_id"))
	if err != nil {
		util.RespondWithError(c, http.StatusInternalServerError, "Failed to query audit records", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": records, "count": len(records)})
}

// GetRecord endpoint
func (ac *AuditController) GetRecord(c *gin.Context) {
	record, err := ac.auditService.GetRecord(c, c.Param("id"))
	if err != nil {
		if errors.Is(err, aegis_errors.ErrAuditNotFound) {
			util.RespondWithError(c, http.StatusNotFound, "Audit record not found", err)
		} else {
			util.RespondWithError(c, http.StatusInternalServerError, "Failed to fetch audit record", err)
		}
		return
	}
	c.JSON(http.StatusOK, record)
}

// GetAnalytics endpoint
func (ac *AuditController) GetAnalytics(c *gin.Context) {
	from, to, err := parseWindow(c)
	if err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid time window", err)
		return
	}

	summary, err := ac.auditService.Analytics(c, from, to)
	if err != nil {
		util.RespondWithError(c, http.StatusInternalServerError, "Failed to compute analytics", err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// ReplayFallback endpoint
func (ac *AuditController) ReplayFallback(c *gin.Context) {
	replayed, err := ac.auditService.ReplayFallback(c)
	if err != nil {
		util.RespondWithError(c, http.StatusInternalServerError, "Fallback replay stopped early", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"replayed": replayed})
}

// parseWindow reads the from/to query parameters, defaulting to the last
// 24 hours.
func parseWindow(c *gin.Context) (time.Time, time.Time, error) {
	to := time.Now().UTC()
	from := to.Add(-24 * time.Hour)

	if raw := c.Query("from"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		from = parsed
	}
	if raw := c.Query("to"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		to = parsed
	}
	return from, to, nil
}
