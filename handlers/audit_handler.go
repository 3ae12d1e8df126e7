package handlers

import (
	"net/http"
	"strconv"

	"authpilot-backend/models"
	"authpilot-backend/repository"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AuditHandler handles HTTP requests for the audit log
type AuditHandler struct {
	audit *repository.AuditRepository
}

// NewAuditHandler creates a new audit handler
func NewAuditHandler(audit *repository.AuditRepository) *AuditHandler {
	return &AuditHandler{audit: audit}
}

// ListAuditLogs handles GET /api/audit-logs, newest first, optionally
// scoped to one case via ?case_id=
func (h *AuditHandler) ListAuditLogs(c *gin.Context) {
	limit := 100
	if l := c.Query("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, errorResponse("INVALID_LIMIT", "limit must be a positive integer"))
			return
		}
		limit = parsed
	}

	var entries []*models.AuditLog
	var err error
	if caseParam := c.Query("case_id"); caseParam != "" {
		caseID, parseErr := uuid.Parse(caseParam)
		if parseErr != nil {
			c.JSON(http.StatusBadRequest, errorResponse("INVALID_CASE_ID", "invalid case_id format"))
			return
		}
		entries, err = h.audit.ListByCase(c.Request.Context(), caseID, limit)
	} else {
		entries, err = h.audit.ListRecent(c.Request.Context(), limit)
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse("LIST_FAILED", err.Error()))
		return
	}
	if entries == nil {
		entries = []*models.AuditLog{}
	}

	c.JSON(http.StatusOK, successResponse(entries))
}
