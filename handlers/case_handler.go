package handlers

import (
	"errors"
	"net/http"

	"authpilot-backend/models"
	"authpilot-backend/repository"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// CaseHandler handles HTTP requests for cases, including the review and
// export endpoints
type CaseHandler struct {
	cases  *repository.CaseRepository
	audit  *repository.AuditRepository
	logger *zap.Logger
}

// NewCaseHandler creates a new case handler
func NewCaseHandler(cases *repository.CaseRepository, audit *repository.AuditRepository, logger *zap.Logger) *CaseHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CaseHandler{cases: cases, audit: audit, logger: logger}
}

// CreateCaseRequest represents the request body for creating a case
type CreateCaseRequest struct {
	Payer       string   `json:"payer" binding:"required"`
	State       string   `json:"state"`
	CPTCodes    []string `json:"cpt_codes"`
	ICD10Codes  []string `json:"icd10_codes"`
	RequestType string   `json:"request_type"`
	DueDate     string   `json:"due_date"`
	PatientName *string  `json:"patient_name"`
	PatientDOB  *string  `json:"patient_dob"`
	PatientMRN  *string  `json:"patient_mrn"`
}

// CreateCase handles POST /api/cases
func (h *CaseHandler) CreateCase(c *gin.Context) {
	var req CreateCaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("INVALID_REQUEST", err.Error()))
		return
	}

	newCase := &models.Case{
		Payer:       req.Payer,
		State:       req.State,
		CPTCodes:    req.CPTCodes,
		ICD10Codes:  req.ICD10Codes,
		RequestType: req.RequestType,
		DueDate:     req.DueDate,
		PatientName: req.PatientName,
		PatientDOB:  req.PatientDOB,
		PatientMRN:  req.PatientMRN,
		Status:      models.StatusNewDenial,
	}

	if err := h.cases.Create(c.Request.Context(), newCase); err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse("CREATE_FAILED", err.Error()))
		return
	}

	h.recordAudit(c, newCase.ID, "case_created", models.AuditDetails{"payer": newCase.Payer})
	c.JSON(http.StatusCreated, successResponse(newCase))
}

// ListCases handles GET /api/cases
func (h *CaseHandler) ListCases(c *gin.Context) {
	var status *models.CaseStatus
	if s := c.Query("status"); s != "" {
		cs := models.CaseStatus(s)
		if !models.ValidStatus(cs) {
			c.JSON(http.StatusBadRequest, errorResponse("INVALID_STATUS", "unknown case status: "+s))
			return
		}
		status = &cs
	}

	cases, err := h.cases.List(c.Request.Context(), status, 0, 0)
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse("LIST_FAILED", err.Error()))
		return
	}
	if cases == nil {
		cases = []*models.Case{}
	}

	c.JSON(http.StatusOK, successResponse(cases))
}

// GetCase handles GET /api/cases/:id
func (h *CaseHandler) GetCase(c *gin.Context) {
	id, ok := h.caseID(c)
	if !ok {
		return
	}

	kase, err := h.cases.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			c.JSON(http.StatusNotFound, errorResponse("CASE_NOT_FOUND", "case not found"))
			return
		}
		c.JSON(http.StatusInternalServerError, errorResponse("GET_FAILED", err.Error()))
		return
	}

	c.JSON(http.StatusOK, successResponse(kase))
}

// UpdateCaseRequest represents the request body for updating a case
type UpdateCaseRequest struct {
	Payer       *string  `json:"payer"`
	State       *string  `json:"state"`
	CPTCodes    []string `json:"cpt_codes"`
	ICD10Codes  []string `json:"icd10_codes"`
	RequestType *string  `json:"request_type"`
	DueDate     *string  `json:"due_date"`
	PatientName *string  `json:"patient_name"`
	PatientDOB  *string  `json:"patient_dob"`
	PatientMRN  *string  `json:"patient_mrn"`
	Status      *string  `json:"status"`
}

// UpdateCase handles PUT /api/cases/:id
func (h *CaseHandler) UpdateCase(c *gin.Context) {
	id, ok := h.caseID(c)
	if !ok {
		return
	}

	var req UpdateCaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("INVALID_REQUEST", err.Error()))
		return
	}

	kase, err := h.cases.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			c.JSON(http.StatusNotFound, errorResponse("CASE_NOT_FOUND", "case not found"))
			return
		}
		c.JSON(http.StatusInternalServerError, errorResponse("GET_FAILED", err.Error()))
		return
	}

	if req.Payer != nil {
		kase.Payer = *req.Payer
	}
	if req.State != nil {
		kase.State = *req.State
	}
	if req.CPTCodes != nil {
		kase.CPTCodes = req.CPTCodes
	}
	if req.ICD10Codes != nil {
		kase.ICD10Codes = req.ICD10Codes
	}
	if req.RequestType != nil {
		kase.RequestType = *req.RequestType
	}
	if req.DueDate != nil {
		kase.DueDate = *req.DueDate
	}
	if req.PatientName != nil {
		kase.PatientName = req.PatientName
	}
	if req.PatientDOB != nil {
		kase.PatientDOB = req.PatientDOB
	}
	if req.PatientMRN != nil {
		kase.PatientMRN = req.PatientMRN
	}
	if req.Status != nil {
		status := models.CaseStatus(*req.Status)
		if !models.ValidStatus(status) {
			c.JSON(http.StatusBadRequest, errorResponse("INVALID_STATUS", "unknown case status: "+*req.Status))
			return
		}
		kase.Status = status
	}

	if err := h.cases.Update(c.Request.Context(), kase); err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse("UPDATE_FAILED", err.Error()))
		return
	}

	h.recordAudit(c, id, "case_updated", nil)
	c.JSON(http.StatusOK, successResponse(kase))
}

// DeleteCase handles DELETE /api/cases/:id
func (h *CaseHandler) DeleteCase(c *gin.Context) {
	id, ok := h.caseID(c)
	if !ok {
		return
	}

	if err := h.cases.Delete(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse("DELETE_FAILED", err.Error()))
		return
	}

	h.recordAudit(c, id, "case_deleted", nil)
	c.JSON(http.StatusOK, successResponse(gin.H{"deleted": true}))
}

// MarkReviewed handles POST /api/cases/:id/mark-reviewed
func (h *CaseHandler) MarkReviewed(c *gin.Context) {
	id, ok := h.caseID(c)
	if !ok {
		return
	}

	kase, err := h.cases.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			c.JSON(http.StatusNotFound, errorResponse("CASE_NOT_FOUND", "case not found"))
			return
		}
		c.JSON(http.StatusInternalServerError, errorResponse("GET_FAILED", err.Error()))
		return
	}

	if kase.GeneratedDraft == nil {
		c.JSON(http.StatusBadRequest, errorResponse("NO_DRAFT", "case has no generated draft to review"))
		return
	}

	if err := h.cases.SetReviewed(c.Request.Context(), id, true); err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse("UPDATE_FAILED", err.Error()))
		return
	}

	h.recordAudit(c, id, "case_reviewed", nil)
	c.JSON(http.StatusOK, successResponse(gin.H{"reviewed": true}))
}

// ExportRequest represents the request body for exporting a draft
type ExportRequest struct {
	AcknowledgeReview bool `json:"acknowledge_review"`
}

// ExportDraft handles POST /api/cases/:id/export. The caller must
// explicitly acknowledge human review; there is no way to export an
// unacknowledged draft.
func (h *CaseHandler) ExportDraft(c *gin.Context) {
	id, ok := h.caseID(c)
	if !ok {
		return
	}

	var req ExportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("INVALID_REQUEST", err.Error()))
		return
	}

	kase, err := h.cases.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			c.JSON(http.StatusNotFound, errorResponse("CASE_NOT_FOUND", "case not found"))
			return
		}
		c.JSON(http.StatusInternalServerError, errorResponse("GET_FAILED", err.Error()))
		return
	}

	if kase.GeneratedDraft == nil {
		c.JSON(http.StatusBadRequest, errorResponse("NO_DRAFT", "case has no generated draft to export"))
		return
	}
	if !req.AcknowledgeReview {
		c.JSON(http.StatusConflict, errorResponse("REVIEW_NOT_ACKNOWLEDGED",
			"export requires acknowledge_review=true after human review"))
		return
	}

	h.recordAudit(c, id, "draft_exported", models.AuditDetails{
		"reviewable": kase.GeneratedDraft.Reviewable,
	})

	c.JSON(http.StatusOK, successResponse(gin.H{
		"appeal_letter":         kase.GeneratedDraft.AppealLetter,
		"attachments_checklist": kase.GeneratedDraft.AttachmentsChecklist,
		"citations_used":        kase.GeneratedDraft.CitationsUsed,
		"generated_at":          kase.GeneratedDraft.GeneratedAt,
	}))
}

func (h *CaseHandler) caseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("INVALID_CASE_ID", "invalid case id format"))
		return uuid.Nil, false
	}
	return id, true
}

// recordAudit best-effort appends an audit entry; failures are logged,
// never surfaced to the client.
func (h *CaseHandler) recordAudit(c *gin.Context, caseID uuid.UUID, action string, details models.AuditDetails) {
	entry := &models.AuditLog{CaseID: &caseID, Action: action, Details: details}
	if err := h.audit.Record(c.Request.Context(), entry); err != nil {
		h.logger.Warn("audit record failed",
			zap.String("action", action),
			zap.Error(err))
	}
}
