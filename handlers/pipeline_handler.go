package handlers

import (
	"context"
	"errors"
	"net/http"

	"authpilot-backend/models"
	"authpilot-backend/repository"
	"authpilot-backend/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PipelineHandler exposes the case-processing stages over HTTP
type PipelineHandler struct {
	pipeline *service.PipelineService
	audit    *repository.AuditRepository
	logger   *zap.Logger
}

// NewPipelineHandler creates a new pipeline handler
func NewPipelineHandler(pipeline *service.PipelineService, audit *repository.AuditRepository, logger *zap.Logger) *PipelineHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PipelineHandler{pipeline: pipeline, audit: audit, logger: logger}
}

// stageRequest carries the optional template selection for generation
type stageRequest struct {
	TemplateID *string `json:"template_id"`
}

// ExtractFacts handles POST /api/cases/:id/extract
func (h *PipelineHandler) ExtractFacts(c *gin.Context) {
	caseID, ok := h.caseID(c)
	if !ok {
		return
	}

	facts, err := h.pipeline.ExtractFacts(c.Request.Context(), caseID)
	if err != nil {
		h.stageError(c, err)
		return
	}

	h.recordAudit(c, caseID, "facts_extracted", nil)
	c.JSON(http.StatusOK, successResponse(facts))
}

// MatchPolicies handles POST /api/cases/:id/match-policies
func (h *PipelineHandler) MatchPolicies(c *gin.Context) {
	caseID, ok := h.caseID(c)
	if !ok {
		return
	}

	matches, err := h.pipeline.MatchPolicies(c.Request.Context(), caseID)
	if err != nil {
		h.stageError(c, err)
		return
	}
	if matches == nil {
		matches = []models.PolicyMatch{}
	}

	h.recordAudit(c, caseID, "policies_matched", models.AuditDetails{"matches": len(matches)})
	c.JSON(http.StatusOK, successResponse(matches))
}

// AnalyzeDenial handles POST /api/cases/:id/analyze
func (h *PipelineHandler) AnalyzeDenial(c *gin.Context) {
	caseID, ok := h.caseID(c)
	if !ok {
		return
	}

	analysis, err := h.pipeline.AnalyzeDenial(c.Request.Context(), caseID)
	if err != nil {
		h.stageError(c, err)
		return
	}

	h.recordAudit(c, caseID, "denial_analyzed", models.AuditDetails{
		"category": string(analysis.DenialCategory),
	})
	c.JSON(http.StatusOK, successResponse(analysis))
}

// GenerateDraft handles POST /api/cases/:id/generate-draft
func (h *PipelineHandler) GenerateDraft(c *gin.Context) {
	h.generate(c, "draft_generated", h.pipeline.GenerateDraft)
}

// RegenerateDraft handles POST /api/cases/:id/regenerate-draft
func (h *PipelineHandler) RegenerateDraft(c *gin.Context) {
	h.generate(c, "draft_regenerated", h.pipeline.RegenerateDraft)
}

func (h *PipelineHandler) generate(
	c *gin.Context,
	auditAction string,
	run func(ctx context.Context, caseID uuid.UUID, templateID *uuid.UUID) (*models.GeneratedDraft, error),
) {
	caseID, ok := h.caseID(c)
	if !ok {
		return
	}

	templateID, ok := h.templateID(c)
	if !ok {
		return
	}

	draft, err := run(c.Request.Context(), caseID, templateID)
	if err != nil {
		h.stageError(c, err)
		return
	}

	h.recordAudit(c, caseID, auditAction, models.AuditDetails{
		"reviewable": draft.Reviewable,
	})
	c.JSON(http.StatusOK, successResponse(draft))
}

// Process handles POST /api/cases/:id/process, running every stage in
// order and returning the fully updated case.
func (h *PipelineHandler) Process(c *gin.Context) {
	caseID, ok := h.caseID(c)
	if !ok {
		return
	}

	templateID, ok := h.templateID(c)
	if !ok {
		return
	}

	kase, err := h.pipeline.RunAll(c.Request.Context(), caseID, templateID)
	if err != nil {
		h.stageError(c, err)
		return
	}

	h.recordAudit(c, caseID, "case_processed", nil)
	c.JSON(http.StatusOK, successResponse(kase))
}

func (h *PipelineHandler) caseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("INVALID_CASE_ID", "invalid case id format"))
		return uuid.Nil, false
	}
	return id, true
}

// templateID parses the optional template_id from the request body. An
// empty body means no template.
func (h *PipelineHandler) templateID(c *gin.Context) (*uuid.UUID, bool) {
	var req stageRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, errorResponse("INVALID_REQUEST", err.Error()))
			return nil, false
		}
	}
	if req.TemplateID == nil || *req.TemplateID == "" {
		return nil, true
	}

	id, err := uuid.Parse(*req.TemplateID)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("INVALID_TEMPLATE_ID", "invalid template_id format"))
		return nil, false
	}
	return &id, true
}

// stageError maps pipeline failures onto the error envelope. Upstream
// model failures surface as 502 so callers can distinguish them from bad
// requests.
func (h *PipelineHandler) stageError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrCaseNotFound):
		c.JSON(http.StatusNotFound, errorResponse("CASE_NOT_FOUND", "case not found"))
	case errors.Is(err, service.ErrTemplateNotFound):
		c.JSON(http.StatusNotFound, errorResponse("TEMPLATE_NOT_FOUND", "template not found"))
	case errors.Is(err, service.ErrInputMissing):
		c.JSON(http.StatusBadRequest, errorResponse("MISSING_INPUT", err.Error()))
	case errors.Is(err, service.ErrUpstreamUnavailable):
		c.JSON(http.StatusBadGateway, errorResponse("MODEL_UNAVAILABLE", err.Error()))
	case errors.Is(err, service.ErrMalformedResponse):
		c.JSON(http.StatusBadGateway, errorResponse("MALFORMED_MODEL_RESPONSE", err.Error()))
	default:
		c.JSON(http.StatusInternalServerError, errorResponse("PIPELINE_FAILED", err.Error()))
	}
}

func (h *PipelineHandler) recordAudit(c *gin.Context, caseID uuid.UUID, action string, details models.AuditDetails) {
	entry := &models.AuditLog{CaseID: &caseID, Action: action, Details: details}
	if err := h.audit.Record(c.Request.Context(), entry); err != nil {
		h.logger.Warn("audit record failed",
			zap.String("action", action),
			zap.Error(err))
	}
}
