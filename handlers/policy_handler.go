package handlers

import (
	"errors"
	"io"
	"net/http"
	"unicode/utf8"

	"authpilot-backend/index"
	"authpilot-backend/models"
	"authpilot-backend/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// maxPolicyUploadBytes caps an uploaded policy text file
const maxPolicyUploadBytes = 10 << 20

// PolicyHandler handles HTTP requests for payer policies
type PolicyHandler struct {
	policies *service.PolicyService
	searcher service.PolicySearcher
	logger   *zap.Logger
}

// NewPolicyHandler creates a new policy handler
func NewPolicyHandler(policies *service.PolicyService, searcher service.PolicySearcher, logger *zap.Logger) *PolicyHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PolicyHandler{policies: policies, searcher: searcher, logger: logger}
}

// CreatePolicyRequest represents the request body for creating a policy
type CreatePolicyRequest struct {
	Payer         string `json:"payer" binding:"required"`
	State         string `json:"state"`
	Category      string `json:"category"`
	Name          string `json:"name" binding:"required"`
	EffectiveDate string `json:"effective_date"`
	Content       string `json:"content" binding:"required"`
}

// CreatePolicy handles POST /api/policies. The policy text is chunked,
// embedded and indexed before the request returns.
func (h *PolicyHandler) CreatePolicy(c *gin.Context) {
	var req CreatePolicyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("INVALID_REQUEST", err.Error()))
		return
	}

	p := &models.Policy{
		Payer:         req.Payer,
		State:         req.State,
		Category:      req.Category,
		Name:          req.Name,
		EffectiveDate: req.EffectiveDate,
		Content:       req.Content,
	}

	p, err := h.policies.Create(c.Request.Context(), p)
	if err != nil {
		if errors.Is(err, service.ErrInputMissing) {
			c.JSON(http.StatusBadRequest, errorResponse("MISSING_INPUT", err.Error()))
			return
		}
		c.JSON(http.StatusInternalServerError, errorResponse("CREATE_FAILED", err.Error()))
		return
	}

	c.JSON(http.StatusCreated, successResponse(p))
}

// UploadPolicy handles POST /api/policies/:id/upload, replacing the
// policy's text with the uploaded file and re-indexing.
func (h *PolicyHandler) UploadPolicy(c *gin.Context) {
	id, ok := h.policyID(c)
	if !ok {
		return
	}

	p, err := h.policies.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			c.JSON(http.StatusNotFound, errorResponse("POLICY_NOT_FOUND", "policy not found"))
			return
		}
		c.JSON(http.StatusInternalServerError, errorResponse("GET_FAILED", err.Error()))
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("MISSING_FILE", "file field is required"))
		return
	}
	if fileHeader.Size > maxPolicyUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, errorResponse("FILE_TOO_LARGE", "file exceeds upload limit"))
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("INVALID_FILE", err.Error()))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxPolicyUploadBytes+1))
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse("READ_FAILED", err.Error()))
		return
	}
	if !utf8.Valid(data) {
		c.JSON(http.StatusBadRequest, errorResponse("INVALID_FILE", "policy upload must be plain text"))
		return
	}

	p.Content = string(data)
	p, err = h.policies.Update(c.Request.Context(), p)
	if err != nil {
		if errors.Is(err, service.ErrInputMissing) {
			c.JSON(http.StatusBadRequest, errorResponse("MISSING_INPUT", err.Error()))
			return
		}
		c.JSON(http.StatusInternalServerError, errorResponse("UPDATE_FAILED", err.Error()))
		return
	}

	c.JSON(http.StatusOK, successResponse(p))
}

// ListPolicies handles GET /api/policies
func (h *PolicyHandler) ListPolicies(c *gin.Context) {
	policies, err := h.policies.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse("LIST_FAILED", err.Error()))
		return
	}
	if policies == nil {
		policies = []*models.Policy{}
	}

	c.JSON(http.StatusOK, successResponse(policies))
}

// GetPolicy handles GET /api/policies/:id
func (h *PolicyHandler) GetPolicy(c *gin.Context) {
	id, ok := h.policyID(c)
	if !ok {
		return
	}

	p, err := h.policies.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			c.JSON(http.StatusNotFound, errorResponse("POLICY_NOT_FOUND", "policy not found"))
			return
		}
		c.JSON(http.StatusInternalServerError, errorResponse("GET_FAILED", err.Error()))
		return
	}

	c.JSON(http.StatusOK, successResponse(p))
}

// UpdatePolicyRequest represents the request body for updating a policy
type UpdatePolicyRequest struct {
	Payer         *string `json:"payer"`
	State         *string `json:"state"`
	Category      *string `json:"category"`
	Name          *string `json:"name"`
	EffectiveDate *string `json:"effective_date"`
	Content       *string `json:"content"`
}

// UpdatePolicy handles PUT /api/policies/:id
func (h *PolicyHandler) UpdatePolicy(c *gin.Context) {
	id, ok := h.policyID(c)
	if !ok {
		return
	}

	var req UpdatePolicyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("INVALID_REQUEST", err.Error()))
		return
	}

	p, err := h.policies.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			c.JSON(http.StatusNotFound, errorResponse("POLICY_NOT_FOUND", "policy not found"))
			return
		}
		c.JSON(http.StatusInternalServerError, errorResponse("GET_FAILED", err.Error()))
		return
	}

	if req.Payer != nil {
		p.Payer = *req.Payer
	}
	if req.State != nil {
		p.State = *req.State
	}
	if req.Category != nil {
		p.Category = *req.Category
	}
	if req.Name != nil {
		p.Name = *req.Name
	}
	if req.EffectiveDate != nil {
		p.EffectiveDate = *req.EffectiveDate
	}
	if req.Content != nil {
		p.Content = *req.Content
	}

	p, err = h.policies.Update(c.Request.Context(), p)
	if err != nil {
		if errors.Is(err, service.ErrInputMissing) {
			c.JSON(http.StatusBadRequest, errorResponse("MISSING_INPUT", err.Error()))
			return
		}
		c.JSON(http.StatusInternalServerError, errorResponse("UPDATE_FAILED", err.Error()))
		return
	}

	c.JSON(http.StatusOK, successResponse(p))
}

// DeletePolicy handles DELETE /api/policies/:id
func (h *PolicyHandler) DeletePolicy(c *gin.Context) {
	id, ok := h.policyID(c)
	if !ok {
		return
	}

	if err := h.policies.Delete(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse("DELETE_FAILED", err.Error()))
		return
	}

	c.JSON(http.StatusOK, successResponse(gin.H{"deleted": true}))
}

// SearchPoliciesRequest represents the request body for a direct index query
type SearchPoliciesRequest struct {
	Query string `json:"query" binding:"required"`
	Payer string `json:"payer"`
	State string `json:"state"`
	TopK  int    `json:"top_k"`
}

// SearchPolicies handles POST /api/policies/search, querying the vector
// index directly. Useful for verifying what a case's matching stage will
// retrieve.
func (h *PolicyHandler) SearchPolicies(c *gin.Context) {
	var req SearchPoliciesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("INVALID_REQUEST", err.Error()))
		return
	}
	if req.TopK <= 0 {
		req.TopK = 5
	}

	matches, err := h.searcher.Query(c.Request.Context(), req.Query, req.TopK, index.Filters{
		Payer: req.Payer,
		State: req.State,
	})
	if err != nil {
		if errors.Is(err, index.ErrEmptyQuery) {
			c.JSON(http.StatusBadRequest, errorResponse("INVALID_REQUEST", err.Error()))
			return
		}
		c.JSON(http.StatusInternalServerError, errorResponse("SEARCH_FAILED", err.Error()))
		return
	}
	if matches == nil {
		matches = []models.PolicyMatch{}
	}

	c.JSON(http.StatusOK, successResponse(matches))
}

func (h *PolicyHandler) policyID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("INVALID_POLICY_ID", "invalid policy id format"))
		return uuid.Nil, false
	}
	return id, true
}
