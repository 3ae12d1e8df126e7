package handlers

import (
	"errors"
	"net/http"

	"authpilot-backend/models"
	"authpilot-backend/repository"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// TemplateHandler handles HTTP requests for letter templates
type TemplateHandler struct {
	templates *repository.TemplateRepository
}

// NewTemplateHandler creates a new template handler
func NewTemplateHandler(templates *repository.TemplateRepository) *TemplateHandler {
	return &TemplateHandler{templates: templates}
}

// TemplateRequest represents the request body for creating or updating a template
type TemplateRequest struct {
	Name    string `json:"name" binding:"required"`
	Type    string `json:"type"`
	Tone    string `json:"tone"`
	Content string `json:"content" binding:"required"`
}

// CreateTemplate handles POST /api/templates
func (h *TemplateHandler) CreateTemplate(c *gin.Context) {
	var req TemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("INVALID_REQUEST", err.Error()))
		return
	}

	t := &models.Template{
		Name:    req.Name,
		Type:    req.Type,
		Tone:    req.Tone,
		Content: req.Content,
	}
	if err := h.templates.Create(c.Request.Context(), t); err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse("CREATE_FAILED", err.Error()))
		return
	}

	c.JSON(http.StatusCreated, successResponse(t))
}

// ListTemplates handles GET /api/templates
func (h *TemplateHandler) ListTemplates(c *gin.Context) {
	templates, err := h.templates.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse("LIST_FAILED", err.Error()))
		return
	}
	if templates == nil {
		templates = []*models.Template{}
	}

	c.JSON(http.StatusOK, successResponse(templates))
}

// GetTemplate handles GET /api/templates/:id
func (h *TemplateHandler) GetTemplate(c *gin.Context) {
	id, ok := h.templateID(c)
	if !ok {
		return
	}

	t, err := h.templates.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			c.JSON(http.StatusNotFound, errorResponse("TEMPLATE_NOT_FOUND", "template not found"))
			return
		}
		c.JSON(http.StatusInternalServerError, errorResponse("GET_FAILED", err.Error()))
		return
	}

	c.JSON(http.StatusOK, successResponse(t))
}

// UpdateTemplate handles PUT /api/templates/:id
func (h *TemplateHandler) UpdateTemplate(c *gin.Context) {
	id, ok := h.templateID(c)
	if !ok {
		return
	}

	var req TemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("INVALID_REQUEST", err.Error()))
		return
	}

	t, err := h.templates.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			c.JSON(http.StatusNotFound, errorResponse("TEMPLATE_NOT_FOUND", "template not found"))
			return
		}
		c.JSON(http.StatusInternalServerError, errorResponse("GET_FAILED", err.Error()))
		return
	}

	t.Name = req.Name
	t.Type = req.Type
	t.Tone = req.Tone
	t.Content = req.Content
	if err := h.templates.Update(c.Request.Context(), t); err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse("UPDATE_FAILED", err.Error()))
		return
	}

	c.JSON(http.StatusOK, successResponse(t))
}

// DeleteTemplate handles DELETE /api/templates/:id
func (h *TemplateHandler) DeleteTemplate(c *gin.Context) {
	id, ok := h.templateID(c)
	if !ok {
		return
	}

	if err := h.templates.Delete(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse("DELETE_FAILED", err.Error()))
		return
	}

	c.JSON(http.StatusOK, successResponse(gin.H{"deleted": true}))
}

func (h *TemplateHandler) templateID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("INVALID_TEMPLATE_ID", "invalid template id format"))
		return uuid.Nil, false
	}
	return id, true
}
