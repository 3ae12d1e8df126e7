package handlers

import (
	"bytes"
	"errors"
	"io"
	"net/http"

	"authpilot-backend/extraction"
	"authpilot-backend/models"
	"authpilot-backend/repository"
	"authpilot-backend/storage"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// maxUploadBytes caps a single document upload
const maxUploadBytes = 20 << 20

// DocumentHandler handles HTTP requests for case documents
type DocumentHandler struct {
	cases     *repository.CaseRepository
	documents *repository.DocumentRepository
	files     storage.Storage
	extractor *extraction.Adapter
	audit     *repository.AuditRepository
	logger    *zap.Logger
}

// NewDocumentHandler creates a new document handler
func NewDocumentHandler(
	cases *repository.CaseRepository,
	documents *repository.DocumentRepository,
	files storage.Storage,
	extractor *extraction.Adapter,
	audit *repository.AuditRepository,
	logger *zap.Logger,
) *DocumentHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DocumentHandler{
		cases:     cases,
		documents: documents,
		files:     files,
		extractor: extractor,
		audit:     audit,
		logger:    logger,
	}
}

// UploadDocument handles POST /api/cases/:id/documents. Text extraction
// runs once at upload time; the outcome is recorded on the document so a
// failed or empty extraction is visible without re-reading the file.
// Uploading a second document of the same type replaces the first.
func (h *DocumentHandler) UploadDocument(c *gin.Context) {
	caseID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("INVALID_CASE_ID", "invalid case id format"))
		return
	}

	if _, err := h.cases.GetByID(c.Request.Context(), caseID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			c.JSON(http.StatusNotFound, errorResponse("CASE_NOT_FOUND", "case not found"))
			return
		}
		c.JSON(http.StatusInternalServerError, errorResponse("GET_FAILED", err.Error()))
		return
	}

	docType := models.DocumentType(c.PostForm("type"))
	if !models.ValidDocumentType(docType) {
		c.JSON(http.StatusBadRequest, errorResponse("INVALID_DOCUMENT_TYPE",
			"type must be one of: denial_letter, clinical_notes, imaging_report"))
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("MISSING_FILE", "file field is required"))
		return
	}
	if fileHeader.Size > maxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, errorResponse("FILE_TOO_LARGE", "file exceeds upload limit"))
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("INVALID_FILE", err.Error()))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse("READ_FAILED", err.Error()))
		return
	}
	if len(data) > maxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, errorResponse("FILE_TOO_LARGE", "file exceeds upload limit"))
		return
	}

	text, extractErr := h.extractor.Extract(c.Request.Context(), data, fileHeader.Filename)
	status := models.ExtractionSuccess
	switch {
	case errors.Is(extractErr, extraction.ErrUnreadable):
		status = models.ExtractionFailed
		text = ""
		h.logger.Warn("document extraction failed",
			zap.String("case_id", caseID.String()),
			zap.String("filename", fileHeader.Filename),
			zap.Error(extractErr))
	case errors.Is(extractErr, extraction.ErrEmptyContent):
		status = models.ExtractionEmpty
		text = ""
	case extractErr != nil:
		status = models.ExtractionFailed
		text = ""
		h.logger.Warn("document extraction failed",
			zap.String("case_id", caseID.String()),
			zap.String("filename", fileHeader.Filename),
			zap.Error(extractErr))
	}

	storagePath, err := h.files.Upload(c.Request.Context(), caseID, docType, fileHeader.Filename, bytes.NewReader(data))
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse("STORAGE_FAILED", err.Error()))
		return
	}

	doc := &models.Document{
		CaseID:           caseID,
		Type:             docType,
		Filename:         fileHeader.Filename,
		StoragePath:      storagePath,
		ExtractedText:    text,
		ExtractionStatus: status,
	}
	if err := h.documents.Upsert(c.Request.Context(), doc); err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse("SAVE_FAILED", err.Error()))
		return
	}

	h.recordAudit(c, caseID, "document_uploaded", models.AuditDetails{
		"type":              string(docType),
		"filename":          fileHeader.Filename,
		"extraction_status": string(status),
	})

	c.JSON(http.StatusCreated, successResponse(doc))
}

// ListDocuments handles GET /api/cases/:id/documents
func (h *DocumentHandler) ListDocuments(c *gin.Context) {
	caseID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("INVALID_CASE_ID", "invalid case id format"))
		return
	}

	docs, err := h.documents.ListByCase(c.Request.Context(), caseID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse("LIST_FAILED", err.Error()))
		return
	}
	if docs == nil {
		docs = []*models.Document{}
	}

	c.JSON(http.StatusOK, successResponse(docs))
}

// DownloadDocument handles GET /api/documents/:id/download
func (h *DocumentHandler) DownloadDocument(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("INVALID_DOCUMENT_ID", "invalid document id format"))
		return
	}

	doc, err := h.documents.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			c.JSON(http.StatusNotFound, errorResponse("DOCUMENT_NOT_FOUND", "document not found"))
			return
		}
		c.JSON(http.StatusInternalServerError, errorResponse("GET_FAILED", err.Error()))
		return
	}

	reader, err := h.files.Download(c.Request.Context(), doc.StoragePath)
	if err != nil {
		c.JSON(http.StatusNotFound, errorResponse("FILE_NOT_FOUND", err.Error()))
		return
	}
	defer reader.Close()

	c.Header("Content-Disposition", `attachment; filename="`+doc.Filename+`"`)
	c.Header("Content-Type", "application/octet-stream")
	if _, err := io.Copy(c.Writer, reader); err != nil {
		h.logger.Warn("document download interrupted",
			zap.String("document_id", id.String()),
			zap.Error(err))
	}
}

// DeleteDocument handles DELETE /api/documents/:id
func (h *DocumentHandler) DeleteDocument(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("INVALID_DOCUMENT_ID", "invalid document id format"))
		return
	}

	doc, err := h.documents.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			c.JSON(http.StatusNotFound, errorResponse("DOCUMENT_NOT_FOUND", "document not found"))
			return
		}
		c.JSON(http.StatusInternalServerError, errorResponse("GET_FAILED", err.Error()))
		return
	}

	if err := h.documents.Delete(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse("DELETE_FAILED", err.Error()))
		return
	}
	if err := h.files.Delete(c.Request.Context(), doc.StoragePath); err != nil {
		h.logger.Warn("stored file cleanup failed",
			zap.String("document_id", id.String()),
			zap.Error(err))
	}

	h.recordAudit(c, doc.CaseID, "document_deleted", models.AuditDetails{
		"type":     string(doc.Type),
		"filename": doc.Filename,
	})

	c.JSON(http.StatusOK, successResponse(gin.H{"deleted": true}))
}

func (h *DocumentHandler) recordAudit(c *gin.Context, caseID uuid.UUID, action string, details models.AuditDetails) {
	entry := &models.AuditLog{CaseID: &caseID, Action: action, Details: details}
	if err := h.audit.Record(c.Request.Context(), entry); err != nil {
		h.logger.Warn("audit record failed",
			zap.String("action", action),
			zap.Error(err))
	}
}
