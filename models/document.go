package models

import (
	"time"

	"github.com/google/uuid"
)

// DocumentType classifies an uploaded case document
type DocumentType string

const (
	DocumentDenialLetter  DocumentType = "denial_letter"
	DocumentClinicalNotes DocumentType = "clinical_notes"
	DocumentImagingReport DocumentType = "imaging_report"
)

// ValidDocumentType reports whether t is a known document type.
func ValidDocumentType(t DocumentType) bool {
	switch t {
	case DocumentDenialLetter, DocumentClinicalNotes, DocumentImagingReport:
		return true
	}
	return false
}

// ExtractionStatus records the outcome of text extraction at upload time
type ExtractionStatus string

const (
	ExtractionSuccess ExtractionStatus = "success"
	ExtractionFailed  ExtractionStatus = "failed"
	ExtractionEmpty   ExtractionStatus = "empty"
)

// Document is one uploaded file attached to a case. Immutable once
// extraction completes; reprocessing a case re-reads the stored text.
type Document struct {
	ID               uuid.UUID        `json:"id"`
	CaseID           uuid.UUID        `json:"case_id"`
	Type             DocumentType     `json:"type"`
	Filename         string           `json:"filename"`
	StoragePath      string           `json:"-"`
	ExtractedText    string           `json:"extracted_text"`
	ExtractionStatus ExtractionStatus `json:"extraction_status"`
	UploadedAt       time.Time        `json:"uploaded_at"`
}
