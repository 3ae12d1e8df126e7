package service

import (
	"context"

	"authpilot-backend/models"

	"github.com/google/uuid"
)

// CaseStore is the case-update collaborator the pipeline writes through.
// Each setter overwrites exactly one pipeline output field.
type CaseStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Case, error)
	SetExtractedFacts(ctx context.Context, id uuid.UUID, facts *models.ExtractedFacts) error
	SetPolicyMatches(ctx context.Context, id uuid.UUID, matches models.PolicyMatches) error
	SetDenialAnalysis(ctx context.Context, id uuid.UUID, analysis *models.DenialAnalysis) error
	// SetGeneratedDraft stores the draft and, when status is non-nil,
	// advances the case status in the same update.
	SetGeneratedDraft(ctx context.Context, id uuid.UUID, draft *models.GeneratedDraft, status *models.CaseStatus) error
}

// DocumentStore reads the stored documents of a case.
type DocumentStore interface {
	ListByCase(ctx context.Context, caseID uuid.UUID) ([]*models.Document, error)
}

// TemplateStore looks up letter templates.
type TemplateStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Template, error)
}
