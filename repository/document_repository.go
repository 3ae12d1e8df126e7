package repository

import (
	"context"

	"authpilot-backend/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DocumentRepository handles database operations for case documents
type DocumentRepository struct {
	db *pgxpool.Pool
}

// NewDocumentRepository creates a new document repository
func NewDocumentRepository(db *pgxpool.Pool) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// Upsert inserts the document, replacing any existing document of the
// same type on the same case. A case holds at most one denial letter, one
// clinical notes file and one imaging report.
func (r *DocumentRepository) Upsert(ctx context.Context, doc *models.Document) error {
	query := `
		INSERT INTO documents (
			case_id, type, filename, storage_path, extracted_text, extraction_status
		) VALUES (
			$1, $2, $3, $4, $5, $6
		)
		ON CONFLICT (case_id, type) DO UPDATE SET
			filename = EXCLUDED.filename,
			storage_path = EXCLUDED.storage_path,
			extracted_text = EXCLUDED.extracted_text,
			extraction_status = EXCLUDED.extraction_status,
			uploaded_at = NOW()
		RETURNING id, uploaded_at`

	err := r.db.QueryRow(
		ctx, query,
		doc.CaseID,
		doc.Type,
		doc.Filename,
		doc.StoragePath,
		doc.ExtractedText,
		doc.ExtractionStatus,
	).Scan(&doc.ID, &doc.UploadedAt)

	return err
}

// GetByID retrieves a document by ID
func (r *DocumentRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Document, error) {
	doc := &models.Document{}
	query := `
		SELECT id, case_id, type, filename, storage_path, extracted_text, extraction_status, uploaded_at
		FROM documents
		WHERE id = $1`

	err := r.db.QueryRow(ctx, query, id).Scan(
		&doc.ID,
		&doc.CaseID,
		&doc.Type,
		&doc.Filename,
		&doc.StoragePath,
		&doc.ExtractedText,
		&doc.ExtractionStatus,
		&doc.UploadedAt,
	)
	if err != nil {
		return nil, err
	}

	return doc, nil
}

// ListByCase retrieves all documents for a case, oldest first
func (r *DocumentRepository) ListByCase(ctx context.Context, caseID uuid.UUID) ([]*models.Document, error) {
	query := `
		SELECT id, case_id, type, filename, storage_path, extracted_text, extraction_status, uploaded_at
		FROM documents
		WHERE case_id = $1
		ORDER BY uploaded_at ASC`

	rows, err := r.db.Query(ctx, query, caseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []*models.Document
	for rows.Next() {
		doc := &models.Document{}
		err := rows.Scan(
			&doc.ID,
			&doc.CaseID,
			&doc.Type,
			&doc.Filename,
			&doc.StoragePath,
			&doc.ExtractedText,
			&doc.ExtractionStatus,
			&doc.UploadedAt,
		)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}

	return docs, rows.Err()
}

// Delete deletes a document
func (r *DocumentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM documents WHERE id = $1`
	_, err := r.db.Exec(ctx, query, id)
	return err
}
