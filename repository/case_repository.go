package repository

import (
	"context"
	"fmt"

	"authpilot-backend/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CaseRepository handles database operations for cases
type CaseRepository struct {
	db *pgxpool.Pool
}

// NewCaseRepository creates a new case repository
func NewCaseRepository(db *pgxpool.Pool) *CaseRepository {
	return &CaseRepository{db: db}
}

const caseColumns = `
	id, payer, state, cpt_codes, icd10_codes, request_type, due_date,
	patient_name, patient_dob, patient_mrn, status, reviewed,
	extracted_facts, policy_matches, denial_analysis, generated_draft,
	created_at, updated_at, reviewed_at`

// Create creates a new case
func (r *CaseRepository) Create(ctx context.Context, c *models.Case) error {
	query := `
		INSERT INTO cases (
			payer, state, cpt_codes, icd10_codes, request_type, due_date,
			patient_name, patient_dob, patient_mrn, status
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10
		) RETURNING id, reviewed, created_at, updated_at`

	err := r.db.QueryRow(
		ctx, query,
		c.Payer,
		c.State,
		c.CPTCodes,
		c.ICD10Codes,
		c.RequestType,
		c.DueDate,
		c.PatientName,
		c.PatientDOB,
		c.PatientMRN,
		c.Status,
	).Scan(&c.ID, &c.Reviewed, &c.CreatedAt, &c.UpdatedAt)

	return err
}

func scanCase(row interface{ Scan(dest ...any) error }) (*models.Case, error) {
	c := &models.Case{}
	err := row.Scan(
		&c.ID,
		&c.Payer,
		&c.State,
		&c.CPTCodes,
		&c.ICD10Codes,
		&c.RequestType,
		&c.DueDate,
		&c.PatientName,
		&c.PatientDOB,
		&c.PatientMRN,
		&c.Status,
		&c.Reviewed,
		&c.ExtractedFacts,
		&c.PolicyMatches,
		&c.DenialAnalysis,
		&c.GeneratedDraft,
		&c.CreatedAt,
		&c.UpdatedAt,
		&c.ReviewedAt,
	)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// GetByID retrieves a case by ID
func (r *CaseRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Case, error) {
	query := `SELECT ` + caseColumns + ` FROM cases WHERE id = $1`
	return scanCase(r.db.QueryRow(ctx, query, id))
}

// List retrieves cases, newest first, optionally filtered by status
func (r *CaseRepository) List(ctx context.Context, status *models.CaseStatus, limit, offset int) ([]*models.Case, error) {
	query := `SELECT ` + caseColumns + ` FROM cases`

	args := []interface{}{}
	argIndex := 1

	if status != nil {
		query += fmt.Sprintf(" WHERE status = $%d", argIndex)
		args = append(args, *status)
		argIndex++
	}

	query += " ORDER BY created_at DESC"

	if limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIndex)
		args = append(args, limit)
		argIndex++
		if offset > 0 {
			query += fmt.Sprintf(" OFFSET $%d", argIndex)
			args = append(args, offset)
		}
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cases []*models.Case
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, err
		}
		cases = append(cases, c)
	}

	return cases, rows.Err()
}

// Update updates the case's intake fields and status
func (r *CaseRepository) Update(ctx context.Context, c *models.Case) error {
	query := `
		UPDATE cases SET
			payer = $2,
			state = $3,
			cpt_codes = $4,
			icd10_codes = $5,
			request_type = $6,
			due_date = $7,
			patient_name = $8,
			patient_dob = $9,
			patient_mrn = $10,
			status = $11,
			updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`

	err := r.db.QueryRow(
		ctx, query,
		c.ID,
		c.Payer,
		c.State,
		c.CPTCodes,
		c.ICD10Codes,
		c.RequestType,
		c.DueDate,
		c.PatientName,
		c.PatientDOB,
		c.PatientMRN,
		c.Status,
	).Scan(&c.UpdatedAt)

	return err
}

// SetExtractedFacts overwrites only the extracted_facts field
func (r *CaseRepository) SetExtractedFacts(ctx context.Context, id uuid.UUID, facts *models.ExtractedFacts) error {
	query := `
		UPDATE cases SET
			extracted_facts = $2,
			updated_at = NOW()
		WHERE id = $1`

	_, err := r.db.Exec(ctx, query, id, facts)
	return err
}

// SetPolicyMatches overwrites only the policy_matches field
func (r *CaseRepository) SetPolicyMatches(ctx context.Context, id uuid.UUID, matches models.PolicyMatches) error {
	query := `
		UPDATE cases SET
			policy_matches = $2,
			updated_at = NOW()
		WHERE id = $1`

	_, err := r.db.Exec(ctx, query, id, matches)
	return err
}

// SetDenialAnalysis overwrites only the denial_analysis field
func (r *CaseRepository) SetDenialAnalysis(ctx context.Context, id uuid.UUID, analysis *models.DenialAnalysis) error {
	query := `
		UPDATE cases SET
			denial_analysis = $2,
			updated_at = NOW()
		WHERE id = $1`

	_, err := r.db.Exec(ctx, query, id, analysis)
	return err
}

// SetGeneratedDraft overwrites the generated_draft field, advancing the
// case status in the same statement when status is non-nil so the draft
// and transition land atomically.
func (r *CaseRepository) SetGeneratedDraft(ctx context.Context, id uuid.UUID, draft *models.GeneratedDraft, status *models.CaseStatus) error {
	if status != nil {
		query := `
			UPDATE cases SET
				generated_draft = $2,
				status = $3,
				updated_at = NOW()
			WHERE id = $1`
		_, err := r.db.Exec(ctx, query, id, draft, *status)
		return err
	}

	query := `
		UPDATE cases SET
			generated_draft = $2,
			updated_at = NOW()
		WHERE id = $1`
	_, err := r.db.Exec(ctx, query, id, draft)
	return err
}

// SetReviewed marks the case reviewed (or not) and stamps reviewed_at
func (r *CaseRepository) SetReviewed(ctx context.Context, id uuid.UUID, reviewed bool) error {
	query := `
		UPDATE cases SET
			reviewed = $2,
			reviewed_at = CASE WHEN $2 THEN NOW() ELSE NULL END,
			updated_at = NOW()
		WHERE id = $1`

	_, err := r.db.Exec(ctx, query, id, reviewed)
	return err
}

// Delete deletes a case and, via cascade, its documents and audit entries
func (r *CaseRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM cases WHERE id = $1`
	_, err := r.db.Exec(ctx, query, id)
	return err
}
