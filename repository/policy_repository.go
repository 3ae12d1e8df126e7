package repository

import (
	"context"

	"authpilot-backend/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PolicyRepository handles database operations for policies and their
// chunked excerpts
type PolicyRepository struct {
	db *pgxpool.Pool
}

// NewPolicyRepository creates a new policy repository
func NewPolicyRepository(db *pgxpool.Pool) *PolicyRepository {
	return &PolicyRepository{db: db}
}

// Create creates a new policy
func (r *PolicyRepository) Create(ctx context.Context, p *models.Policy) error {
	query := `
		INSERT INTO policies (
			id, payer, state, category, name, effective_date, content
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7
		) RETURNING created_at, updated_at`

	err := r.db.QueryRow(
		ctx, query,
		p.ID,
		p.Payer,
		p.State,
		p.Category,
		p.Name,
		p.EffectiveDate,
		p.Content,
	).Scan(&p.CreatedAt, &p.UpdatedAt)

	return err
}

// GetByID retrieves a policy by ID including its full text
func (r *PolicyRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Policy, error) {
	p := &models.Policy{}
	query := `
		SELECT id, payer, state, category, name, effective_date, content, created_at, updated_at
		FROM policies
		WHERE id = $1`

	err := r.db.QueryRow(ctx, query, id).Scan(
		&p.ID,
		&p.Payer,
		&p.State,
		&p.Category,
		&p.Name,
		&p.EffectiveDate,
		&p.Content,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return p, nil
}

// List retrieves all policies without their full text
func (r *PolicyRepository) List(ctx context.Context) ([]*models.Policy, error) {
	query := `
		SELECT id, payer, state, category, name, effective_date, created_at, updated_at
		FROM policies
		ORDER BY payer, name`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var policies []*models.Policy
	for rows.Next() {
		p := &models.Policy{}
		err := rows.Scan(
			&p.ID,
			&p.Payer,
			&p.State,
			&p.Category,
			&p.Name,
			&p.EffectiveDate,
			&p.CreatedAt,
			&p.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		policies = append(policies, p)
	}

	return policies, rows.Err()
}

// Update updates a policy
func (r *PolicyRepository) Update(ctx context.Context, p *models.Policy) error {
	query := `
		UPDATE policies SET
			payer = $2,
			state = $3,
			category = $4,
			name = $5,
			effective_date = $6,
			content = $7,
			updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`

	err := r.db.QueryRow(
		ctx, query,
		p.ID,
		p.Payer,
		p.State,
		p.Category,
		p.Name,
		p.EffectiveDate,
		p.Content,
	).Scan(&p.UpdatedAt)

	return err
}

// Delete deletes a policy and, via cascade, its excerpts
func (r *PolicyRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM policies WHERE id = $1`
	_, err := r.db.Exec(ctx, query, id)
	return err
}

// ReplaceExcerpts swaps the policy's stored excerpts for the given set in
// one transaction, embeddings included, so a startup rebuild never sees a
// half-replaced policy.
func (r *PolicyRepository) ReplaceExcerpts(ctx context.Context, policyID uuid.UUID, excerpts []models.PolicyExcerpt) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM policy_excerpts WHERE policy_id = $1`, policyID); err != nil {
		return err
	}

	batch := &pgx.Batch{}
	for _, ex := range excerpts {
		batch.Queue(`
			INSERT INTO policy_excerpts (
				id, policy_id, section, page, text, ordinal, embedding
			) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			ex.ID, ex.PolicyID, ex.Section, ex.Page, ex.Text, ex.Ordinal, ex.Embedding,
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// ListAllExcerpts retrieves every stored excerpt joined with its policy
// metadata, in policy then ordinal order. Used to rebuild the in-memory
// index at startup.
func (r *PolicyRepository) ListAllExcerpts(ctx context.Context) ([]models.PolicyExcerpt, error) {
	query := `
		SELECT e.id, e.policy_id, p.name, p.payer, p.state, p.effective_date,
			e.section, e.page, e.text, e.ordinal, e.embedding
		FROM policy_excerpts e
		JOIN policies p ON p.id = e.policy_id
		ORDER BY e.policy_id, e.ordinal`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var excerpts []models.PolicyExcerpt
	for rows.Next() {
		var ex models.PolicyExcerpt
		err := rows.Scan(
			&ex.ID,
			&ex.PolicyID,
			&ex.PolicyName,
			&ex.Payer,
			&ex.State,
			&ex.EffectiveDate,
			&ex.Section,
			&ex.Page,
			&ex.Text,
			&ex.Ordinal,
			&ex.Embedding,
		)
		if err != nil {
			return nil, err
		}
		excerpts = append(excerpts, ex)
	}

	return excerpts, rows.Err()
}
