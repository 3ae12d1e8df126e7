package repository

import (
	"context"

	"authpilot-backend/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TemplateRepository handles database operations for letter templates
type TemplateRepository struct {
	db *pgxpool.Pool
}

// NewTemplateRepository creates a new template repository
func NewTemplateRepository(db *pgxpool.Pool) *TemplateRepository {
	return &TemplateRepository{db: db}
}

// Create creates a new template
func (r *TemplateRepository) Create(ctx context.Context, t *models.Template) error {
	query := `
		INSERT INTO templates (name, type, tone, content)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at`

	err := r.db.QueryRow(ctx, query, t.Name, t.Type, t.Tone, t.Content).
		Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)

	return err
}

// GetByID retrieves a template by ID
func (r *TemplateRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Template, error) {
	t := &models.Template{}
	query := `
		SELECT id, name, type, tone, content, created_at, updated_at
		FROM templates
		WHERE id = $1`

	err := r.db.QueryRow(ctx, query, id).Scan(
		&t.ID,
		&t.Name,
		&t.Type,
		&t.Tone,
		&t.Content,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return t, nil
}

// List retrieves all templates
func (r *TemplateRepository) List(ctx context.Context) ([]*models.Template, error) {
	query := `
		SELECT id, name, type, tone, content, created_at, updated_at
		FROM templates
		ORDER BY name`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var templates []*models.Template
	for rows.Next() {
		t := &models.Template{}
		err := rows.Scan(
			&t.ID,
			&t.Name,
			&t.Type,
			&t.Tone,
			&t.Content,
			&t.CreatedAt,
			&t.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		templates = append(templates, t)
	}

	return templates, rows.Err()
}

// Update updates a template
func (r *TemplateRepository) Update(ctx context.Context, t *models.Template) error {
	query := `
		UPDATE templates SET
			name = $2,
			type = $3,
			tone = $4,
			content = $5,
			updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`

	err := r.db.QueryRow(ctx, query, t.ID, t.Name, t.Type, t.Tone, t.Content).
		Scan(&t.UpdatedAt)

	return err
}

// Delete deletes a template
func (r *TemplateRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM templates WHERE id = $1`
	_, err := r.db.Exec(ctx, query, id)
	return err
}
