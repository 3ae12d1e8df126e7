package repository

import (
	"context"

	"authpilot-backend/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AuditRepository handles database operations for the audit log
type AuditRepository struct {
	db *pgxpool.Pool
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *pgxpool.Pool) *AuditRepository {
	return &AuditRepository{db: db}
}

// Record appends one audit entry
func (r *AuditRepository) Record(ctx context.Context, entry *models.AuditLog) error {
	query := `
		INSERT INTO audit_log (case_id, action, details)
		VALUES ($1, $2, $3)
		RETURNING id, timestamp`

	err := r.db.QueryRow(ctx, query, entry.CaseID, entry.Action, entry.Details).
		Scan(&entry.ID, &entry.Timestamp)

	return err
}

// ListByCase retrieves the audit trail of one case, newest first
func (r *AuditRepository) ListByCase(ctx context.Context, caseID uuid.UUID, limit int) ([]*models.AuditLog, error) {
	query := `
		SELECT id, case_id, action, details, timestamp
		FROM audit_log
		WHERE case_id = $1
		ORDER BY timestamp DESC
		LIMIT $2`

	if limit <= 0 {
		limit = 100
	}

	rows, err := r.db.Query(ctx, query, caseID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanAuditRows(rows)
}

// ListRecent retrieves the most recent audit entries across all cases
func (r *AuditRepository) ListRecent(ctx context.Context, limit int) ([]*models.AuditLog, error) {
	query := `
		SELECT id, case_id, action, details, timestamp
		FROM audit_log
		ORDER BY timestamp DESC
		LIMIT $1`

	if limit <= 0 {
		limit = 100
	}

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanAuditRows(rows)
}

func scanAuditRows(rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}) ([]*models.AuditLog, error) {
	var entries []*models.AuditLog
	for rows.Next() {
		entry := &models.AuditLog{}
		err := rows.Scan(
			&entry.ID,
			&entry.CaseID,
			&entry.Action,
			&entry.Details,
			&entry.Timestamp,
		)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
