package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AuditDetails is the free-form detail payload of an audit entry
type AuditDetails map[string]interface{}

// Value implements driver.Valuer for JSONB
func (d AuditDetails) Value() (driver.Value, error) {
	if d == nil {
		return json.Marshal(map[string]interface{}{})
	}
	return json.Marshal(d)
}

// Scan implements sql.Scanner for JSONB
func (d *AuditDetails) Scan(value interface{}) error {
	if value == nil {
		*d = make(AuditDetails)
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return nil
	}

	if len(bytes) == 0 {
		*d = make(AuditDetails)
		return nil
	}

	return json.Unmarshal(bytes, d)
}

// AuditLog records one user- or pipeline-initiated action against a case
type AuditLog struct {
	ID        uuid.UUID    `json:"id"`
	CaseID    *uuid.UUID   `json:"case_id,omitempty"`
	Action    string       `json:"action"`
	Details   AuditDetails `json:"details"`
	Timestamp time.Time    `json:"timestamp"`
}
