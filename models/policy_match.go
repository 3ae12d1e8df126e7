package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// PolicyMatch is one ranked retrieval result for a case. The citation
// fields are denormalized from the source excerpt at query time so the
// letter can cite policy text without re-joining to the policy store.
type PolicyMatch struct {
	PolicyID      uuid.UUID `json:"policy_id"`
	PolicyName    string    `json:"policy_name"`
	EffectiveDate string    `json:"effective_date"`
	Section       string    `json:"section"`
	Page          int       `json:"page"`
	ExcerptID     uuid.UUID `json:"excerpt_id"`
	Text          string    `json:"text"`
	Score         float64   `json:"score"`
}

// Citation renders the byte-stable citation string for the match:
// [CITATION: <policy name> | <effective date> | <section>/Page <page> | <excerpt id prefix>]
func (m PolicyMatch) Citation() string {
	return fmt.Sprintf("[CITATION: %s | %s | %s/Page %d | %s]",
		m.PolicyName, m.EffectiveDate, m.Section, m.Page, m.ExcerptID.String()[:8])
}

// PolicyMatches is the case-scoped, fully-recomputed match list stored as JSONB
type PolicyMatches []PolicyMatch

// Value implements driver.Valuer for JSONB
func (m PolicyMatches) Value() (driver.Value, error) {
	if m == nil {
		return json.Marshal([]PolicyMatch{})
	}
	return json.Marshal(m)
}

// Scan implements sql.Scanner for JSONB
func (m *PolicyMatches) Scan(value interface{}) error {
	if value == nil {
		*m = PolicyMatches{}
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
		*m = PolicyMatches{}
		return nil
	}

	return json.Unmarshal(bytes, m)
}
