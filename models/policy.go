package models

import (
	"time"

	"github.com/google/uuid"
)

// Policy represents one payer policy document
type Policy struct {
	ID            uuid.UUID `json:"id"`
	Payer         string    `json:"payer"`
	State         string    `json:"state"`
	Category      string    `json:"category"`
	Name          string    `json:"name"`
	EffectiveDate string    `json:"effective_date"`
	Content       string    `json:"content,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// PolicyExcerpt is a fixed-size chunk of a policy's text. Excerpt IDs are
// derived deterministically from the policy ID and chunk ordinal, so
// re-indexing the same policy text yields the same IDs and citations
// referencing an excerpt stay valid until the policy is deleted.
type PolicyExcerpt struct {
	ID            uuid.UUID `json:"id"`
	PolicyID      uuid.UUID `json:"policy_id"`
	PolicyName    string    `json:"policy_name"`
	Payer         string    `json:"payer"`
	State         string    `json:"state"`
	EffectiveDate string    `json:"effective_date"`
	Section       string    `json:"section"`
	Page          int       `json:"page"`
	Text          string    `json:"text"`
	Ordinal       int       `json:"ordinal"`
	Embedding     []float32 `json:"-"`
}

// ExcerptID derives the stable identity of the ordinal-th excerpt of a policy.
func ExcerptID(policyID uuid.UUID, ordinal int) uuid.UUID {
	return uuid.NewSHA1(policyID, []byte{byte(ordinal >> 24), byte(ordinal >> 16), byte(ordinal >> 8), byte(ordinal)})
}
