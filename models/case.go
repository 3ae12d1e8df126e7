package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// CaseStatus represents the lifecycle status of an appeal case
type CaseStatus string

const (
	StatusNewDenial   CaseStatus = "new_denial"
	StatusDraftAppeal CaseStatus = "draft_appeal"
	StatusSubmitted   CaseStatus = "submitted"
	StatusWon         CaseStatus = "won"
	StatusLost        CaseStatus = "lost"
)

// ValidStatus reports whether s is a known case status.
func ValidStatus(s CaseStatus) bool {
	switch s {
	case StatusNewDenial, StatusDraftAppeal, StatusSubmitted, StatusWon, StatusLost:
		return true
	}
	return false
}

// StringSlice is a []string stored as JSONB
type StringSlice []string

// Value implements driver.Valuer for JSONB
func (s StringSlice) Value() (driver.Value, error) {
	if s == nil {
		return json.Marshal([]string{})
	}
	return json.Marshal(s)
}

// Scan implements sql.Scanner for JSONB
func (s *StringSlice) Scan(value interface{}) error {
	if value == nil {
		*s = StringSlice{}
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
		*s = StringSlice{}
		return nil
	}

	return json.Unmarshal(bytes, s)
}

// Case represents one denial/appeal workflow instance
type Case struct {
	ID          uuid.UUID   `json:"id"`
	Payer       string      `json:"payer"`
	State       string      `json:"state"`
	CPTCodes    StringSlice `json:"cpt_codes"`
	ICD10Codes  StringSlice `json:"icd10_codes"`
	RequestType string      `json:"request_type"`
	DueDate     string      `json:"due_date"`

	PatientName *string `json:"patient_name,omitempty"`
	PatientDOB  *string `json:"patient_dob,omitempty"`
	PatientMRN  *string `json:"patient_mrn,omitempty"`

	Status   CaseStatus `json:"status"`
	Reviewed bool       `json:"reviewed"`

	// Pipeline outputs. Each stage fully overwrites its field or leaves
	// it untouched; partial writes are never persisted.
	ExtractedFacts *ExtractedFacts `json:"extracted_facts"`
	PolicyMatches  PolicyMatches   `json:"policy_matches"`
	DenialAnalysis *DenialAnalysis `json:"denial_analysis"`
	GeneratedDraft *GeneratedDraft `json:"generated_draft"`

	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	ReviewedAt *time.Time `json:"reviewed_at,omitempty"`
}
