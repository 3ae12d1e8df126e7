package models

import (
	"database/sql/driver"
	"encoding/json"
	"strings"
	"time"
)

// DenialCategory is the fixed classification set for denials
type DenialCategory string

const (
	CategoryMedicalNecessity     DenialCategory = "medical_necessity"
	CategoryCodingBilling        DenialCategory = "coding_billing"
	CategoryDocumentationMissing DenialCategory = "documentation_missing"
	CategoryAuthorizationIssue   DenialCategory = "authorization_issue"
	CategoryEligibility          DenialCategory = "eligibility"
	CategoryUntimelyFiling       DenialCategory = "untimely_filing"
	CategoryExperimental         DenialCategory = "experimental"
	CategoryOther                DenialCategory = "other"
)

// NormalizeDenialCategory maps free-form model output onto the fixed
// category set, falling back to CategoryOther. Matching is
// case-insensitive.
func NormalizeDenialCategory(raw string) DenialCategory {
	normalized := DenialCategory(strings.ToLower(strings.TrimSpace(raw)))
	switch normalized {
	case CategoryMedicalNecessity, CategoryCodingBilling, CategoryDocumentationMissing,
		CategoryAuthorizationIssue, CategoryEligibility, CategoryUntimelyFiling,
		CategoryExperimental, CategoryOther:
		return normalized
	}
	// aliases seen in extractor output
	switch normalized {
	case "missing_documentation":
		return CategoryDocumentationMissing
	case "coding_error":
		return CategoryCodingBilling
	}
	return CategoryOther
}

// ChecklistStatus is the state of one missing-documentation checklist item
type ChecklistStatus string

const (
	ChecklistPresent ChecklistStatus = "Present"
	ChecklistMissing ChecklistStatus = "Missing"
	ChecklistUnclear ChecklistStatus = "Unclear"
)

// ChecklistItem is one entry in the missing-documentation checklist.
// Citation is empty unless the item is grounded in a real policy excerpt;
// a fabricated or placeholder citation is never stored.
type ChecklistItem struct {
	Item     string          `json:"item"`
	Status   ChecklistStatus `json:"status"`
	Citation string          `json:"required_by_policy_citation,omitempty"`
	Note     string          `json:"notes,omitempty"`
}

// DenialAnalysis is the output of the denial analysis stage
type DenialAnalysis struct {
	DenialCategory DenialCategory  `json:"denial_category"`
	DenialReasons  []string        `json:"denial_reasons"`
	Checklist      []ChecklistItem `json:"missing_docs_checklist"`
	AnalyzedAt     time.Time       `json:"analyzed_at"`
}

// Value implements driver.Valuer for JSONB
func (a DenialAnalysis) Value() (driver.Value, error) {
	return json.Marshal(a)
}

// Scan implements sql.Scanner for JSONB
func (a *DenialAnalysis) Scan(value interface{}) error {
	if value == nil {
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
		return nil
	}

	return json.Unmarshal(bytes, a)
}
