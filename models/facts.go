package models

import (
	"database/sql/driver"
	"encoding/json"
)

// FactDates holds the dates the extractor pulled out of the documents.
// A nil field means the date was not found.
type FactDates struct {
	DateOfService  *string `json:"date_of_service"`
	DenialDate     *string `json:"denial_date"`
	SubmissionDate *string `json:"submission_date"`
}

// ExtractedFacts is the structured output of the fact extraction stage.
// Every field is optional: a field absent or malformed in the model
// response is recorded as null / empty, never as a stage failure.
type ExtractedFacts struct {
	PayerName            *string     `json:"payer_name"`
	RequestedService     *string     `json:"requested_service"`
	DenialReasonCategory *string     `json:"denial_reason_category"`
	DenialReasons        []string    `json:"denial_reasons"`
	CPTHCPCSCodes        []string    `json:"cpt_hcpcs_codes"`
	ICD10Codes           []string    `json:"icd10_codes"`
	PatientAge           *int        `json:"patient_age"`
	KeyClinicalFacts     []string    `json:"key_clinical_facts"`
	Dates                FactDates   `json:"dates"`
	MissingInformation   []string    `json:"missing_information"`
}

// Value implements driver.Valuer for JSONB
func (f ExtractedFacts) Value() (driver.Value, error) {
	return json.Marshal(f)
}

// Scan implements sql.Scanner for JSONB
func (f *ExtractedFacts) Scan(value interface{}) error {
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

	return json.Unmarshal(bytes, f)
}
