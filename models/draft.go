package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// GeneratedDraft is the output of the draft generation stage. Regeneration
// overwrites the whole value; drafts are never merged.
type GeneratedDraft struct {
	Reviewable           bool      `json:"reviewable"`
	ReviewableReason     string    `json:"reviewable_reason,omitempty"`
	AppealLetter         string    `json:"appeal_letter"`
	AttachmentsChecklist []string  `json:"attachments_checklist"`
	CitationsUsed        []string  `json:"citations_used"`
	GeneratedAt          time.Time `json:"generated_at"`
}

// Value implements driver.Valuer for JSONB
func (d GeneratedDraft) Value() (driver.Value, error) {
	return json.Marshal(d)
}

// Scan implements sql.Scanner for JSONB
func (d *GeneratedDraft) Scan(value interface{}) error {
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

	return json.Unmarshal(bytes, d)
}
