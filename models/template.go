package models

import (
	"time"

	"github.com/google/uuid"
)

// Template is a user-supplied letter template. Content may carry
// placeholders like [PAYER] or [SERVICE]; substitution is literal token
// replacement and unresolved placeholders are left verbatim in the letter.
type Template struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	Tone      string    `json:"tone"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
