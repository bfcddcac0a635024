package domain

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Number is a provisioned business phone number.
type Number struct {
	ID         uuid.UUID     `json:"id"`
	OrgID      uuid.UUID     `json:"org_id"`
	E164       string        `json:"e164"`
	Class      NumberClass   `json:"class"`
	SitterID   uuid.NullUUID `json:"sitter_id,omitempty"`
	Active     bool          `json:"active"`
	LastUsedAt sql.NullTime  `json:"last_used_at,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at"`
}
