package domain

import (
	"time"

	"github.com/google/uuid"
)

// Sitter is a care provider who can receive booking offers.
type Sitter struct {
	ID            uuid.UUID     `json:"id"`
	OrgID         uuid.UUID     `json:"org_id"`
	Name          string        `json:"name"`
	Phone         string        `json:"phone"`
	Active        bool          `json:"active"`
	Services      []string      `json:"services"`
	CurrentTierID uuid.NullUUID `json:"current_tier_id,omitempty"`
	// TierPriority is the priority level of the sitter's current tier
	// (lower is better); sitters without a tier sort last.
	TierPriority int       `json:"tier_priority"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// QualifiedFor reports whether the sitter offers the given service type.
// A sitter with no service list is treated as a generalist.
func (s *Sitter) QualifiedFor(service string) bool {
	if len(s.Services) == 0 {
		return true
	}
	for _, svc := range s.Services {
		if svc == service {
			return true
		}
	}
	return false
}
