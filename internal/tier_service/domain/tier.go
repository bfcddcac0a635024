package domain

import (
	"time"

	"github.com/google/uuid"
)

// Tier is one rung of the performance ladder. Gates are evaluated together;
// missing any one drops the sitter to the next rung. The default tier has no
// gates and catches everyone.
type Tier struct {
	ID                    uuid.UUID `json:"id"`
	OrgID                 uuid.UUID `json:"org_id"`
	Name                  string    `json:"name"`
	Priority              int       `json:"priority"`
	IsDefault             bool      `json:"is_default"`
	MaxAvgResponseSeconds float64   `json:"max_avg_response_seconds"`
	MinResponseRate       float64   `json:"min_response_rate"`
	MinOfferAcceptRate    float64   `json:"min_offer_accept_rate"`
	MaxOfferExpireRate    float64   `json:"max_offer_expire_rate"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
}

// Matches reports whether the metrics clear every gate of this tier. The
// default tier always matches; a sitter with no scored offers matches only
// the default.
func (t *Tier) Matches(m *SitterMetrics) bool {
	if t.IsDefault {
		return true
	}
	if m == nil || m.OffersTotal == 0 {
		return false
	}
	return m.AvgResponseSeconds() < t.MaxAvgResponseSeconds &&
		m.ResponseRate() >= t.MinResponseRate &&
		m.AcceptRate() >= t.MinOfferAcceptRate &&
		m.ExpireRate() < t.MaxOfferExpireRate
}

// TierChange is the audit row written whenever a sitter moves rungs.
type TierChange struct {
	ID         uuid.UUID     `json:"id"`
	OrgID      uuid.UUID     `json:"org_id"`
	SitterID   uuid.UUID     `json:"sitter_id"`
	FromTierID uuid.NullUUID `json:"from_tier_id,omitempty"`
	ToTierID   uuid.UUID     `json:"to_tier_id"`
	ChangedAt  time.Time     `json:"changed_at"`
}
