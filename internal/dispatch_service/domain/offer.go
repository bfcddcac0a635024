package domain

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// OfferStatus is the status of a time-boxed booking offer to one sitter.
type OfferStatus string

const (
	OfferSent     OfferStatus = "sent"
	OfferAccepted OfferStatus = "accepted"
	OfferDeclined OfferStatus = "declined"
	OfferExpired  OfferStatus = "expired"
)

// Offer is a time-boxed proposal of a booking to one sitter. Offers are
// append-only: reassignment marks superseded offers excluded instead of
// deleting them, preserving the audit trail.
type Offer struct {
	ID         uuid.UUID    `json:"id"`
	OrgID      uuid.UUID    `json:"org_id"`
	BookingID  uuid.UUID    `json:"booking_id"`
	SitterID   uuid.UUID    `json:"sitter_id"`
	OfferedAt  time.Time    `json:"offered_at"`
	ExpiresAt  time.Time    `json:"expires_at"`
	Status     OfferStatus  `json:"status"`
	Excluded   bool         `json:"excluded"`
	AcceptedAt sql.NullTime `json:"accepted_at,omitempty"`
	DeclinedAt sql.NullTime `json:"declined_at,omitempty"`
	CreatedAt  time.Time    `json:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at"`
}

// NewOffer creates a sent offer with the given time-to-live.
func NewOffer(orgID, bookingID, sitterID uuid.UUID, ttl time.Duration) *Offer {
	now := time.Now().UTC()
	return &Offer{
		ID:        uuid.New(),
		OrgID:     orgID,
		BookingID: bookingID,
		SitterID:  sitterID,
		OfferedAt: now,
		ExpiresAt: now.Add(ttl),
		Status:    OfferSent,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Active reports whether the offer is still pending a response and has not
// been superseded.
func (o *Offer) Active() bool {
	return o.Status == OfferSent && !o.Excluded
}

// Due reports whether the offer has passed its expiry at the given time.
func (o *Offer) Due(now time.Time) bool {
	return o.Active() && !o.ExpiresAt.After(now)
}

// Accept transitions sent → accepted, asserting the pre-state.
func (o *Offer) Accept(now time.Time) error {
	if o.Status != OfferSent {
		return ErrOfferNotPending
	}
	o.Status = OfferAccepted
	o.AcceptedAt = sql.NullTime{Time: now, Valid: true}
	o.UpdatedAt = now
	return nil
}

// Decline transitions sent → declined, asserting the pre-state.
func (o *Offer) Decline(now time.Time) error {
	if o.Status != OfferSent {
		return ErrOfferNotPending
	}
	o.Status = OfferDeclined
	o.DeclinedAt = sql.NullTime{Time: now, Valid: true}
	o.UpdatedAt = now
	return nil
}

// Expire transitions sent → expired, asserting the pre-state.
func (o *Offer) Expire(now time.Time) error {
	if o.Status != OfferSent {
		return ErrOfferNotPending
	}
	o.Status = OfferExpired
	o.UpdatedAt = now
	return nil
}

// ResponseSeconds returns the sitter's response latency in seconds, or false
// when the offer never received a response.
func (o *Offer) ResponseSeconds() (int64, bool) {
	switch {
	case o.AcceptedAt.Valid:
		return int64(o.AcceptedAt.Time.Sub(o.OfferedAt).Seconds()), true
	case o.DeclinedAt.Valid:
		return int64(o.DeclinedAt.Time.Sub(o.OfferedAt).Seconds()), true
	default:
		return 0, false
	}
}
