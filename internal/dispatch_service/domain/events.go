package domain

import (
	"time"

	"github.com/google/uuid"
)

// NATS subjects for dispatch lifecycle events. The tier service consumes the
// offer subjects to trigger metric recomputation; the manual subject feeds
// operator alerting.
const (
	SubjectOfferSent       = "dispatch.offer.sent"
	SubjectOfferAccepted   = "dispatch.offer.accepted"
	SubjectOfferDeclined   = "dispatch.offer.declined"
	SubjectOfferExpired    = "dispatch.offer.expired"
	SubjectOfferReassigned = "dispatch.offer.reassigned"
	SubjectOfferExhausted  = "dispatch.offer.exhausted"
	SubjectManualRequired  = "dispatch.manual.required"
)

// OfferEvent is the payload for all dispatch.offer.* subjects.
type OfferEvent struct {
	OfferID    uuid.UUID `json:"offer_id"`
	OrgID      uuid.UUID `json:"org_id"`
	BookingID  uuid.UUID `json:"booking_id"`
	SitterID   uuid.UUID `json:"sitter_id"`
	Status     string    `json:"status"`
	OccurredAt time.Time `json:"occurred_at"`
}

// OfferExhaustedEvent is the payload for dispatch.offer.exhausted, emitted
// when a booking burns through its attempt budget. The matching
// dispatch.manual.required event follows in the same escalation.
type OfferExhaustedEvent struct {
	BookingID  uuid.UUID `json:"booking_id"`
	OrgID      uuid.UUID `json:"org_id"`
	Attempts   int       `json:"attempts"`
	OccurredAt time.Time `json:"occurred_at"`
}

// ManualRequiredEvent is the payload for dispatch.manual.required. Published
// exactly once per escalation, by whichever path flipped the flag.
type ManualRequiredEvent struct {
	BookingID  uuid.UUID `json:"booking_id"`
	OrgID      uuid.UUID `json:"org_id"`
	Reason     string    `json:"reason"`
	Attempts   int       `json:"attempts"`
	OccurredAt time.Time `json:"occurred_at"`
}
