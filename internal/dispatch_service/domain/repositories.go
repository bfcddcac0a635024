package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// BookingRepository reads and mutates bookings. Mutations are guarded
// conditional updates: when the guard no longer holds the update affects
// zero rows and the method reports changed=false instead of erroring, so a
// race loser degrades to a no-op.
type BookingRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Booking, error)

	// AssignSitter confirms the booking for the sitter. The update only
	// applies while the booking is unassigned or already held by the same
	// sitter.
	AssignSitter(ctx context.Context, bookingID, sitterID uuid.UUID, now time.Time) (changed bool, err error)

	// ReturnToPool clears the sitter and reopens dispatch. The update only
	// applies while the booking is unassigned or held by expiredSitterID,
	// and is not flagged for manual dispatch.
	ReturnToPool(ctx context.Context, bookingID, expiredSitterID uuid.UUID, now time.Time) (changed bool, err error)

	// MarkManualRequired flags the booking for an operator. Idempotent: the
	// update only applies while the booking is not already flagged, and
	// changed=true is returned only for the call that flipped it.
	MarkManualRequired(ctx context.Context, bookingID uuid.UUID, reason string, now time.Time) (changed bool, err error)

	// ApplyDispatchTransition performs a guarded from → to dispatch status
	// change, optionally setting the sitter. Used by the owner override
	// endpoints after the transition table has been consulted.
	ApplyDispatchTransition(ctx context.Context, bookingID uuid.UUID, from, to DispatchStatus, sitterID uuid.NullUUID, now time.Time) (changed bool, err error)

	// CountOverlapping counts the sitter's pending/confirmed bookings that
	// overlap the window, excluding excludeBookingID.
	CountOverlapping(ctx context.Context, sitterID uuid.UUID, window BookingWindow, excludeBookingID uuid.UUID) (int, error)

	// ListAttention returns bookings awaiting manual dispatch for surface in
	// the operator queue.
	ListAttention(ctx context.Context, orgID uuid.UUID) ([]*Booking, error)
}

// SitterRepository reads sitters with their current tier priority joined in.
type SitterRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Sitter, error)
	// ListActive returns active sitters for the org, excluding the given IDs.
	ListActive(ctx context.Context, orgID uuid.UUID, excludeIDs []uuid.UUID) ([]*Sitter, error)
}

// OfferRepository persists offers. Offers are append-only; reassignment marks
// superseded rows excluded rather than deleting them.
type OfferRepository interface {
	Create(ctx context.Context, offer *Offer) error
	GetByID(ctx context.Context, id uuid.UUID) (*Offer, error)

	// FindActive returns the active (sent, non-excluded) offer for the
	// (booking, sitter) pair, or nil when none exists.
	FindActive(ctx context.Context, bookingID, sitterID uuid.UUID) (*Offer, error)

	// ListDue returns offers with status=sent, excluded=false and
	// expires_at <= now, up to limit rows.
	ListDue(ctx context.Context, now time.Time, limit int) ([]*Offer, error)

	// MarkExpired transitions the offer to expired only if it is still sent.
	MarkExpired(ctx context.Context, offerID uuid.UUID, now time.Time) (changed bool, err error)

	// MarkResponded transitions the offer to accepted or declined only if it
	// is still sent.
	MarkResponded(ctx context.Context, offerID uuid.UUID, status OfferStatus, respondedAt time.Time) (changed bool, err error)

	// CountAttempts counts non-excluded offers for the booking; this is the
	// attempt budget consumed so far.
	CountAttempts(ctx context.Context, bookingID uuid.UUID) (int, error)

	// SittersInCooldown returns sitters whose offer for this booking was
	// declined or expired at or after the threshold.
	SittersInCooldown(ctx context.Context, bookingID uuid.UUID, threshold time.Time) ([]uuid.UUID, error)

	// ExcludeActiveForBooking marks the booking's still-sent offers excluded,
	// returning the number of rows superseded. Used when an override assigns
	// the booking out from under pending offers.
	ExcludeActiveForBooking(ctx context.Context, bookingID uuid.UUID, now time.Time) (int, error)

	// ListForSitter returns the sitter's non-excluded offers offered within
	// [windowStart, windowEnd], for metrics recomputation.
	ListForSitter(ctx context.Context, orgID, sitterID uuid.UUID, windowStart, windowEnd time.Time) ([]*Offer, error)
}
