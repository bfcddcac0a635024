package domain

import "errors"

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrOfferNotPending indicates a response or expiry was attempted on an
	// offer that is no longer in the sent state. Races between the sweep and
	// synchronous responses surface as this error; callers treat it as a
	// no-op, not a failure.
	ErrOfferNotPending = errors.New("offer is not pending")
	// ErrDuplicateActiveOffer indicates an active offer already exists for
	// the (booking, sitter) pair.
	ErrDuplicateActiveOffer = errors.New("active offer already exists for booking and sitter")
	// ErrBookingAlreadyAssigned indicates the booking has a different sitter.
	ErrBookingAlreadyAssigned = errors.New("booking is already assigned to another sitter")
)
