package domain

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// BookingStatus is the lifecycle status of the booking itself.
type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCompleted BookingStatus = "completed"
	BookingCancelled BookingStatus = "cancelled"
)

// DispatchStatus tracks where a booking sits in the automated dispatch
// pipeline. manual_required is the terminal state of automation: the attempt
// budget is exhausted and a human must assign.
type DispatchStatus string

const (
	DispatchOpen             DispatchStatus = "open"
	DispatchManualRequired   DispatchStatus = "manual_required"
	DispatchManualInProgress DispatchStatus = "manual_in_progress"
	DispatchAssigned         DispatchStatus = "assigned"
)

// validDispatchTransitions is the closed transition table. assigned → open
// resumes automation after an assignment is torn down.
var validDispatchTransitions = map[DispatchStatus][]DispatchStatus{
	DispatchOpen:             {DispatchManualRequired, DispatchAssigned},
	DispatchManualRequired:   {DispatchManualInProgress, DispatchAssigned, DispatchOpen},
	DispatchManualInProgress: {DispatchAssigned},
	DispatchAssigned:         {DispatchOpen},
}

// CanTransitionDispatch reports whether from → to is a legal dispatch status
// transition. An empty from is treated as open (the default).
func CanTransitionDispatch(from, to DispatchStatus) bool {
	if from == "" {
		from = DispatchOpen
	}
	for _, allowed := range validDispatchTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Booking is the dispatchable unit. This subsystem mutates sitter_id, status
// and the dispatch fields; it never deletes bookings.
type Booking struct {
	ID                   uuid.UUID      `json:"id"`
	OrgID                uuid.UUID      `json:"org_id"`
	ClientID             uuid.UUID      `json:"client_id"`
	SitterID             uuid.NullUUID  `json:"sitter_id,omitempty"`
	Service              string         `json:"service"`
	StartAt              time.Time      `json:"start_at"`
	EndAt                time.Time      `json:"end_at"`
	Status               BookingStatus  `json:"status"`
	DispatchStatus       DispatchStatus `json:"dispatch_status"`
	ManualDispatchReason sql.NullString `json:"manual_dispatch_reason,omitempty"`
	ManualDispatchAt     sql.NullTime   `json:"manual_dispatch_at,omitempty"`
	CreatedAt            time.Time      `json:"created_at"`
	UpdatedAt            time.Time      `json:"updated_at"`
}

// Window returns the booking's service time window.
func (b *Booking) Window() BookingWindow {
	return BookingWindow{StartAt: b.StartAt, EndAt: b.EndAt}
}

// Unassigned reports whether the booking currently has no sitter.
func (b *Booking) Unassigned() bool {
	return !b.SitterID.Valid
}

// FlaggedForManualDispatch reports whether automation has already handed the
// booking to an operator.
func (b *Booking) FlaggedForManualDispatch() bool {
	return b.DispatchStatus == DispatchManualRequired || b.DispatchStatus == DispatchManualInProgress
}

// BookingWindow is a booking's start/end pair, used for overlap checks.
type BookingWindow struct {
	StartAt time.Time
	EndAt   time.Time
}

// Overlaps reports whether two windows share any instant.
func (w BookingWindow) Overlaps(other BookingWindow) bool {
	return w.StartAt.Before(other.EndAt) && other.StartAt.Before(w.EndAt)
}

// InvalidTransitionError reports an attempted illegal dispatch transition.
type InvalidTransitionError struct {
	From DispatchStatus
	To   DispatchStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid dispatch transition from %q to %q", e.From, e.To)
}
