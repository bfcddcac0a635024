package domain

import (
	"time"

	"github.com/google/uuid"
)

type WindowStatus string

const (
	WindowActive WindowStatus = "active"
	WindowClosed WindowStatus = "closed"
)

// AssignmentWindow bounds when a sitter may message a client on a thread:
// the booking window padded by a service-dependent buffer. At most one
// window per (thread, sitter) is active at a time.
type AssignmentWindow struct {
	ID        uuid.UUID    `json:"id"`
	OrgID     uuid.UUID    `json:"org_id"`
	ThreadID  uuid.UUID    `json:"thread_id"`
	BookingID uuid.UUID    `json:"booking_id"`
	SitterID  uuid.UUID    `json:"sitter_id"`
	ClientID  uuid.UUID    `json:"client_id"`
	OpensAt   time.Time    `json:"opens_at"`
	ClosesAt  time.Time    `json:"closes_at"`
	Status    WindowStatus `json:"status"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// Contains reports whether the window is active at the given instant.
func (w *AssignmentWindow) Contains(now time.Time) bool {
	return w.Status == WindowActive && !now.Before(w.OpensAt) && !now.After(w.ClosesAt)
}

// WindowBuffer returns the messaging buffer applied on each side of the
// booking window. Overnight services get the longer buffer so handoff
// logistics can be arranged.
func WindowBuffer(service string, defaultBuffer, overnightBuffer time.Duration) time.Duration {
	switch service {
	case "house_sitting", "overnight":
		return overnightBuffer
	default:
		return defaultBuffer
	}
}

// NewAssignmentWindow pads the booking span with the buffer on both sides.
func NewAssignmentWindow(orgID, threadID, bookingID, sitterID, clientID uuid.UUID, startAt, endAt time.Time, buffer time.Duration) *AssignmentWindow {
	now := time.Now().UTC()
	return &AssignmentWindow{
		ID:        uuid.New(),
		OrgID:     orgID,
		ThreadID:  threadID,
		BookingID: bookingID,
		SitterID:  sitterID,
		ClientID:  clientID,
		OpensAt:   startAt.Add(-buffer),
		ClosesAt:  endAt.Add(buffer),
		Status:    WindowActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
