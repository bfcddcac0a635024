package domain

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// NumberClass is the kind of business number a conversation thread is
// routed through.
type NumberClass string

const (
	// ClassFrontDesk is the shared office number staffed by operators.
	ClassFrontDesk NumberClass = "front_desk"
	// ClassPool is a rotating masked number for client↔sitter sessions.
	ClassPool NumberClass = "pool"
	// ClassSitter is a number dedicated to a single sitter.
	ClassSitter NumberClass = "sitter"
)

type ThreadStatus string

const (
	ThreadActive ThreadStatus = "active"
	ThreadClosed ThreadStatus = "closed"
)

// Thread is a messaging conversation between a client and the business,
// optionally proxied to a sitter through a masked number. WindowID caches
// the thread's current assignment window so the messaging gate does not
// have to search; MeetAndGreet and OneTimeClient are the sticky routing
// facts captured at thread creation.
type Thread struct {
	ID            uuid.UUID      `json:"id"`
	OrgID         uuid.UUID      `json:"org_id"`
	ClientID      uuid.UUID      `json:"client_id"`
	BookingID     uuid.NullUUID  `json:"booking_id,omitempty"`
	SitterID      uuid.NullUUID  `json:"sitter_id,omitempty"`
	NumberID      uuid.NullUUID  `json:"number_id,omitempty"`
	WindowID      uuid.NullUUID  `json:"window_id,omitempty"`
	NumberClass   NumberClass    `json:"number_class"`
	Status        ThreadStatus   `json:"status"`
	SessionRef    sql.NullString `json:"session_ref,omitempty"`
	MeetAndGreet  bool           `json:"meet_and_greet"`
	OneTimeClient bool           `json:"one_time_client"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

func (t *Thread) Assigned() bool {
	return t.NumberID.Valid
}

// RoutingFacts derives the classification input from the thread's current
// state, with the sitter taken from sitterID rather than the stored one so
// callers can classify a pending reassignment.
func (t *Thread) RoutingFacts(sitterID uuid.NullUUID) RoutingContext {
	return RoutingContext{
		SitterInvolved: sitterID.Valid,
		MeetAndGreet:   t.MeetAndGreet,
		OneTimeClient:  t.OneTimeClient,
	}
}

// RoutingContext carries the facts the classification rules consume.
type RoutingContext struct {
	SitterInvolved bool
	MeetAndGreet   bool
	OneTimeClient  bool
}
