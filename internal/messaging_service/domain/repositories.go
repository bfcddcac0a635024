package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type ThreadRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Thread, error)

	// AttachNumber records the routed number and provider session on the
	// thread. Guarded: the update only applies while the thread is active
	// and has no number yet.
	AttachNumber(ctx context.Context, threadID, numberID uuid.UUID, class NumberClass, sessionRef string, now time.Time) (changed bool, err error)

	// ReassignNumber replaces the routed number on an already-routed active
	// thread, used when a sitter change moves the thread to another class.
	ReassignNumber(ctx context.Context, threadID, numberID uuid.UUID, class NumberClass, sessionRef string, now time.Time) (changed bool, err error)

	// SetSitter moves the thread from one sitter to another and repoints the
	// cached window. Guarded: the update only applies while the thread is
	// active and still holds the expected previous sitter, so two concurrent
	// reassignments cannot both win.
	SetSitter(ctx context.Context, threadID uuid.UUID, from, to, windowID uuid.NullUUID, now time.Time) (changed bool, err error)

	// DetachNumber clears the routed number, used when a provider session is
	// torn down.
	DetachNumber(ctx context.Context, threadID uuid.UUID, now time.Time) error
}

type NumberRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Number, error)

	// FindSitterNumber returns the sitter's dedicated number, or ErrNotFound.
	FindSitterNumber(ctx context.Context, orgID, sitterID uuid.UUID) (*Number, error)

	// FindFrontDesk returns the org's front desk number.
	FindFrontDesk(ctx context.Context, orgID uuid.UUID) (*Number, error)

	// ClaimLeastRecentlyUsedPool atomically selects and stamps the pool
	// number least recently used, skipping numbers already carrying an
	// active thread with the client. Returns ErrNoNumberAvailable when every
	// pool number is in use for this client.
	ClaimLeastRecentlyUsedPool(ctx context.Context, orgID, clientID uuid.UUID, now time.Time) (*Number, error)

	// ReleaseClaim reverts a claim stamp after a downstream failure.
	ReleaseClaim(ctx context.Context, numberID uuid.UUID, previousLastUsed time.Time, previousValid bool) error
}

type WindowRepository interface {
	Create(ctx context.Context, window *AssignmentWindow) error

	// FindActive returns the active window for (thread, sitter), or nil.
	FindActive(ctx context.Context, threadID, sitterID uuid.UUID) (*AssignmentWindow, error)

	// FindOpenForSitter returns active windows on the thread for the sitter
	// that contain the given instant.
	FindOpenForSitter(ctx context.Context, threadID, sitterID uuid.UUID, at time.Time) ([]*AssignmentWindow, error)

	// CloseAllForThread closes every active window on the thread and returns
	// how many were closed.
	CloseAllForThread(ctx context.Context, threadID uuid.UUID, now time.Time) (int, error)

	// CloseAllForBooking closes every active window for the booking and
	// returns how many were closed.
	CloseAllForBooking(ctx context.Context, bookingID uuid.UUID, now time.Time) (int, error)
}

type RoutingDecisionRepository interface {
	Create(ctx context.Context, decision *RoutingDecision) error
	ListForThread(ctx context.Context, threadID uuid.UUID) ([]*RoutingDecision, error)
}

type ThreadAssignmentAuditRepository interface {
	Create(ctx context.Context, audit *ThreadAssignmentAudit) error
	// Delete removes an audit row whose thread mutation was rolled back.
	Delete(ctx context.Context, id uuid.UUID) error
}
