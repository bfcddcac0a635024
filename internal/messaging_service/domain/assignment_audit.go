package domain

import (
	"time"

	"github.com/google/uuid"
)

// ThreadAssignmentAudit records who moved a thread between sitters and why.
// A row is written before the thread is mutated and deleted again if the
// mutation has to be rolled back, so surviving rows describe completed
// changes only.
type ThreadAssignmentAudit struct {
	ID           uuid.UUID     `json:"id"`
	OrgID        uuid.UUID     `json:"org_id"`
	ThreadID     uuid.UUID     `json:"thread_id"`
	FromSitterID uuid.NullUUID `json:"from_sitter_id,omitempty"`
	ToSitterID   uuid.NullUUID `json:"to_sitter_id,omitempty"`
	Reason       string        `json:"reason"`
	ActorID      uuid.UUID     `json:"actor_id"`
	CreatedAt    time.Time     `json:"created_at"`
}

func NewThreadAssignmentAudit(orgID, threadID uuid.UUID, from, to uuid.NullUUID, reason string, actorID uuid.UUID) *ThreadAssignmentAudit {
	return &ThreadAssignmentAudit{
		ID:           uuid.New(),
		OrgID:        orgID,
		ThreadID:     threadID,
		FromSitterID: from,
		ToSitterID:   to,
		Reason:       reason,
		ActorID:      actorID,
		CreatedAt:    time.Now().UTC(),
	}
}
