package domain

import (
	"time"

	"github.com/google/uuid"
)

// RoutingDecision is the audit record written for every thread assignment,
// so a misrouted conversation can be traced back to the rule that placed it.
type RoutingDecision struct {
	ID         uuid.UUID     `json:"id"`
	OrgID      uuid.UUID     `json:"org_id"`
	ThreadID   uuid.UUID     `json:"thread_id"`
	NumberID   uuid.NullUUID `json:"number_id,omitempty"`
	Class      NumberClass   `json:"class"`
	Rule       string        `json:"rule"`
	SessionRef string        `json:"session_ref,omitempty"`
	DecidedAt  time.Time     `json:"decided_at"`
}

func NewRoutingDecision(orgID, threadID uuid.UUID, numberID uuid.NullUUID, class NumberClass, rule, sessionRef string) *RoutingDecision {
	return &RoutingDecision{
		ID:         uuid.New(),
		OrgID:      orgID,
		ThreadID:   threadID,
		NumberID:   numberID,
		Class:      class,
		Rule:       rule,
		SessionRef: sessionRef,
		DecidedAt:  time.Now().UTC(),
	}
}
