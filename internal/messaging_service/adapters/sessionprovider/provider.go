package sessionprovider

import "context"

// SessionRequest describes the masked-messaging session to open: the client
// and sitter real numbers bridged through the given business number.
type SessionRequest struct {
	ThreadID    string `json:"thread_id"`
	NumberE164  string `json:"number"`
	ClientPhone string `json:"client_phone"`
	SitterPhone string `json:"sitter_phone,omitempty"`
}

// SessionResponse is the provider's handle for the created session.
type SessionResponse struct {
	SessionRef string `json:"session_ref"`
}

// SessionParticipants is the new participant set for an existing session.
// An empty SitterPhone drops the sitter leg, leaving client and front desk.
type SessionParticipants struct {
	ClientPhone string `json:"client_phone"`
	SitterPhone string `json:"sitter_phone,omitempty"`
}

// SessionProvider bridges conversations through the telephony vendor. A
// failed CreateSession must leave no session behind; callers roll back their
// own state on error. UpdateSessionParticipants swaps the legs of a live
// session in place when a thread changes sitters.
type SessionProvider interface {
	CreateSession(ctx context.Context, req SessionRequest) (*SessionResponse, error)
	UpdateSessionParticipants(ctx context.Context, sessionRef string, participants SessionParticipants) error
	CloseSession(ctx context.Context, sessionRef string) error
	GetName() string
}
