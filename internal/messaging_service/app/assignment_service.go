package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/snoutdesk/dispatch/internal/messaging_service/adapters/sessionprovider"
	"github.com/snoutdesk/dispatch/internal/messaging_service/domain"
)

// RouteThreadInput carries the routing facts plus the real phone numbers
// the provider needs to bridge a masked session.
type RouteThreadInput struct {
	Routing     domain.RoutingContext
	ClientPhone string
	SitterPhone string
}

// AssignSitterInput moves a thread to a sitter, or off one when SitterID is
// null. Reason and ActorID feed the audit trail.
type AssignSitterInput struct {
	OrgID       uuid.UUID
	ThreadID    uuid.UUID
	SitterID    uuid.NullUUID
	Reason      string
	ActorID     uuid.UUID
	ClientPhone string
	SitterPhone string
}

// AssignSitterResult reports what the assignment changed.
type AssignSitterResult struct {
	Thread       *domain.Thread
	FromSitterID uuid.NullUUID
	ToSitterID   uuid.NullUUID
	AuditID      uuid.UUID
}

// AssignmentService owns thread mutations: routing a thread to a number and
// moving a thread between sitters. Neither sequence is transactional across
// the provider boundary, so each completed step registers an undo that runs
// if a later step fails.
type AssignmentService struct {
	threadRepo   domain.ThreadRepository
	decisionRepo domain.RoutingDecisionRepository
	auditRepo    domain.ThreadAssignmentAuditRepository
	router       *NumberRouter
	windows      *WindowManager
	bookings     BookingReader
	provider     sessionprovider.SessionProvider
	logger       *slog.Logger
}

func NewAssignmentService(
	threadRepo domain.ThreadRepository,
	decisionRepo domain.RoutingDecisionRepository,
	auditRepo domain.ThreadAssignmentAuditRepository,
	router *NumberRouter,
	windows *WindowManager,
	bookings BookingReader,
	provider sessionprovider.SessionProvider,
	logger *slog.Logger,
) *AssignmentService {
	return &AssignmentService{
		threadRepo:   threadRepo,
		decisionRepo: decisionRepo,
		auditRepo:    auditRepo,
		router:       router,
		windows:      windows,
		bookings:     bookings,
		provider:     provider,
		logger:       logger,
	}
}

// RouteThread classifies the thread, resolves a number, and attaches it.
// Re-running against an already-routed thread returns the thread unchanged.
func (s *AssignmentService) RouteThread(ctx context.Context, threadID uuid.UUID, input RouteThreadInput) (*domain.Thread, error) {
	thread, err := s.threadRepo.GetByID(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("loading thread %s: %w", threadID, err)
	}
	if thread.Status == domain.ThreadClosed {
		return nil, domain.ErrThreadClosed
	}
	if thread.Assigned() {
		return thread, nil
	}

	class, rule := DetermineThreadNumberClass(input.Routing)

	undo := newCompensator(s.logger)

	resolved, err := s.router.Resolve(ctx, thread, class, rule)
	if err != nil {
		return nil, err
	}
	undo.add(func(ctx context.Context) error {
		return s.router.Release(ctx, resolved)
	})

	// Masked classes bridge the client and sitter through the provider;
	// front desk threads terminate at the office and need no session.
	sessionRef := ""
	if resolved.Class != domain.ClassFrontDesk {
		session, err := s.provider.CreateSession(ctx, sessionprovider.SessionRequest{
			ThreadID:    thread.ID.String(),
			NumberE164:  resolved.Number.E164,
			ClientPhone: input.ClientPhone,
			SitterPhone: input.SitterPhone,
		})
		if err != nil {
			undo.rollback(ctx)
			return nil, fmt.Errorf("creating provider session: %w", err)
		}
		sessionRef = session.SessionRef
		undo.add(func(ctx context.Context) error {
			return s.provider.CloseSession(ctx, sessionRef)
		})
	}

	now := time.Now().UTC()
	changed, err := s.threadRepo.AttachNumber(ctx, thread.ID, resolved.Number.ID, resolved.Class, sessionRef, now)
	if err != nil {
		undo.rollback(ctx)
		return nil, fmt.Errorf("attaching number to thread: %w", err)
	}
	if !changed {
		// Another routing attempt won; undo our claim and session and
		// return the thread as that attempt left it.
		undo.rollback(ctx)
		return s.threadRepo.GetByID(ctx, thread.ID)
	}

	s.recordDecision(ctx, thread, resolved, sessionRef)

	s.logger.Info("thread routed",
		"thread_id", thread.ID, "number_id", resolved.Number.ID,
		"class", resolved.Class, "rule", resolved.Rule)
	return s.threadRepo.GetByID(ctx, thread.ID)
}

// AssignSitter moves the thread to the given sitter, or unassigns it when
// the sitter is null. The sequence is: audit row, window swap, guarded
// thread update, number reroute, provider participant swap. A provider
// failure rolls back the thread update and the audit row; a reroute failure
// is logged and left for the next routing pass.
func (s *AssignmentService) AssignSitter(ctx context.Context, input AssignSitterInput) (*AssignSitterResult, error) {
	thread, err := s.threadRepo.GetByID(ctx, input.ThreadID)
	if err != nil {
		return nil, fmt.Errorf("loading thread %s: %w", input.ThreadID, err)
	}
	if thread.OrgID != input.OrgID {
		return nil, domain.ErrNotFound
	}
	if thread.Status == domain.ThreadClosed {
		return nil, domain.ErrThreadClosed
	}

	from := thread.SitterID
	to := input.SitterID
	if sameSitter(from, to) {
		return &AssignSitterResult{Thread: thread, FromSitterID: from, ToSitterID: to}, nil
	}

	undo := newCompensator(s.logger)

	audit := domain.NewThreadAssignmentAudit(thread.OrgID, thread.ID, from, to, input.Reason, input.ActorID)
	if err := s.auditRepo.Create(ctx, audit); err != nil {
		return nil, fmt.Errorf("recording assignment audit: %w", err)
	}
	undo.add(func(ctx context.Context) error {
		return s.auditRepo.Delete(ctx, audit.ID)
	})

	// The outgoing sitter loses their window before the incoming sitter
	// gets one; on unassignment only the close happens.
	if _, err := s.windows.CloseForThread(ctx, thread.ID); err != nil {
		undo.rollback(ctx)
		return nil, err
	}
	var windowID uuid.NullUUID
	if to.Valid && thread.BookingID.Valid {
		info, err := s.bookings.GetBookingInfo(ctx, thread.BookingID.UUID)
		if err != nil {
			undo.rollback(ctx)
			return nil, fmt.Errorf("loading booking for window: %w", err)
		}
		window, err := s.windows.EnsureWindow(ctx, thread.OrgID, thread.ID, thread.BookingID.UUID,
			to.UUID, thread.ClientID, info.Service, info.StartAt, info.EndAt)
		if err != nil {
			undo.rollback(ctx)
			return nil, err
		}
		windowID = uuid.NullUUID{UUID: window.ID, Valid: true}
	}

	now := time.Now().UTC()
	changed, err := s.threadRepo.SetSitter(ctx, thread.ID, from, to, windowID, now)
	if err != nil {
		undo.rollback(ctx)
		return nil, fmt.Errorf("updating thread sitter: %w", err)
	}
	if !changed {
		// The thread moved under us; the caller retries against fresh state.
		undo.rollback(ctx)
		return nil, domain.ErrThreadConflict
	}
	undo.add(func(ctx context.Context) error {
		reverted, err := s.threadRepo.SetSitter(ctx, thread.ID, to, from, thread.WindowID, time.Now().UTC())
		if err == nil && !reverted {
			return domain.ErrThreadConflict
		}
		return err
	})

	s.rerouteAfterSitterChange(ctx, thread, to, now)

	if thread.SessionRef.Valid {
		err := s.provider.UpdateSessionParticipants(ctx, thread.SessionRef.String, sessionprovider.SessionParticipants{
			ClientPhone: input.ClientPhone,
			SitterPhone: input.SitterPhone,
		})
		if err != nil {
			undo.rollback(ctx)
			return nil, fmt.Errorf("updating provider session participants: %w", err)
		}
	}

	updated, err := s.threadRepo.GetByID(ctx, thread.ID)
	if err != nil {
		return nil, fmt.Errorf("reloading thread %s: %w", thread.ID, err)
	}

	s.logger.Info("thread sitter changed",
		"thread_id", thread.ID, "from_sitter", nullUUIDString(from), "to_sitter", nullUUIDString(to),
		"audit_id", audit.ID, "actor_id", input.ActorID)
	return &AssignSitterResult{
		Thread:       updated,
		FromSitterID: from,
		ToSitterID:   to,
		AuditID:      audit.ID,
	}, nil
}

// rerouteAfterSitterChange moves the thread to the number class implied by
// its new sitter. Failures are logged, not returned: the sitter change has
// already committed and a stale number class is recoverable.
func (s *AssignmentService) rerouteAfterSitterChange(ctx context.Context, thread *domain.Thread, to uuid.NullUUID, now time.Time) {
	class, rule := DetermineThreadNumberClass(thread.RoutingFacts(to))
	if !thread.Assigned() || class == thread.NumberClass {
		return
	}

	reclassified := *thread
	reclassified.SitterID = to
	resolved, err := s.router.Resolve(ctx, &reclassified, class, rule)
	if err != nil {
		s.logger.ErrorContext(ctx, "Rerouting thread after sitter change failed",
			"thread_id", thread.ID, "class", class, "error", err)
		return
	}

	sessionRef := ""
	if thread.SessionRef.Valid {
		sessionRef = thread.SessionRef.String
	}
	changed, err := s.threadRepo.ReassignNumber(ctx, thread.ID, resolved.Number.ID, resolved.Class, sessionRef, now)
	if err != nil || !changed {
		if relErr := s.router.Release(ctx, resolved); relErr != nil {
			s.logger.ErrorContext(ctx, "Releasing rerouted number failed", "thread_id", thread.ID, "error", relErr)
		}
		if err != nil {
			s.logger.ErrorContext(ctx, "Reattaching number after sitter change failed", "thread_id", thread.ID, "error", err)
		}
		return
	}

	s.recordDecision(ctx, thread, resolved, sessionRef)
	s.logger.Info("thread rerouted after sitter change",
		"thread_id", thread.ID, "number_id", resolved.Number.ID, "class", resolved.Class, "rule", resolved.Rule)
}

func (s *AssignmentService) recordDecision(ctx context.Context, thread *domain.Thread, resolved *ResolvedNumber, sessionRef string) {
	decision := domain.NewRoutingDecision(thread.OrgID, thread.ID,
		uuid.NullUUID{UUID: resolved.Number.ID, Valid: true}, resolved.Class, resolved.Rule, sessionRef)
	if err := s.decisionRepo.Create(ctx, decision); err != nil {
		// The routing itself succeeded; losing the audit row is logged,
		// not rolled back.
		s.logger.ErrorContext(ctx, "Recording routing decision failed", "thread_id", thread.ID, "error", err)
	}
}

// RoutingHistory returns the audit trail for a thread.
func (s *AssignmentService) RoutingHistory(ctx context.Context, threadID uuid.UUID) ([]*domain.RoutingDecision, error) {
	return s.decisionRepo.ListForThread(ctx, threadID)
}

func sameSitter(a, b uuid.NullUUID) bool {
	if a.Valid != b.Valid {
		return false
	}
	return !a.Valid || a.UUID == b.UUID
}

func nullUUIDString(id uuid.NullUUID) string {
	if !id.Valid {
		return "none"
	}
	return id.UUID.String()
}
