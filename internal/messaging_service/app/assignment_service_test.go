package app

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/snoutdesk/dispatch/internal/messaging_service/adapters/sessionprovider"
	"github.com/snoutdesk/dispatch/internal/messaging_service/domain"
)

type assignmentTestComponents struct {
	service    *AssignmentService
	threadRepo *MockThreadRepository
	numberRepo *MockNumberRepository
	auditRepo  *MockRoutingDecisionRepository
	assignRepo *MockThreadAssignmentAuditRepository
	windowRepo *MockWindowRepository
	bookings   *MockBookingReader
	provider   *MockSessionProvider
}

func setupAssignmentTest(t *testing.T) assignmentTestComponents {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	threadRepo := new(MockThreadRepository)
	numberRepo := new(MockNumberRepository)
	auditRepo := new(MockRoutingDecisionRepository)
	assignRepo := new(MockThreadAssignmentAuditRepository)
	windowRepo := new(MockWindowRepository)
	bookings := new(MockBookingReader)
	provider := new(MockSessionProvider)

	router := NewNumberRouter(numberRepo, logger)
	windows := NewWindowManager(windowRepo, 60*time.Minute, 120*time.Minute, logger)
	service := NewAssignmentService(threadRepo, auditRepo, assignRepo, router, windows, bookings, provider, logger)
	return assignmentTestComponents{
		service:    service,
		threadRepo: threadRepo,
		numberRepo: numberRepo,
		auditRepo:  auditRepo,
		assignRepo: assignRepo,
		windowRepo: windowRepo,
		bookings:   bookings,
		provider:   provider,
	}
}

func TestAssignmentService_RouteThread_PoolWithSession(t *testing.T) {
	comps := setupAssignmentTest(t)
	orgID := uuid.New()
	thread := activeThread(orgID)
	poolNumber := &domain.Number{ID: uuid.New(), OrgID: orgID, E164: "+15550000001", Class: domain.ClassPool, Active: true}

	assigned := *thread
	assigned.NumberID = uuid.NullUUID{UUID: poolNumber.ID, Valid: true}
	assigned.NumberClass = domain.ClassPool

	comps.threadRepo.On("GetByID", mock.Anything, thread.ID).Return(thread, nil).Once()
	comps.numberRepo.On("ClaimLeastRecentlyUsedPool", mock.Anything, orgID, thread.ClientID, mock.Anything).Return(poolNumber, nil).Once()
	comps.provider.On("CreateSession", mock.Anything, mock.MatchedBy(func(req sessionprovider.SessionRequest) bool {
		return req.NumberE164 == poolNumber.E164 && req.ClientPhone == "+15551112222"
	})).Return(&sessionprovider.SessionResponse{SessionRef: "sess_123"}, nil).Once()
	comps.threadRepo.On("AttachNumber", mock.Anything, thread.ID, poolNumber.ID, domain.ClassPool, "sess_123", mock.Anything).Return(true, nil).Once()
	comps.auditRepo.On("Create", mock.Anything, mock.MatchedBy(func(d *domain.RoutingDecision) bool {
		return d.ThreadID == thread.ID && d.Class == domain.ClassPool && d.Rule == RuleMeetAndGreet && d.SessionRef == "sess_123"
	})).Return(nil).Once()
	comps.threadRepo.On("GetByID", mock.Anything, thread.ID).Return(&assigned, nil).Once()

	result, err := comps.service.RouteThread(context.Background(), thread.ID, RouteThreadInput{
		Routing:     domain.RoutingContext{MeetAndGreet: true},
		ClientPhone: "+15551112222",
		SitterPhone: "+15553334444",
	})

	require.NoError(t, err)
	assert.Equal(t, poolNumber.ID, result.NumberID.UUID)
	comps.provider.AssertExpectations(t)
	comps.auditRepo.AssertExpectations(t)
}

func TestAssignmentService_RouteThread_FrontDeskSkipsSession(t *testing.T) {
	comps := setupAssignmentTest(t)
	orgID := uuid.New()
	thread := activeThread(orgID)
	frontDesk := &domain.Number{ID: uuid.New(), OrgID: orgID, E164: "+15550000000", Class: domain.ClassFrontDesk, Active: true}

	assigned := *thread
	assigned.NumberID = uuid.NullUUID{UUID: frontDesk.ID, Valid: true}

	comps.threadRepo.On("GetByID", mock.Anything, thread.ID).Return(thread, nil).Once()
	comps.numberRepo.On("FindFrontDesk", mock.Anything, orgID).Return(frontDesk, nil).Once()
	comps.threadRepo.On("AttachNumber", mock.Anything, thread.ID, frontDesk.ID, domain.ClassFrontDesk, "", mock.Anything).Return(true, nil).Once()
	comps.auditRepo.On("Create", mock.Anything, mock.Anything).Return(nil).Once()
	comps.threadRepo.On("GetByID", mock.Anything, thread.ID).Return(&assigned, nil).Once()

	_, err := comps.service.RouteThread(context.Background(), thread.ID, RouteThreadInput{})

	require.NoError(t, err)
	comps.provider.AssertNotCalled(t, "CreateSession", mock.Anything, mock.Anything)
}

func TestAssignmentService_RouteThread_ProviderFailureReleasesClaim(t *testing.T) {
	comps := setupAssignmentTest(t)
	orgID := uuid.New()
	thread := activeThread(orgID)
	poolNumber := &domain.Number{ID: uuid.New(), OrgID: orgID, E164: "+15550000001", Class: domain.ClassPool, Active: true}
	providerErr := errors.New("provider unavailable")

	comps.threadRepo.On("GetByID", mock.Anything, thread.ID).Return(thread, nil).Once()
	comps.numberRepo.On("ClaimLeastRecentlyUsedPool", mock.Anything, orgID, thread.ClientID, mock.Anything).Return(poolNumber, nil).Once()
	comps.provider.On("CreateSession", mock.Anything, mock.Anything).Return(nil, providerErr).Once()
	comps.numberRepo.On("ReleaseClaim", mock.Anything, poolNumber.ID, mock.Anything, false).Return(nil).Once()

	_, err := comps.service.RouteThread(context.Background(), thread.ID, RouteThreadInput{
		Routing: domain.RoutingContext{OneTimeClient: true},
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, providerErr)
	comps.numberRepo.AssertExpectations(t)
	comps.threadRepo.AssertNotCalled(t, "AttachNumber", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	comps.auditRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestAssignmentService_RouteThread_AttachRaceUndoesSessionAndClaim(t *testing.T) {
	comps := setupAssignmentTest(t)
	orgID := uuid.New()
	thread := activeThread(orgID)
	poolNumber := &domain.Number{ID: uuid.New(), OrgID: orgID, E164: "+15550000001", Class: domain.ClassPool, Active: true}

	winner := *thread
	winner.NumberID = uuid.NullUUID{UUID: uuid.New(), Valid: true}

	comps.threadRepo.On("GetByID", mock.Anything, thread.ID).Return(thread, nil).Once()
	comps.numberRepo.On("ClaimLeastRecentlyUsedPool", mock.Anything, orgID, thread.ClientID, mock.Anything).Return(poolNumber, nil).Once()
	comps.provider.On("CreateSession", mock.Anything, mock.Anything).Return(&sessionprovider.SessionResponse{SessionRef: "sess_lost"}, nil).Once()
	// Another routing attempt attached first.
	comps.threadRepo.On("AttachNumber", mock.Anything, thread.ID, poolNumber.ID, domain.ClassPool, "sess_lost", mock.Anything).Return(false, nil).Once()
	comps.provider.On("CloseSession", mock.Anything, "sess_lost").Return(nil).Once()
	comps.numberRepo.On("ReleaseClaim", mock.Anything, poolNumber.ID, mock.Anything, false).Return(nil).Once()
	comps.threadRepo.On("GetByID", mock.Anything, thread.ID).Return(&winner, nil).Once()

	result, err := comps.service.RouteThread(context.Background(), thread.ID, RouteThreadInput{
		Routing: domain.RoutingContext{MeetAndGreet: true},
	})

	require.NoError(t, err)
	assert.Equal(t, winner.NumberID, result.NumberID)
	comps.provider.AssertExpectations(t)
	comps.numberRepo.AssertExpectations(t)
}

func TestAssignmentService_RouteThread_AlreadyAssignedIsIdempotent(t *testing.T) {
	comps := setupAssignmentTest(t)
	thread := activeThread(uuid.New())
	thread.NumberID = uuid.NullUUID{UUID: uuid.New(), Valid: true}

	comps.threadRepo.On("GetByID", mock.Anything, thread.ID).Return(thread, nil).Once()

	result, err := comps.service.RouteThread(context.Background(), thread.ID, RouteThreadInput{})

	require.NoError(t, err)
	assert.Equal(t, thread.NumberID, result.NumberID)
	comps.numberRepo.AssertNotCalled(t, "ClaimLeastRecentlyUsedPool", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestAssignmentService_RouteThread_ClosedThreadRejected(t *testing.T) {
	comps := setupAssignmentTest(t)
	thread := activeThread(uuid.New())
	thread.Status = domain.ThreadClosed

	comps.threadRepo.On("GetByID", mock.Anything, thread.ID).Return(thread, nil).Once()

	_, err := comps.service.RouteThread(context.Background(), thread.ID, RouteThreadInput{})

	assert.ErrorIs(t, err, domain.ErrThreadClosed)
}

func TestAssignmentService_AssignSitter_OpensWindowAndRecordsAudit(t *testing.T) {
	comps := setupAssignmentTest(t)
	orgID, actorID, sitterID, bookingID := uuid.New(), uuid.New(), uuid.New(), uuid.New()
	thread := activeThread(orgID)
	thread.BookingID = uuid.NullUUID{UUID: bookingID, Valid: true}
	to := uuid.NullUUID{UUID: sitterID, Valid: true}

	startAt := time.Date(2026, 9, 3, 10, 0, 0, 0, time.UTC)
	updated := *thread
	updated.SitterID = to

	comps.threadRepo.On("GetByID", mock.Anything, thread.ID).Return(thread, nil).Once()
	comps.assignRepo.On("Create", mock.Anything, mock.MatchedBy(func(a *domain.ThreadAssignmentAudit) bool {
		return a.ThreadID == thread.ID && !a.FromSitterID.Valid && a.ToSitterID == to &&
			a.Reason == "client request" && a.ActorID == actorID
	})).Return(nil).Once()
	comps.windowRepo.On("CloseAllForThread", mock.Anything, thread.ID, mock.Anything).Return(0, nil).Once()
	comps.bookings.On("GetBookingInfo", mock.Anything, bookingID).Return(&BookingInfo{
		OrgID: orgID, ClientID: thread.ClientID, Service: "dog_walking",
		StartAt: startAt, EndAt: startAt.Add(time.Hour),
	}, nil).Once()
	comps.windowRepo.On("FindActive", mock.Anything, thread.ID, sitterID).Return(nil, nil).Once()
	comps.windowRepo.On("Create", mock.Anything, mock.MatchedBy(func(w *domain.AssignmentWindow) bool {
		return w.ThreadID == thread.ID && w.SitterID == sitterID
	})).Return(nil).Once()
	comps.threadRepo.On("SetSitter", mock.Anything, thread.ID, uuid.NullUUID{}, to,
		mock.MatchedBy(func(id uuid.NullUUID) bool { return id.Valid }), mock.Anything).Return(true, nil).Once()
	comps.threadRepo.On("GetByID", mock.Anything, thread.ID).Return(&updated, nil).Once()

	result, err := comps.service.AssignSitter(context.Background(), AssignSitterInput{
		OrgID:    orgID,
		ThreadID: thread.ID,
		SitterID: to,
		Reason:   "client request",
		ActorID:  actorID,
	})

	require.NoError(t, err)
	assert.False(t, result.FromSitterID.Valid)
	assert.Equal(t, to, result.ToSitterID)
	assert.NotEqual(t, uuid.Nil, result.AuditID)
	assert.Equal(t, to, result.Thread.SitterID)
	comps.assignRepo.AssertExpectations(t)
	comps.windowRepo.AssertExpectations(t)
	comps.threadRepo.AssertExpectations(t)
}

func TestAssignmentService_AssignSitter_UnassignReroutesToFrontDesk(t *testing.T) {
	comps := setupAssignmentTest(t)
	orgID, actorID := uuid.New(), uuid.New()
	from := uuid.NullUUID{UUID: uuid.New(), Valid: true}
	thread := activeThread(orgID)
	thread.SitterID = from
	thread.NumberID = uuid.NullUUID{UUID: uuid.New(), Valid: true}
	thread.NumberClass = domain.ClassSitter
	thread.SessionRef = sql.NullString{String: "sess_swap", Valid: true}

	frontDesk := &domain.Number{ID: uuid.New(), OrgID: orgID, E164: "+15550000000", Class: domain.ClassFrontDesk, Active: true}
	updated := *thread
	updated.SitterID = uuid.NullUUID{}
	updated.NumberID = uuid.NullUUID{UUID: frontDesk.ID, Valid: true}
	updated.NumberClass = domain.ClassFrontDesk

	comps.threadRepo.On("GetByID", mock.Anything, thread.ID).Return(thread, nil).Once()
	comps.assignRepo.On("Create", mock.Anything, mock.MatchedBy(func(a *domain.ThreadAssignmentAudit) bool {
		return a.FromSitterID == from && !a.ToSitterID.Valid
	})).Return(nil).Once()
	comps.windowRepo.On("CloseAllForThread", mock.Anything, thread.ID, mock.Anything).Return(1, nil).Once()
	comps.threadRepo.On("SetSitter", mock.Anything, thread.ID, from, uuid.NullUUID{}, uuid.NullUUID{}, mock.Anything).Return(true, nil).Once()
	comps.numberRepo.On("FindFrontDesk", mock.Anything, orgID).Return(frontDesk, nil).Once()
	comps.threadRepo.On("ReassignNumber", mock.Anything, thread.ID, frontDesk.ID, domain.ClassFrontDesk, "sess_swap", mock.Anything).Return(true, nil).Once()
	comps.auditRepo.On("Create", mock.Anything, mock.MatchedBy(func(d *domain.RoutingDecision) bool {
		return d.Class == domain.ClassFrontDesk && d.Rule == RuleDefaultFrontDesk
	})).Return(nil).Once()
	comps.provider.On("UpdateSessionParticipants", mock.Anything, "sess_swap", mock.MatchedBy(func(p sessionprovider.SessionParticipants) bool {
		return p.ClientPhone == "+15551112222" && p.SitterPhone == ""
	})).Return(nil).Once()
	comps.threadRepo.On("GetByID", mock.Anything, thread.ID).Return(&updated, nil).Once()

	result, err := comps.service.AssignSitter(context.Background(), AssignSitterInput{
		OrgID:       orgID,
		ThreadID:    thread.ID,
		SitterID:    uuid.NullUUID{},
		Reason:      "sitter unavailable",
		ActorID:     actorID,
		ClientPhone: "+15551112222",
	})

	require.NoError(t, err)
	assert.Equal(t, from, result.FromSitterID)
	assert.False(t, result.ToSitterID.Valid)
	assert.Equal(t, domain.ClassFrontDesk, result.Thread.NumberClass)
	comps.bookings.AssertNotCalled(t, "GetBookingInfo", mock.Anything, mock.Anything)
	comps.windowRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	comps.provider.AssertExpectations(t)
	comps.auditRepo.AssertExpectations(t)
}

func TestAssignmentService_AssignSitter_ProviderFailureRollsBack(t *testing.T) {
	comps := setupAssignmentTest(t)
	orgID := uuid.New()
	from := uuid.NullUUID{UUID: uuid.New(), Valid: true}
	to := uuid.NullUUID{UUID: uuid.New(), Valid: true}
	thread := activeThread(orgID)
	thread.SitterID = from
	thread.SessionRef = sql.NullString{String: "sess_stuck", Valid: true}
	providerErr := errors.New("provider unavailable")

	comps.threadRepo.On("GetByID", mock.Anything, thread.ID).Return(thread, nil).Once()
	comps.assignRepo.On("Create", mock.Anything, mock.Anything).Return(nil).Once()
	comps.windowRepo.On("CloseAllForThread", mock.Anything, thread.ID, mock.Anything).Return(0, nil).Once()
	comps.threadRepo.On("SetSitter", mock.Anything, thread.ID, from, to, uuid.NullUUID{}, mock.Anything).Return(true, nil).Once()
	comps.provider.On("UpdateSessionParticipants", mock.Anything, "sess_stuck", mock.Anything).Return(providerErr).Once()
	// Rollback restores the previous sitter and removes the audit row.
	comps.threadRepo.On("SetSitter", mock.Anything, thread.ID, to, from, uuid.NullUUID{}, mock.Anything).Return(true, nil).Once()
	comps.assignRepo.On("Delete", mock.Anything, mock.Anything).Return(nil).Once()

	_, err := comps.service.AssignSitter(context.Background(), AssignSitterInput{
		OrgID:    orgID,
		ThreadID: thread.ID,
		SitterID: to,
		Reason:   "handoff",
		ActorID:  uuid.New(),
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, providerErr)
	comps.threadRepo.AssertExpectations(t)
	comps.assignRepo.AssertExpectations(t)
}

func TestAssignmentService_AssignSitter_ConcurrentChangeConflicts(t *testing.T) {
	comps := setupAssignmentTest(t)
	orgID := uuid.New()
	to := uuid.NullUUID{UUID: uuid.New(), Valid: true}
	thread := activeThread(orgID)

	comps.threadRepo.On("GetByID", mock.Anything, thread.ID).Return(thread, nil).Once()
	comps.assignRepo.On("Create", mock.Anything, mock.Anything).Return(nil).Once()
	comps.windowRepo.On("CloseAllForThread", mock.Anything, thread.ID, mock.Anything).Return(0, nil).Once()
	comps.threadRepo.On("SetSitter", mock.Anything, thread.ID, uuid.NullUUID{}, to, uuid.NullUUID{}, mock.Anything).Return(false, nil).Once()
	comps.assignRepo.On("Delete", mock.Anything, mock.Anything).Return(nil).Once()

	_, err := comps.service.AssignSitter(context.Background(), AssignSitterInput{
		OrgID:    orgID,
		ThreadID: thread.ID,
		SitterID: to,
		Reason:   "handoff",
		ActorID:  uuid.New(),
	})

	assert.ErrorIs(t, err, domain.ErrThreadConflict)
	comps.assignRepo.AssertExpectations(t)
}

func TestAssignmentService_AssignSitter_SameSitterIsNoop(t *testing.T) {
	comps := setupAssignmentTest(t)
	orgID := uuid.New()
	sitter := uuid.NullUUID{UUID: uuid.New(), Valid: true}
	thread := activeThread(orgID)
	thread.SitterID = sitter

	comps.threadRepo.On("GetByID", mock.Anything, thread.ID).Return(thread, nil).Once()

	result, err := comps.service.AssignSitter(context.Background(), AssignSitterInput{
		OrgID:    orgID,
		ThreadID: thread.ID,
		SitterID: sitter,
		Reason:   "handoff",
		ActorID:  uuid.New(),
	})

	require.NoError(t, err)
	assert.Equal(t, uuid.Nil, result.AuditID)
	comps.assignRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	comps.windowRepo.AssertNotCalled(t, "CloseAllForThread", mock.Anything, mock.Anything, mock.Anything)
}

func TestAssignmentService_AssignSitter_OrgMismatchHidesThread(t *testing.T) {
	comps := setupAssignmentTest(t)
	thread := activeThread(uuid.New())

	comps.threadRepo.On("GetByID", mock.Anything, thread.ID).Return(thread, nil).Once()

	_, err := comps.service.AssignSitter(context.Background(), AssignSitterInput{
		OrgID:    uuid.New(),
		ThreadID: thread.ID,
		SitterID: uuid.NullUUID{UUID: uuid.New(), Valid: true},
		Reason:   "handoff",
		ActorID:  uuid.New(),
	})

	assert.ErrorIs(t, err, domain.ErrNotFound)
}
