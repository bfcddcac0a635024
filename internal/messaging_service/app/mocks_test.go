package app

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/snoutdesk/dispatch/internal/messaging_service/adapters/sessionprovider"
	"github.com/snoutdesk/dispatch/internal/messaging_service/domain"
)

// --- Mocks ---

type MockThreadRepository struct {
	mock.Mock
}

func (m *MockThreadRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Thread, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Thread), args.Error(1)
}

func (m *MockThreadRepository) AttachNumber(ctx context.Context, threadID, numberID uuid.UUID, class domain.NumberClass, sessionRef string, now time.Time) (bool, error) {
	args := m.Called(ctx, threadID, numberID, class, sessionRef, now)
	return args.Bool(0), args.Error(1)
}

func (m *MockThreadRepository) ReassignNumber(ctx context.Context, threadID, numberID uuid.UUID, class domain.NumberClass, sessionRef string, now time.Time) (bool, error) {
	args := m.Called(ctx, threadID, numberID, class, sessionRef, now)
	return args.Bool(0), args.Error(1)
}

func (m *MockThreadRepository) SetSitter(ctx context.Context, threadID uuid.UUID, from, to, windowID uuid.NullUUID, now time.Time) (bool, error) {
	args := m.Called(ctx, threadID, from, to, windowID, now)
	return args.Bool(0), args.Error(1)
}

func (m *MockThreadRepository) DetachNumber(ctx context.Context, threadID uuid.UUID, now time.Time) error {
	args := m.Called(ctx, threadID, now)
	return args.Error(0)
}

type MockNumberRepository struct {
	mock.Mock
}

func (m *MockNumberRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Number, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Number), args.Error(1)
}

func (m *MockNumberRepository) FindSitterNumber(ctx context.Context, orgID, sitterID uuid.UUID) (*domain.Number, error) {
	args := m.Called(ctx, orgID, sitterID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Number), args.Error(1)
}

func (m *MockNumberRepository) FindFrontDesk(ctx context.Context, orgID uuid.UUID) (*domain.Number, error) {
	args := m.Called(ctx, orgID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Number), args.Error(1)
}

func (m *MockNumberRepository) ClaimLeastRecentlyUsedPool(ctx context.Context, orgID, clientID uuid.UUID, now time.Time) (*domain.Number, error) {
	args := m.Called(ctx, orgID, clientID, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Number), args.Error(1)
}

func (m *MockNumberRepository) ReleaseClaim(ctx context.Context, numberID uuid.UUID, previousLastUsed time.Time, previousValid bool) error {
	args := m.Called(ctx, numberID, previousLastUsed, previousValid)
	return args.Error(0)
}

type MockWindowRepository struct {
	mock.Mock
}

func (m *MockWindowRepository) Create(ctx context.Context, window *domain.AssignmentWindow) error {
	args := m.Called(ctx, window)
	return args.Error(0)
}

func (m *MockWindowRepository) FindActive(ctx context.Context, threadID, sitterID uuid.UUID) (*domain.AssignmentWindow, error) {
	args := m.Called(ctx, threadID, sitterID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AssignmentWindow), args.Error(1)
}

func (m *MockWindowRepository) FindOpenForSitter(ctx context.Context, threadID, sitterID uuid.UUID, at time.Time) ([]*domain.AssignmentWindow, error) {
	args := m.Called(ctx, threadID, sitterID, at)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.AssignmentWindow), args.Error(1)
}

func (m *MockWindowRepository) CloseAllForThread(ctx context.Context, threadID uuid.UUID, now time.Time) (int, error) {
	args := m.Called(ctx, threadID, now)
	return args.Int(0), args.Error(1)
}

func (m *MockWindowRepository) CloseAllForBooking(ctx context.Context, bookingID uuid.UUID, now time.Time) (int, error) {
	args := m.Called(ctx, bookingID, now)
	return args.Int(0), args.Error(1)
}

type MockRoutingDecisionRepository struct {
	mock.Mock
}

func (m *MockRoutingDecisionRepository) Create(ctx context.Context, decision *domain.RoutingDecision) error {
	args := m.Called(ctx, decision)
	return args.Error(0)
}

func (m *MockRoutingDecisionRepository) ListForThread(ctx context.Context, threadID uuid.UUID) ([]*domain.RoutingDecision, error) {
	args := m.Called(ctx, threadID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.RoutingDecision), args.Error(1)
}

type MockSessionProvider struct {
	mock.Mock
}

func (m *MockSessionProvider) CreateSession(ctx context.Context, req sessionprovider.SessionRequest) (*sessionprovider.SessionResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sessionprovider.SessionResponse), args.Error(1)
}

func (m *MockSessionProvider) CloseSession(ctx context.Context, sessionRef string) error {
	args := m.Called(ctx, sessionRef)
	return args.Error(0)
}

func (m *MockSessionProvider) UpdateSessionParticipants(ctx context.Context, sessionRef string, participants sessionprovider.SessionParticipants) error {
	args := m.Called(ctx, sessionRef, participants)
	return args.Error(0)
}

func (m *MockSessionProvider) GetName() string {
	return "mock"
}

type MockThreadAssignmentAuditRepository struct {
	mock.Mock
}

func (m *MockThreadAssignmentAuditRepository) Create(ctx context.Context, audit *domain.ThreadAssignmentAudit) error {
	args := m.Called(ctx, audit)
	return args.Error(0)
}

func (m *MockThreadAssignmentAuditRepository) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type MockBookingReader struct {
	mock.Mock
}

func (m *MockBookingReader) GetBookingInfo(ctx context.Context, bookingID uuid.UUID) (*BookingInfo, error) {
	args := m.Called(ctx, bookingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*BookingInfo), args.Error(1)
}
