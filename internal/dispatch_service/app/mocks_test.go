package app

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/snoutdesk/dispatch/internal/dispatch_service/domain"
)

// --- Mocks ---

type MockBookingRepository struct {
	mock.Mock
}

func (m *MockBookingRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

func (m *MockBookingRepository) AssignSitter(ctx context.Context, bookingID, sitterID uuid.UUID, now time.Time) (bool, error) {
	args := m.Called(ctx, bookingID, sitterID, now)
	return args.Bool(0), args.Error(1)
}

func (m *MockBookingRepository) ReturnToPool(ctx context.Context, bookingID, expiredSitterID uuid.UUID, now time.Time) (bool, error) {
	args := m.Called(ctx, bookingID, expiredSitterID, now)
	return args.Bool(0), args.Error(1)
}

func (m *MockBookingRepository) MarkManualRequired(ctx context.Context, bookingID uuid.UUID, reason string, now time.Time) (bool, error) {
	args := m.Called(ctx, bookingID, reason, now)
	return args.Bool(0), args.Error(1)
}

func (m *MockBookingRepository) ApplyDispatchTransition(ctx context.Context, bookingID uuid.UUID, from, to domain.DispatchStatus, sitterID uuid.NullUUID, now time.Time) (bool, error) {
	args := m.Called(ctx, bookingID, from, to, sitterID, now)
	return args.Bool(0), args.Error(1)
}

func (m *MockBookingRepository) CountOverlapping(ctx context.Context, sitterID uuid.UUID, window domain.BookingWindow, excludeBookingID uuid.UUID) (int, error) {
	args := m.Called(ctx, sitterID, window, excludeBookingID)
	return args.Int(0), args.Error(1)
}

func (m *MockBookingRepository) ListAttention(ctx context.Context, orgID uuid.UUID) ([]*domain.Booking, error) {
	args := m.Called(ctx, orgID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Booking), args.Error(1)
}

type MockSitterRepository struct {
	mock.Mock
}

func (m *MockSitterRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Sitter, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Sitter), args.Error(1)
}

func (m *MockSitterRepository) ListActive(ctx context.Context, orgID uuid.UUID, excludeIDs []uuid.UUID) ([]*domain.Sitter, error) {
	args := m.Called(ctx, orgID, excludeIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Sitter), args.Error(1)
}

type MockOfferRepository struct {
	mock.Mock
}

func (m *MockOfferRepository) Create(ctx context.Context, offer *domain.Offer) error {
	args := m.Called(ctx, offer)
	return args.Error(0)
}

func (m *MockOfferRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Offer, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Offer), args.Error(1)
}

func (m *MockOfferRepository) FindActive(ctx context.Context, bookingID, sitterID uuid.UUID) (*domain.Offer, error) {
	args := m.Called(ctx, bookingID, sitterID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Offer), args.Error(1)
}

func (m *MockOfferRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]*domain.Offer, error) {
	args := m.Called(ctx, now, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Offer), args.Error(1)
}

func (m *MockOfferRepository) MarkExpired(ctx context.Context, offerID uuid.UUID, now time.Time) (bool, error) {
	args := m.Called(ctx, offerID, now)
	return args.Bool(0), args.Error(1)
}

func (m *MockOfferRepository) MarkResponded(ctx context.Context, offerID uuid.UUID, status domain.OfferStatus, respondedAt time.Time) (bool, error) {
	args := m.Called(ctx, offerID, status, respondedAt)
	return args.Bool(0), args.Error(1)
}

func (m *MockOfferRepository) CountAttempts(ctx context.Context, bookingID uuid.UUID) (int, error) {
	args := m.Called(ctx, bookingID)
	return args.Int(0), args.Error(1)
}

func (m *MockOfferRepository) ExcludeActiveForBooking(ctx context.Context, bookingID uuid.UUID, now time.Time) (int, error) {
	args := m.Called(ctx, bookingID, now)
	return args.Int(0), args.Error(1)
}

func (m *MockOfferRepository) SittersInCooldown(ctx context.Context, bookingID uuid.UUID, threshold time.Time) ([]uuid.UUID, error) {
	args := m.Called(ctx, bookingID, threshold)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]uuid.UUID), args.Error(1)
}

func (m *MockOfferRepository) ListForSitter(ctx context.Context, orgID, sitterID uuid.UUID, windowStart, windowEnd time.Time) ([]*domain.Offer, error) {
	args := m.Called(ctx, orgID, sitterID, windowStart, windowEnd)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Offer), args.Error(1)
}

type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(ctx context.Context, subject string, data []byte) error {
	args := m.Called(ctx, subject, data)
	return args.Error(0)
}
