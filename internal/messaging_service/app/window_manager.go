package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/snoutdesk/dispatch/internal/messaging_service/domain"
)

// WindowManager owns assignment window lifecycle: one active window per
// (thread, sitter), opened when a sitter takes the thread's booking, closed
// when the booking leaves them.
type WindowManager struct {
	windowRepo      domain.WindowRepository
	defaultBuffer   time.Duration
	overnightBuffer time.Duration
	logger          *slog.Logger
}

func NewWindowManager(windowRepo domain.WindowRepository, defaultBuffer, overnightBuffer time.Duration, logger *slog.Logger) *WindowManager {
	return &WindowManager{
		windowRepo:      windowRepo,
		defaultBuffer:   defaultBuffer,
		overnightBuffer: overnightBuffer,
		logger:          logger,
	}
}

// EnsureWindow opens the messaging window for the sitter on the thread,
// returning the existing one when it is already open.
func (m *WindowManager) EnsureWindow(ctx context.Context, orgID, threadID, bookingID, sitterID, clientID uuid.UUID, service string, startAt, endAt time.Time) (*domain.AssignmentWindow, error) {
	existing, err := m.windowRepo.FindActive(ctx, threadID, sitterID)
	if err != nil {
		return nil, fmt.Errorf("finding active window: %w", err)
	}
	if existing != nil {
		return existing, nil
	}

	buffer := domain.WindowBuffer(service, m.defaultBuffer, m.overnightBuffer)
	window := domain.NewAssignmentWindow(orgID, threadID, bookingID, sitterID, clientID, startAt, endAt, buffer)
	if err := m.windowRepo.Create(ctx, window); err != nil {
		return nil, fmt.Errorf("creating assignment window: %w", err)
	}
	m.logger.Info("assignment window opened",
		"window_id", window.ID, "thread_id", threadID, "booking_id", bookingID, "sitter_id", sitterID,
		"opens_at", window.OpensAt, "closes_at", window.ClosesAt)
	return window, nil
}

// CloseForThread closes every active window on the thread. Called before a
// thread moves to another sitter so the outgoing sitter loses access.
func (m *WindowManager) CloseForThread(ctx context.Context, threadID uuid.UUID) (int, error) {
	closed, err := m.windowRepo.CloseAllForThread(ctx, threadID, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("closing windows for thread: %w", err)
	}
	if closed > 0 {
		m.logger.Info("assignment windows closed", "thread_id", threadID, "count", closed)
	}
	return closed, nil
}

// CloseForBooking closes every active window for the booking. Called when a
// booking is reassigned, cancelled, or returned to the pool.
func (m *WindowManager) CloseForBooking(ctx context.Context, bookingID uuid.UUID) (int, error) {
	closed, err := m.windowRepo.CloseAllForBooking(ctx, bookingID, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("closing windows for booking: %w", err)
	}
	if closed > 0 {
		m.logger.Info("assignment windows closed", "booking_id", bookingID, "count", closed)
	}
	return closed, nil
}

// CanSitterMessage reports whether the sitter currently has an open window
// on the thread.
func (m *WindowManager) CanSitterMessage(ctx context.Context, threadID, sitterID uuid.UUID) (bool, error) {
	windows, err := m.windowRepo.FindOpenForSitter(ctx, threadID, sitterID, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("finding open windows: %w", err)
	}
	return len(windows) > 0, nil
}
