package app

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/snoutdesk/dispatch/internal/messaging_service/domain"
)

func setupWindowTest(t *testing.T) (*WindowManager, *MockWindowRepository) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	windowRepo := new(MockWindowRepository)
	manager := NewWindowManager(windowRepo, 60*time.Minute, 120*time.Minute, logger)
	return manager, windowRepo
}

func TestWindowManager_EnsureWindow_AppliesDefaultBuffer(t *testing.T) {
	manager, windowRepo := setupWindowTest(t)
	orgID, threadID, bookingID, sitterID, clientID := uuid.New(), uuid.New(), uuid.New(), uuid.New(), uuid.New()
	startAt := time.Date(2026, 9, 2, 10, 0, 0, 0, time.UTC)
	endAt := time.Date(2026, 9, 2, 11, 0, 0, 0, time.UTC)

	windowRepo.On("FindActive", mock.Anything, threadID, sitterID).Return(nil, nil)
	windowRepo.On("Create", mock.Anything, mock.MatchedBy(func(w *domain.AssignmentWindow) bool {
		return w.ThreadID == threadID &&
			w.OpensAt.Equal(startAt.Add(-60*time.Minute)) && w.ClosesAt.Equal(endAt.Add(60*time.Minute))
	})).Return(nil).Once()

	window, err := manager.EnsureWindow(context.Background(), orgID, threadID, bookingID, sitterID, clientID,
		"dog_walking", startAt, endAt)

	require.NoError(t, err)
	assert.Equal(t, domain.WindowActive, window.Status)
	windowRepo.AssertExpectations(t)
}

func TestWindowManager_EnsureWindow_OvernightGetsLongerBuffer(t *testing.T) {
	manager, windowRepo := setupWindowTest(t)
	startAt := time.Date(2026, 9, 2, 18, 0, 0, 0, time.UTC)
	endAt := time.Date(2026, 9, 3, 9, 0, 0, 0, time.UTC)
	threadID, bookingID, sitterID := uuid.New(), uuid.New(), uuid.New()

	windowRepo.On("FindActive", mock.Anything, threadID, sitterID).Return(nil, nil)
	windowRepo.On("Create", mock.Anything, mock.MatchedBy(func(w *domain.AssignmentWindow) bool {
		return w.OpensAt.Equal(startAt.Add(-120*time.Minute)) && w.ClosesAt.Equal(endAt.Add(120*time.Minute))
	})).Return(nil).Once()

	_, err := manager.EnsureWindow(context.Background(), uuid.New(), threadID, bookingID, sitterID, uuid.New(),
		"house_sitting", startAt, endAt)

	require.NoError(t, err)
	windowRepo.AssertExpectations(t)
}

func TestWindowManager_EnsureWindow_ReturnsExisting(t *testing.T) {
	manager, windowRepo := setupWindowTest(t)
	threadID, bookingID, sitterID := uuid.New(), uuid.New(), uuid.New()
	existing := &domain.AssignmentWindow{ID: uuid.New(), ThreadID: threadID, BookingID: bookingID, SitterID: sitterID, Status: domain.WindowActive}

	windowRepo.On("FindActive", mock.Anything, threadID, sitterID).Return(existing, nil)

	window, err := manager.EnsureWindow(context.Background(), uuid.New(), threadID, bookingID, sitterID, uuid.New(),
		"dog_walking", time.Now(), time.Now().Add(time.Hour))

	require.NoError(t, err)
	assert.Equal(t, existing.ID, window.ID)
	windowRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestWindowManager_CanSitterMessage(t *testing.T) {
	manager, windowRepo := setupWindowTest(t)
	threadID, sitterID := uuid.New(), uuid.New()

	t.Run("OpenWindow", func(t *testing.T) {
		windowRepo.On("FindOpenForSitter", mock.Anything, threadID, sitterID, mock.Anything).
			Return([]*domain.AssignmentWindow{{ID: uuid.New()}}, nil).Once()

		ok, err := manager.CanSitterMessage(context.Background(), threadID, sitterID)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("NoWindow", func(t *testing.T) {
		windowRepo.On("FindOpenForSitter", mock.Anything, threadID, sitterID, mock.Anything).
			Return([]*domain.AssignmentWindow{}, nil).Once()

		ok, err := manager.CanSitterMessage(context.Background(), threadID, sitterID)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestWindowManager_CloseForThread(t *testing.T) {
	manager, windowRepo := setupWindowTest(t)
	threadID := uuid.New()

	windowRepo.On("CloseAllForThread", mock.Anything, threadID, mock.Anything).Return(2, nil).Once()

	closed, err := manager.CloseForThread(context.Background(), threadID)
	require.NoError(t, err)
	assert.Equal(t, 2, closed)
	windowRepo.AssertExpectations(t)
}

func TestAssignmentWindowContains(t *testing.T) {
	now := time.Now().UTC()
	window := &domain.AssignmentWindow{
		OpensAt:  now.Add(-time.Hour),
		ClosesAt: now.Add(time.Hour),
		Status:   domain.WindowActive,
	}
	assert.True(t, window.Contains(now))
	assert.False(t, window.Contains(now.Add(2*time.Hour)))

	window.Status = domain.WindowClosed
	assert.False(t, window.Contains(now))
}
