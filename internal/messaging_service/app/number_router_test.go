package app

import (
	"context"
	"database/sql"
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

func TestDetermineThreadNumberClass(t *testing.T) {
	tests := []struct {
		name      string
		routing   domain.RoutingContext
		wantClass domain.NumberClass
		wantRule  string
	}{
		{
			name:      "sitter involved wins over everything",
			routing:   domain.RoutingContext{SitterInvolved: true, MeetAndGreet: true, OneTimeClient: true},
			wantClass: domain.ClassSitter,
			wantRule:  RuleSitterInvolved,
		},
		{
			name:      "meet and greet routes to pool",
			routing:   domain.RoutingContext{MeetAndGreet: true},
			wantClass: domain.ClassPool,
			wantRule:  RuleMeetAndGreet,
		},
		{
			name:      "one-time client routes to pool",
			routing:   domain.RoutingContext{OneTimeClient: true},
			wantClass: domain.ClassPool,
			wantRule:  RuleOneTimeClient,
		},
		{
			name:      "meet and greet checked before one-time client",
			routing:   domain.RoutingContext{MeetAndGreet: true, OneTimeClient: true},
			wantClass: domain.ClassPool,
			wantRule:  RuleMeetAndGreet,
		},
		{
			name:      "returning client without sitter goes to front desk",
			routing:   domain.RoutingContext{},
			wantClass: domain.ClassFrontDesk,
			wantRule:  RuleDefaultFrontDesk,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			class, rule := DetermineThreadNumberClass(tt.routing)
			assert.Equal(t, tt.wantClass, class)
			assert.Equal(t, tt.wantRule, rule)
		})
	}
}

func activeThread(orgID uuid.UUID) *domain.Thread {
	now := time.Now().UTC()
	return &domain.Thread{
		ID:        uuid.New(),
		OrgID:     orgID,
		ClientID:  uuid.New(),
		Status:    domain.ThreadActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestNumberRouter_Resolve_SitterFallsBackToPool(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	numberRepo := new(MockNumberRepository)
	router := NewNumberRouter(numberRepo, logger)

	orgID := uuid.New()
	thread := activeThread(orgID)
	sitterID := uuid.New()
	thread.SitterID = uuid.NullUUID{UUID: sitterID, Valid: true}

	poolNumber := &domain.Number{ID: uuid.New(), OrgID: orgID, E164: "+15550000001", Class: domain.ClassPool, Active: true}

	numberRepo.On("FindSitterNumber", mock.Anything, orgID, sitterID).Return(nil, domain.ErrNotFound)
	numberRepo.On("ClaimLeastRecentlyUsedPool", mock.Anything, orgID, thread.ClientID, mock.Anything).Return(poolNumber, nil)

	resolved, err := router.Resolve(context.Background(), thread, domain.ClassSitter, RuleSitterInvolved)

	require.NoError(t, err)
	assert.Equal(t, domain.ClassPool, resolved.Class)
	assert.Equal(t, RuleSitterNoDedicated, resolved.Rule)
	assert.Equal(t, poolNumber.ID, resolved.Number.ID)
	numberRepo.AssertExpectations(t)
}

func TestNumberRouter_Resolve_PoolExhausted(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	numberRepo := new(MockNumberRepository)
	router := NewNumberRouter(numberRepo, logger)

	thread := activeThread(uuid.New())
	numberRepo.On("ClaimLeastRecentlyUsedPool", mock.Anything, thread.OrgID, thread.ClientID, mock.Anything).
		Return(nil, domain.ErrNoNumberAvailable)

	_, err := router.Resolve(context.Background(), thread, domain.ClassPool, RuleMeetAndGreet)

	assert.ErrorIs(t, err, domain.ErrNoNumberAvailable)
}

func TestNumberRouter_Release_RestoresPreviousStamp(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	numberRepo := new(MockNumberRepository)
	router := NewNumberRouter(numberRepo, logger)

	orgID := uuid.New()
	thread := activeThread(orgID)
	previous := time.Now().UTC().Add(-2 * time.Hour)
	poolNumber := &domain.Number{
		ID: uuid.New(), OrgID: orgID, E164: "+15550000002", Class: domain.ClassPool, Active: true,
		LastUsedAt: sql.NullTime{Time: previous, Valid: true},
	}

	numberRepo.On("ClaimLeastRecentlyUsedPool", mock.Anything, orgID, thread.ClientID, mock.Anything).Return(poolNumber, nil)
	numberRepo.On("ReleaseClaim", mock.Anything, poolNumber.ID, previous, true).Return(nil).Once()

	resolved, err := router.Resolve(context.Background(), thread, domain.ClassPool, RuleOneTimeClient)
	require.NoError(t, err)

	require.NoError(t, router.Release(context.Background(), resolved))
	numberRepo.AssertExpectations(t)
}

func TestNumberRouter_Release_NoopForFrontDesk(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	numberRepo := new(MockNumberRepository)
	router := NewNumberRouter(numberRepo, logger)

	orgID := uuid.New()
	thread := activeThread(orgID)
	frontDesk := &domain.Number{ID: uuid.New(), OrgID: orgID, E164: "+15550000000", Class: domain.ClassFrontDesk, Active: true}

	numberRepo.On("FindFrontDesk", mock.Anything, orgID).Return(frontDesk, nil)

	resolved, err := router.Resolve(context.Background(), thread, domain.ClassFrontDesk, RuleDefaultFrontDesk)
	require.NoError(t, err)

	require.NoError(t, router.Release(context.Background(), resolved))
	numberRepo.AssertNotCalled(t, "ReleaseClaim", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
