package domain

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("record not found")

type MetricsRepository interface {
	// GetLatest returns the most recent snapshot for the sitter, or nil.
	GetLatest(ctx context.Context, sitterID uuid.UUID) (*SitterMetrics, error)
	Save(ctx context.Context, metrics *SitterMetrics) error
}

type TierRepository interface {
	// ListByOrg returns the org's ladder ordered by priority ascending.
	ListByOrg(ctx context.Context, orgID uuid.UUID) ([]*Tier, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Tier, error)

	// AssignTier moves the sitter onto the tier. Guarded: reports
	// changed=false when the sitter is already on it, which suppresses the
	// history row.
	AssignTier(ctx context.Context, sitterID, tierID uuid.UUID, now time.Time) (changed bool, err error)

	// CurrentTierID returns the sitter's tier, Valid=false when unranked.
	CurrentTierID(ctx context.Context, sitterID uuid.UUID) (uuid.NullUUID, error)
}

type TierChangeRepository interface {
	Create(ctx context.Context, change *TierChange) error
	ListForSitter(ctx context.Context, sitterID uuid.UUID, limit int) ([]*TierChange, error)
}

// SitterRef identifies a sitter for the periodic recompute pass.
type SitterRef struct {
	ID    uuid.UUID
	OrgID uuid.UUID
}

type SitterLister interface {
	ListActiveSitters(ctx context.Context) ([]SitterRef, error)
}
