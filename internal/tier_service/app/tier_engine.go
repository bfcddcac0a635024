package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	dispatchdomain "github.com/snoutdesk/dispatch/internal/dispatch_service/domain"
	"github.com/snoutdesk/dispatch/internal/tier_service/domain"
)

// OfferHistory is the slice of the offer store the engine reads.
type OfferHistory interface {
	ListForSitter(ctx context.Context, orgID, sitterID uuid.UUID, windowStart, windowEnd time.Time) ([]*dispatchdomain.Offer, error)
}

// TierEngine recomputes sitter performance metrics and walks the tier
// ladder top-down. Metric snapshots are cached: within the staleness window
// a recompute reuses the stored snapshot instead of re-reading offer
// history.
type TierEngine struct {
	metricsRepo domain.MetricsRepository
	tierRepo    domain.TierRepository
	changeRepo  domain.TierChangeRepository
	offers      OfferHistory

	windowDays int
	staleness  time.Duration

	logger *slog.Logger
}

func NewTierEngine(
	metricsRepo domain.MetricsRepository,
	tierRepo domain.TierRepository,
	changeRepo domain.TierChangeRepository,
	offers OfferHistory,
	windowDays int,
	staleness time.Duration,
	logger *slog.Logger,
) *TierEngine {
	return &TierEngine{
		metricsRepo: metricsRepo,
		tierRepo:    tierRepo,
		changeRepo:  changeRepo,
		offers:      offers,
		windowDays:  windowDays,
		staleness:   staleness,
		logger:      logger,
	}
}

// MetricsForSitter returns a usable snapshot, recomputing from offer
// history when the stored one is stale or force is set.
func (e *TierEngine) MetricsForSitter(ctx context.Context, orgID, sitterID uuid.UUID, force bool) (*domain.SitterMetrics, error) {
	now := time.Now().UTC()
	if !force {
		latest, err := e.metricsRepo.GetLatest(ctx, sitterID)
		if err != nil {
			return nil, fmt.Errorf("loading latest metrics: %w", err)
		}
		if latest != nil && latest.Fresh(e.staleness, now) {
			return latest, nil
		}
	}

	windowStart := now.AddDate(0, 0, -e.windowDays)
	offers, err := e.offers.ListForSitter(ctx, orgID, sitterID, windowStart, now)
	if err != nil {
		return nil, fmt.Errorf("loading offer history: %w", err)
	}

	metrics := domain.ComputeMetrics(orgID, sitterID, offers, windowStart, now)
	if err := e.metricsRepo.Save(ctx, metrics); err != nil {
		return nil, fmt.Errorf("saving metrics snapshot: %w", err)
	}
	e.logger.Debug("metrics recomputed", "sitter_id", sitterID,
		"offers_total", metrics.OffersTotal, "responded", metrics.OffersResponded)
	return metrics, nil
}

// ComputeTierForSitter recomputes the sitter's tier and persists the move
// when it changed. Returns the tier the sitter landed on.
func (e *TierEngine) ComputeTierForSitter(ctx context.Context, orgID, sitterID uuid.UUID, force bool) (*domain.Tier, error) {
	metrics, err := e.MetricsForSitter(ctx, orgID, sitterID, force)
	if err != nil {
		return nil, err
	}

	ladder, err := e.tierRepo.ListByOrg(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("loading tier ladder: %w", err)
	}
	if len(ladder) == 0 {
		return nil, fmt.Errorf("computing tier for sitter %s: org %s has no tier ladder", sitterID, orgID)
	}

	target := pickTier(ladder, metrics)
	if target == nil {
		return nil, fmt.Errorf("computing tier for sitter %s: ladder has no default tier", sitterID)
	}

	previous, err := e.tierRepo.CurrentTierID(ctx, sitterID)
	if err != nil {
		return nil, fmt.Errorf("loading current tier: %w", err)
	}

	now := time.Now().UTC()
	changed, err := e.tierRepo.AssignTier(ctx, sitterID, target.ID, now)
	if err != nil {
		return nil, fmt.Errorf("assigning tier: %w", err)
	}
	if changed {
		change := &domain.TierChange{
			ID:         uuid.New(),
			OrgID:      orgID,
			SitterID:   sitterID,
			FromTierID: previous,
			ToTierID:   target.ID,
			ChangedAt:  now,
		}
		if err := e.changeRepo.Create(ctx, change); err != nil {
			// History is best-effort; the assignment already stuck.
			e.logger.ErrorContext(ctx, "Recording tier change failed", "sitter_id", sitterID, "error", err)
		}
		e.logger.Info("sitter tier changed", "sitter_id", sitterID, "tier", target.Name, "priority", target.Priority)
	}
	return target, nil
}

// CurrentTier resolves the sitter's tier, computing one if the sitter is
// unranked.
func (e *TierEngine) CurrentTier(ctx context.Context, orgID, sitterID uuid.UUID) (*domain.Tier, error) {
	current, err := e.tierRepo.CurrentTierID(ctx, sitterID)
	if err != nil {
		return nil, fmt.Errorf("loading current tier: %w", err)
	}
	if !current.Valid {
		return e.ComputeTierForSitter(ctx, orgID, sitterID, false)
	}
	return e.tierRepo.GetByID(ctx, current.UUID)
}

// pickTier walks the ladder best-first and falls through to the default.
func pickTier(ladder []*domain.Tier, metrics *domain.SitterMetrics) *domain.Tier {
	var fallback *domain.Tier
	for _, tier := range ladder {
		if tier.IsDefault {
			if fallback == nil {
				fallback = tier
			}
			continue
		}
		if tier.Matches(metrics) {
			return tier
		}
	}
	return fallback
}
