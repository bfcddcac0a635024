package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/snoutdesk/dispatch/internal/platform/database"
	"github.com/snoutdesk/dispatch/internal/tier_service/domain"
)

const tierColumns = `
	id, org_id, name, priority, is_default,
	max_avg_response_seconds, min_response_rate, min_offer_accept_rate, max_offer_expire_rate,
	created_at, updated_at
`

type PgTierRepository struct {
	db     database.Querier
	logger *slog.Logger
}

func NewPgTierRepository(db database.Querier, logger *slog.Logger) domain.TierRepository {
	return &PgTierRepository{db: db, logger: logger.With("component", "tier_repository_pg")}
}

func (r *PgTierRepository) scanTier(row pgx.Row) (*domain.Tier, error) {
	var t domain.Tier
	err := row.Scan(
		&t.ID, &t.OrgID, &t.Name, &t.Priority, &t.IsDefault,
		&t.MaxAvgResponseSeconds, &t.MinResponseRate, &t.MinOfferAcceptRate, &t.MaxOfferExpireRate,
		&t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *PgTierRepository) ListByOrg(ctx context.Context, orgID uuid.UUID) ([]*domain.Tier, error) {
	query := `SELECT ` + tierColumns + ` FROM tiers WHERE org_id = $1 ORDER BY priority ASC`
	rows, err := r.db.Query(ctx, query, orgID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error listing tiers", "error", err, "org_id", orgID)
		return nil, fmt.Errorf("listing tiers: %w", err)
	}
	defer rows.Close()

	var tiers []*domain.Tier
	for rows.Next() {
		tier, err := r.scanTier(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning tier row: %w", err)
		}
		tiers = append(tiers, tier)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating tier rows: %w", err)
	}
	return tiers, nil
}

func (r *PgTierRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Tier, error) {
	query := `SELECT ` + tierColumns + ` FROM tiers WHERE id = $1`
	tier, err := r.scanTier(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		r.logger.ErrorContext(ctx, "Error getting tier by ID", "error", err, "tier_id", id)
		return nil, fmt.Errorf("getting tier by ID: %w", err)
	}
	return tier, nil
}

// AssignTier is guarded on the tier actually changing, so an unchanged
// recompute affects zero rows and writes no history.
func (r *PgTierRepository) AssignTier(ctx context.Context, sitterID, tierID uuid.UUID, now time.Time) (bool, error) {
	query := `
		UPDATE sitters
		SET current_tier_id = $1, updated_at = $2
		WHERE id = $3
		  AND (current_tier_id IS NULL OR current_tier_id != $1)
	`
	tag, err := r.db.Exec(ctx, query, tierID, now, sitterID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error assigning tier", "error", err, "sitter_id", sitterID, "tier_id", tierID)
		return false, fmt.Errorf("assigning tier: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *PgTierRepository) CurrentTierID(ctx context.Context, sitterID uuid.UUID) (uuid.NullUUID, error) {
	query := `SELECT current_tier_id FROM sitters WHERE id = $1`
	var tierID uuid.NullUUID
	if err := r.db.QueryRow(ctx, query, sitterID).Scan(&tierID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.NullUUID{}, domain.ErrNotFound
		}
		r.logger.ErrorContext(ctx, "Error getting current tier", "error", err, "sitter_id", sitterID)
		return uuid.NullUUID{}, fmt.Errorf("getting current tier: %w", err)
	}
	return tierID, nil
}
