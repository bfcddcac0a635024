package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/snoutdesk/dispatch/internal/platform/database"
	"github.com/snoutdesk/dispatch/internal/tier_service/domain"
)

type PgTierChangeRepository struct {
	db     database.Querier
	logger *slog.Logger
}

func NewPgTierChangeRepository(db database.Querier, logger *slog.Logger) domain.TierChangeRepository {
	return &PgTierChangeRepository{db: db, logger: logger.With("component", "tier_change_repository_pg")}
}

func (r *PgTierChangeRepository) Create(ctx context.Context, change *domain.TierChange) error {
	query := `
		INSERT INTO tier_changes (id, org_id, sitter_id, from_tier_id, to_tier_id, changed_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.Exec(ctx, query,
		change.ID, change.OrgID, change.SitterID, change.FromTierID, change.ToTierID, change.ChangedAt,
	)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error recording tier change", "error", err, "sitter_id", change.SitterID)
		return fmt.Errorf("recording tier change: %w", err)
	}
	return nil
}

func (r *PgTierChangeRepository) ListForSitter(ctx context.Context, sitterID uuid.UUID, limit int) ([]*domain.TierChange, error) {
	query := `
		SELECT id, org_id, sitter_id, from_tier_id, to_tier_id, changed_at
		FROM tier_changes
		WHERE sitter_id = $1
		ORDER BY changed_at DESC
		LIMIT $2
	`
	rows, err := r.db.Query(ctx, query, sitterID, limit)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error listing tier changes", "error", err, "sitter_id", sitterID)
		return nil, fmt.Errorf("listing tier changes: %w", err)
	}
	defer rows.Close()

	var changes []*domain.TierChange
	for rows.Next() {
		var c domain.TierChange
		if err := rows.Scan(&c.ID, &c.OrgID, &c.SitterID, &c.FromTierID, &c.ToTierID, &c.ChangedAt); err != nil {
			return nil, fmt.Errorf("scanning tier change row: %w", err)
		}
		changes = append(changes, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating tier change rows: %w", err)
	}
	return changes, nil
}
