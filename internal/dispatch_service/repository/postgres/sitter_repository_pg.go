package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/snoutdesk/dispatch/internal/dispatch_service/domain"
	"github.com/snoutdesk/dispatch/internal/platform/database"
)

type PgSitterRepository struct {
	db     database.Querier
	logger *slog.Logger
}

func NewPgSitterRepository(db database.Querier, logger *slog.Logger) domain.SitterRepository {
	return &PgSitterRepository{db: db, logger: logger.With("component", "sitter_repository_pg")}
}

// Sitters without a computed tier sort last via COALESCE.
const sitterSelect = `
	SELECT s.id, s.org_id, s.name, s.phone, s.active, s.services,
	       s.current_tier_id, COALESCE(t.priority, 1000) AS tier_priority,
	       s.created_at, s.updated_at
	FROM sitters s
	LEFT JOIN tiers t ON t.id = s.current_tier_id
`

func (r *PgSitterRepository) scanSitter(row pgx.Row) (*domain.Sitter, error) {
	var s domain.Sitter
	err := row.Scan(
		&s.ID, &s.OrgID, &s.Name, &s.Phone, &s.Active, &s.Services,
		&s.CurrentTierID, &s.TierPriority, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *PgSitterRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Sitter, error) {
	query := sitterSelect + ` WHERE s.id = $1`
	sitter, err := r.scanSitter(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		r.logger.ErrorContext(ctx, "Error getting sitter by ID", "error", err, "sitter_id", id)
		return nil, fmt.Errorf("getting sitter by ID: %w", err)
	}
	return sitter, nil
}

func (r *PgSitterRepository) ListActive(ctx context.Context, orgID uuid.UUID, excludeIDs []uuid.UUID) ([]*domain.Sitter, error) {
	query := sitterSelect + `
		WHERE s.org_id = $1 AND s.active = TRUE AND s.id != ALL($2)
		ORDER BY tier_priority ASC, s.name ASC`
	if excludeIDs == nil {
		excludeIDs = []uuid.UUID{}
	}
	rows, err := r.db.Query(ctx, query, orgID, excludeIDs)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error listing active sitters", "error", err, "org_id", orgID)
		return nil, fmt.Errorf("listing active sitters: %w", err)
	}
	defer rows.Close()

	var sitters []*domain.Sitter
	for rows.Next() {
		sitter, err := r.scanSitter(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning sitter row: %w", err)
		}
		sitters = append(sitters, sitter)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sitter rows: %w", err)
	}
	return sitters, nil
}
