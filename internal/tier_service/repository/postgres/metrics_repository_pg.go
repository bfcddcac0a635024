package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/snoutdesk/dispatch/internal/platform/database"
	"github.com/snoutdesk/dispatch/internal/tier_service/domain"
)

type PgMetricsRepository struct {
	db     database.Querier
	logger *slog.Logger
}

func NewPgMetricsRepository(db database.Querier, logger *slog.Logger) domain.MetricsRepository {
	return &PgMetricsRepository{db: db, logger: logger.With("component", "metrics_repository_pg")}
}

func (r *PgMetricsRepository) GetLatest(ctx context.Context, sitterID uuid.UUID) (*domain.SitterMetrics, error) {
	query := `
		SELECT id, org_id, sitter_id, window_start, window_end,
		       offers_total, offers_responded, offers_accepted, offers_expired,
		       total_response_seconds, median_response_seconds, computed_at
		FROM sitter_metrics
		WHERE sitter_id = $1
		ORDER BY computed_at DESC
		LIMIT 1
	`
	var m domain.SitterMetrics
	err := r.db.QueryRow(ctx, query, sitterID).Scan(
		&m.ID, &m.OrgID, &m.SitterID, &m.WindowStart, &m.WindowEnd,
		&m.OffersTotal, &m.OffersResponded, &m.OffersAccepted, &m.OffersExpired,
		&m.TotalResponseSeconds, &m.MedianResponseSeconds, &m.ComputedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.ErrorContext(ctx, "Error getting latest metrics", "error", err, "sitter_id", sitterID)
		return nil, fmt.Errorf("getting latest metrics: %w", err)
	}
	return &m, nil
}

func (r *PgMetricsRepository) Save(ctx context.Context, metrics *domain.SitterMetrics) error {
	query := `
		INSERT INTO sitter_metrics (
			id, org_id, sitter_id, window_start, window_end,
			offers_total, offers_responded, offers_accepted, offers_expired,
			total_response_seconds, median_response_seconds, computed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := r.db.Exec(ctx, query,
		metrics.ID, metrics.OrgID, metrics.SitterID, metrics.WindowStart, metrics.WindowEnd,
		metrics.OffersTotal, metrics.OffersResponded, metrics.OffersAccepted, metrics.OffersExpired,
		metrics.TotalResponseSeconds, metrics.MedianResponseSeconds, metrics.ComputedAt,
	)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error saving metrics snapshot", "error", err, "sitter_id", metrics.SitterID)
		return fmt.Errorf("saving metrics snapshot: %w", err)
	}
	return nil
}
