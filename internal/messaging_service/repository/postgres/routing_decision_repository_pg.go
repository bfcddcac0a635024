package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/snoutdesk/dispatch/internal/messaging_service/domain"
	"github.com/snoutdesk/dispatch/internal/platform/database"
)

type PgRoutingDecisionRepository struct {
	db     database.Querier
	logger *slog.Logger
}

func NewPgRoutingDecisionRepository(db database.Querier, logger *slog.Logger) domain.RoutingDecisionRepository {
	return &PgRoutingDecisionRepository{db: db, logger: logger.With("component", "routing_decision_repository_pg")}
}

func (r *PgRoutingDecisionRepository) Create(ctx context.Context, decision *domain.RoutingDecision) error {
	query := `
		INSERT INTO routing_decisions (
			id, org_id, thread_id, number_id, class, rule, session_ref, decided_at
		) VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8)
	`
	_, err := r.db.Exec(ctx, query,
		decision.ID, decision.OrgID, decision.ThreadID, decision.NumberID,
		decision.Class, decision.Rule, decision.SessionRef, decision.DecidedAt,
	)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error creating routing decision", "error", err, "thread_id", decision.ThreadID)
		return fmt.Errorf("creating routing decision: %w", err)
	}
	return nil
}

func (r *PgRoutingDecisionRepository) ListForThread(ctx context.Context, threadID uuid.UUID) ([]*domain.RoutingDecision, error) {
	query := `
		SELECT id, org_id, thread_id, number_id, class, rule, COALESCE(session_ref, ''), decided_at
		FROM routing_decisions
		WHERE thread_id = $1
		ORDER BY decided_at ASC
	`
	rows, err := r.db.Query(ctx, query, threadID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error listing routing decisions", "error", err, "thread_id", threadID)
		return nil, fmt.Errorf("listing routing decisions: %w", err)
	}
	defer rows.Close()

	var decisions []*domain.RoutingDecision
	for rows.Next() {
		var d domain.RoutingDecision
		err := rows.Scan(&d.ID, &d.OrgID, &d.ThreadID, &d.NumberID, &d.Class, &d.Rule, &d.SessionRef, &d.DecidedAt)
		if err != nil {
			return nil, fmt.Errorf("scanning routing decision row: %w", err)
		}
		decisions = append(decisions, &d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating routing decision rows: %w", err)
	}
	return decisions, nil
}
