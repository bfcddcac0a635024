package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/snoutdesk/dispatch/internal/messaging_service/domain"
	"github.com/snoutdesk/dispatch/internal/platform/database"
)

type PgThreadAssignmentAuditRepository struct {
	db     database.Querier
	logger *slog.Logger
}

func NewPgThreadAssignmentAuditRepository(db database.Querier, logger *slog.Logger) domain.ThreadAssignmentAuditRepository {
	return &PgThreadAssignmentAuditRepository{db: db, logger: logger.With("component", "assignment_audit_repository_pg")}
}

func (r *PgThreadAssignmentAuditRepository) Create(ctx context.Context, audit *domain.ThreadAssignmentAudit) error {
	query := `
		INSERT INTO thread_assignment_audits (
			id, org_id, thread_id, from_sitter_id, to_sitter_id, reason, actor_id, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.Exec(ctx, query,
		audit.ID, audit.OrgID, audit.ThreadID, audit.FromSitterID, audit.ToSitterID,
		audit.Reason, audit.ActorID, audit.CreatedAt,
	)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error creating assignment audit", "error", err, "thread_id", audit.ThreadID)
		return fmt.Errorf("creating assignment audit: %w", err)
	}
	return nil
}

// Delete removes an audit row whose thread mutation was rolled back. A
// missing row is not an error; the rollback already got what it wanted.
func (r *PgThreadAssignmentAuditRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM thread_assignment_audits WHERE id = $1`
	if _, err := r.db.Exec(ctx, query, id); err != nil {
		r.logger.ErrorContext(ctx, "Error deleting assignment audit", "error", err, "audit_id", id)
		return fmt.Errorf("deleting assignment audit: %w", err)
	}
	return nil
}
