package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/snoutdesk/dispatch/internal/platform/database"
	"github.com/snoutdesk/dispatch/internal/tier_service/domain"
)

type PgSitterLister struct {
	db     database.Querier
	logger *slog.Logger
}

func NewPgSitterLister(db database.Querier, logger *slog.Logger) domain.SitterLister {
	return &PgSitterLister{db: db, logger: logger.With("component", "sitter_lister_pg")}
}

func (r *PgSitterLister) ListActiveSitters(ctx context.Context) ([]domain.SitterRef, error) {
	query := `SELECT id, org_id FROM sitters WHERE active = TRUE ORDER BY org_id, id`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error listing active sitters", "error", err)
		return nil, fmt.Errorf("listing active sitters: %w", err)
	}
	defer rows.Close()

	var refs []domain.SitterRef
	for rows.Next() {
		var ref domain.SitterRef
		if err := rows.Scan(&ref.ID, &ref.OrgID); err != nil {
			return nil, fmt.Errorf("scanning sitter ref: %w", err)
		}
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sitter refs: %w", err)
	}
	return refs, nil
}
