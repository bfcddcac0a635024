package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/snoutdesk/dispatch/internal/messaging_service/domain"
	"github.com/snoutdesk/dispatch/internal/platform/database"
)

const numberColumns = `
	id, org_id, e164, class, sitter_id, active, last_used_at, created_at, updated_at
`

type PgNumberRepository struct {
	db     database.Querier
	logger *slog.Logger
}

func NewPgNumberRepository(db database.Querier, logger *slog.Logger) domain.NumberRepository {
	return &PgNumberRepository{db: db, logger: logger.With("component", "number_repository_pg")}
}

func (r *PgNumberRepository) scanNumber(row pgx.Row) (*domain.Number, error) {
	var n domain.Number
	err := row.Scan(
		&n.ID, &n.OrgID, &n.E164, &n.Class, &n.SitterID, &n.Active,
		&n.LastUsedAt, &n.CreatedAt, &n.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func (r *PgNumberRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Number, error) {
	query := `SELECT ` + numberColumns + ` FROM numbers WHERE id = $1`
	number, err := r.scanNumber(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		r.logger.ErrorContext(ctx, "Error getting number by ID", "error", err, "number_id", id)
		return nil, fmt.Errorf("getting number by ID: %w", err)
	}
	return number, nil
}

func (r *PgNumberRepository) FindSitterNumber(ctx context.Context, orgID, sitterID uuid.UUID) (*domain.Number, error) {
	query := `SELECT ` + numberColumns + `
		FROM numbers
		WHERE org_id = $1 AND class = $2 AND sitter_id = $3 AND active = TRUE
		LIMIT 1`
	number, err := r.scanNumber(r.db.QueryRow(ctx, query, orgID, domain.ClassSitter, sitterID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		r.logger.ErrorContext(ctx, "Error finding sitter number", "error", err, "sitter_id", sitterID)
		return nil, fmt.Errorf("finding sitter number: %w", err)
	}
	return number, nil
}

func (r *PgNumberRepository) FindFrontDesk(ctx context.Context, orgID uuid.UUID) (*domain.Number, error) {
	query := `SELECT ` + numberColumns + `
		FROM numbers
		WHERE org_id = $1 AND class = $2 AND active = TRUE
		LIMIT 1`
	number, err := r.scanNumber(r.db.QueryRow(ctx, query, orgID, domain.ClassFrontDesk))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		r.logger.ErrorContext(ctx, "Error finding front desk number", "error", err, "org_id", orgID)
		return nil, fmt.Errorf("finding front desk number: %w", err)
	}
	return number, nil
}

// ClaimLeastRecentlyUsedPool selects and stamps the oldest-used pool number
// in one statement. The NOT EXISTS clause keeps a client off a pool number
// that already carries one of their active threads, and SKIP LOCKED lets
// concurrent claims take different rows. The RETURNING clause reports the
// row's pre-claim last_used_at so a failed assignment can restore it.
func (r *PgNumberRepository) ClaimLeastRecentlyUsedPool(ctx context.Context, orgID, clientID uuid.UUID, now time.Time) (*domain.Number, error) {
	query := `
		UPDATE numbers n
		SET last_used_at = $1, updated_at = $1
		WHERE n.id = (
			SELECT id FROM numbers
			WHERE org_id = $2 AND class = $3 AND active = TRUE
			  AND NOT EXISTS (
				SELECT 1 FROM threads t
				WHERE t.number_id = numbers.id
				  AND t.client_id = $4
				  AND t.status = $5
			  )
			ORDER BY last_used_at ASC NULLS FIRST
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING n.id, n.org_id, n.e164, n.class, n.sitter_id, n.active,
		          (SELECT last_used_at FROM numbers o WHERE o.id = n.id) AS last_used_at,
		          n.created_at, n.updated_at
	`
	number, err := r.scanNumber(r.db.QueryRow(ctx, query, now, orgID, domain.ClassPool, clientID, domain.ThreadActive))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNoNumberAvailable
		}
		r.logger.ErrorContext(ctx, "Error claiming pool number", "error", err, "org_id", orgID, "client_id", clientID)
		return nil, fmt.Errorf("claiming pool number: %w", err)
	}
	return number, nil
}

func (r *PgNumberRepository) ReleaseClaim(ctx context.Context, numberID uuid.UUID, previousLastUsed time.Time, previousValid bool) error {
	query := `UPDATE numbers SET last_used_at = $1, updated_at = NOW() WHERE id = $2`
	var previous any
	if previousValid {
		previous = previousLastUsed
	}
	if _, err := r.db.Exec(ctx, query, previous, numberID); err != nil {
		r.logger.ErrorContext(ctx, "Error releasing number claim", "error", err, "number_id", numberID)
		return fmt.Errorf("releasing number claim: %w", err)
	}
	return nil
}
