package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/snoutdesk/dispatch/internal/dispatch_service/domain"
	"github.com/snoutdesk/dispatch/internal/platform/database"
)

const offerColumns = `
	id, org_id, booking_id, sitter_id, offered_at, expires_at,
	status, excluded, accepted_at, declined_at, created_at, updated_at
`

type PgOfferRepository struct {
	db     database.Querier
	logger *slog.Logger
}

func NewPgOfferRepository(db database.Querier, logger *slog.Logger) domain.OfferRepository {
	return &PgOfferRepository{db: db, logger: logger.With("component", "offer_repository_pg")}
}

func (r *PgOfferRepository) Create(ctx context.Context, offer *domain.Offer) error {
	query := `
		INSERT INTO offers (
			id, org_id, booking_id, sitter_id, offered_at, expires_at,
			status, excluded, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.db.Exec(ctx, query,
		offer.ID, offer.OrgID, offer.BookingID, offer.SitterID,
		offer.OfferedAt, offer.ExpiresAt, offer.Status, offer.Excluded,
		offer.CreatedAt, offer.UpdatedAt,
	)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error creating offer", "error", err, "offer_id", offer.ID)
		return fmt.Errorf("creating offer: %w", err)
	}
	return nil
}

func (r *PgOfferRepository) scanOffer(row pgx.Row) (*domain.Offer, error) {
	var o domain.Offer
	err := row.Scan(
		&o.ID, &o.OrgID, &o.BookingID, &o.SitterID, &o.OfferedAt, &o.ExpiresAt,
		&o.Status, &o.Excluded, &o.AcceptedAt, &o.DeclinedAt, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *PgOfferRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Offer, error) {
	query := `SELECT ` + offerColumns + ` FROM offers WHERE id = $1`
	offer, err := r.scanOffer(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		r.logger.ErrorContext(ctx, "Error getting offer by ID", "error", err, "offer_id", id)
		return nil, fmt.Errorf("getting offer by ID: %w", err)
	}
	return offer, nil
}

func (r *PgOfferRepository) FindActive(ctx context.Context, bookingID, sitterID uuid.UUID) (*domain.Offer, error) {
	query := `SELECT ` + offerColumns + `
		FROM offers
		WHERE booking_id = $1 AND sitter_id = $2 AND status = $3 AND excluded = FALSE
		LIMIT 1`
	offer, err := r.scanOffer(r.db.QueryRow(ctx, query, bookingID, sitterID, domain.OfferSent))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.ErrorContext(ctx, "Error finding active offer", "error", err, "booking_id", bookingID, "sitter_id", sitterID)
		return nil, fmt.Errorf("finding active offer: %w", err)
	}
	return offer, nil
}

// ListDue reads the due batch with SKIP LOCKED so overlapping sweeps skip
// rows another pass is reading at that instant. On a pooled autocommit
// connection the locks end with the statement, so the status guard in
// MarkExpired is what actually prevents double-processing.
func (r *PgOfferRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]*domain.Offer, error) {
	query := `SELECT ` + offerColumns + `
		FROM offers
		WHERE status = $1 AND excluded = FALSE AND expires_at <= $2
		ORDER BY expires_at ASC
		LIMIT $3
		FOR UPDATE SKIP LOCKED`
	rows, err := r.db.Query(ctx, query, domain.OfferSent, now, limit)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error listing due offers", "error", err)
		return nil, fmt.Errorf("listing due offers: %w", err)
	}
	defer rows.Close()

	var offers []*domain.Offer
	for rows.Next() {
		offer, err := r.scanOffer(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning offer row: %w", err)
		}
		offers = append(offers, offer)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating offer rows: %w", err)
	}
	return offers, nil
}

// MarkExpired is guarded on status=sent so a response that landed after the
// due listing wins the race.
func (r *PgOfferRepository) MarkExpired(ctx context.Context, offerID uuid.UUID, now time.Time) (bool, error) {
	query := `
		UPDATE offers
		SET status = $1, updated_at = $2
		WHERE id = $3 AND status = $4
	`
	tag, err := r.db.Exec(ctx, query, domain.OfferExpired, now, offerID, domain.OfferSent)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error marking offer expired", "error", err, "offer_id", offerID)
		return false, fmt.Errorf("marking offer expired: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *PgOfferRepository) MarkResponded(ctx context.Context, offerID uuid.UUID, status domain.OfferStatus, respondedAt time.Time) (bool, error) {
	if status != domain.OfferAccepted && status != domain.OfferDeclined {
		return false, fmt.Errorf("marking offer responded: %q is not a response status", status)
	}

	var query string
	if status == domain.OfferAccepted {
		query = `
			UPDATE offers
			SET status = $1, accepted_at = $2, updated_at = $2
			WHERE id = $3 AND status = $4
		`
	} else {
		query = `
			UPDATE offers
			SET status = $1, declined_at = $2, updated_at = $2
			WHERE id = $3 AND status = $4
		`
	}
	tag, err := r.db.Exec(ctx, query, status, respondedAt, offerID, domain.OfferSent)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error marking offer responded", "error", err, "offer_id", offerID, "status", status)
		return false, fmt.Errorf("marking offer responded: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *PgOfferRepository) ExcludeActiveForBooking(ctx context.Context, bookingID uuid.UUID, now time.Time) (int, error) {
	query := `
		UPDATE offers
		SET excluded = TRUE, updated_at = $1
		WHERE booking_id = $2 AND status = $3 AND excluded = FALSE
	`
	tag, err := r.db.Exec(ctx, query, now, bookingID, domain.OfferSent)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error excluding active offers", "error", err, "booking_id", bookingID)
		return 0, fmt.Errorf("excluding active offers: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *PgOfferRepository) CountAttempts(ctx context.Context, bookingID uuid.UUID) (int, error) {
	query := `SELECT COUNT(*) FROM offers WHERE booking_id = $1 AND excluded = FALSE`
	var count int
	if err := r.db.QueryRow(ctx, query, bookingID).Scan(&count); err != nil {
		r.logger.ErrorContext(ctx, "Error counting offer attempts", "error", err, "booking_id", bookingID)
		return 0, fmt.Errorf("counting offer attempts: %w", err)
	}
	return count, nil
}

func (r *PgOfferRepository) SittersInCooldown(ctx context.Context, bookingID uuid.UUID, threshold time.Time) ([]uuid.UUID, error) {
	query := `
		SELECT DISTINCT sitter_id
		FROM offers
		WHERE booking_id = $1
		  AND status IN ($2, $3)
		  AND updated_at >= $4
	`
	rows, err := r.db.Query(ctx, query, bookingID, domain.OfferDeclined, domain.OfferExpired, threshold)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error listing sitters in cooldown", "error", err, "booking_id", bookingID)
		return nil, fmt.Errorf("listing sitters in cooldown: %w", err)
	}
	defer rows.Close()

	var sitterIDs []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning sitter ID: %w", err)
		}
		sitterIDs = append(sitterIDs, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating cooldown rows: %w", err)
	}
	return sitterIDs, nil
}

func (r *PgOfferRepository) ListForSitter(ctx context.Context, orgID, sitterID uuid.UUID, windowStart, windowEnd time.Time) ([]*domain.Offer, error) {
	query := `SELECT ` + offerColumns + `
		FROM offers
		WHERE org_id = $1 AND sitter_id = $2 AND excluded = FALSE
		  AND offered_at >= $3 AND offered_at <= $4
		ORDER BY offered_at ASC`
	rows, err := r.db.Query(ctx, query, orgID, sitterID, windowStart, windowEnd)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error listing offers for sitter", "error", err, "sitter_id", sitterID)
		return nil, fmt.Errorf("listing offers for sitter: %w", err)
	}
	defer rows.Close()

	var offers []*domain.Offer
	for rows.Next() {
		offer, err := r.scanOffer(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning offer row: %w", err)
		}
		offers = append(offers, offer)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating offer rows: %w", err)
	}
	return offers, nil
}
