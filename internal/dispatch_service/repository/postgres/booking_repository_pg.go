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

const bookingColumns = `
	id, org_id, client_id, sitter_id, service, start_at, end_at,
	status, dispatch_status, manual_dispatch_reason, manual_dispatch_at,
	created_at, updated_at
`

type PgBookingRepository struct {
	db     database.Querier
	logger *slog.Logger
}

func NewPgBookingRepository(db database.Querier, logger *slog.Logger) domain.BookingRepository {
	return &PgBookingRepository{db: db, logger: logger.With("component", "booking_repository_pg")}
}

func (r *PgBookingRepository) scanBooking(row pgx.Row) (*domain.Booking, error) {
	var b domain.Booking
	err := row.Scan(
		&b.ID, &b.OrgID, &b.ClientID, &b.SitterID, &b.Service, &b.StartAt, &b.EndAt,
		&b.Status, &b.DispatchStatus, &b.ManualDispatchReason, &b.ManualDispatchAt,
		&b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *PgBookingRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`
	booking, err := r.scanBooking(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		r.logger.ErrorContext(ctx, "Error getting booking by ID", "error", err, "booking_id", id)
		return nil, fmt.Errorf("getting booking by ID: %w", err)
	}
	return booking, nil
}

// AssignSitter confirms the booking for the sitter. The WHERE clause is the
// concurrency guard: a booking already held by another sitter is left alone
// and the method reports changed=false.
func (r *PgBookingRepository) AssignSitter(ctx context.Context, bookingID, sitterID uuid.UUID, now time.Time) (bool, error) {
	query := `
		UPDATE bookings
		SET sitter_id = $1, status = $2, dispatch_status = $3, updated_at = $4
		WHERE id = $5
		  AND status IN ($6, $2)
		  AND (sitter_id IS NULL OR sitter_id = $1)
	`
	tag, err := r.db.Exec(ctx, query,
		sitterID, domain.BookingConfirmed, domain.DispatchAssigned, now,
		bookingID, domain.BookingPending,
	)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error assigning sitter to booking", "error", err, "booking_id", bookingID)
		return false, fmt.Errorf("assigning sitter to booking: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ReturnToPool clears the sitter after an offer lapses. Guarded so a booking
// that was since assigned elsewhere or flagged for manual dispatch is not
// reopened.
func (r *PgBookingRepository) ReturnToPool(ctx context.Context, bookingID, expiredSitterID uuid.UUID, now time.Time) (bool, error) {
	query := `
		UPDATE bookings
		SET sitter_id = NULL, dispatch_status = $1, updated_at = $2
		WHERE id = $3
		  AND (sitter_id IS NULL OR sitter_id = $4)
		  AND dispatch_status NOT IN ($5, $6, $7)
	`
	tag, err := r.db.Exec(ctx, query,
		domain.DispatchOpen, now, bookingID, expiredSitterID,
		domain.DispatchManualRequired, domain.DispatchManualInProgress, domain.DispatchAssigned,
	)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error returning booking to pool", "error", err, "booking_id", bookingID)
		return false, fmt.Errorf("returning booking to pool: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// MarkManualRequired flags the booking for an operator. RowsAffected drives
// the exactly-once escalation event: only the caller that flipped the flag
// sees changed=true.
func (r *PgBookingRepository) MarkManualRequired(ctx context.Context, bookingID uuid.UUID, reason string, now time.Time) (bool, error) {
	query := `
		UPDATE bookings
		SET dispatch_status = $1, manual_dispatch_reason = $2, manual_dispatch_at = $3, updated_at = $3
		WHERE id = $4
		  AND dispatch_status NOT IN ($1, $5)
	`
	tag, err := r.db.Exec(ctx, query,
		domain.DispatchManualRequired, reason, now, bookingID, domain.DispatchManualInProgress,
	)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error flagging booking for manual dispatch", "error", err, "booking_id", bookingID)
		return false, fmt.Errorf("flagging booking for manual dispatch: %w", err)
	}
	if tag.RowsAffected() > 0 {
		r.logger.InfoContext(ctx, "Booking flagged for manual dispatch", "booking_id", bookingID, "reason", reason)
		return true, nil
	}
	return false, nil
}

func (r *PgBookingRepository) ApplyDispatchTransition(ctx context.Context, bookingID uuid.UUID, from, to domain.DispatchStatus, sitterID uuid.NullUUID, now time.Time) (bool, error) {
	var query string
	var args []any
	if sitterID.Valid {
		query = `
			UPDATE bookings
			SET dispatch_status = $1, sitter_id = $2, status = $3,
			    manual_dispatch_reason = NULL, manual_dispatch_at = NULL, updated_at = $4
			WHERE id = $5 AND dispatch_status = $6
		`
		args = []any{to, sitterID.UUID, domain.BookingConfirmed, now, bookingID, from}
	} else {
		query = `
			UPDATE bookings
			SET dispatch_status = $1, sitter_id = NULL,
			    manual_dispatch_reason = NULL, manual_dispatch_at = NULL, updated_at = $2
			WHERE id = $3 AND dispatch_status = $4
		`
		args = []any{to, now, bookingID, from}
	}

	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error applying dispatch transition", "error", err,
			"booking_id", bookingID, "from", from, "to", to)
		return false, fmt.Errorf("applying dispatch transition: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *PgBookingRepository) CountOverlapping(ctx context.Context, sitterID uuid.UUID, window domain.BookingWindow, excludeBookingID uuid.UUID) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM bookings
		WHERE sitter_id = $1
		  AND id != $2
		  AND status IN ($3, $4)
		  AND start_at < $5
		  AND end_at > $6
	`
	var count int
	err := r.db.QueryRow(ctx, query,
		sitterID, excludeBookingID, domain.BookingPending, domain.BookingConfirmed,
		window.EndAt, window.StartAt,
	).Scan(&count)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error counting overlapping bookings", "error", err, "sitter_id", sitterID)
		return 0, fmt.Errorf("counting overlapping bookings: %w", err)
	}
	return count, nil
}

func (r *PgBookingRepository) ListAttention(ctx context.Context, orgID uuid.UUID) ([]*domain.Booking, error) {
	query := `SELECT ` + bookingColumns + `
		FROM bookings
		WHERE org_id = $1 AND dispatch_status IN ($2, $3)
		ORDER BY manual_dispatch_at ASC NULLS LAST, start_at ASC`
	rows, err := r.db.Query(ctx, query, orgID, domain.DispatchManualRequired, domain.DispatchManualInProgress)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error listing attention queue", "error", err, "org_id", orgID)
		return nil, fmt.Errorf("listing attention queue: %w", err)
	}
	defer rows.Close()

	var bookings []*domain.Booking
	for rows.Next() {
		booking, err := r.scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning booking row: %w", err)
		}
		bookings = append(bookings, booking)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating booking rows: %w", err)
	}
	return bookings, nil
}
