package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/snoutdesk/dispatch/internal/messaging_service/app"
	"github.com/snoutdesk/dispatch/internal/messaging_service/domain"
	"github.com/snoutdesk/dispatch/internal/platform/database"
)

// PgBookingReader gives the messaging side read-only access to the facts of
// a booking it needs for window management.
type PgBookingReader struct {
	db     database.Querier
	logger *slog.Logger
}

func NewPgBookingReader(db database.Querier, logger *slog.Logger) app.BookingReader {
	return &PgBookingReader{db: db, logger: logger.With("component", "booking_reader_pg")}
}

func (r *PgBookingReader) GetBookingInfo(ctx context.Context, bookingID uuid.UUID) (*app.BookingInfo, error) {
	query := `
		SELECT b.org_id, b.client_id, b.service, b.start_at, b.end_at,
		       (SELECT t.id FROM threads t
		        WHERE t.booking_id = b.id AND t.status = 'active'
		        ORDER BY t.created_at DESC LIMIT 1)
		FROM bookings b
		WHERE b.id = $1
	`
	var info app.BookingInfo
	err := r.db.QueryRow(ctx, query, bookingID).Scan(
		&info.OrgID, &info.ClientID, &info.Service, &info.StartAt, &info.EndAt, &info.ThreadID,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		r.logger.ErrorContext(ctx, "Error reading booking info", "error", err, "booking_id", bookingID)
		return nil, fmt.Errorf("reading booking info: %w", err)
	}
	return &info, nil
}
