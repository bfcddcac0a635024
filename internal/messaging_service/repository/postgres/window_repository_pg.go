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

const windowColumns = `
	id, org_id, thread_id, booking_id, sitter_id, client_id, opens_at, closes_at,
	status, created_at, updated_at
`

type PgWindowRepository struct {
	db     database.Querier
	logger *slog.Logger
}

func NewPgWindowRepository(db database.Querier, logger *slog.Logger) domain.WindowRepository {
	return &PgWindowRepository{db: db, logger: logger.With("component", "window_repository_pg")}
}

func (r *PgWindowRepository) Create(ctx context.Context, window *domain.AssignmentWindow) error {
	query := `
		INSERT INTO assignment_windows (
			id, org_id, thread_id, booking_id, sitter_id, client_id, opens_at, closes_at,
			status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := r.db.Exec(ctx, query,
		window.ID, window.OrgID, window.ThreadID, window.BookingID, window.SitterID, window.ClientID,
		window.OpensAt, window.ClosesAt, window.Status, window.CreatedAt, window.UpdatedAt,
	)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error creating assignment window", "error", err, "window_id", window.ID)
		return fmt.Errorf("creating assignment window: %w", err)
	}
	return nil
}

func (r *PgWindowRepository) scanWindow(row pgx.Row) (*domain.AssignmentWindow, error) {
	var w domain.AssignmentWindow
	err := row.Scan(
		&w.ID, &w.OrgID, &w.ThreadID, &w.BookingID, &w.SitterID, &w.ClientID,
		&w.OpensAt, &w.ClosesAt, &w.Status, &w.CreatedAt, &w.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *PgWindowRepository) FindActive(ctx context.Context, threadID, sitterID uuid.UUID) (*domain.AssignmentWindow, error) {
	query := `SELECT ` + windowColumns + `
		FROM assignment_windows
		WHERE thread_id = $1 AND sitter_id = $2 AND status = $3
		LIMIT 1`
	window, err := r.scanWindow(r.db.QueryRow(ctx, query, threadID, sitterID, domain.WindowActive))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.ErrorContext(ctx, "Error finding active window", "error", err, "thread_id", threadID)
		return nil, fmt.Errorf("finding active window: %w", err)
	}
	return window, nil
}

func (r *PgWindowRepository) FindOpenForSitter(ctx context.Context, threadID, sitterID uuid.UUID, at time.Time) ([]*domain.AssignmentWindow, error) {
	query := `SELECT ` + windowColumns + `
		FROM assignment_windows
		WHERE thread_id = $1 AND sitter_id = $2 AND status = $3
		  AND opens_at <= $4 AND closes_at >= $4
		ORDER BY opens_at ASC`
	rows, err := r.db.Query(ctx, query, threadID, sitterID, domain.WindowActive, at)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error finding open windows", "error", err, "thread_id", threadID, "sitter_id", sitterID)
		return nil, fmt.Errorf("finding open windows: %w", err)
	}
	defer rows.Close()

	var windows []*domain.AssignmentWindow
	for rows.Next() {
		window, err := r.scanWindow(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning window row: %w", err)
		}
		windows = append(windows, window)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating window rows: %w", err)
	}
	return windows, nil
}

func (r *PgWindowRepository) CloseAllForThread(ctx context.Context, threadID uuid.UUID, now time.Time) (int, error) {
	query := `
		UPDATE assignment_windows
		SET status = $1, updated_at = $2
		WHERE thread_id = $3 AND status = $4
	`
	tag, err := r.db.Exec(ctx, query, domain.WindowClosed, now, threadID, domain.WindowActive)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error closing windows for thread", "error", err, "thread_id", threadID)
		return 0, fmt.Errorf("closing windows for thread: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *PgWindowRepository) CloseAllForBooking(ctx context.Context, bookingID uuid.UUID, now time.Time) (int, error) {
	query := `
		UPDATE assignment_windows
		SET status = $1, updated_at = $2
		WHERE booking_id = $3 AND status = $4
	`
	tag, err := r.db.Exec(ctx, query, domain.WindowClosed, now, bookingID, domain.WindowActive)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error closing windows for booking", "error", err, "booking_id", bookingID)
		return 0, fmt.Errorf("closing windows for booking: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
