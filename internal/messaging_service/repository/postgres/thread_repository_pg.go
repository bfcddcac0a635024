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

type PgThreadRepository struct {
	db     database.Querier
	logger *slog.Logger
}

func NewPgThreadRepository(db database.Querier, logger *slog.Logger) domain.ThreadRepository {
	return &PgThreadRepository{db: db, logger: logger.With("component", "thread_repository_pg")}
}

func (r *PgThreadRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Thread, error) {
	query := `
		SELECT id, org_id, client_id, booking_id, sitter_id, number_id, window_id,
		       number_class, status, session_ref, meet_and_greet, one_time_client,
		       created_at, updated_at
		FROM threads
		WHERE id = $1
	`
	var t domain.Thread
	err := r.db.QueryRow(ctx, query, id).Scan(
		&t.ID, &t.OrgID, &t.ClientID, &t.BookingID, &t.SitterID, &t.NumberID, &t.WindowID,
		&t.NumberClass, &t.Status, &t.SessionRef, &t.MeetAndGreet, &t.OneTimeClient,
		&t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		r.logger.ErrorContext(ctx, "Error getting thread by ID", "error", err, "thread_id", id)
		return nil, fmt.Errorf("getting thread by ID: %w", err)
	}
	return &t, nil
}

// AttachNumber is guarded on the thread being active and unrouted, so two
// concurrent routing attempts cannot both attach.
func (r *PgThreadRepository) AttachNumber(ctx context.Context, threadID, numberID uuid.UUID, class domain.NumberClass, sessionRef string, now time.Time) (bool, error) {
	query := `
		UPDATE threads
		SET number_id = $1, number_class = $2, session_ref = NULLIF($3, ''), updated_at = $4
		WHERE id = $5 AND status = $6 AND number_id IS NULL
	`
	tag, err := r.db.Exec(ctx, query, numberID, class, sessionRef, now, threadID, domain.ThreadActive)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error attaching number to thread", "error", err, "thread_id", threadID)
		return false, fmt.Errorf("attaching number to thread: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ReassignNumber swaps the routed number on an already-routed thread, used
// when a sitter change moves the thread to another class.
func (r *PgThreadRepository) ReassignNumber(ctx context.Context, threadID, numberID uuid.UUID, class domain.NumberClass, sessionRef string, now time.Time) (bool, error) {
	query := `
		UPDATE threads
		SET number_id = $1, number_class = $2, session_ref = NULLIF($3, ''), updated_at = $4
		WHERE id = $5 AND status = $6 AND number_id IS NOT NULL
	`
	tag, err := r.db.Exec(ctx, query, numberID, class, sessionRef, now, threadID, domain.ThreadActive)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error reassigning thread number", "error", err, "thread_id", threadID)
		return false, fmt.Errorf("reassigning thread number: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// SetSitter is guarded on the thread still holding the expected previous
// sitter, so two concurrent reassignments cannot both win.
func (r *PgThreadRepository) SetSitter(ctx context.Context, threadID uuid.UUID, from, to, windowID uuid.NullUUID, now time.Time) (bool, error) {
	query := `
		UPDATE threads
		SET sitter_id = $1, window_id = $2, updated_at = $3
		WHERE id = $4 AND status = $5 AND sitter_id IS NOT DISTINCT FROM $6
	`
	tag, err := r.db.Exec(ctx, query, to, windowID, now, threadID, domain.ThreadActive, from)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error setting thread sitter", "error", err, "thread_id", threadID)
		return false, fmt.Errorf("setting thread sitter: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *PgThreadRepository) DetachNumber(ctx context.Context, threadID uuid.UUID, now time.Time) error {
	query := `
		UPDATE threads
		SET number_id = NULL, session_ref = NULL, updated_at = $1
		WHERE id = $2
	`
	tag, err := r.db.Exec(ctx, query, now, threadID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error detaching number from thread", "error", err, "thread_id", threadID)
		return fmt.Errorf("detaching number from thread: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
