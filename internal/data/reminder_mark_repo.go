package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/sproutlog/sproutlog/internal/core"
)

// ReminderMarkRepo records sent feeding reminders so concurrent or repeated
// scheduler ticks cannot duplicate them within one feeding window.
type ReminderMarkRepo struct {
	DB *sql.DB
}

// NewReminderMarkRepo creates a new ReminderMarkRepo.
func NewReminderMarkRepo(db *sql.DB) *ReminderMarkRepo {
	return &ReminderMarkRepo{DB: db}
}

// TryMark inserts the watermark row. The primary key on
// (child_id, window_start, sequence) resolves the race between concurrent
// ticks: the loser gets a unique violation, reported as (false, nil).
func (r *ReminderMarkRepo) TryMark(ctx context.Context, params core.ReminderMarkParams) (bool, error) {
	if params.ChildID == "" {
		return false, errors.New("child id is required")
	}
	if params.Sequence <= 0 {
		return false, errors.New("sequence must be positive")
	}

	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO reminder_marks (child_id, window_start, sequence, sent_at)
		VALUES ($1, $2, $3, $4)
	`, params.ChildID, params.WindowStart.UTC(), params.Sequence, params.SentAt.UTC())
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return false, nil
		}
		return false, fmt.Errorf("insert reminder mark: %w", err)
	}
	return true, nil
}

// DeleteOlderThan removes watermark rows sent before the cutoff, at most
// batchSize per call, and returns the number deleted.
func (r *ReminderMarkRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time, batchSize int) (int64, error) {
	if batchSize <= 0 {
		batchSize = 500
	}

	res, err := r.DB.ExecContext(ctx, `
		DELETE FROM reminder_marks
		WHERE (child_id, window_start, sequence) IN (
			SELECT child_id, window_start, sequence FROM reminder_marks
			WHERE sent_at < $1
			ORDER BY sent_at ASC
			LIMIT $2
		)
	`, cutoff.UTC(), batchSize)
	if err != nil {
		return 0, fmt.Errorf("delete old reminder marks: %w", err)
	}
	return res.RowsAffected()
}
