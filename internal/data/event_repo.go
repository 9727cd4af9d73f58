package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sproutlog/sproutlog/internal/domain/model"
)

// EventRepo provides database operations for tracked care events. It backs
// both the event ingestion path and the read port used by the reminder
// scheduler and the export renderer.
type EventRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
}

// NewEventRepo creates a new EventRepo.
func NewEventRepo(db *sql.DB, cfg RepoConfig) *EventRepo {
	return &EventRepo{
		DB:           db,
		timeProvider: cfg.timeProvider(),
	}
}

// Insert persists one tracked event and returns it with its generated id.
// The actor is recorded alongside the event for dispatch attribution.
func (r *EventRepo) Insert(ctx context.Context, event model.TrackedEvent, actorID string) (*model.TrackedEvent, error) {
	stored := event
	stored.ID = uuid.NewString()
	if stored.OccurredAt.IsZero() {
		stored.OccurredAt = r.timeProvider.Now()
	}
	stored.OccurredAt = stored.OccurredAt.UTC()

	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO tracked_events (id, child_id, actor_id, kind, occurred_at)
		VALUES ($1, $2, $3, $4, $5)
	`, stored.ID, stored.ChildID, actorID, stored.Kind, stored.OccurredAt)
	if err != nil {
		return nil, fmt.Errorf("insert event: %w", err)
	}
	return &stored, nil
}

// LastFeedingAt returns the most recent feeding timestamp across all
// caregivers for the child; ok is false when no feeding is on record.
func (r *EventRepo) LastFeedingAt(ctx context.Context, childID string) (time.Time, bool, error) {
	var at time.Time
	err := r.DB.QueryRowContext(ctx, `
		SELECT occurred_at FROM tracked_events
		WHERE child_id = $1 AND kind = $2
		ORDER BY occurred_at DESC
		LIMIT 1
	`, childID, model.EventKindFeeding).Scan(&at)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("last feeding: %w", err)
	}
	return at.UTC(), true, nil
}

// EventsInRange returns the child's events of one kind inside [from, to),
// oldest first.
func (r *EventRepo) EventsInRange(ctx context.Context, childID string, kind model.EventKind, from, to time.Time) ([]model.TrackedEvent, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT id, child_id, kind, occurred_at
		FROM tracked_events
		WHERE child_id = $1 AND kind = $2 AND occurred_at >= $3 AND occurred_at < $4
		ORDER BY occurred_at ASC
	`, childID, kind, from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("events in range: %w", err)
	}
	defer rows.Close()

	var events []model.TrackedEvent
	for rows.Next() {
		var e model.TrackedEvent
		if err := rows.Scan(&e.ID, &e.ChildID, &e.Kind, &e.OccurredAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.OccurredAt = e.OccurredAt.UTC()
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}
