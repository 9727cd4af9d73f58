package model

import "time"

// EventKind represents the kind of tracked infant-care activity.
type EventKind string

const (
	// EventKindFeeding is a logged feeding.
	EventKindFeeding EventKind = "feeding"
	// EventKindDiaper is a logged diaper change.
	EventKindDiaper EventKind = "diaper"
	// EventKindNap is a logged nap.
	EventKindNap EventKind = "nap"
)

// Valid returns true if the EventKind is valid.
func (k EventKind) Valid() bool {
	return k == EventKindFeeding || k == EventKindDiaper || k == EventKindNap
}

// TrackedEvent is the record of one care activity as reported by the event
// storage collaborator. Dispatch only ever sees events whose write is
// already durable.
type TrackedEvent struct {
	ID         string    `json:"id"`
	ChildID    string    `json:"child_id"`
	Kind       EventKind `json:"kind"`
	OccurredAt time.Time `json:"occurred_at"`
}
