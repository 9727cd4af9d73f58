package model

import (
	"errors"
	"time"
)

// NotificationKind is the closed set of alert categories the system produces.
type NotificationKind string

// NotificationPriority controls quiet-hours suppression eligibility.
type NotificationPriority string

const (
	// NotificationKindActivity is an alert that another caregiver logged an activity.
	NotificationKindActivity NotificationKind = "activity_logged"
	// NotificationKindFeedingReminder is a system-generated overdue-feeding alert.
	NotificationKindFeedingReminder NotificationKind = "feeding_reminder"

	// PriorityNormal notifications are dropped during the recipient's quiet hours.
	PriorityNormal NotificationPriority = "normal"
	// PriorityCritical notifications are never suppressed.
	PriorityCritical NotificationPriority = "critical"
)

// Valid returns true if the NotificationKind is valid.
func (k NotificationKind) Valid() bool {
	return k == NotificationKindActivity || k == NotificationKindFeedingReminder
}

// Valid returns true if the NotificationPriority is valid.
func (p NotificationPriority) Valid() bool {
	return p == PriorityNormal || p == PriorityCritical
}

// NotificationPayload is the structured summary carried by a notification.
// ActorID is empty for system-generated reminders.
type NotificationPayload struct {
	EventKind  EventKind `json:"event_kind"`
	ActorID    string    `json:"actor_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
	Message    string    `json:"message"`
}

// Notification is one alertable event for one recipient.
// ReadAt is nil until the recipient marks it read; once set it is never cleared.
type Notification struct {
	ID          string               `json:"id"                 db:"id"`
	RecipientID string               `json:"recipient_id"       db:"recipient_id"`
	ChildID     string               `json:"child_id"           db:"child_id"`
	Kind        NotificationKind     `json:"kind"               db:"kind"`
	Priority    NotificationPriority `json:"priority"           db:"priority"`
	Payload     NotificationPayload  `json:"payload"            db:"payload"`
	ReadAt      *time.Time           `json:"read_at,omitempty"  db:"read_at"`
	CreatedAt   time.Time            `json:"created_at"         db:"created_at"`
}

// CreateNotificationRequest represents one notification to persist.
type CreateNotificationRequest struct {
	RecipientID string
	ChildID     string
	Kind        NotificationKind
	Priority    NotificationPriority
	Payload     NotificationPayload
}

// Validate validates the CreateNotificationRequest fields.
func (r *CreateNotificationRequest) Validate() error {
	if r.RecipientID == "" {
		return errors.New("recipient id is required")
	}
	if r.ChildID == "" {
		return errors.New("child id is required")
	}
	if !r.Kind.Valid() {
		return errors.New("invalid notification kind")
	}
	if !r.Priority.Valid() {
		return errors.New("invalid notification priority")
	}
	return nil
}

// NotificationListOptions filters a recipient's notification listing.
// Results are always ordered most recent first.
type NotificationListOptions struct {
	RecipientID string
	UnreadOnly  bool
	Limit       int
}
