package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ReminderInterval is the configured gap between feedings before a reminder
// fires. The set is fixed; zero means reminders are disabled for the child.
type ReminderInterval time.Duration

// The enumerated reminder intervals. ReminderDisabled turns reminders off.
const (
	ReminderDisabled ReminderInterval = 0
	Reminder2h       ReminderInterval = ReminderInterval(2 * time.Hour)
	Reminder3h       ReminderInterval = ReminderInterval(3 * time.Hour)
	Reminder4h       ReminderInterval = ReminderInterval(4 * time.Hour)
	Reminder6h       ReminderInterval = ReminderInterval(6 * time.Hour)
	Reminder8h       ReminderInterval = ReminderInterval(8 * time.Hour)
)

// Valid returns true if the interval is one of the enumerated values.
func (i ReminderInterval) Valid() bool {
	switch i {
	case ReminderDisabled, Reminder2h, Reminder3h, Reminder4h, Reminder6h, Reminder8h:
		return true
	default:
		return false
	}
}

// Enabled returns true when reminders are configured.
func (i ReminderInterval) Enabled() bool { return i != ReminderDisabled }

// Duration returns the interval as a time.Duration.
func (i ReminderInterval) Duration() time.Duration { return time.Duration(i) }

// ParseReminderInterval parses a duration string ("4h", "0") into an
// enumerated interval.
func ParseReminderInterval(s string) (ReminderInterval, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "0" {
		return ReminderDisabled, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return ReminderDisabled, fmt.Errorf("parse reminder interval: %w", err)
	}
	iv := ReminderInterval(d)
	if !iv.Valid() {
		return ReminderDisabled, fmt.Errorf("reminder interval %s is not one of the supported values", d)
	}
	return iv, nil
}

const minutesPerDay = 24 * 60

// QuietWindow is a [Start, End) window in minutes-of-day, interpreted in the
// user's declared UTC offset. Start > End means the window wraps midnight.
// Start == End is an empty window, never "suppress all day".
type QuietWindow struct {
	Enabled bool `json:"enabled"`
	// Start and End are minutes since local midnight, 0..1439.
	Start int `json:"start"`
	End   int `json:"end"`
	// OffsetMinutes is the user's declared timezone offset from UTC.
	OffsetMinutes int `json:"offset_minutes"`
}

// Validate validates the QuietWindow bounds.
func (w QuietWindow) Validate() error {
	if !w.Enabled {
		return nil
	}
	if w.Start < 0 || w.Start >= minutesPerDay {
		return errors.New("quiet hours start must be within 0..1439 minutes")
	}
	if w.End < 0 || w.End >= minutesPerDay {
		return errors.New("quiet hours end must be within 0..1439 minutes")
	}
	if w.OffsetMinutes < -14*60 || w.OffsetMinutes > 14*60 {
		return errors.New("timezone offset out of range")
	}
	return nil
}

// LocalMinuteOfDay converts an instant to the user's minute-of-day under the
// window's declared offset.
func (w QuietWindow) LocalMinuteOfDay(instant time.Time) int {
	local := instant.UTC().Add(time.Duration(w.OffsetMinutes) * time.Minute)
	return local.Hour()*60 + local.Minute()
}

// NotificationPreference is the per (user, child) toggle set. Absence of a
// row implies the zero-value defaults produced by DefaultPreference.
type NotificationPreference struct {
	UserID           string           `json:"user_id"           db:"user_id"`
	ChildID          string           `json:"child_id"          db:"child_id"`
	NotifyFeedings   bool             `json:"notify_feedings"   db:"notify_feedings"`
	NotifyDiapers    bool             `json:"notify_diapers"    db:"notify_diapers"`
	NotifyNaps       bool             `json:"notify_naps"       db:"notify_naps"`
	ReminderInterval ReminderInterval `json:"reminder_interval" db:"reminder_interval"`
	QuietHours       QuietWindow      `json:"quiet_hours"       db:"quiet_hours"`
	UpdatedAt        time.Time        `json:"updated_at"        db:"updated_at"`
}

// DefaultPreference returns the implied preference when no row exists:
// all activity kinds enabled, no reminders, no quiet hours.
func DefaultPreference(userID, childID string) NotificationPreference {
	return NotificationPreference{
		UserID:         userID,
		ChildID:        childID,
		NotifyFeedings: true,
		NotifyDiapers:  true,
		NotifyNaps:     true,
	}
}

// Validate validates preference fields.
func (p *NotificationPreference) Validate() error {
	if p.UserID == "" {
		return errors.New("user id is required")
	}
	if p.ChildID == "" {
		return errors.New("child id is required")
	}
	if !p.ReminderInterval.Valid() {
		return errors.New("invalid reminder interval")
	}
	return p.QuietHours.Validate()
}

// AllowsKind reports whether the preference enables activity alerts for the
// given event kind.
func (p *NotificationPreference) AllowsKind(kind EventKind) bool {
	switch kind {
	case EventKindFeeding:
		return p.NotifyFeedings
	case EventKindDiaper:
		return p.NotifyDiapers
	case EventKindNap:
		return p.NotifyNaps
	default:
		return false
	}
}
