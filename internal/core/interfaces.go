// Package core provides the business logic ports and the analytics cache
// service for the sproutlog job and notification subsystem.
package core

import (
	"context"
	"time"

	"github.com/sproutlog/sproutlog/internal/domain/model"
)

// This file contains repository and collaborator interface definitions
// (ports in hexagonal architecture). Services depend on these interfaces,
// not on concrete implementations.

// JobRepository defines the interface for export-job data operations.
type JobRepository interface {
	Create(ctx context.Context, req *model.CreateJobRequest) (*model.Job, error)
	GetByID(ctx context.Context, id string) (*model.Job, error)

	// Claim atomically flips the oldest queued job to running and returns
	// it. At most one caller observes the flip for a given job; returns
	// model.ErrNoJobsAvailable when nothing is queued.
	Claim(ctx context.Context) (*model.Job, error)

	// UpdateProgress records progress for a running job. Progress never
	// decreases and never exceeds 100. Returns false when the job is no
	// longer running (the worker must treat that as a lost claim).
	UpdateProgress(ctx context.Context, id string, progress int) (bool, error)

	// Complete moves a running job to succeeded with the stored result key
	// and forces progress to 100. Returns false when the job is no longer
	// running.
	Complete(ctx context.Context, id string, resultKey string) (bool, error)

	// Fail moves a running job to failed with the given error code.
	// Returns false when the job is no longer running.
	Fail(ctx context.Context, id string, errorCode string) (bool, error)

	// ExpireOlderThan moves queued and running jobs created before the
	// cutoff to expired and clears their result keys. Returns the expired
	// job rows (so the caller can reclaim stored payloads), up to batchSize.
	ExpireOlderThan(ctx context.Context, cutoff time.Time, batchSize int) ([]*model.Job, error)

	// FailTimedOut fails running jobs claimed before the deadline with the
	// timeout error code. Returns the number of jobs failed.
	FailTimedOut(ctx context.Context, claimedBefore time.Time, batchSize int) (int64, error)

	Stats(ctx context.Context) (*model.JobStats, error)
}

// NotificationRepository defines the interface for notification data operations.
type NotificationRepository interface {
	// CreateBatch persists the notifications in one statement and returns
	// the inserted rows. An empty batch is a no-op.
	CreateBatch(ctx context.Context, reqs []model.CreateNotificationRequest) ([]*model.Notification, error)
	List(ctx context.Context, opts model.NotificationListOptions) ([]*model.Notification, error)

	// MarkRead sets read_at for the recipient's notification if not already
	// set. Re-marking is a no-op success; a foreign recipient sees not-found.
	MarkRead(ctx context.Context, id, recipientID string) (bool, error)

	MarkAllRead(ctx context.Context, recipientID string) (int64, error)
	UnreadCount(ctx context.Context, recipientID string) (int, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time, batchSize int) (int64, error)
}

// ReminderTarget is one child with feeding reminders configured.
type ReminderTarget struct {
	ChildID  string
	Interval model.ReminderInterval
}

// PreferenceRepository defines the interface for notification preference data.
// Get returns nil (not an error) when no row exists; callers apply
// model.DefaultPreference.
type PreferenceRepository interface {
	Get(ctx context.Context, userID, childID string) (*model.NotificationPreference, error)
	GetForUsers(ctx context.Context, userIDs []string, childID string) (map[string]*model.NotificationPreference, error)
	Upsert(ctx context.Context, pref *model.NotificationPreference) (*model.NotificationPreference, error)

	// ListReminderTargets returns each child that has at least one
	// preference row with a reminder interval configured, with the smallest
	// such interval.
	ListReminderTargets(ctx context.Context) ([]ReminderTarget, error)
}

// ReminderMarkParams identifies one reminder watermark: the child, the
// feeding window it belongs to (the last feeding's timestamp), and the
// sequence number within the window (1 = initial, 2 = repeat).
type ReminderMarkParams struct {
	ChildID     string
	WindowStart time.Time
	Sequence    int
	SentAt      time.Time
}

// ReminderMarkRepository records sent reminders so that a second scheduler
// tick inside the same unmet interval cannot duplicate them.
type ReminderMarkRepository interface {
	// TryMark inserts the watermark. Returns false without error when the
	// mark already exists (a concurrent tick won the race).
	TryMark(ctx context.Context, params ReminderMarkParams) (bool, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time, batchSize int) (int64, error)
}

// CacheRepository defines the interface for the derived-analytics cache
// backend. Implementations may be unreachable at any time; services absorb
// those failures per the soft-fail policy in AnalyticsCacheService.
type CacheRepository interface {
	// Set stores a value with the given TTL. TTL must be positive.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Get retrieves a value by key. Returns nil if the key doesn't exist
	// or has expired.
	Get(ctx context.Context, key string) ([]byte, error)

	// DeleteByPrefix removes every key starting with prefix and returns the
	// number of keys removed.
	DeleteByPrefix(ctx context.Context, prefix string) (int64, error)

	// BumpGeneration advances and returns the write-generation counter for
	// a child. Called once per durable event write.
	BumpGeneration(ctx context.Context, childID string) (int64, error)

	// Generation returns the current write-generation counter for a child
	// (zero when no write has been recorded).
	Generation(ctx context.Context, childID string) (int64, error)

	// Health checks the health of the cache connection.
	Health(ctx context.Context) error
}

// CapabilityGate answers permission queries. It is an external collaborator;
// only the port is defined here.
type CapabilityGate interface {
	// CanRead reports whether the user may read the child's record.
	CanRead(ctx context.Context, userID, childID string) (bool, error)

	// Sharers returns every user with a sharing relationship on the child,
	// owner included.
	Sharers(ctx context.Context, childID string) ([]string, error)
}

// EventWriter persists tracked events. A write is durable before any
// dispatch happens on its behalf.
type EventWriter interface {
	Insert(ctx context.Context, event model.TrackedEvent, actorID string) (*model.TrackedEvent, error)
}

// EventReader is the read API over the event storage.
type EventReader interface {
	// LastFeedingAt returns the most recent feeding timestamp across all
	// caregivers for the child; ok is false when no feeding is on record.
	LastFeedingAt(ctx context.Context, childID string) (at time.Time, ok bool, err error)

	// EventsInRange returns the child's events of one kind inside [from, to).
	EventsInRange(ctx context.Context, childID string, kind model.EventKind, from, to time.Time) ([]model.TrackedEvent, error)
}

// ReportSection identifies one independently rendered section of an export.
type ReportSection string

// The report sections rendered by every export, in order.
const (
	SectionFeedings ReportSection = "feedings"
	SectionDiapers  ReportSection = "diapers"
	SectionNaps     ReportSection = "naps"
	SectionChart    ReportSection = "chart"
)

// ReportSections returns the sections of a full report in render order.
func ReportSections() []ReportSection {
	return []ReportSection{SectionFeedings, SectionDiapers, SectionNaps, SectionChart}
}

// RenderSectionRequest asks the rendering collaborator for one section.
type RenderSectionRequest struct {
	ChildID string
	Format  model.ExportFormat
	Section ReportSection
}

// PageRenderer renders report sections. It is the out-of-scope rendering
// layer; a section with no data must render an empty section, not fail.
type PageRenderer interface {
	RenderSection(ctx context.Context, req RenderSectionRequest) ([]byte, error)
}

// ResultStore holds finished export payloads keyed by an opaque reference.
type ResultStore interface {
	Put(ctx context.Context, key string, contentType string, payload []byte) error
	Get(ctx context.Context, key string) (contentType string, payload []byte, err error)
	Delete(ctx context.Context, key string) error
}

// PushDeliverer hands a persisted notification to the out-of-scope push
// transport. Delivery is best-effort; failures never undo persistence.
type PushDeliverer interface {
	Deliver(ctx context.Context, n *model.Notification) error
}
