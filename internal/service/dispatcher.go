package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sproutlog/sproutlog/internal/core"
	"github.com/sproutlog/sproutlog/internal/domain/model"
	"github.com/sproutlog/sproutlog/internal/domain/quiethours"
	"github.com/sproutlog/sproutlog/internal/observability/statsd"
)

// DispatcherService fans an activity write out to the child's other
// caregivers. One durable write produces at most one notification per
// co-caregiver; the actor never notifies themselves.
type DispatcherService struct {
	gate          core.CapabilityGate
	prefs         core.PreferenceRepository
	notifications core.NotificationRepository
	cache         *core.AnalyticsCacheService
	push          core.PushDeliverer
	logger        *slog.Logger
	metrics       statsd.Sink
}

// DispatcherServiceOptions groups dependencies for DispatcherService.
type DispatcherServiceOptions struct {
	Gate          core.CapabilityGate
	Prefs         core.PreferenceRepository
	Notifications core.NotificationRepository
	Cache         *core.AnalyticsCacheService
	Push          core.PushDeliverer // Optional: best-effort push transport
	Logger        *slog.Logger       // Optional: structured logger
	Metrics       statsd.Sink        // Optional: metrics sink (StatsD-compatible)
}

// NewDispatcherService constructs a new DispatcherService.
func NewDispatcherService(opts DispatcherServiceOptions) (*DispatcherService, error) {
	if opts.Gate == nil {
		return nil, errors.New("CapabilityGate is required")
	}
	if opts.Prefs == nil {
		return nil, errors.New("PreferenceRepository is required")
	}
	if opts.Notifications == nil {
		return nil, errors.New("NotificationRepository is required")
	}
	if opts.Cache == nil {
		return nil, errors.New("AnalyticsCacheService is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &DispatcherService{
		gate:          opts.Gate,
		prefs:         opts.Prefs,
		notifications: opts.Notifications,
		cache:         opts.Cache,
		push:          opts.Push,
		logger:        logger.With("component", "dispatcher_service"),
		metrics:       opts.Metrics,
	}, nil
}

// OnEventWritten reacts to one durable activity write: it invalidates the
// child's derived analytics, then persists an activity notification for
// every sharer except the actor whose preferences allow it and whose quiet
// hours do not suppress it at now.
//
// Per-recipient problems are logged and skipped; they never abort the fanout
// for the remaining recipients. The cache invalidation happens before any
// notification work so a reader racing the write can already observe the
// bumped generation.
func (s *DispatcherService) OnEventWritten(ctx context.Context, event model.TrackedEvent, actorID string, now time.Time) error {
	if !event.Kind.Valid() {
		return fmt.Errorf("dispatch: invalid event kind %q", event.Kind)
	}
	if event.ChildID == "" {
		return errors.New("dispatch: child id is required")
	}

	generation := s.cache.RecordEventWrite(ctx, event.ChildID, event.Kind)

	sharers, err := s.gate.Sharers(ctx, event.ChildID)
	if err != nil {
		return fmt.Errorf("dispatch: resolve sharers: %w", err)
	}

	recipients := make([]string, 0, len(sharers))
	for _, userID := range sharers {
		if userID != actorID {
			recipients = append(recipients, userID)
		}
	}
	if len(recipients) == 0 {
		return nil
	}

	prefsByUser, err := s.prefs.GetForUsers(ctx, recipients, event.ChildID)
	if err != nil {
		return fmt.Errorf("dispatch: load preferences: %w", err)
	}

	reqs := make([]model.CreateNotificationRequest, 0, len(recipients))
	var suppressed int
	for _, recipientID := range recipients {
		pref := prefsByUser[recipientID]
		if pref == nil {
			def := model.DefaultPreference(recipientID, event.ChildID)
			pref = &def
		}
		if !pref.AllowsKind(event.Kind) {
			continue
		}
		if quiethours.Suppress(pref.QuietHours, model.PriorityNormal, now) {
			suppressed++
			continue
		}

		reqs = append(reqs, model.CreateNotificationRequest{
			RecipientID: recipientID,
			ChildID:     event.ChildID,
			Kind:        model.NotificationKindActivity,
			Priority:    model.PriorityNormal,
			Payload: model.NotificationPayload{
				EventKind:  event.Kind,
				ActorID:    actorID,
				OccurredAt: event.OccurredAt,
				Message:    activityMessage(event.Kind),
			},
		})
	}

	created, err := s.notifications.CreateBatch(ctx, reqs)
	if err != nil {
		return fmt.Errorf("dispatch: persist notifications: %w", err)
	}

	s.deliverBestEffort(ctx, created)

	s.logger.InfoContext(ctx, "activity dispatched",
		"child_id", event.ChildID,
		"event_kind", event.Kind,
		"generation", generation,
		"recipients", len(recipients),
		"notified", len(created),
		"suppressed", suppressed)

	if s.metrics != nil {
		s.metrics.Count("dispatch.notifications", int64(len(created)),
			map[string]string{"event_kind": string(event.Kind)})
		if suppressed > 0 {
			s.metrics.Count("dispatch.suppressed", int64(suppressed),
				map[string]string{"event_kind": string(event.Kind)})
		}
	}

	return nil
}

// deliverBestEffort hands persisted notifications to the push transport.
// Delivery failure never undoes persistence and never fails the dispatch.
func (s *DispatcherService) deliverBestEffort(ctx context.Context, created []*model.Notification) {
	if s.push == nil {
		return
	}
	for _, n := range created {
		if err := s.push.Deliver(ctx, n); err != nil {
			s.logger.WarnContext(ctx, "push delivery failed",
				"notification_id", n.ID,
				"recipient_id", n.RecipientID,
				"error", err)
		}
	}
}

func activityMessage(kind model.EventKind) string {
	switch kind {
	case model.EventKindFeeding:
		return "A feeding was logged"
	case model.EventKindDiaper:
		return "A diaper change was logged"
	case model.EventKindNap:
		return "A nap was logged"
	default:
		return "An activity was logged"
	}
}
