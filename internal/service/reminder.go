package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sproutlog/sproutlog/internal/core"
	"github.com/sproutlog/sproutlog/internal/domain/model"
	"github.com/sproutlog/sproutlog/internal/observability/statsd"
)

// repeatFactor is the multiple of the configured interval at which a second,
// final reminder fires when the first one went unanswered.
const repeatFactor = 1.5

// ReminderService evaluates feeding reminder schedules. It is driven by an
// adapter tick; each Tick receives the evaluation instant explicitly so the
// schedule math is deterministic under test.
type ReminderService struct {
	prefs         core.PreferenceRepository
	marks         core.ReminderMarkRepository
	events        core.EventReader
	gate          core.CapabilityGate
	notifications core.NotificationRepository
	push          core.PushDeliverer
	logger        *slog.Logger
	metrics       statsd.Sink
}

// ReminderServiceOptions groups dependencies for ReminderService.
type ReminderServiceOptions struct {
	Prefs         core.PreferenceRepository
	Marks         core.ReminderMarkRepository
	Events        core.EventReader
	Gate          core.CapabilityGate
	Notifications core.NotificationRepository
	Push          core.PushDeliverer // Optional: best-effort push transport
	Logger        *slog.Logger       // Optional: structured logger
	Metrics       statsd.Sink        // Optional: metrics sink (StatsD-compatible)
}

// NewReminderService constructs a new ReminderService.
func NewReminderService(opts ReminderServiceOptions) (*ReminderService, error) {
	if opts.Prefs == nil {
		return nil, errors.New("PreferenceRepository is required")
	}
	if opts.Marks == nil {
		return nil, errors.New("ReminderMarkRepository is required")
	}
	if opts.Events == nil {
		return nil, errors.New("EventReader is required")
	}
	if opts.Gate == nil {
		return nil, errors.New("CapabilityGate is required")
	}
	if opts.Notifications == nil {
		return nil, errors.New("NotificationRepository is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &ReminderService{
		prefs:         opts.Prefs,
		marks:         opts.Marks,
		events:        opts.Events,
		gate:          opts.Gate,
		notifications: opts.Notifications,
		push:          opts.Push,
		logger:        logger.With("component", "reminder_service"),
		metrics:       opts.Metrics,
	}, nil
}

// Tick evaluates every reminder-enabled child at now. A child whose last
// feeding is older than its interval gets one initial reminder per feeding
// window; a window still unmet at 1.5x the interval gets one repeat.
//
// Reminders deliberately ignore quiet hours: an overdue feeding is exactly
// the alert quiet hours must not swallow. A per-child failure is logged and
// skipped so one bad child cannot starve the rest of the schedule.
func (s *ReminderService) Tick(ctx context.Context, now time.Time) error {
	targets, err := s.prefs.ListReminderTargets(ctx)
	if err != nil {
		return fmt.Errorf("reminder tick: list targets: %w", err)
	}

	var sent int
	for _, target := range targets {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		n, err := s.evaluateChild(ctx, target, now)
		if err != nil {
			s.logger.WarnContext(ctx, "reminder evaluation failed, skipping child",
				"child_id", target.ChildID, "error", err)
			continue
		}
		sent += n
	}

	if s.metrics != nil {
		s.metrics.Count("reminder.tick", 1, nil)
		if sent > 0 {
			s.metrics.Count("reminder.sent", int64(sent), nil)
		}
	}
	return nil
}

func (s *ReminderService) evaluateChild(ctx context.Context, target core.ReminderTarget, now time.Time) (int, error) {
	if !target.Interval.Enabled() {
		return 0, nil
	}

	lastFed, ok, err := s.events.LastFeedingAt(ctx, target.ChildID)
	if err != nil {
		return 0, fmt.Errorf("last feeding lookup: %w", err)
	}
	if !ok {
		// Never-fed children have no window to be overdue against.
		return 0, nil
	}

	elapsed := now.Sub(lastFed)
	interval := target.Interval.Duration()
	if elapsed < interval {
		return 0, nil
	}

	// Each due sequence carries its own watermark, so a scheduler that was
	// down past the repeat threshold still delivers the initial reminder
	// alongside the repeat.
	dueSequences := []int{1}
	if elapsed >= time.Duration(float64(interval)*repeatFactor) {
		dueSequences = append(dueSequences, 2)
	}

	var sent int
	for _, sequence := range dueSequences {
		claimed, err := s.marks.TryMark(ctx, core.ReminderMarkParams{
			ChildID:     target.ChildID,
			WindowStart: lastFed.UTC(),
			Sequence:    sequence,
			SentAt:      now.UTC(),
		})
		if err != nil {
			return sent, fmt.Errorf("claim reminder mark: %w", err)
		}
		if !claimed {
			// Already sent for this window, or a concurrent tick won the race.
			continue
		}

		n, err := s.sendReminder(ctx, target, lastFed, elapsed, sequence, now)
		if err != nil {
			return sent, err
		}
		sent += n
	}
	return sent, nil
}

func (s *ReminderService) sendReminder(ctx context.Context, target core.ReminderTarget, lastFed time.Time, elapsed time.Duration, sequence int, now time.Time) (int, error) {
	sharers, err := s.gate.Sharers(ctx, target.ChildID)
	if err != nil {
		return 0, fmt.Errorf("resolve sharers: %w", err)
	}

	prefsByUser, err := s.prefs.GetForUsers(ctx, sharers, target.ChildID)
	if err != nil {
		return 0, fmt.Errorf("load preferences: %w", err)
	}

	reqs := make([]model.CreateNotificationRequest, 0, len(sharers))
	for _, userID := range sharers {
		pref := prefsByUser[userID]
		if pref == nil {
			def := model.DefaultPreference(userID, target.ChildID)
			pref = &def
		}
		// Caregivers who muted feeding activity do not want feeding
		// reminders either.
		if !pref.NotifyFeedings {
			continue
		}

		reqs = append(reqs, model.CreateNotificationRequest{
			RecipientID: userID,
			ChildID:     target.ChildID,
			Kind:        model.NotificationKindFeedingReminder,
			Priority:    model.PriorityNormal,
			Payload: model.NotificationPayload{
				EventKind:  model.EventKindFeeding,
				OccurredAt: lastFed,
				Message:    reminderMessage(elapsed, sequence),
			},
		})
	}

	created, err := s.notifications.CreateBatch(ctx, reqs)
	if err != nil {
		return 0, fmt.Errorf("persist reminders: %w", err)
	}

	if s.push != nil {
		for _, n := range created {
			if pushErr := s.push.Deliver(ctx, n); pushErr != nil {
				s.logger.WarnContext(ctx, "reminder push delivery failed",
					"notification_id", n.ID, "error", pushErr)
			}
		}
	}

	s.logger.InfoContext(ctx, "feeding reminder sent",
		"child_id", target.ChildID,
		"sequence", sequence,
		"elapsed", elapsed,
		"recipients", len(created),
		"evaluated_at", now)

	return len(created), nil
}

func reminderMessage(elapsed time.Duration, sequence int) string {
	hours := elapsed.Hours()
	if sequence >= 2 {
		return fmt.Sprintf("Still no feeding logged in %.1f hours", hours)
	}
	return fmt.Sprintf("No feeding logged in %.1f hours", hours)
}
