package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/sproutlog/sproutlog/internal/core"
	"github.com/sproutlog/sproutlog/internal/domain/model"
	"github.com/sproutlog/sproutlog/internal/mocks"
)

type reminderFixture struct {
	svc           *ReminderService
	prefs         *stubPreferenceRepo
	marks         *stubMarkRepo
	notifications *stubNotificationRepo
	events        *mocks.MockEventReader
	gate          *mocks.MockCapabilityGate
}

func newReminderFixture(t *testing.T) *reminderFixture {
	t.Helper()
	ctrl := gomock.NewController(t)

	f := &reminderFixture{
		prefs:         &stubPreferenceRepo{},
		marks:         &stubMarkRepo{},
		notifications: &stubNotificationRepo{},
		events:        mocks.NewMockEventReader(ctrl),
		gate:          mocks.NewMockCapabilityGate(ctrl),
	}

	svc, err := NewReminderService(ReminderServiceOptions{
		Prefs:         f.prefs,
		Marks:         f.marks,
		Events:        f.events,
		Gate:          f.gate,
		Notifications: f.notifications,
	})
	require.NoError(t, err)
	f.svc = svc
	return f
}

func singleTarget(interval model.ReminderInterval) func(ctx context.Context) ([]core.ReminderTarget, error) {
	return func(ctx context.Context) ([]core.ReminderTarget, error) {
		return []core.ReminderTarget{{ChildID: "child-1", Interval: interval}}, nil
	}
}

func TestReminderService_Tick(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 3, 0, 0, 0, time.UTC)

	t.Run("overdue feeding sends initial reminder", func(t *testing.T) {
		f := newReminderFixture(t)
		f.prefs.listTargetsFn = singleTarget(model.Reminder3h)
		lastFed := now.Add(-3*time.Hour - time.Minute)
		f.events.EXPECT().LastFeedingAt(gomock.Any(), "child-1").Return(lastFed, true, nil)
		f.gate.EXPECT().Sharers(gomock.Any(), "child-1").Return([]string{"owner", "coparent"}, nil)

		require.NoError(t, f.svc.Tick(ctx, now))

		require.Len(t, f.marks.marks, 1)
		assert.Equal(t, 1, f.marks.marks[0].Sequence)
		assert.Equal(t, lastFed.UTC(), f.marks.marks[0].WindowStart)

		require.Len(t, f.notifications.created, 2)
		for _, req := range f.notifications.created {
			assert.Equal(t, model.NotificationKindFeedingReminder, req.Kind)
		}
	})

	t.Run("interval not yet elapsed sends nothing", func(t *testing.T) {
		f := newReminderFixture(t)
		f.prefs.listTargetsFn = singleTarget(model.Reminder4h)
		f.events.EXPECT().LastFeedingAt(gomock.Any(), "child-1").Return(now.Add(-time.Hour), true, nil)

		require.NoError(t, f.svc.Tick(ctx, now))
		assert.Empty(t, f.notifications.created)
	})

	t.Run("never-fed child is skipped", func(t *testing.T) {
		f := newReminderFixture(t)
		f.prefs.listTargetsFn = singleTarget(model.Reminder2h)
		f.events.EXPECT().LastFeedingAt(gomock.Any(), "child-1").Return(time.Time{}, false, nil)

		require.NoError(t, f.svc.Tick(ctx, now))
		assert.Empty(t, f.notifications.created)
	})

	t.Run("duplicate window is idempotent", func(t *testing.T) {
		f := newReminderFixture(t)
		f.prefs.listTargetsFn = singleTarget(model.Reminder3h)
		f.events.EXPECT().LastFeedingAt(gomock.Any(), "child-1").Return(now.Add(-3*time.Hour-time.Minute), true, nil)
		f.marks.tryMarkFn = func(ctx context.Context, params core.ReminderMarkParams) (bool, error) {
			return false, nil
		}

		require.NoError(t, f.svc.Tick(ctx, now))
		assert.Empty(t, f.notifications.created, "a second tick in the same window must not resend")
	})

	t.Run("unanswered reminder repeats at 1.5x interval", func(t *testing.T) {
		f := newReminderFixture(t)
		f.prefs.listTargetsFn = singleTarget(model.Reminder2h)
		lastFed := now.Add(-2*time.Hour - time.Minute)
		f.events.EXPECT().LastFeedingAt(gomock.Any(), "child-1").Return(lastFed, true, nil).Times(2)
		f.gate.EXPECT().Sharers(gomock.Any(), "child-1").Return([]string{"owner"}, nil).Times(2)

		seen := map[int]bool{}
		f.marks.tryMarkFn = func(ctx context.Context, params core.ReminderMarkParams) (bool, error) {
			if seen[params.Sequence] {
				return false, nil
			}
			seen[params.Sequence] = true
			return true, nil
		}

		require.NoError(t, f.svc.Tick(ctx, now))
		require.Len(t, f.notifications.created, 1)

		// An hour later the feeding is still unanswered; only the repeat fires.
		require.NoError(t, f.svc.Tick(ctx, now.Add(time.Hour)))
		require.Len(t, f.notifications.created, 2)
		assert.Contains(t, f.notifications.created[1].Payload.Message, "Still no feeding")
	})

	t.Run("late first evaluation sends initial and repeat", func(t *testing.T) {
		f := newReminderFixture(t)
		f.prefs.listTargetsFn = singleTarget(model.Reminder2h)
		f.events.EXPECT().LastFeedingAt(gomock.Any(), "child-1").Return(now.Add(-3*time.Hour-time.Minute), true, nil)
		f.gate.EXPECT().Sharers(gomock.Any(), "child-1").Return([]string{"owner"}, nil).Times(2)

		require.NoError(t, f.svc.Tick(ctx, now))

		require.Len(t, f.marks.marks, 2)
		assert.Equal(t, 1, f.marks.marks[0].Sequence)
		assert.Equal(t, 2, f.marks.marks[1].Sequence)
		require.Len(t, f.notifications.created, 2)
	})

	t.Run("reminders bypass quiet hours", func(t *testing.T) {
		f := newReminderFixture(t)
		f.prefs.listTargetsFn = singleTarget(model.Reminder3h)
		f.prefs.getForUsersFn = func(ctx context.Context, userIDs []string, childID string) (map[string]*model.NotificationPreference, error) {
			// 22:00-06:00 quiet window covers the 03:00 evaluation instant.
			pref := model.DefaultPreference("owner", childID)
			pref.ReminderInterval = model.Reminder3h
			pref.QuietHours = model.QuietWindow{Enabled: true, Start: 22 * 60, End: 6 * 60}
			return map[string]*model.NotificationPreference{"owner": &pref}, nil
		}
		f.events.EXPECT().LastFeedingAt(gomock.Any(), "child-1").Return(now.Add(-3*time.Hour-time.Minute), true, nil)
		f.gate.EXPECT().Sharers(gomock.Any(), "child-1").Return([]string{"owner"}, nil)

		require.NoError(t, f.svc.Tick(ctx, now))
		require.Len(t, f.notifications.created, 1, "an overdue feeding must wake the caregiver")
	})

	t.Run("muted feeding alerts suppress reminders too", func(t *testing.T) {
		f := newReminderFixture(t)
		f.prefs.listTargetsFn = singleTarget(model.Reminder3h)
		f.prefs.getForUsersFn = func(ctx context.Context, userIDs []string, childID string) (map[string]*model.NotificationPreference, error) {
			muted := model.DefaultPreference("coparent", childID)
			muted.NotifyFeedings = false
			return map[string]*model.NotificationPreference{"coparent": &muted}, nil
		}
		f.events.EXPECT().LastFeedingAt(gomock.Any(), "child-1").Return(now.Add(-4*time.Hour), true, nil)
		f.gate.EXPECT().Sharers(gomock.Any(), "child-1").Return([]string{"owner", "coparent"}, nil)

		require.NoError(t, f.svc.Tick(ctx, now))

		require.Len(t, f.notifications.created, 1)
		assert.Equal(t, "owner", f.notifications.created[0].RecipientID)
	})

	t.Run("one failing child does not starve the rest", func(t *testing.T) {
		f := newReminderFixture(t)
		f.prefs.listTargetsFn = func(ctx context.Context) ([]core.ReminderTarget, error) {
			return []core.ReminderTarget{
				{ChildID: "child-bad", Interval: model.Reminder2h},
				{ChildID: "child-good", Interval: model.Reminder2h},
			}, nil
		}
		f.events.EXPECT().LastFeedingAt(gomock.Any(), "child-bad").
			Return(time.Time{}, false, errors.New("event store down"))
		f.events.EXPECT().LastFeedingAt(gomock.Any(), "child-good").
			Return(now.Add(-2*time.Hour-time.Minute), true, nil)
		f.gate.EXPECT().Sharers(gomock.Any(), "child-good").Return([]string{"owner"}, nil)

		require.NoError(t, f.svc.Tick(ctx, now))
		require.Len(t, f.notifications.created, 1)
		assert.Equal(t, "child-good", f.notifications.created[0].ChildID)
	})
}
