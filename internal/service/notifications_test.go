package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sproutlog/sproutlog/internal/domain/model"
	apperrors "github.com/sproutlog/sproutlog/internal/errors"
)

func newNotificationService(t *testing.T, notifications *stubNotificationRepo, prefs *stubPreferenceRepo, gate *stubGate) *NotificationService {
	t.Helper()
	if notifications == nil {
		notifications = &stubNotificationRepo{}
	}
	if prefs == nil {
		prefs = &stubPreferenceRepo{}
	}
	if gate == nil {
		gate = &stubGate{}
	}
	svc, err := NewNotificationService(NotificationServiceOptions{
		Notifications: notifications,
		Prefs:         prefs,
		Gate:          gate,
	})
	require.NoError(t, err)
	return svc
}

func TestNotificationService_List(t *testing.T) {
	ctx := context.Background()

	t.Run("passes filter options through", func(t *testing.T) {
		var captured model.NotificationListOptions
		repo := &stubNotificationRepo{
			listFn: func(ctx context.Context, opts model.NotificationListOptions) ([]*model.Notification, error) {
				captured = opts
				return []*model.Notification{{ID: "n-1"}}, nil
			},
		}
		svc := newNotificationService(t, repo, nil, nil)

		items, err := svc.List(ctx, model.NotificationListOptions{
			RecipientID: "user-1",
			UnreadOnly:  true,
			Limit:       10,
		})

		require.NoError(t, err)
		assert.Len(t, items, 1)
		assert.True(t, captured.UnreadOnly)
		assert.Equal(t, 10, captured.Limit)
	})

	t.Run("requires recipient", func(t *testing.T) {
		svc := newNotificationService(t, nil, nil, nil)
		_, err := svc.List(ctx, model.NotificationListOptions{})
		assert.True(t, apperrors.IsValidation(err))
	})
}

func TestNotificationService_MarkRead(t *testing.T) {
	ctx := context.Background()

	t.Run("marking twice succeeds", func(t *testing.T) {
		calls := 0
		repo := &stubNotificationRepo{
			markReadFn: func(ctx context.Context, id, recipientID string) (bool, error) {
				calls++
				return true, nil
			},
		}
		svc := newNotificationService(t, repo, nil, nil)

		require.NoError(t, svc.MarkRead(ctx, "n-1", "user-1"))
		require.NoError(t, svc.MarkRead(ctx, "n-1", "user-1"))
		assert.Equal(t, 2, calls)
	})

	t.Run("foreign notification reports not found", func(t *testing.T) {
		repo := &stubNotificationRepo{
			markReadFn: func(ctx context.Context, id, recipientID string) (bool, error) {
				return false, nil
			},
		}
		svc := newNotificationService(t, repo, nil, nil)

		err := svc.MarkRead(ctx, "n-1", "intruder")
		assert.True(t, apperrors.IsNotFound(err))
	})
}

func TestNotificationService_MarkAllRead(t *testing.T) {
	repo := &stubNotificationRepo{
		markAllReadFn: func(ctx context.Context, recipientID string) (int64, error) {
			return 4, nil
		},
	}
	svc := newNotificationService(t, repo, nil, nil)

	count, err := svc.MarkAllRead(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(4), count)
}

func TestNotificationService_Preferences(t *testing.T) {
	ctx := context.Background()

	t.Run("absent row yields defaults", func(t *testing.T) {
		svc := newNotificationService(t, nil, &stubPreferenceRepo{}, nil)

		pref, err := svc.GetPreferences(ctx, "user-1", "child-1")
		require.NoError(t, err)
		assert.True(t, pref.NotifyFeedings)
		assert.True(t, pref.NotifyDiapers)
		assert.True(t, pref.NotifyNaps)
		assert.Equal(t, model.ReminderDisabled, pref.ReminderInterval)
		assert.False(t, pref.QuietHours.Enabled)
	})

	t.Run("denies users without access", func(t *testing.T) {
		gate := &stubGate{
			canReadFn: func(ctx context.Context, userID, childID string) (bool, error) {
				return false, nil
			},
		}
		svc := newNotificationService(t, nil, nil, gate)

		_, err := svc.GetPreferences(ctx, "stranger", "child-1")
		assert.True(t, apperrors.IsPermissionDenied(err))
	})

	t.Run("upsert validates the interval", func(t *testing.T) {
		svc := newNotificationService(t, nil, nil, nil)

		_, err := svc.UpsertPreferences(ctx, &model.NotificationPreference{
			UserID:           "user-1",
			ChildID:          "child-1",
			ReminderInterval: model.ReminderInterval(90 * time.Minute),
		})
		assert.True(t, apperrors.IsValidation(err))
	})

	t.Run("upsert validates quiet window bounds", func(t *testing.T) {
		svc := newNotificationService(t, nil, nil, nil)

		_, err := svc.UpsertPreferences(ctx, &model.NotificationPreference{
			UserID:     "user-1",
			ChildID:    "child-1",
			QuietHours: model.QuietWindow{Enabled: true, Start: 1500, End: 60},
		})
		assert.True(t, apperrors.IsValidation(err))
	})

	t.Run("upsert stores a valid preference", func(t *testing.T) {
		prefs := &stubPreferenceRepo{}
		svc := newNotificationService(t, nil, prefs, nil)

		stored, err := svc.UpsertPreferences(ctx, &model.NotificationPreference{
			UserID:           "user-1",
			ChildID:          "child-1",
			NotifyFeedings:   true,
			ReminderInterval: model.Reminder4h,
			QuietHours:       model.QuietWindow{Enabled: true, Start: 22 * 60, End: 6 * 60},
		})
		require.NoError(t, err)
		assert.Equal(t, model.Reminder4h, stored.ReminderInterval)
	})
}
