package service

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sproutlog/sproutlog/config"
	"github.com/sproutlog/sproutlog/internal/domain/model"
)

func reaperTestConfig() config.ReaperConfig {
	return config.ReaperConfig{
		Interval:           10 * time.Minute,
		JobMaxAge:          7 * 24 * time.Hour,
		NotificationMaxAge: 30 * 24 * time.Hour,
		ReminderMarkMaxAge: 72 * time.Hour,
		BatchSize:          500,
	}
}

func TestNewReaperService(t *testing.T) {
	t.Run("creates service with valid options", func(t *testing.T) {
		svc, err := NewReaperService(ReaperServiceOptions{
			Jobs:          &stubJobRepo{},
			Notifications: &stubNotificationRepo{},
			Marks:         &stubMarkRepo{},
			Results:       newStubResultStore(),
			Config:        reaperTestConfig(),
			Logger:        slog.Default(),
		}, 5*time.Minute)

		require.NoError(t, err)
		assert.NotNil(t, svc)
	})

	t.Run("returns error when a repository is missing", func(t *testing.T) {
		_, err := NewReaperService(ReaperServiceOptions{
			Notifications: &stubNotificationRepo{},
			Marks:         &stubMarkRepo{},
			Results:       newStubResultStore(),
			Config:        reaperTestConfig(),
		}, 5*time.Minute)
		assert.Error(t, err)
	})

	t.Run("returns error for non-positive budget", func(t *testing.T) {
		_, err := NewReaperService(ReaperServiceOptions{
			Jobs:          &stubJobRepo{},
			Notifications: &stubNotificationRepo{},
			Marks:         &stubMarkRepo{},
			Results:       newStubResultStore(),
			Config:        reaperTestConfig(),
		}, 0)
		assert.Error(t, err)
	})
}

func TestReaperService_RunCleanup(t *testing.T) {
	ctx := context.Background()

	t.Run("expires old jobs and reclaims stored results", func(t *testing.T) {
		resultKey := "rk-old"
		var expireCalls int
		jobs := &stubJobRepo{
			expireFn: func(ctx context.Context, cutoff time.Time, batchSize int) ([]*model.Job, error) {
				expireCalls++
				if expireCalls == 1 {
					return []*model.Job{
						{ID: "old-1", ResultKey: &resultKey},
						{ID: "old-2"},
					}, nil
				}
				return nil, nil
			},
		}
		results := newStubResultStore()
		results.stored[resultKey] = []byte("stale payload")

		svc, err := NewReaperService(ReaperServiceOptions{
			Jobs:          jobs,
			Notifications: &stubNotificationRepo{},
			Marks:         &stubMarkRepo{},
			Results:       results,
			Config:        reaperTestConfig(),
		}, 5*time.Minute)
		require.NoError(t, err)

		require.NoError(t, svc.RunCleanup(ctx))

		assert.Equal(t, []string{resultKey}, results.deleted)
		assert.Equal(t, 2, expireCalls, "loops until a batch comes back empty")
	})

	t.Run("fails jobs past the execution budget", func(t *testing.T) {
		var deadlines []time.Time
		var calls int
		jobs := &stubJobRepo{
			failTimedOutFn: func(ctx context.Context, claimedBefore time.Time, batchSize int) (int64, error) {
				calls++
				deadlines = append(deadlines, claimedBefore)
				if calls == 1 {
					return 3, nil
				}
				return 0, nil
			},
		}

		svc, err := NewReaperService(ReaperServiceOptions{
			Jobs:          jobs,
			Notifications: &stubNotificationRepo{},
			Marks:         &stubMarkRepo{},
			Results:       newStubResultStore(),
			Config:        reaperTestConfig(),
		}, 5*time.Minute)
		require.NoError(t, err)

		require.NoError(t, svc.RunCleanup(ctx))

		require.NotEmpty(t, deadlines)
		assert.WithinDuration(t, time.Now().UTC().Add(-5*time.Minute), deadlines[0], 5*time.Second)
	})

	t.Run("deletes old notifications and reminder marks in batches", func(t *testing.T) {
		var notifCalls, markCalls int
		notifications := &stubNotificationRepo{
			deleteOlderThanFn: func(ctx context.Context, cutoff time.Time, batchSize int) (int64, error) {
				notifCalls++
				if notifCalls <= 2 {
					return int64(batchSize), nil
				}
				return 0, nil
			},
		}
		marks := &stubMarkRepo{
			deleteOlderThanFn: func(ctx context.Context, cutoff time.Time, batchSize int) (int64, error) {
				markCalls++
				if markCalls == 1 {
					return 7, nil
				}
				return 0, nil
			},
		}

		svc, err := NewReaperService(ReaperServiceOptions{
			Jobs:          &stubJobRepo{},
			Notifications: notifications,
			Marks:         marks,
			Results:       newStubResultStore(),
			Config:        reaperTestConfig(),
		}, 5*time.Minute)
		require.NoError(t, err)

		require.NoError(t, svc.RunCleanup(ctx))
		assert.Equal(t, 3, notifCalls)
		assert.Equal(t, 2, markCalls)
	})

	t.Run("one failing step does not block the others", func(t *testing.T) {
		jobs := &stubJobRepo{
			expireFn: func(ctx context.Context, cutoff time.Time, batchSize int) ([]*model.Job, error) {
				return nil, errors.New("db down")
			},
		}
		var markCalls int
		marks := &stubMarkRepo{
			deleteOlderThanFn: func(ctx context.Context, cutoff time.Time, batchSize int) (int64, error) {
				markCalls++
				return 0, nil
			},
		}

		svc, err := NewReaperService(ReaperServiceOptions{
			Jobs:          jobs,
			Notifications: &stubNotificationRepo{},
			Marks:         marks,
			Results:       newStubResultStore(),
			Config:        reaperTestConfig(),
		}, 5*time.Minute)
		require.NoError(t, err)

		err = svc.RunCleanup(ctx)
		assert.Error(t, err)
		assert.Equal(t, 1, markCalls, "later steps still run after an earlier failure")
	})
}

func TestReaperService_Run_StopsOnCancel(t *testing.T) {
	svc, err := NewReaperService(ReaperServiceOptions{
		Jobs:          &stubJobRepo{},
		Notifications: &stubNotificationRepo{},
		Marks:         &stubMarkRepo{},
		Results:       newStubResultStore(),
		Config: config.ReaperConfig{
			Interval:           time.Minute,
			JobMaxAge:          time.Hour,
			NotificationMaxAge: time.Hour,
			ReminderMarkMaxAge: time.Hour,
			BatchSize:          10,
		},
	}, time.Minute)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err, "graceful shutdown must not report an error")
	case <-time.After(5 * time.Second):
		t.Fatal("reaper did not stop after context cancellation")
	}
}
