package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/sproutlog/sproutlog/internal/domain/model"
	apperrors "github.com/sproutlog/sproutlog/internal/errors"
	"github.com/sproutlog/sproutlog/internal/mocks"
)

type stubEventWriter struct {
	inserted []model.TrackedEvent
	actors   []string
	err      error
}

func (s *stubEventWriter) Insert(_ context.Context, event model.TrackedEvent, actorID string) (*model.TrackedEvent, error) {
	if s.err != nil {
		return nil, s.err
	}
	stored := event
	stored.ID = "evt-1"
	s.inserted = append(s.inserted, stored)
	s.actors = append(s.actors, actorID)
	return &stored, nil
}

type eventFixture struct {
	svc        *EventService
	writer     *stubEventWriter
	dispatcher *dispatcherFixture
}

func newEventFixture(t *testing.T, gate *mocks.MockCapabilityGate) *eventFixture {
	t.Helper()

	f := &eventFixture{
		writer:     &stubEventWriter{},
		dispatcher: newDispatcherFixture(t, gate),
	}
	svc, err := NewEventService(EventServiceOptions{
		Events:     f.writer,
		Gate:       gate,
		Dispatcher: f.dispatcher.svc,
	})
	require.NoError(t, err)
	f.svc = svc
	return f
}

func TestEventService_Log(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	event := model.TrackedEvent{
		ChildID:    "child-1",
		Kind:       model.EventKindFeeding,
		OccurredAt: now.Add(-time.Minute),
	}

	t.Run("persists and fans out", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		gate := mocks.NewMockCapabilityGate(ctrl)
		gate.EXPECT().CanRead(gomock.Any(), "owner", "child-1").Return(true, nil)
		gate.EXPECT().Sharers(gomock.Any(), "child-1").Return([]string{"owner", "coparent"}, nil)

		f := newEventFixture(t, gate)

		stored, err := f.svc.Log(ctx, "owner", event, now)
		require.NoError(t, err)
		assert.Equal(t, "evt-1", stored.ID)

		require.Len(t, f.writer.inserted, 1)
		assert.Equal(t, []string{"owner"}, f.writer.actors)

		require.Len(t, f.dispatcher.notifications.created, 1)
		assert.Equal(t, "coparent", f.dispatcher.notifications.created[0].RecipientID)
	})

	t.Run("denied actor cannot log", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		gate := mocks.NewMockCapabilityGate(ctrl)
		gate.EXPECT().CanRead(gomock.Any(), "stranger", "child-1").Return(false, nil)

		f := newEventFixture(t, gate)

		_, err := f.svc.Log(ctx, "stranger", event, now)
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodePermissionDenied, apperrors.GetCode(err))
		assert.Empty(t, f.writer.inserted)
	})

	t.Run("invalid kind rejected before any write", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		gate := mocks.NewMockCapabilityGate(ctrl)

		f := newEventFixture(t, gate)

		bad := event
		bad.Kind = model.EventKind("bath")
		_, err := f.svc.Log(ctx, "owner", bad, now)
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodeValidation, apperrors.GetCode(err))
		assert.Empty(t, f.writer.inserted)
	})

	t.Run("insert failure surfaces", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		gate := mocks.NewMockCapabilityGate(ctrl)
		gate.EXPECT().CanRead(gomock.Any(), "owner", "child-1").Return(true, nil)

		f := newEventFixture(t, gate)
		f.writer.err = errors.New("connection reset")

		_, err := f.svc.Log(ctx, "owner", event, now)
		require.Error(t, err)
		assert.Empty(t, f.dispatcher.notifications.created)
	})

	t.Run("dispatch failure does not undo the write", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		gate := mocks.NewMockCapabilityGate(ctrl)
		gate.EXPECT().CanRead(gomock.Any(), "owner", "child-1").Return(true, nil)
		gate.EXPECT().Sharers(gomock.Any(), "child-1").Return(nil, errors.New("directory down"))

		f := newEventFixture(t, gate)

		stored, err := f.svc.Log(ctx, "owner", event, now)
		require.NoError(t, err)
		assert.Equal(t, "evt-1", stored.ID)
		require.Len(t, f.writer.inserted, 1)
	})
}
