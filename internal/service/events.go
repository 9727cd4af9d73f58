package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sproutlog/sproutlog/internal/core"
	"github.com/sproutlog/sproutlog/internal/domain/model"
	apperrors "github.com/sproutlog/sproutlog/internal/errors"
)

// EventService ingests care activity events. It persists the event first and
// only then hands it to the dispatcher; fanout trouble never undoes a write.
type EventService struct {
	events     core.EventWriter
	gate       core.CapabilityGate
	dispatcher *DispatcherService
	logger     *slog.Logger
}

// EventServiceOptions groups dependencies for EventService.
type EventServiceOptions struct {
	Events     core.EventWriter
	Gate       core.CapabilityGate
	Dispatcher *DispatcherService
	Logger     *slog.Logger // Optional: structured logger
}

// NewEventService constructs a new EventService.
func NewEventService(opts EventServiceOptions) (*EventService, error) {
	if opts.Events == nil {
		return nil, errors.New("EventWriter is required")
	}
	if opts.Gate == nil {
		return nil, errors.New("CapabilityGate is required")
	}
	if opts.Dispatcher == nil {
		return nil, errors.New("DispatcherService is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &EventService{
		events:     opts.Events,
		gate:       opts.Gate,
		dispatcher: opts.Dispatcher,
		logger:     logger.With("component", "event_service"),
	}, nil
}

// Log records one care activity on behalf of the actor and triggers the
// notification fanout for it.
func (s *EventService) Log(ctx context.Context, actorID string, event model.TrackedEvent, now time.Time) (*model.TrackedEvent, error) {
	if actorID == "" {
		return nil, apperrors.Validation("actor id is required")
	}
	if event.ChildID == "" {
		return nil, apperrors.Validation("child id is required")
	}
	if !event.Kind.Valid() {
		return nil, apperrors.Validation("invalid event kind")
	}

	allowed, err := s.gate.CanRead(ctx, actorID, event.ChildID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "capability check failed")
	}
	if !allowed {
		return nil, apperrors.PermissionDenied("user has no access to this child")
	}

	stored, err := s.events.Insert(ctx, event, actorID)
	if err != nil {
		return nil, fmt.Errorf("insert event: %w", err)
	}

	if err := s.dispatcher.OnEventWritten(ctx, *stored, actorID, now); err != nil {
		// The event itself is durable; dispatch gets no second attempt.
		s.logger.WarnContext(ctx, "event dispatch failed",
			"child_id", stored.ChildID,
			"kind", stored.Kind,
			"error", err)
	}

	return stored, nil
}
