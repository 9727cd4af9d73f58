package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sproutlog/sproutlog/internal/core"
	"github.com/sproutlog/sproutlog/internal/domain/model"
	apperrors "github.com/sproutlog/sproutlog/internal/errors"
)

// NotificationService serves a recipient's notification feed and their
// per-child preference toggles.
type NotificationService struct {
	notifications core.NotificationRepository
	prefs         core.PreferenceRepository
	gate          core.CapabilityGate
	logger        *slog.Logger
}

// NotificationServiceOptions groups dependencies for NotificationService.
type NotificationServiceOptions struct {
	Notifications core.NotificationRepository
	Prefs         core.PreferenceRepository
	Gate          core.CapabilityGate
	Logger        *slog.Logger // Optional: structured logger
}

// NewNotificationService constructs a new NotificationService.
func NewNotificationService(opts NotificationServiceOptions) (*NotificationService, error) {
	if opts.Notifications == nil {
		return nil, errors.New("NotificationRepository is required")
	}
	if opts.Prefs == nil {
		return nil, errors.New("PreferenceRepository is required")
	}
	if opts.Gate == nil {
		return nil, errors.New("CapabilityGate is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &NotificationService{
		notifications: opts.Notifications,
		prefs:         opts.Prefs,
		gate:          opts.Gate,
		logger:        logger.With("component", "notification_service"),
	}, nil
}

// List returns the recipient's notifications, most recent first.
func (s *NotificationService) List(ctx context.Context, opts model.NotificationListOptions) ([]*model.Notification, error) {
	if opts.RecipientID == "" {
		return nil, apperrors.Validation("recipient id is required")
	}
	items, err := s.notifications.List(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return items, nil
}

// MarkRead marks one of the recipient's notifications read. Marking an
// already-read notification succeeds without change; a notification owned by
// someone else is reported as missing.
func (s *NotificationService) MarkRead(ctx context.Context, id, recipientID string) error {
	if id == "" || recipientID == "" {
		return apperrors.Validation("notification id and recipient id are required")
	}
	ok, err := s.notifications.MarkRead(ctx, id, recipientID)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	if !ok {
		return apperrors.NotFoundf("notification %s not found", id)
	}
	return nil
}

// MarkAllRead marks every unread notification of the recipient read and
// returns the number updated.
func (s *NotificationService) MarkAllRead(ctx context.Context, recipientID string) (int64, error) {
	if recipientID == "" {
		return 0, apperrors.Validation("recipient id is required")
	}
	count, err := s.notifications.MarkAllRead(ctx, recipientID)
	if err != nil {
		return 0, fmt.Errorf("mark all read: %w", err)
	}
	return count, nil
}

// UnreadCount returns the recipient's unread notification count.
func (s *NotificationService) UnreadCount(ctx context.Context, recipientID string) (int, error) {
	if recipientID == "" {
		return 0, apperrors.Validation("recipient id is required")
	}
	count, err := s.notifications.UnreadCount(ctx, recipientID)
	if err != nil {
		return 0, fmt.Errorf("unread count: %w", err)
	}
	return count, nil
}

// GetPreferences returns the user's preference row for the child, or the
// implied defaults when none exists. Access requires a sharing relationship.
func (s *NotificationService) GetPreferences(ctx context.Context, userID, childID string) (*model.NotificationPreference, error) {
	if err := s.requireAccess(ctx, userID, childID); err != nil {
		return nil, err
	}

	pref, err := s.prefs.Get(ctx, userID, childID)
	if err != nil {
		return nil, fmt.Errorf("get preferences: %w", err)
	}
	if pref == nil {
		def := model.DefaultPreference(userID, childID)
		return &def, nil
	}
	return pref, nil
}

// UpsertPreferences validates and stores the user's preference row for the
// child, returning the stored row.
func (s *NotificationService) UpsertPreferences(ctx context.Context, pref *model.NotificationPreference) (*model.NotificationPreference, error) {
	if pref == nil {
		return nil, apperrors.Validation("preference body is required")
	}
	if err := pref.Validate(); err != nil {
		return nil, apperrors.Validation(err.Error())
	}
	if err := s.requireAccess(ctx, pref.UserID, pref.ChildID); err != nil {
		return nil, err
	}

	stored, err := s.prefs.Upsert(ctx, pref)
	if err != nil {
		return nil, fmt.Errorf("upsert preferences: %w", err)
	}

	s.logger.InfoContext(ctx, "notification preferences updated",
		"user_id", stored.UserID,
		"child_id", stored.ChildID,
		"reminder_interval", stored.ReminderInterval.Duration())

	return stored, nil
}

func (s *NotificationService) requireAccess(ctx context.Context, userID, childID string) error {
	if userID == "" || childID == "" {
		return apperrors.Validation("user id and child id are required")
	}
	allowed, err := s.gate.CanRead(ctx, userID, childID)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "capability check failed")
	}
	if !allowed {
		return apperrors.PermissionDenied("user has no access to this child")
	}
	return nil
}
