package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sproutlog/sproutlog/internal/core"
	"github.com/sproutlog/sproutlog/internal/domain/model"
)

// PreferenceRepo provides database operations for notification preferences.
type PreferenceRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
	logger       *slog.Logger
}

// NewPreferenceRepo creates a new PreferenceRepo.
func NewPreferenceRepo(db *sql.DB, cfg RepoConfig) *PreferenceRepo {
	return &PreferenceRepo{
		DB:           db,
		timeProvider: cfg.timeProvider(),
		logger:       cfg.Logger,
	}
}

const preferenceColumns = `
  user_id,
  child_id,
  notify_feedings,
  notify_diapers,
  notify_naps,
  reminder_interval,
  quiet_hours,
  updated_at
`

// Get returns the preference row for (user, child), or nil when none exists.
// Absence is not an error: the caller applies model.DefaultPreference.
func (r *PreferenceRepo) Get(ctx context.Context, userID, childID string) (*model.NotificationPreference, error) {
	row := r.DB.QueryRowContext(ctx, `
		SELECT `+preferenceColumns+`
		FROM notification_preferences
		WHERE user_id = $1 AND child_id = $2
	`, userID, childID)

	pref, err := scanPreference(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get preference: %w", err)
	}
	return pref, nil
}

// GetForUsers returns the preference rows for the given users on one child,
// keyed by user id, in a single consistent snapshot. Users without a row are
// absent from the map.
func (r *PreferenceRepo) GetForUsers(ctx context.Context, userIDs []string, childID string) (map[string]*model.NotificationPreference, error) {
	out := make(map[string]*model.NotificationPreference, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}

	rows, err := r.DB.QueryContext(ctx, `
		SELECT `+preferenceColumns+`
		FROM notification_preferences
		WHERE child_id = $1 AND user_id = ANY($2)
	`, childID, userIDs)
	if err != nil {
		return nil, fmt.Errorf("get preferences: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		pref, scanErr := scanPreference(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan preference: %w", scanErr)
		}
		out[pref.UserID] = pref
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get preferences rows: %w", err)
	}
	return out, nil
}

// Upsert creates or replaces the preference row for (user, child).
func (r *PreferenceRepo) Upsert(ctx context.Context, pref *model.NotificationPreference) (*model.NotificationPreference, error) {
	if pref == nil {
		return nil, errors.New("preference is required")
	}
	if err := pref.Validate(); err != nil {
		return nil, err
	}

	quietHours, err := json.Marshal(pref.QuietHours)
	if err != nil {
		return nil, fmt.Errorf("marshal quiet hours: %w", err)
	}

	row := r.DB.QueryRowContext(ctx, `
		INSERT INTO notification_preferences
			(user_id, child_id, notify_feedings, notify_diapers, notify_naps, reminder_interval, quiet_hours, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (user_id, child_id) DO UPDATE
		SET notify_feedings   = EXCLUDED.notify_feedings,
		    notify_diapers    = EXCLUDED.notify_diapers,
		    notify_naps       = EXCLUDED.notify_naps,
		    reminder_interval = EXCLUDED.reminder_interval,
		    quiet_hours       = EXCLUDED.quiet_hours,
		    updated_at        = EXCLUDED.updated_at
		RETURNING `+preferenceColumns,
		pref.UserID, pref.ChildID,
		pref.NotifyFeedings, pref.NotifyDiapers, pref.NotifyNaps,
		int64(pref.ReminderInterval), quietHours,
		r.timeProvider.Now().UTC(),
	)

	stored, err := scanPreference(row)
	if err != nil {
		return nil, fmt.Errorf("upsert preference: %w", err)
	}
	return stored, nil
}

// ListReminderTargets returns each child with a reminder interval configured
// on at least one preference row, with the smallest configured interval.
func (r *PreferenceRepo) ListReminderTargets(ctx context.Context) ([]core.ReminderTarget, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT child_id, min(reminder_interval)
		FROM notification_preferences
		WHERE reminder_interval > 0
		GROUP BY child_id
	`)
	if err != nil {
		return nil, fmt.Errorf("list reminder targets: %w", err)
	}
	defer rows.Close()

	var targets []core.ReminderTarget
	for rows.Next() {
		var (
			childID  string
			interval int64
		)
		if err := rows.Scan(&childID, &interval); err != nil {
			return nil, fmt.Errorf("scan reminder target: %w", err)
		}
		targets = append(targets, core.ReminderTarget{
			ChildID:  childID,
			Interval: model.ReminderInterval(interval),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list reminder targets rows: %w", err)
	}
	return targets, nil
}

func scanPreference(scanner rowScanner) (*model.NotificationPreference, error) {
	var (
		pref       model.NotificationPreference
		interval   int64
		quietHours []byte
	)
	if err := scanner.Scan(
		&pref.UserID,
		&pref.ChildID,
		&pref.NotifyFeedings,
		&pref.NotifyDiapers,
		&pref.NotifyNaps,
		&interval,
		&quietHours,
		&pref.UpdatedAt,
	); err != nil {
		return nil, err
	}
	pref.ReminderInterval = model.ReminderInterval(interval)
	if len(quietHours) > 0 {
		if err := json.Unmarshal(quietHours, &pref.QuietHours); err != nil {
			return nil, fmt.Errorf("unmarshal quiet hours: %w", err)
		}
	}
	return &pref, nil
}
