package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sproutlog/sproutlog/internal/domain/model"
)

// NotificationRepo provides database operations for notifications.
type NotificationRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
	logger       *slog.Logger
}

// NewNotificationRepo creates a new NotificationRepo.
func NewNotificationRepo(db *sql.DB, cfg RepoConfig) *NotificationRepo {
	return &NotificationRepo{
		DB:           db,
		timeProvider: cfg.timeProvider(),
		logger:       cfg.Logger,
	}
}

const notificationColumns = `
  id,
  recipient_id,
  child_id,
  kind,
  priority,
  payload,
  read_at,
  created_at
`

// CreateBatch inserts the given notifications in one statement and returns
// the inserted rows. An empty batch is a no-op.
func (r *NotificationRepo) CreateBatch(ctx context.Context, reqs []model.CreateNotificationRequest) ([]*model.Notification, error) {
	if len(reqs) == 0 {
		return nil, nil
	}

	now := r.timeProvider.Now().UTC()

	var sb strings.Builder
	sb.WriteString(`INSERT INTO notifications (id, recipient_id, child_id, kind, priority, payload, created_at) VALUES `)
	args := make([]any, 0, len(reqs)*7)
	for i, req := range reqs {
		if err := req.Validate(); err != nil {
			return nil, fmt.Errorf("notification %d: %w", i, err)
		}
		payload, err := json.Marshal(req.Payload)
		if err != nil {
			return nil, fmt.Errorf("marshal payload: %w", err)
		}

		if i > 0 {
			sb.WriteString(", ")
		}
		base := i * 7
		fmt.Fprintf(&sb, "($%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7)
		args = append(args, uuid.NewString(), req.RecipientID, req.ChildID, req.Kind, req.Priority, payload, now)
	}
	sb.WriteString(` RETURNING ` + notificationColumns)

	rows, err := r.DB.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("insert notifications: %w", err)
	}
	defer rows.Close()

	created := make([]*model.Notification, 0, len(reqs))
	for rows.Next() {
		n, scanErr := scanNotification(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan inserted notification: %w", scanErr)
		}
		created = append(created, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("insert notifications rows: %w", err)
	}
	return created, nil
}

// List returns a recipient's notifications, most recent first.
func (r *NotificationRepo) List(ctx context.Context, opts model.NotificationListOptions) ([]*model.Notification, error) {
	if opts.RecipientID == "" {
		return nil, errors.New("recipient id is required")
	}
	limit := opts.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	query := `
		SELECT ` + notificationColumns + `
		FROM notifications
		WHERE recipient_id = $1`
	if opts.UnreadOnly {
		query += ` AND read_at IS NULL`
	}
	query += `
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := r.DB.QueryContext(ctx, query, opts.RecipientID, limit)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var out []*model.Notification
	for rows.Next() {
		n, scanErr := scanNotification(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan notification: %w", scanErr)
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list notifications rows: %w", err)
	}
	return out, nil
}

// MarkRead sets read_at for the recipient's notification. Once set it is
// never cleared; re-marking is an idempotent no-op success. Returns false
// when no notification with that id belongs to the recipient.
func (r *NotificationRepo) MarkRead(ctx context.Context, id, recipientID string) (bool, error) {
	res, err := r.DB.ExecContext(ctx, `
		UPDATE notifications
		SET read_at = COALESCE(read_at, $3)
		WHERE id = $1 AND recipient_id = $2
	`, id, recipientID, r.timeProvider.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("mark notification read: %w", err)
	}
	return affected(res)
}

// MarkAllRead marks every unread notification of the recipient read and
// returns the number updated.
func (r *NotificationRepo) MarkAllRead(ctx context.Context, recipientID string) (int64, error) {
	res, err := r.DB.ExecContext(ctx, `
		UPDATE notifications
		SET read_at = $2
		WHERE recipient_id = $1 AND read_at IS NULL
	`, recipientID, r.timeProvider.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("mark all read: %w", err)
	}
	return res.RowsAffected()
}

// UnreadCount returns the recipient's unread notification count.
func (r *NotificationRepo) UnreadCount(ctx context.Context, recipientID string) (int, error) {
	var count int
	err := r.DB.QueryRowContext(ctx, `
		SELECT count(*) FROM notifications
		WHERE recipient_id = $1 AND read_at IS NULL
	`, recipientID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("unread count: %w", err)
	}
	return count, nil
}

// DeleteOlderThan removes notifications created before the cutoff, at most
// batchSize per call, and returns the number deleted.
func (r *NotificationRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time, batchSize int) (int64, error) {
	if batchSize <= 0 {
		batchSize = 500
	}

	res, err := r.DB.ExecContext(ctx, `
		DELETE FROM notifications
		WHERE id IN (
			SELECT id FROM notifications
			WHERE created_at < $1
			ORDER BY created_at ASC
			LIMIT $2
		)
	`, cutoff.UTC(), batchSize)
	if err != nil {
		return 0, fmt.Errorf("delete old notifications: %w", err)
	}
	return res.RowsAffected()
}

func scanNotification(scanner rowScanner) (*model.Notification, error) {
	var (
		n       model.Notification
		payload []byte
		readAt  sql.NullTime
	)
	if err := scanner.Scan(
		&n.ID,
		&n.RecipientID,
		&n.ChildID,
		&n.Kind,
		&n.Priority,
		&payload,
		&readAt,
		&n.CreatedAt,
	); err != nil {
		return nil, err
	}
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &n.Payload); err != nil {
			return nil, fmt.Errorf("unmarshal payload: %w", err)
		}
	}
	n.ReadAt = nullableTime(readAt)
	return &n, nil
}
