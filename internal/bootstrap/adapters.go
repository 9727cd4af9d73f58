package bootstrap

import (
	"context"
	"log/slog"

	"github.com/sproutlog/sproutlog/internal/domain/model"
)

// logPushDeliverer is the default push transport: it records the handoff in
// the log and succeeds. The real mobile push gateway is deployed separately
// and consumes the notifications table; swapping it in is a wiring change.
type logPushDeliverer struct {
	logger *slog.Logger
}

func newLogPushDeliverer(logger *slog.Logger) *logPushDeliverer {
	if logger == nil {
		logger = slog.Default()
	}
	return &logPushDeliverer{logger: logger.With("component", "push")}
}

// Deliver logs the notification handoff.
func (d *logPushDeliverer) Deliver(ctx context.Context, n *model.Notification) error {
	d.logger.InfoContext(ctx, "push delivery",
		"notification_id", n.ID,
		"recipient_id", n.RecipientID,
		"kind", n.Kind,
		"priority", n.Priority)
	return nil
}
