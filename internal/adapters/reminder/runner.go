// Package reminder provides the tick loop that drives the feeding reminder
// scheduler.
package reminder

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sproutlog/sproutlog/config"
	"github.com/sproutlog/sproutlog/internal/service"
)

// RunnerOptions configures the reminder runner.
type RunnerOptions struct {
	Service *service.ReminderService // Required: reminder service
	Config  config.ReminderConfig    // Required: tick configuration
	Logger  *slog.Logger             // Optional: structured logger
}

// Runner invokes the reminder service on a fixed interval, passing the wall
// clock tick as the evaluation instant.
type Runner struct {
	service *service.ReminderService
	config  config.ReminderConfig
	logger  *slog.Logger
}

// NewRunner constructs a new reminder Runner.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if opts.Service == nil {
		return nil, errors.New("ReminderService is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Runner{
		service: opts.Service,
		config:  opts.Config,
		logger:  logger.With("component", "reminder_runner"),
	}, nil
}

// Run ticks the reminder scheduler until the context is cancelled.
// Returns nil on graceful shutdown (context.Canceled), error otherwise.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "starting reminder scheduler", "interval", r.config.Interval)

	ticker := time.NewTicker(r.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.InfoContext(ctx, "reminder scheduler stopping", "reason", ctx.Err())
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()

		case now := <-ticker.C:
			if err := r.service.Tick(ctx, now.UTC()); err != nil {
				if errors.Is(err, context.Canceled) {
					continue
				}
				// A failed tick is retried on the next interval.
				r.logger.ErrorContext(ctx, "reminder tick failed", "error", err)
			}
		}
	}
}
