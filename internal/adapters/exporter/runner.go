// Package exporter provides the export worker pool that claims queued jobs
// and drives their execution.
package exporter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sproutlog/sproutlog/config"
	"github.com/sproutlog/sproutlog/internal/core"
	"github.com/sproutlog/sproutlog/internal/domain/model"
	"github.com/sproutlog/sproutlog/internal/service"
)

// RunnerOptions configures the export worker pool.
type RunnerOptions struct {
	Jobs    core.JobRepository     // Required: job repository for claiming
	Exports *service.ExportService // Required: execution service
	Config  config.ExporterConfig  // Required: worker configuration
	Logger  *slog.Logger           // Optional: structured logger
}

// Runner claims queued export jobs and executes them with a fixed pool of
// workers. Each claimed job runs under the configured execution budget.
type Runner struct {
	jobs    core.JobRepository
	exports *service.ExportService
	config  config.ExporterConfig
	logger  *slog.Logger
}

// NewRunner constructs a new exporter Runner.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if opts.Jobs == nil {
		return nil, errors.New("JobRepository is required")
	}
	if opts.Exports == nil {
		return nil, errors.New("ExportService is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Runner{
		jobs:    opts.Jobs,
		exports: opts.Exports,
		config:  opts.Config,
		logger:  logger.With("component", "exporter"),
	}, nil
}

// Run starts the worker pool and processes jobs until the context is
// cancelled. Returns nil on graceful shutdown.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "starting export workers",
		"workers", r.config.Workers,
		"poll_interval", r.config.PollInterval,
		"execution_budget", r.config.ExecutionBudget)

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < r.config.Workers; i++ {
		worker := i
		g.Go(func() error {
			return r.workerLoop(ctx, worker)
		})
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (r *Runner) workerLoop(ctx context.Context, worker int) error {
	logger := r.logger.With("worker", worker)
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		job, err := r.jobs.Claim(ctx)
		switch {
		case err == nil:
			r.runJob(ctx, logger, job)
		case errors.Is(err, model.ErrNoJobsAvailable):
			if !sleepCtx(ctx, r.config.PollInterval) {
				return ctx.Err()
			}
		case errors.Is(err, context.Canceled):
			return ctx.Err()
		default:
			// A transient claim error should not kill the worker; back off
			// and retry.
			logger.ErrorContext(ctx, "claim failed", "error", err)
			if !sleepCtx(ctx, r.config.PollInterval) {
				return ctx.Err()
			}
		}
	}
}

func (r *Runner) runJob(ctx context.Context, logger *slog.Logger, job *model.Job) {
	logger.InfoContext(ctx, "claimed export job",
		"job_id", job.ID,
		"child_id", job.ChildID,
		"format", job.Format)

	execCtx, cancel := context.WithTimeout(ctx, r.config.ExecutionBudget)
	defer cancel()

	err := r.exports.Execute(execCtx, job)
	switch {
	case err == nil:
	case errors.Is(err, model.ErrClaimLost):
		logger.WarnContext(ctx, "export claim lost", "job_id", job.ID)
	case errors.Is(execCtx.Err(), context.DeadlineExceeded):
		// The watchdog owns the timeout transition; the worker just stops.
		logger.WarnContext(ctx, "export exceeded execution budget", "job_id", job.ID)
	default:
		logger.ErrorContext(ctx, "export execution error",
			"job_id", job.ID,
			"error", fmt.Errorf("execute: %w", err))
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
