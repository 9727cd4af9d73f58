package service

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sproutlog/sproutlog/config"
	"github.com/sproutlog/sproutlog/internal/core"
	obserrors "github.com/sproutlog/sproutlog/internal/observability/errors"
	"github.com/sproutlog/sproutlog/internal/observability/metrics"
	"github.com/sproutlog/sproutlog/internal/observability/statsd"
)

// ReaperServiceOptions groups dependencies for ReaperService.
type ReaperServiceOptions struct {
	Jobs          core.JobRepository           // Required: job repository
	Notifications core.NotificationRepository  // Required: notification repository
	Marks         core.ReminderMarkRepository  // Required: reminder mark repository
	Results       core.ResultStore             // Required: export result store
	Config        config.ReaperConfig          // Required: reaper configuration
	Logger        *slog.Logger                 // Optional: structured logger
	Metrics       statsd.Sink                  // Optional: metrics sink (StatsD-compatible)
}

// ReaperService enforces the retention policy.
//
// This service manages:
// - Expiring old export jobs and reclaiming their stored results.
// - Failing running jobs that exceeded the execution budget.
// - Deleting old notifications.
// - Deleting old reminder watermarks.
type ReaperService struct {
	jobs          core.JobRepository
	notifications core.NotificationRepository
	marks         core.ReminderMarkRepository
	results       core.ResultStore
	config        config.ReaperConfig
	budget        time.Duration
	logger        *slog.Logger
	metrics       statsd.Sink
}

// NewReaperService constructs a new ReaperService. executionBudget is the
// exporter's per-job budget used by the timeout watchdog.
func NewReaperService(opts ReaperServiceOptions, executionBudget time.Duration) (*ReaperService, error) {
	if opts.Jobs == nil {
		return nil, errors.New("JobRepository is required")
	}
	if opts.Notifications == nil {
		return nil, errors.New("NotificationRepository is required")
	}
	if opts.Marks == nil {
		return nil, errors.New("ReminderMarkRepository is required")
	}
	if opts.Results == nil {
		return nil, errors.New("ResultStore is required")
	}
	if executionBudget <= 0 {
		return nil, errors.New("execution budget must be positive")
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "reaper_service")
		logger.Debug("ReaperService initialized",
			"interval", opts.Config.Interval,
			"job_max_age", opts.Config.JobMaxAge,
			"notification_max_age", opts.Config.NotificationMaxAge,
			"reminder_mark_max_age", opts.Config.ReminderMarkMaxAge,
		)
	}

	return &ReaperService{
		jobs:          opts.Jobs,
		notifications: opts.Notifications,
		marks:         opts.Marks,
		results:       opts.Results,
		config:        opts.Config,
		budget:        executionBudget,
		logger:        logger,
		metrics:       opts.Metrics,
	}, nil
}

// Run starts the reaper loop and runs until the context is cancelled.
// It performs cleanup operations at the configured interval.
// Returns nil on graceful shutdown (context.Canceled), error otherwise.
func (s *ReaperService) Run(ctx context.Context) error {
	if s.logger != nil {
		s.logger.InfoContext(ctx, "starting reaper service", "interval", s.config.Interval)
	}

	// Add jitter to prevent thundering herd if multiple instances start together
	s.waitWithJitter(ctx)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	// Run cleanup immediately after jitter
	if err := s.RunCleanup(ctx); err != nil {
		s.logCleanupError(err, "initial cleanup")
	}

	return s.runLoop(ctx, ticker)
}

// waitWithJitter adds a random delay up to 10% of the interval to prevent thundering herd.
func (s *ReaperService) waitWithJitter(ctx context.Context) {
	maxJitter := int64(s.config.Interval / 10)
	if maxJitter <= 0 {
		return
	}

	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// If crypto/rand fails, skip jitter rather than failing startup
		if s.logger != nil {
			s.logger.WarnContext(ctx, "failed to generate jitter, skipping", "error", err)
		}
		return
	}

	jitterNanos := binary.BigEndian.Uint64(buf[:]) % uint64(maxJitter)
	jitter := time.Duration(int64(jitterNanos)) // #nosec G115 - bounded by maxJitter which is int64

	select {
	case <-time.After(jitter):
	case <-ctx.Done():
		// Graceful shutdown during jitter
	}
}

// runLoop runs the cleanup loop until context is cancelled.
func (s *ReaperService) runLoop(ctx context.Context, ticker *time.Ticker) error {
	for {
		select {
		case <-ctx.Done():
			if s.logger != nil {
				s.logger.InfoContext(ctx, "reaper service stopping", "reason", ctx.Err())
			}
			// Return nil on graceful shutdown to avoid treating it as a failure
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()

		case <-ticker.C:
			if err := s.RunCleanup(ctx); err != nil {
				s.logCleanupError(err, "cleanup")
				if isContextCancellation(err) {
					continue
				}
				// Continue running despite errors
			}
		}
	}
}

// RunCleanup performs all cleanup operations once.
func (s *ReaperService) RunCleanup(ctx context.Context) error {
	start := time.Now()
	var (
		errs               []error
		allContextCanceled = true
		metricsData        = cleanupMetrics{}
	)

	steps := []cleanupStep{
		{
			fn:        s.failTimedOutJobs,
			label:     "fail timed out jobs",
			count:     &metricsData.TimedOutCount,
			metricErr: &metricsData.TimedOutErr,
		},
		{
			fn:        s.expireOldJobs,
			label:     "expire old jobs",
			count:     &metricsData.ExpiredCount,
			metricErr: &metricsData.ExpiredErr,
		},
		{
			fn:        s.deleteOldNotifications,
			label:     "delete old notifications",
			count:     &metricsData.NotificationsCount,
			metricErr: &metricsData.NotificationsErr,
		},
		{
			fn:        s.deleteOldReminderMarks,
			label:     "delete old reminder marks",
			count:     &metricsData.MarksCount,
			metricErr: &metricsData.MarksErr,
		},
	}

	for _, step := range steps {
		outcome := s.executeCleanupStep(ctx, step.fn, step.label)
		*step.count = outcome.count
		*step.metricErr = outcome.metricErr
		if outcome.aggregateErr != nil {
			errs = append(errs, outcome.aggregateErr)
			allContextCanceled = allContextCanceled && outcome.canceled
		}
	}

	metricsData.Elapsed = time.Since(start)
	s.emitCleanupMetrics(metricsData)

	if len(errs) > 0 {
		joined := errors.Join(errs...)
		if allContextCanceled && isContextCancellation(joined) {
			return context.Canceled
		}
		return fmt.Errorf("cleanup failed: %w", joined)
	}

	return nil
}

type cleanupFunc func(context.Context) (int64, error)

type cleanupStep struct {
	fn        cleanupFunc
	label     string
	count     *int64
	metricErr *error
}

type cleanupStepOutcome struct {
	count        int64
	metricErr    error
	aggregateErr error
	canceled     bool
}

func (s *ReaperService) executeCleanupStep(
	ctx context.Context,
	fn cleanupFunc,
	label string,
) cleanupStepOutcome {
	count, err := fn(ctx)
	outcome := cleanupStepOutcome{
		count:     count,
		metricErr: suppressContextCancellation(err),
		canceled:  isContextCancellation(err),
	}
	if err != nil {
		outcome.aggregateErr = fmt.Errorf("%s: %w", label, err)
	}
	return outcome
}

// failTimedOutJobs fails running jobs whose claim is older than the
// execution budget. The state-guarded update means a worker finishing at the
// same moment wins or loses atomically, never both.
func (s *ReaperService) failTimedOutJobs(ctx context.Context) (int64, error) {
	var totalCount int64
	for {
		deadline := time.Now().UTC().Add(-s.budget)
		count, err := s.jobs.FailTimedOut(ctx, deadline, s.config.BatchSize)
		if err != nil {
			return totalCount, err
		}
		totalCount += count
		if count == 0 {
			break
		}
		// Check context between batches
		if ctx.Err() != nil {
			return totalCount, ctx.Err()
		}
	}

	if totalCount > 0 && s.logger != nil {
		s.logger.InfoContext(ctx, "failed timed out jobs",
			"count", totalCount,
			"execution_budget", s.budget,
		)
	}

	return totalCount, nil
}

// expireOldJobs expires jobs older than the configured max age and reclaims
// their stored result payloads. Loops until no more rows are affected to
// handle large datasets in batches.
func (s *ReaperService) expireOldJobs(ctx context.Context) (int64, error) {
	var totalCount int64
	for {
		cutoff := time.Now().UTC().Add(-s.config.JobMaxAge)
		expired, err := s.jobs.ExpireOlderThan(ctx, cutoff, s.config.BatchSize)
		if err != nil {
			return totalCount, err
		}
		totalCount += int64(len(expired))

		for _, job := range expired {
			if job.ResultKey == nil {
				continue
			}
			if delErr := s.results.Delete(ctx, *job.ResultKey); delErr != nil {
				if s.logger != nil {
					s.logger.WarnContext(ctx, "failed to reclaim export result",
						"job_id", job.ID,
						"result_key", *job.ResultKey,
						"error", delErr)
				}
			}
		}

		if len(expired) == 0 {
			break
		}
		// Check context between batches
		if ctx.Err() != nil {
			return totalCount, ctx.Err()
		}
	}

	if totalCount > 0 && s.logger != nil {
		s.logger.InfoContext(ctx, "expired old jobs",
			"count", totalCount,
			"max_age", s.config.JobMaxAge,
		)
	}

	return totalCount, nil
}

// deleteOldNotifications deletes notifications older than the configured max age.
// Loops until no more rows are affected to handle large datasets in batches.
func (s *ReaperService) deleteOldNotifications(ctx context.Context) (int64, error) {
	var totalCount int64
	for {
		cutoff := time.Now().UTC().Add(-s.config.NotificationMaxAge)
		count, err := s.notifications.DeleteOlderThan(ctx, cutoff, s.config.BatchSize)
		if err != nil {
			return totalCount, err
		}
		totalCount += count
		if count == 0 {
			break
		}
		// Check context between batches
		if ctx.Err() != nil {
			return totalCount, ctx.Err()
		}
	}

	if totalCount > 0 && s.logger != nil {
		s.logger.InfoContext(ctx, "deleted old notifications",
			"count", totalCount,
			"max_age", s.config.NotificationMaxAge,
		)
	}

	return totalCount, nil
}

// deleteOldReminderMarks deletes reminder watermarks older than the configured
// max age. The marks only need to outlive their feeding window; anything older
// is dead weight.
func (s *ReaperService) deleteOldReminderMarks(ctx context.Context) (int64, error) {
	var totalCount int64
	for {
		cutoff := time.Now().UTC().Add(-s.config.ReminderMarkMaxAge)
		count, err := s.marks.DeleteOlderThan(ctx, cutoff, s.config.BatchSize)
		if err != nil {
			return totalCount, err
		}
		totalCount += count
		if count == 0 {
			break
		}
		// Check context between batches
		if ctx.Err() != nil {
			return totalCount, ctx.Err()
		}
	}

	if totalCount > 0 && s.logger != nil {
		s.logger.InfoContext(ctx, "deleted old reminder marks",
			"count", totalCount,
			"max_age", s.config.ReminderMarkMaxAge,
		)
	}

	return totalCount, nil
}

type cleanupMetrics struct {
	TimedOutCount      int64
	TimedOutErr        error
	ExpiredCount       int64
	ExpiredErr         error
	NotificationsCount int64
	NotificationsErr   error
	MarksCount         int64
	MarksErr           error
	Elapsed            time.Duration
}

func (s *ReaperService) emitCleanupMetrics(m cleanupMetrics) {
	if s.metrics == nil {
		return
	}

	totalCount := m.TimedOutCount + m.ExpiredCount + m.NotificationsCount + m.MarksCount
	firstErr := firstError(m.TimedOutErr, m.ExpiredErr, m.NotificationsErr, m.MarksErr)

	result := metrics.ResultSuccess
	if firstErr != nil {
		result = metrics.ResultError
	} else if totalCount == 0 {
		result = metrics.ResultNoop
	}

	tags := map[string]string{
		"result": result,
	}

	if firstErr != nil {
		if class := obserrors.Classify(firstErr); class != "" {
			tags["error_class"] = class
		}
	}

	s.metrics.Count("reaper.cleanup", 1, tags)

	if m.Elapsed > 0 {
		s.metrics.Timing("reaper.cleanup_duration", m.Elapsed, metrics.CloneTags(tags))
	}

	s.emitCleanupOperationMetric("fail_timed_out", m.TimedOutCount, m.TimedOutErr)
	s.emitCleanupOperationMetric("expire_jobs", m.ExpiredCount, m.ExpiredErr)
	s.emitCleanupOperationMetric("delete_notifications", m.NotificationsCount, m.NotificationsErr)
	s.emitCleanupOperationMetric("delete_reminder_marks", m.MarksCount, m.MarksErr)

	if firstErr == nil {
		s.metrics.Gauge("reaper.last_success_epoch", float64(time.Now().Unix()), nil)
	}
}

func (s *ReaperService) emitCleanupOperationMetric(operation string, count int64, err error) {
	if s.metrics == nil {
		return
	}

	result := metrics.ResultSuccess
	if err != nil {
		result = metrics.ResultError
	} else if count == 0 {
		result = metrics.ResultNoop
	}

	tags := map[string]string{
		"operation": operation,
		"result":    result,
	}

	if err != nil {
		if class := obserrors.Classify(err); class != "" {
			tags["error_class"] = class
		}
	}

	s.metrics.Count("reaper.cleanup_operation", 1, tags)

	if err == nil && count > 0 {
		s.metrics.Count("reaper.rows_processed", count, metrics.CloneTags(tags))
	}
}

func (s *ReaperService) logCleanupError(err error, label string) {
	if err == nil || s.logger == nil {
		return
	}

	if isContextCancellation(err) {
		s.logger.Debug(label+" cancelled by context", "error", err)
		return
	}

	s.logger.Error(label+" failed", "error", err)
}

func firstError(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func isContextCancellation(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func suppressContextCancellation(err error) error {
	if isContextCancellation(err) {
		return nil
	}
	return err
}
