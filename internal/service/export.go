package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/sproutlog/sproutlog/internal/core"
	"github.com/sproutlog/sproutlog/internal/domain/model"
	apperrors "github.com/sproutlog/sproutlog/internal/errors"
	"github.com/sproutlog/sproutlog/internal/observability/metrics"
	"github.com/sproutlog/sproutlog/internal/observability/statsd"
)

// ExportService manages the export job lifecycle: submission, polling,
// result retrieval, and worker-side execution.
type ExportService struct {
	jobs     core.JobRepository
	gate     core.CapabilityGate
	renderer core.PageRenderer
	results  core.ResultStore
	logger   *slog.Logger
	metrics  statsd.Sink
}

// ExportServiceOptions groups dependencies for ExportService.
type ExportServiceOptions struct {
	Jobs     core.JobRepository // Required: job repository
	Gate     core.CapabilityGate
	Renderer core.PageRenderer
	Results  core.ResultStore
	Logger   *slog.Logger // Optional: structured logger
	Metrics  statsd.Sink  // Optional: metrics sink (StatsD-compatible)
}

// NewExportService constructs a new ExportService.
func NewExportService(opts ExportServiceOptions) (*ExportService, error) {
	if opts.Jobs == nil {
		return nil, errors.New("JobRepository is required")
	}
	if opts.Gate == nil {
		return nil, errors.New("CapabilityGate is required")
	}
	if opts.Renderer == nil {
		return nil, errors.New("PageRenderer is required")
	}
	if opts.Results == nil {
		return nil, errors.New("ResultStore is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &ExportService{
		jobs:     opts.Jobs,
		gate:     opts.Gate,
		renderer: opts.Renderer,
		results:  opts.Results,
		logger:   logger.With("component", "export_service"),
		metrics:  opts.Metrics,
	}, nil
}

// Submit creates a queued export job after verifying the requester may read
// the child's record.
func (s *ExportService) Submit(ctx context.Context, req *model.CreateJobRequest) (*model.Job, error) {
	if err := req.Validate(); err != nil {
		return nil, apperrors.Validation(err.Error())
	}

	allowed, err := s.gate.CanRead(ctx, req.OwnerID, req.ChildID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "capability check failed")
	}
	if !allowed {
		return nil, apperrors.PermissionDenied("requester has no access to this child")
	}

	job, err := s.jobs.Create(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("create export job: %w", err)
	}

	s.logger.InfoContext(ctx, "export job submitted",
		"job_id", job.ID,
		"child_id", job.ChildID,
		"format", job.Format)

	if s.metrics != nil {
		metrics.EmitExportLifecycle(s.metrics, metrics.ExportMetric{
			Format:     string(job.Format),
			Transition: "submitted",
			Result:     metrics.ResultSuccess,
		})
	}

	return job, nil
}

// GetStatus returns the polling snapshot of a job. Requesters only see their
// own jobs; a foreign job is indistinguishable from a missing one.
func (s *ExportService) GetStatus(ctx context.Context, jobID, requesterID string) (*model.JobStatus, error) {
	job, err := s.ownedJob(ctx, jobID, requesterID)
	if err != nil {
		return nil, err
	}
	status := job.StatusSnapshot()
	return &status, nil
}

// FetchResult returns the rendered payload of a succeeded job. Jobs that are
// still in flight report not-ready; expired and failed jobs have no result.
func (s *ExportService) FetchResult(ctx context.Context, jobID, requesterID string) (string, []byte, error) {
	job, err := s.ownedJob(ctx, jobID, requesterID)
	if err != nil {
		return "", nil, err
	}

	switch job.State {
	case model.JobStateQueued, model.JobStateRunning:
		return "", nil, apperrors.NotReady("export is still in progress")
	case model.JobStateFailed:
		return "", nil, apperrors.NotFound("export failed; no result available")
	case model.JobStateExpired:
		return "", nil, apperrors.NotFound("export result has been reclaimed")
	}

	if job.ResultKey == nil {
		return "", nil, apperrors.NotFound("export result has been reclaimed")
	}

	contentType, payload, err := s.results.Get(ctx, *job.ResultKey)
	if err != nil {
		if errors.Is(err, model.ErrResultNotFound) {
			return "", nil, apperrors.NotFound("export result has been reclaimed")
		}
		return "", nil, fmt.Errorf("fetch export result: %w", err)
	}
	return contentType, payload, nil
}

func (s *ExportService) ownedJob(ctx context.Context, jobID, requesterID string) (*model.Job, error) {
	if jobID == "" || requesterID == "" {
		return nil, apperrors.Validation("job id and requester id are required")
	}

	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, model.ErrJobNotFound) {
			return nil, apperrors.NotFoundf("export job %s not found", jobID)
		}
		return nil, fmt.Errorf("load export job: %w", err)
	}
	if job.OwnerID != requesterID {
		// Foreign jobs look exactly like missing ones.
		return nil, apperrors.NotFoundf("export job %s not found", jobID)
	}
	return job, nil
}

// progressPerSection is the progress increment contributed by each rendered
// section. The final section write is folded into Complete's forced 100.
func progressPerSection(total int) int {
	if total <= 0 {
		return 100
	}
	return 100 / total
}

// Execute renders a claimed job section by section and stores the result.
// Before every durable write the job's running state is re-checked through
// the state-guarded repository updates; a lost claim aborts with
// model.ErrClaimLost and no further writes.
func (s *ExportService) Execute(ctx context.Context, job *model.Job) error {
	start := time.Now()
	sections := core.ReportSections()
	step := progressPerSection(len(sections))

	payload := make([]byte, 0, 4096)
	for i, section := range sections {
		rendered, err := s.renderer.RenderSection(ctx, core.RenderSectionRequest{
			ChildID: job.ChildID,
			Format:  job.Format,
			Section: section,
		})
		if err != nil {
			return s.failJob(ctx, job, model.JobErrorRenderFailure, start,
				fmt.Errorf("render section %s: %w", section, err))
		}
		// An empty section is a valid render; partial data never fails a job.
		payload = append(payload, rendered...)

		ok, err := s.jobs.UpdateProgress(ctx, job.ID, (i+1)*step)
		if err != nil {
			return fmt.Errorf("update progress: %w", err)
		}
		if !ok {
			s.logger.WarnContext(ctx, "export claim lost mid-render",
				"job_id", job.ID, "section", section)
			return model.ErrClaimLost
		}
	}

	resultKey := uuid.NewString()
	if err := s.results.Put(ctx, resultKey, contentTypeFor(job.Format), payload); err != nil {
		return s.failJob(ctx, job, model.JobErrorRenderFailure, start,
			fmt.Errorf("store export result: %w", err))
	}

	ok, err := s.jobs.Complete(ctx, job.ID, resultKey)
	if err != nil {
		return fmt.Errorf("complete export job: %w", err)
	}
	if !ok {
		// Claim lost after the payload was stored; remove the orphan so the
		// reaper does not have to find it.
		if delErr := s.results.Delete(ctx, resultKey); delErr != nil {
			s.logger.WarnContext(ctx, "failed to delete orphaned export result",
				"job_id", job.ID, "result_key", resultKey, "error", delErr)
		}
		return model.ErrClaimLost
	}

	s.logger.InfoContext(ctx, "export job completed",
		"job_id", job.ID,
		"format", job.Format,
		"bytes", len(payload),
		"elapsed", time.Since(start))

	if s.metrics != nil {
		metrics.EmitExportLifecycle(s.metrics, metrics.ExportMetric{
			Format:     string(job.Format),
			Transition: "completed",
			Result:     metrics.ResultSuccess,
			Duration:   time.Since(start),
		})
	}

	return nil
}

func (s *ExportService) failJob(ctx context.Context, job *model.Job, errorCode string, start time.Time, cause error) error {
	ok, err := s.jobs.Fail(ctx, job.ID, errorCode)
	if err != nil {
		return errors.Join(cause, fmt.Errorf("fail export job: %w", err))
	}
	if !ok {
		s.logger.WarnContext(ctx, "export claim lost while failing job",
			"job_id", job.ID, "error", cause)
		return model.ErrClaimLost
	}

	s.logger.ErrorContext(ctx, "export job failed",
		"job_id", job.ID,
		"error_code", errorCode,
		"error", cause)

	if s.metrics != nil {
		metrics.EmitExportLifecycle(s.metrics, metrics.ExportMetric{
			Format:     string(job.Format),
			Transition: "failed",
			Result:     metrics.ResultError,
			Duration:   time.Since(start),
			Err:        cause,
		})
	}

	return nil
}

func contentTypeFor(format model.ExportFormat) string {
	switch format {
	case model.ExportFormatPDF:
		return "application/pdf"
	case model.ExportFormatCSV:
		return "text/csv"
	default:
		return "application/octet-stream"
	}
}
