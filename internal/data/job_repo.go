// Package data provides Postgres and Redis implementations of the core ports.
package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/sproutlog/sproutlog/internal/domain/model"
)

// RepoConfig holds shared configuration options for the data repositories.
type RepoConfig struct {
	Logger       *slog.Logger
	TimeProvider TimeProvider
}

func (c RepoConfig) timeProvider() TimeProvider {
	if c.TimeProvider != nil {
		return c.TimeProvider
	}
	return &RealTimeProvider{}
}

// JobRepo provides database operations for export-job management.
type JobRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
	logger       *slog.Logger
}

// NewJobRepo creates a new JobRepo instance with the given database connection and configuration.
func NewJobRepo(db *sql.DB, cfg RepoConfig) *JobRepo {
	return &JobRepo{
		DB:           db,
		timeProvider: cfg.timeProvider(),
		logger:       cfg.Logger,
	}
}

const jobColumns = `
  id,
  owner_id,
  child_id,
  format,
  state,
  progress,
  result_key,
  error_code,
  claimed_at,
  completed_at,
  created_at,
  updated_at
`

// SQL used by Claim to atomically flip the oldest queued job to running.
// FOR UPDATE SKIP LOCKED makes the claim exclusive under concurrent workers.
const claimUpdateSQL = `
  WITH cte AS (
    SELECT id FROM export_jobs
    WHERE state = 'queued'
    ORDER BY created_at ASC
    LIMIT 1
    FOR UPDATE SKIP LOCKED
  )
  UPDATE export_jobs j
  SET state = 'running',
      claimed_at = $1,
      updated_at = $1
  FROM cte
  WHERE j.id = cte.id
  RETURNING ` + jobColumns

// Create inserts a new queued export job.
func (r *JobRepo) Create(ctx context.Context, req *model.CreateJobRequest) (*model.Job, error) {
	if req == nil {
		return nil, errors.New("create job request is required")
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	now := r.timeProvider.Now().UTC()
	row := r.DB.QueryRowContext(ctx, `
		INSERT INTO export_jobs (id, owner_id, child_id, format, state, progress, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 'queued', 0, $5, $5)
		RETURNING `+jobColumns,
		uuid.NewString(), req.OwnerID, req.ChildID, req.Format, now,
	)

	job, err := scanJob(row)
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}
	return job, nil
}

// GetByID retrieves a job by its id.
func (r *JobRepo) GetByID(ctx context.Context, id string) (*model.Job, error) {
	row := r.DB.QueryRowContext(ctx, `
		SELECT `+jobColumns+`
		FROM export_jobs
		WHERE id = $1
	`, id)

	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// Claim reserves the oldest queued job for the calling worker. Exactly one
// concurrent caller observes the queued->running flip for a given job.
func (r *JobRepo) Claim(ctx context.Context) (*model.Job, error) {
	now := r.timeProvider.Now().UTC()

	row := r.DB.QueryRowContext(ctx, claimUpdateSQL, now)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNoJobsAvailable
	}
	if err != nil {
		return nil, fmt.Errorf("claim job: %w", err)
	}
	return job, nil
}

// UpdateProgress records progress for a running job. GREATEST keeps the
// stored value non-decreasing even if updates arrive out of order; the state
// guard rejects writes after a watchdog or sweep took the job away.
func (r *JobRepo) UpdateProgress(ctx context.Context, id string, progress int) (bool, error) {
	if progress < 0 || progress > 100 {
		return false, fmt.Errorf("progress %d out of range", progress)
	}

	res, err := r.DB.ExecContext(ctx, `
		UPDATE export_jobs
		SET progress = GREATEST(progress, $2),
		    updated_at = $3
		WHERE id = $1 AND state = 'running'
	`, id, progress, r.timeProvider.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("update progress: %w", err)
	}
	return affected(res)
}

// Complete moves a running job to succeeded with the stored result key.
func (r *JobRepo) Complete(ctx context.Context, id string, resultKey string) (bool, error) {
	now := r.timeProvider.Now().UTC()
	res, err := r.DB.ExecContext(ctx, `
		UPDATE export_jobs
		SET state = 'succeeded',
		    progress = 100,
		    result_key = $2,
		    error_code = NULL,
		    completed_at = $3,
		    updated_at = $3
		WHERE id = $1 AND state = 'running'
	`, id, resultKey, now)
	if err != nil {
		return false, fmt.Errorf("complete job: %w", err)
	}
	return affected(res)
}

// Fail moves a running job to failed with the given error code. Any partial
// result reference is discarded; partial reports are never served.
func (r *JobRepo) Fail(ctx context.Context, id string, errorCode string) (bool, error) {
	now := r.timeProvider.Now().UTC()
	res, err := r.DB.ExecContext(ctx, `
		UPDATE export_jobs
		SET state = 'failed',
		    error_code = $2,
		    result_key = NULL,
		    completed_at = $3,
		    updated_at = $3
		WHERE id = $1 AND state = 'running'
	`, id, errorCode, now)
	if err != nil {
		return false, fmt.Errorf("fail job: %w", err)
	}
	return affected(res)
}

// ExpireOlderThan moves non-terminal jobs created before the cutoff to
// expired, clearing their result keys, and returns the expired rows so the
// caller can delete the stored payloads. The state guard makes the sweep
// safe to run concurrently with normal claim/complete traffic.
func (r *JobRepo) ExpireOlderThan(ctx context.Context, cutoff time.Time, batchSize int) ([]*model.Job, error) {
	if batchSize <= 0 {
		batchSize = 100
	}

	rows, err := r.DB.QueryContext(ctx, `
		WITH cte AS (
			SELECT id, result_key FROM export_jobs
			WHERE state IN ('queued', 'running')
			  AND created_at < $1
			ORDER BY created_at ASC
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		UPDATE export_jobs j
		SET state = 'expired',
		    result_key = NULL,
		    completed_at = $3,
		    updated_at = $3
		FROM cte
		WHERE j.id = cte.id
		RETURNING `+expiredJobColumns, cutoff.UTC(), batchSize, r.timeProvider.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("expire jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*model.Job
	for rows.Next() {
		job, scanErr := scanJob(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan expired job: %w", scanErr)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("expire jobs rows: %w", err)
	}
	return jobs, nil
}

// expiredJobColumns returns the pre-update result_key (from the CTE) so the
// sweep can reclaim stored payloads that the UPDATE just cleared.
const expiredJobColumns = `
  j.id,
  j.owner_id,
  j.child_id,
  j.format,
  j.state,
  j.progress,
  cte.result_key,
  j.error_code,
  j.claimed_at,
  j.completed_at,
  j.created_at,
  j.updated_at
`

// FailTimedOut fails running jobs claimed before the deadline with the
// timeout error code and returns the number of jobs failed.
func (r *JobRepo) FailTimedOut(ctx context.Context, claimedBefore time.Time, batchSize int) (int64, error) {
	if batchSize <= 0 {
		batchSize = 100
	}

	res, err := r.DB.ExecContext(ctx, `
		WITH cte AS (
			SELECT id FROM export_jobs
			WHERE state = 'running'
			  AND claimed_at IS NOT NULL
			  AND claimed_at < $1
			ORDER BY claimed_at ASC
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		UPDATE export_jobs j
		SET state = 'failed',
		    error_code = $3,
		    result_key = NULL,
		    completed_at = $4,
		    updated_at = $4
		FROM cte
		WHERE j.id = cte.id
	`, claimedBefore.UTC(), batchSize, model.JobErrorTimeout, r.timeProvider.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("fail timed out jobs: %w", err)
	}
	return res.RowsAffected()
}

// Stats returns counts of jobs in each state.
func (r *JobRepo) Stats(ctx context.Context) (*model.JobStats, error) {
	var s model.JobStats
	err := r.DB.QueryRowContext(ctx, `
	  SELECT
	    count(*) FILTER (WHERE state = 'queued')    AS queued,
	    count(*) FILTER (WHERE state = 'running')   AS running,
	    count(*) FILTER (WHERE state = 'succeeded') AS succeeded,
	    count(*) FILTER (WHERE state = 'failed')    AS failed,
	    count(*) FILTER (WHERE state = 'expired')   AS expired
	  FROM export_jobs
	`).Scan(&s.Queued, &s.Running, &s.Succeeded, &s.Failed, &s.Expired)
	if err != nil {
		return nil, fmt.Errorf("job stats: %w", err)
	}
	return &s, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(scanner rowScanner) (*model.Job, error) {
	var (
		job                   model.Job
		resultKey, errorCode  sql.NullString
		claimedAt, completedAt sql.NullTime
	)
	if err := scanner.Scan(
		&job.ID,
		&job.OwnerID,
		&job.ChildID,
		&job.Format,
		&job.State,
		&job.Progress,
		&resultKey,
		&errorCode,
		&claimedAt,
		&completedAt,
		&job.CreatedAt,
		&job.UpdatedAt,
	); err != nil {
		return nil, err
	}

	job.ResultKey = nullableString(resultKey)
	job.ErrorCode = nullableString(errorCode)
	job.ClaimedAt = nullableTime(claimedAt)
	job.CompletedAt = nullableTime(completedAt)
	return &job, nil
}

func nullableString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func nullableTime(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}

func affected(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}
