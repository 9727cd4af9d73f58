// Package model defines the core data types and structures used throughout the sproutlog job system.
package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ExportFormat represents the requested output format of an export job.
//
//nolint:recvcheck // UnmarshalText needs pointer receiver, Valid needs value receiver
type ExportFormat string

// JobState represents the current state of an export job.
type JobState string

const (
	// ExportFormatPDF renders the report as a multi-section PDF document.
	ExportFormatPDF ExportFormat = "pdf"
	// ExportFormatCSV renders the report as a CSV bundle.
	ExportFormatCSV ExportFormat = "csv"

	// JobStateQueued indicates a job is waiting to be claimed by a worker.
	JobStateQueued JobState = "queued"
	// JobStateRunning indicates a job is being executed by exactly one worker.
	JobStateRunning JobState = "running"
	// JobStateSucceeded indicates the job finished and a result is stored.
	JobStateSucceeded JobState = "succeeded"
	// JobStateFailed indicates the job aborted; the error code says why.
	JobStateFailed JobState = "failed"
	// JobStateExpired indicates the retention sweep reclaimed the job and its payload.
	JobStateExpired JobState = "expired"
)

// UnmarshalText implements encoding.TextUnmarshaler for ExportFormat to allow env parsing.
func (f *ExportFormat) UnmarshalText(text []byte) error {
	v := ExportFormat(strings.ToLower(strings.TrimSpace(string(text))))
	if v.Valid() {
		*f = v
		return nil
	}
	return fmt.Errorf("invalid ExportFormat: %q", v)
}

// Valid returns true if the ExportFormat is valid.
func (f ExportFormat) Valid() bool {
	return f == ExportFormatPDF || f == ExportFormatCSV
}

// Valid returns true if the JobState is valid.
func (s JobState) Valid() bool {
	return s == JobStateQueued || s == JobStateRunning || s == JobStateSucceeded ||
		s == JobStateFailed || s == JobStateExpired
}

// Terminal returns true for states that permit no further transitions.
func (s JobState) Terminal() bool {
	return s == JobStateSucceeded || s == JobStateFailed || s == JobStateExpired
}

// CanTransitionTo reports whether the state machine allows moving from s to next.
// Queued may be claimed (Running) or reclaimed (Expired); Running may finish,
// fail, or be reclaimed; terminal states go nowhere.
func (s JobState) CanTransitionTo(next JobState) bool {
	switch s {
	case JobStateQueued:
		return next == JobStateRunning || next == JobStateExpired
	case JobStateRunning:
		return next == JobStateSucceeded || next == JobStateFailed || next == JobStateExpired
	default:
		return false
	}
}

// ErrJobNotFound is returned when no job with the requested id exists.
var ErrJobNotFound = errors.New("job not found")

// ErrNoJobsAvailable is returned when no queued jobs are available to claim.
var ErrNoJobsAvailable = errors.New("no jobs available")

// ErrResultNotFound is returned when an export result payload is missing,
// either never written or already reclaimed by the retention sweep.
var ErrResultNotFound = errors.New("export result not found")

// ErrClaimLost is returned when a worker's exclusive claim on a job no longer
// holds (another sweep or watchdog moved the job); the worker must stop
// writing and exit without side effects.
var ErrClaimLost = errors.New("job claim lost")

// Job error codes recorded on failed jobs.
const (
	// JobErrorTimeout marks a job forcibly failed by the watchdog for
	// exceeding its execution budget.
	JobErrorTimeout = "timeout"
	// JobErrorRenderFailure marks a job failed because a report section
	// could not be rendered. Partial reports are never served.
	JobErrorRenderFailure = "render_failure"
)

// Job represents one export request and its lifecycle.
type Job struct {
	ID          string       `json:"id"                     db:"id"`
	OwnerID     string       `json:"owner_id"               db:"owner_id"`
	ChildID     string       `json:"child_id"               db:"child_id"`
	Format      ExportFormat `json:"format"                 db:"format"`
	State       JobState     `json:"state"                  db:"state"`
	Progress    int          `json:"progress"               db:"progress"`
	ResultKey   *string      `json:"result_key,omitempty"   db:"result_key"`
	ErrorCode   *string      `json:"error_code,omitempty"   db:"error_code"`
	ClaimedAt   *time.Time   `json:"claimed_at,omitempty"   db:"claimed_at"`
	CompletedAt *time.Time   `json:"completed_at,omitempty" db:"completed_at"`
	CreatedAt   time.Time    `json:"created_at"             db:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"             db:"updated_at"`
}

// CreateJobRequest represents a request to create a new export job.
type CreateJobRequest struct {
	OwnerID string       `json:"owner_id"`
	ChildID string       `json:"child_id"`
	Format  ExportFormat `json:"format"`
}

// Validate validates the CreateJobRequest fields.
func (r *CreateJobRequest) Validate() error {
	if strings.TrimSpace(r.OwnerID) == "" {
		return errors.New("owner id is required")
	}
	if strings.TrimSpace(r.ChildID) == "" {
		return errors.New("child id is required")
	}
	if !r.Format.Valid() {
		return errors.New("invalid export format")
	}
	return nil
}

// JobStatus is the polling snapshot served to the requester.
type JobStatus struct {
	JobID     string   `json:"job_id"`
	State     JobState `json:"state"`
	Progress  int      `json:"progress"`
	ErrorCode *string  `json:"error_code,omitempty"`
}

// StatusSnapshot returns the polling view of the job.
func (j *Job) StatusSnapshot() JobStatus {
	return JobStatus{
		JobID:     j.ID,
		State:     j.State,
		Progress:  j.Progress,
		ErrorCode: j.ErrorCode,
	}
}

// JobStats represents counts of jobs in each state.
type JobStats struct {
	Queued    int `json:"queued"`
	Running   int `json:"running"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Expired   int `json:"expired"`
}
