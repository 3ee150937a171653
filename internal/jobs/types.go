package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrJobNotFound is returned by a JobStore for unknown job IDs.
var ErrJobNotFound = errors.New("job not found")

// JobType represents the type of job to be executed.
type JobType string

const (
	// JobTypeGenerateBills recomputes bills for one or every active card.
	JobTypeGenerateBills JobType = "generate_bills"
	// JobTypeRepairInstallments runs the installment normalizer.
	JobTypeRepairInstallments JobType = "repair_installments"
)

// JobStatus represents the current status of a job.
type JobStatus string

const (
	// JobStatusPending indicates the job is waiting to be processed.
	JobStatusPending JobStatus = "pending"
	// JobStatusRunning indicates the job is currently being processed.
	JobStatusRunning JobStatus = "running"
	// JobStatusCompleted indicates the job completed successfully.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed indicates the job failed.
	JobStatusFailed JobStatus = "failed"
	// JobStatusRetrying indicates the job failed and is being retried.
	JobStatusRetrying JobStatus = "retrying"
)

// GenerateBillsParams selects the cards and window of a bill generation job.
type GenerateBillsParams struct {
	// CardID limits the run to one card; empty means every active card.
	CardID        string `json:"card_id,omitempty"`
	MonthsBack    int    `json:"months_back"`
	MonthsForward int    `json:"months_forward"`
}

// RepairInstallmentsParams mirrors the normalizer's run options.
type RepairInstallmentsParams struct {
	UserID  string `json:"user_id,omitempty"`
	Limit   int    `json:"limit,omitempty"`
	Execute bool   `json:"execute"`
}

// Job is one unit of background work and its tracked state. Exactly one of
// the params fields is set, matching Type.
type Job struct {
	JobID  string    `json:"job_id"`
	Type   JobType   `json:"type"`
	Status JobStatus `json:"status"`

	GenerateBills      *GenerateBillsParams      `json:"generate_bills,omitempty"`
	RepairInstallments *RepairInstallmentsParams `json:"repair_installments,omitempty"`

	// Result is the JSON-encoded report of a completed run.
	Result json.RawMessage `json:"result,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Error contains error details if the job failed.
	Error string `json:"error,omitempty"`

	RetryCount int `json:"retry_count"`
	MaxRetries int `json:"max_retries"`
}

// NewGenerateBillsJob builds a pending bill generation job.
func NewGenerateBillsJob(params GenerateBillsParams) *Job {
	return &Job{Type: JobTypeGenerateBills, GenerateBills: &params}
}

// NewRepairInstallmentsJob builds a pending installment repair job.
func NewRepairInstallmentsJob(params RepairInstallmentsParams) *Job {
	return &Job{Type: JobTypeRepairInstallments, RepairInstallments: &params}
}

// Publisher defines the interface for publishing jobs to a queue.
type Publisher interface {
	// Publish enqueues a job, assigning its ID and initial status.
	Publish(ctx context.Context, job *Job) error

	// Close closes the publisher and releases resources.
	Close() error
}

// Consumer defines the interface for consuming jobs from a queue.
type Consumer interface {
	// Start begins consuming jobs from the queue.
	// The handler function is called for each job received.
	Start(ctx context.Context, handler JobHandler) error

	// Stop stops consuming jobs and waits for in-flight jobs to complete.
	Stop(ctx context.Context) error
}

// JobHandler processes a job and returns its report. A returned error marks
// the job for retry.
type JobHandler func(ctx context.Context, job *Job) (any, error)

// JobStore defines the interface for storing and retrieving job status.
type JobStore interface {
	// SaveJob saves or updates a job's state.
	SaveJob(ctx context.Context, job *Job) error

	// GetJob retrieves a job by ID.
	GetJob(ctx context.Context, jobID string) (*Job, error)

	// ListJobs retrieves jobs with optional filtering, newest first.
	ListJobs(ctx context.Context, filter JobFilter) ([]*Job, error)

	// UpdateJobStatus updates the status of a job.
	UpdateJobStatus(ctx context.Context, jobID string, status JobStatus, errorMsg string) error
}

// JobFilter defines filtering criteria for listing jobs.
type JobFilter struct {
	// Type filters jobs by type.
	Type JobType

	// Status filters jobs by status.
	Status JobStatus

	// Limit limits the number of results.
	Limit int

	// Offset for pagination.
	Offset int
}
