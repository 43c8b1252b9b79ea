package jobs

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dhruvbajaj/finsentry/internal/domain"
	"github.com/dhruvbajaj/finsentry/internal/normalize"
)

// JobType represents the type of job to be executed.
type JobType string

const (
	// JobTypeAnalyzeBatch represents a transaction batch analysis job.
	JobTypeAnalyzeBatch JobType = "analyze_batch"
)

// JobStatus represents the current status of a job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusRetrying  JobStatus = "retrying"
)

// AnalyzeBatchJob carries a batch of raw transaction inputs through the
// analysis pipeline asynchronously. RawInputs hold the undecoded payloads;
// the worker decodes them with normalize.FromJSON so malformed entries
// degrade to safe defaults instead of failing the whole batch.
type AnalyzeBatchJob struct {
	// JobID is the unique identifier for this job.
	JobID string `json:"job_id"`

	// RawInputs are the undecoded transaction payloads to analyze.
	RawInputs []json.RawMessage `json:"raw_inputs"`

	// SourceHint forces the input source when known; empty means detect.
	SourceHint normalize.Source `json:"source_hint,omitempty"`

	// History is the transaction history used for velocity and cashflow
	// context.
	History []domain.HistoryEntry `json:"history,omitempty"`

	// Vendors is the known vendor book.
	Vendors map[string]domain.VendorProfile `json:"vendors,omitempty"`

	// CurrentBalance is the account balance at analysis time.
	CurrentBalance float64 `json:"current_balance"`

	// Status is the current status of the job.
	Status JobStatus `json:"status"`

	// CreatedAt is when the job was created.
	CreatedAt time.Time `json:"created_at"`

	// StartedAt is when the job started processing.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// CompletedAt is when the job completed (success or failure).
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Error contains error details if the job failed.
	Error string `json:"error,omitempty"`

	// RetryCount is the number of times this job has been retried.
	RetryCount int `json:"retry_count"`

	// MaxRetries is the maximum number of retries allowed.
	MaxRetries int `json:"max_retries"`
}

// Job is a generic interface for all job types.
type Job interface {
	GetID() string
	GetType() JobType
	GetStatus() JobStatus
}

// GetID implements the Job interface.
func (j *AnalyzeBatchJob) GetID() string {
	return j.JobID
}

// GetType implements the Job interface.
func (j *AnalyzeBatchJob) GetType() JobType {
	return JobTypeAnalyzeBatch
}

// GetStatus implements the Job interface.
func (j *AnalyzeBatchJob) GetStatus() JobStatus {
	return j.Status
}

// Publisher defines the interface for publishing jobs to a queue.
// This abstraction allows for different queue implementations.
type Publisher interface {
	// PublishAnalyzeBatch publishes a batch analysis job.
	PublishAnalyzeBatch(ctx context.Context, job *AnalyzeBatchJob) error

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

// JobHandler is a function that processes a job.
// It should return an error if the job failed and should be retried.
type JobHandler func(ctx context.Context, job Job) error

// JobStore defines the interface for storing and retrieving job status.
type JobStore interface {
	// SaveJob saves or updates a job's state.
	SaveJob(ctx context.Context, job *AnalyzeBatchJob) error

	// GetJob retrieves a job by ID.
	GetJob(ctx context.Context, jobID string) (*AnalyzeBatchJob, error)

	// ListJobs retrieves jobs with optional filtering.
	ListJobs(ctx context.Context, filter JobFilter) ([]*AnalyzeBatchJob, error)

	// UpdateJobStatus updates the status of a job.
	UpdateJobStatus(ctx context.Context, jobID string, status JobStatus, errorMsg string) error
}

// JobFilter defines filtering criteria for listing jobs.
type JobFilter struct {
	// Status filters jobs by status.
	Status JobStatus

	// Limit limits the number of results.
	Limit int

	// Offset for pagination.
	Offset int
}
