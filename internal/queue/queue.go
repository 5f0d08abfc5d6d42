package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	// Queue names
	QueueRegistration     = "referral:registration"
	QueueTransactionBonus = "referral:transaction_bonus"
	QueuePartnerCheck     = "referral:partner_check"

	// Default values
	DefaultRetryCount = 3
	DefaultTTL        = 24 * time.Hour
)

// JobStatus defines the status of a job
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Job represents a background job
type Job struct {
	ID         string          `json:"id"`
	Queue      string          `json:"queue"`
	Payload    json.RawMessage `json:"payload"`
	Status     JobStatus       `json:"status"`
	RetryCount int             `json:"retry_count"`
	MaxRetries int             `json:"max_retries"`
	Error      string          `json:"error,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
	RunAt      time.Time       `json:"run_at"`
}

// Decode unmarshals the job payload into v
func (j *Job) Decode(v interface{}) error {
	if err := json.Unmarshal(j.Payload, v); err != nil {
		return Permanent(fmt.Errorf("invalid %s payload: %w", j.Queue, err))
	}
	return nil
}

// Handler processes one job. Returning an error schedules a retry unless the
// error is Permanent or retries are exhausted.
type Handler func(ctx context.Context, job *Job) error

// Enqueuer accepts new jobs
type Enqueuer interface {
	Enqueue(ctx context.Context, queueName string, payload interface{}, opts ...EnqueueOption) (string, error)
}

// Source hands jobs to a Processor and records their outcome
type Source interface {
	Dequeue(ctx context.Context, queueName string) (*Job, error)
	Complete(ctx context.Context, job *Job) error
	Fail(ctx context.Context, job *Job, jobErr error) error
}

// EnqueueOption modifies a job before it is stored
type EnqueueOption func(*Job)

// WithMaxRetries sets the maximum number of retries for a job
func WithMaxRetries(maxRetries int) EnqueueOption {
	return func(j *Job) {
		j.MaxRetries = maxRetries
	}
}

// WithJobID sets a specific job ID
func WithJobID(id string) EnqueueOption {
	return func(j *Job) {
		j.ID = id
	}
}

// WithDelay defers the first run of a job
func WithDelay(delay time.Duration) EnqueueOption {
	return func(j *Job) {
		j.RunAt = j.RunAt.Add(delay)
	}
}

// NewJob builds a pending job for queueName
func NewJob(queueName string, payload interface{}, now time.Time, opts ...EnqueueOption) (*Job, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	job := &Job{
		ID:         uuid.New().String(),
		Queue:      queueName,
		Payload:    payloadBytes,
		Status:     JobStatusPending,
		MaxRetries: DefaultRetryCount,
		CreatedAt:  now,
		UpdatedAt:  now,
		RunAt:      now,
	}
	for _, opt := range opts {
		opt(job)
	}
	return job, nil
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}
