package types

import (
	"fmt"

	"github.com/google/uuid"
)

// ErrValidation indicates bad input at enqueue or update time.
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

// ErrConfiguration indicates a missing or unusable generation configuration.
type ErrConfiguration struct {
	Message string
	Cause   error
}

func (e *ErrConfiguration) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("configuration error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("configuration error: %s", e.Message)
}

func (e *ErrConfiguration) Unwrap() error { return e.Cause }

// ErrCredential indicates missing or undecryptable credentials.
type ErrCredential struct {
	Message string
	Cause   error
}

func (e *ErrCredential) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("credential error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("credential error: %s", e.Message)
}

func (e *ErrCredential) Unwrap() error { return e.Cause }

// ErrContentGeneration indicates a failure from the language-model provider.
type ErrContentGeneration struct {
	Message string
	// StatusCode is the provider HTTP status when known, 0 otherwise.
	StatusCode int
	// PolicyViolation marks content rejected by the provider's safety policy.
	PolicyViolation bool
	Cause           error
}

func (e *ErrContentGeneration) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("content generation failed: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("content generation failed: %s", e.Message)
}

func (e *ErrContentGeneration) Unwrap() error { return e.Cause }

// ErrImageGeneration indicates a failure from the image provider.
type ErrImageGeneration struct {
	Message    string
	StatusCode int
	Cause      error
}

func (e *ErrImageGeneration) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("image generation failed: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("image generation failed: %s", e.Message)
}

func (e *ErrImageGeneration) Unwrap() error { return e.Cause }

// ErrPublish indicates a failure talking to the publishing target.
type ErrPublish struct {
	Message    string
	StatusCode int
	Cause      error
}

func (e *ErrPublish) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("publish failed: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("publish failed: %s", e.Message)
}

func (e *ErrPublish) Unwrap() error { return e.Cause }

// ErrStorage indicates a failure uploading or organizing generated assets.
type ErrStorage struct {
	Message string
	Cause   error
}

func (e *ErrStorage) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("storage error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("storage error: %s", e.Message)
}

func (e *ErrStorage) Unwrap() error { return e.Cause }

// ErrTimeout indicates a phase exceeded its configured deadline.
type ErrTimeout struct {
	Operation string
	Cause     error
}

func (e *ErrTimeout) Error() string {
	return fmt.Sprintf("operation timed out: %s", e.Operation)
}

func (e *ErrTimeout) Unwrap() error { return e.Cause }

// ErrInvalidTransition indicates a status change not permitted by the
// transition matrix. The job is left unchanged when this is returned.
type ErrInvalidTransition struct {
	JobID uuid.UUID
	From  JobStatus
	To    JobStatus
}

func (e *ErrInvalidTransition) Error() string {
	return fmt.Sprintf("invalid status transition for job %s: %s -> %s", e.JobID, e.From, e.To)
}

// ErrInvalidOperation indicates an operation rejected in the job's current
// state, e.g. cancelling a processing job.
type ErrInvalidOperation struct {
	JobID   uuid.UUID
	Message string
}

func (e *ErrInvalidOperation) Error() string {
	return fmt.Sprintf("invalid operation on job %s: %s", e.JobID, e.Message)
}

// ErrJobNotFound indicates the job does not exist.
type ErrJobNotFound struct {
	JobID uuid.UUID
}

func (e *ErrJobNotFound) Error() string {
	return fmt.Sprintf("job not found: %s", e.JobID)
}

// ErrConfigurationNotFound indicates the referenced configuration does not exist.
type ErrConfigurationNotFound struct {
	ConfigurationID uuid.UUID
}

func (e *ErrConfigurationNotFound) Error() string {
	return fmt.Sprintf("configuration not found: %s", e.ConfigurationID)
}

// ErrRateLimited indicates the provider returned a too-many-requests signal.
// It is kept separate from the provider error types so the retry policy can
// apply its fixed delay regardless of which provider raised it.
type ErrRateLimited struct {
	API   string
	Cause error
}

func (e *ErrRateLimited) Error() string {
	return fmt.Sprintf("rate limited by %s", e.API)
}

func (e *ErrRateLimited) Unwrap() error { return e.Cause }
