package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	// Common domain errors
	ErrNotFound             = errors.New("entity not found")
	ErrAlreadyExists        = errors.New("entity already exists")
	ErrInvalidArgument      = errors.New("invalid argument")
	ErrInvalidTransition    = errors.New("invalid project state transition")
	ErrGenerationInProgress = errors.New("generation already in progress")
	ErrNoAssets             = errors.New("project has no generated assets")
	ErrCanceled             = errors.New("generation canceled")
	ErrReadDatabaseRow      = errors.New("failed to read database row")
	ErrInvalidExecContext   = errors.New("invalid executor context")

	// Pipeline error kinds; the typed errors below match them through errors.Is.
	ErrPlanInvalid          = errors.New("plan invalid")
	ErrProducerFailure      = errors.New("producer failure")
	ErrProducerTimeout      = errors.New("producer timeout")
	ErrConfigurationMissing = errors.New("configuration missing")
	ErrSceneBatchAborted    = errors.New("scene batch aborted")
	ErrDownloadFailed       = errors.New("payload download failed")
)

// PlanInvalidError reports a timeline that failed the coverage check.
type PlanInvalidError struct {
	Reason string
}

func (e *PlanInvalidError) Error() string {
	return fmt.Sprintf("plan invalid: %s", e.Reason)
}

func (e *PlanInvalidError) Is(target error) bool { return target == ErrPlanInvalid }

// ProducerFailureError is returned when an external job reports FAILED or CANCELED.
// It must not be retried blindly.
type ProducerFailureError struct {
	Producer string
	JobID    string
	State    string
	Detail   string
}

func (e *ProducerFailureError) Error() string {
	return fmt.Sprintf("producer %s job %s %s: %s", e.Producer, e.JobID, e.State, e.Detail)
}

func (e *ProducerFailureError) Is(target error) bool { return target == ErrProducerFailure }

// ProducerTimeoutError is returned when the poll budget is exhausted before the job
// reached a terminal status. A fresh submission is safe.
type ProducerTimeoutError struct {
	Producer string
	JobID    string
	Attempts int
	Elapsed  time.Duration
}

func (e *ProducerTimeoutError) Error() string {
	return fmt.Sprintf("producer %s job %s did not finish after %d polls (%s)", e.Producer, e.JobID, e.Attempts, e.Elapsed.Round(time.Millisecond))
}

func (e *ProducerTimeoutError) Is(target error) bool { return target == ErrProducerTimeout }

// Retryable reports that a timed-out job may be resubmitted.
func (e *ProducerTimeoutError) Retryable() bool { return true }

// DownloadError is returned when a job succeeded but fetching its payload
// did not. The job need not be resubmitted; the reference can be fetched again.
type DownloadError struct {
	Producer string
	JobID    string
	Ref      string
	Cause    error
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("producer %s job %s: download %s: %v", e.Producer, e.JobID, e.Ref, e.Cause)
}

func (e *DownloadError) Is(target error) bool { return target == ErrDownloadFailed }

func (e *DownloadError) Unwrap() error { return e.Cause }

func (e *DownloadError) Retryable() bool { return true }

// ConfigurationMissingError is raised before any network call or state change.
type ConfigurationMissingError struct {
	Key string
}

func (e *ConfigurationMissingError) Error() string {
	return fmt.Sprintf("configuration missing: %s", e.Key)
}

func (e *ConfigurationMissingError) Is(target error) bool { return target == ErrConfigurationMissing }

// SceneBatchAbortedError carries the scene that stopped a fail-fast batch.
type SceneBatchAbortedError struct {
	Scene int
	Cause error
}

func (e *SceneBatchAbortedError) Error() string {
	return fmt.Sprintf("scene batch aborted at scene %d: %v", e.Scene, e.Cause)
}

func (e *SceneBatchAbortedError) Is(target error) bool { return target == ErrSceneBatchAborted }

func (e *SceneBatchAbortedError) Unwrap() error { return e.Cause }

// IsRetryable reports whether err may be retried: a timed-out job with a fresh
// submission, a failed download by fetching the reference again.
func IsRetryable(err error) bool {
	var r interface{ Retryable() bool }
	if errors.As(err, &r) {
		return r.Retryable()
	}
	return false
}

// ErrorKind maps an error onto the short label stored with progress snapshots
// and used as a metrics label.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrCanceled):
		return "canceled"
	case errors.Is(err, ErrProducerTimeout):
		return "producer_timeout"
	case errors.Is(err, ErrProducerFailure):
		return "producer_failure"
	case errors.Is(err, ErrDownloadFailed):
		return "download_failed"
	case errors.Is(err, ErrConfigurationMissing):
		return "configuration_missing"
	case errors.Is(err, ErrPlanInvalid):
		return "plan_invalid"
	case errors.Is(err, ErrSceneBatchAborted):
		return "scene_batch_aborted"
	default:
		return "internal"
	}
}
