package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedType indicates an unknown step type.
	ErrUnsupportedType = errors.New("unsupported type")

	// ErrDuplicateStepType indicates a step type name is already registered in a catalog.
	ErrDuplicateStepType = errors.New("step type already registered")

	// ErrStorage indicates the embedded store failed to commit an operation.
	// The operation was not applied and may be retried.
	ErrStorage = errors.New("storage failure")

	// Source Errors.

	// ErrSourceClosed indicates the change source has been closed.
	ErrSourceClosed = errors.New("change source closed")

	// ErrOutsideVault indicates a path resolves outside the vault root.
	ErrOutsideVault = errors.New("path outside vault")

	// Registry Errors.

	// ErrDuplicateID indicates a workflow with the same ID is already registered.
	ErrDuplicateID = errors.New("duplicate workflow id")

	// ErrInvalidWorkflow indicates a workflow definition failed validation.
	ErrInvalidWorkflow = errors.New("invalid workflow definition")

	// ErrInvalidPattern indicates a trigger pattern could not be parsed.
	ErrInvalidPattern = errors.New("invalid trigger pattern")

	// ErrWorkflowDisabled indicates the targeted workflow is disabled.
	ErrWorkflowDisabled = errors.New("workflow disabled")

	// ErrInvalidTriggerInput indicates trigger input does not satisfy the workflow's input schema.
	ErrInvalidTriggerInput = errors.New("invalid trigger input")

	// Execution Errors.

	// ErrCancelled is the distinguished error kind recorded on cancelled executions.
	ErrCancelled = errors.New("execution cancelled")

	// ErrInvalidTransition indicates a state change not permitted by the execution state machine.
	ErrInvalidTransition = errors.New("invalid execution state transition")

	// ErrRetriesExhausted indicates a step failed after every permitted attempt.
	ErrRetriesExhausted = errors.New("step retries exhausted")

	// ErrRetryLimit indicates an explicit retry was requested beyond the configured bound.
	ErrRetryLimit = errors.New("execution retry limit reached")

	// ErrStepIndex indicates a step commit did not match the record's current step index.
	ErrStepIndex = errors.New("step index mismatch")

	// ErrSlotBusy indicates the workflow's concurrency slot is held by another execution.
	ErrSlotBusy = errors.New("concurrency slot busy")

	// ErrEngineStopped indicates the execution engine is not accepting work.
	ErrEngineStopped = errors.New("execution engine stopped")
)

// DuplicateIDError is returned when registering a workflow whose ID is taken.
type DuplicateIDError struct {
	ID string
}

// Error implements the error interface.
func (e *DuplicateIDError) Error() string {
	return fmt.Sprintf("workflow %q already registered", e.ID)
}

// Is reports whether target is ErrDuplicateID.
func (e *DuplicateIDError) Is(target error) bool {
	return target == ErrDuplicateID
}

// StepError classifies a step body failure as retryable or permanent.
type StepError struct {
	Retryable bool
	Err       error
}

// Error implements the error interface.
func (e *StepError) Error() string {
	if e.Err == nil {
		return "step failed"
	}
	return e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *StepError) Unwrap() error {
	return e.Err
}

// Retryable wraps err as a retryable step failure.
func Retryable(err error) error {
	return &StepError{Retryable: true, Err: err}
}

// Permanent wraps err as a step failure that must not be retried.
func Permanent(err error) error {
	return &StepError{Retryable: false, Err: err}
}

// IsRetryable reports whether a step failure should be retried.
// Errors that are not StepErrors are treated as retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrCancelled) {
		return false
	}
	var se *StepError
	if errors.As(err, &se) {
		return se.Retryable
	}
	return true
}
