package driven

import (
	"context"
	"time"

	"github.com/weave-nn/weaver/internal/core/domain"
)

// ExecutionStore persists execution records and their step results.
// Each method is one short transaction. Failures wrap domain.ErrStorage.
type ExecutionStore interface {
	// Create inserts a new record.
	Create(ctx context.Context, rec *domain.ExecutionRecord) error

	// Get returns a record with its committed step results.
	// Returns domain.ErrNotFound if no record has the ID.
	Get(ctx context.Context, executionID string) (*domain.ExecutionRecord, error)

	// GetByRequest returns the record created for a request.
	// Returns domain.ErrNotFound if the request has not been accepted.
	GetByRequest(ctx context.Context, requestID string) (*domain.ExecutionRecord, error)

	// Checkpoint persists the step index and the input about to be used,
	// and marks the record running.
	Checkpoint(ctx context.Context, executionID string, stepIndex int, input map[string]any, at time.Time) error

	// CommitStep appends a step result and advances the step index past it.
	// Returns domain.ErrStepIndex if result.StepIndex is not the record's
	// current step index.
	CommitStep(ctx context.Context, executionID string, result domain.StepResult, retryCount int, at time.Time) error

	// Update writes the record's state, error, counters and timestamps.
	// Step results and the step index are left untouched.
	Update(ctx context.Context, rec *domain.ExecutionRecord) error

	// ResetSteps deletes every step result and rewinds the step index to 0.
	ResetSteps(ctx context.Context, executionID string, at time.Time) error

	// List returns records matching filter, most recently started first.
	// A zero Limit returns every match.
	List(ctx context.Context, filter domain.ExecutionFilter) ([]domain.ExecutionRecord, error)
}
