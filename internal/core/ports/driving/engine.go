package driving

import (
	"context"

	"github.com/weave-nn/weaver/internal/core/domain"
)

// ExecutionEngine runs execution requests as checkpointed step sequences.
type ExecutionEngine interface {
	// Start launches the worker pool. Call Recover first to resume work
	// left over from a previous process.
	Start(ctx context.Context) error

	// Stop drains workers. Executions interrupted between steps are
	// suspended and resume on the next Recover.
	Stop(ctx context.Context) error

	// Recover re-enqueues pending, running and shutdown-suspended records
	// and returns how many were resumed.
	Recover(ctx context.Context) (int, error)

	// Submit accepts a request. Submitting a request twice returns the
	// record created the first time.
	Submit(ctx context.Context, req domain.ExecutionRequest) (*domain.ExecutionRecord, error)

	// Get returns one execution record.
	Get(ctx context.Context, executionID string) (*domain.ExecutionRecord, error)

	// List returns matching execution records.
	List(ctx context.Context, filter domain.ExecutionFilter) ([]domain.ExecutionRecord, error)

	// Cancel fails a pending or suspended record immediately and a running
	// record after its current step.
	Cancel(ctx context.Context, executionID string) (*domain.ExecutionRecord, error)

	// Suspend pauses a running record at its next step boundary.
	Suspend(ctx context.Context, executionID string) (*domain.ExecutionRecord, error)

	// Resume re-enqueues a suspended record.
	Resume(ctx context.Context, executionID string) (*domain.ExecutionRecord, error)

	// Retry moves a failed record back to pending, bounded per record.
	Retry(ctx context.Context, executionID string) (*domain.ExecutionRecord, error)
}
