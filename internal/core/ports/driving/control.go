package driving

import (
	"context"

	"github.com/weave-nn/weaver/internal/core/domain"
)

// TriggerResult is the outcome of a manual trigger.
type TriggerResult struct {
	// Request is the issued request.
	Request domain.ExecutionRequest `json:"request"`

	// Execution is the accepted record. A withheld request's record is
	// pending and queued.
	Execution *domain.ExecutionRecord `json:"execution,omitempty"`

	// Withheld is true when a busy concurrency slot queued the request.
	Withheld bool `json:"withheld"`
}

// ControlSurface is the request/response boundary for external callers.
// Every operation is stateless.
type ControlSurface interface {
	// QueryEntries returns one page of matching entries.
	QueryEntries(ctx context.Context, filter domain.EntryFilter, page domain.Page) (*domain.EntryPage, error)

	// GetEntry returns one entry by path.
	GetEntry(ctx context.Context, path string) (*domain.VaultEntry, error)

	// CountEntries aggregates matching entries.
	CountEntries(ctx context.Context, filter domain.EntryFilter) (*domain.EntryCounts, error)

	// Backlinks returns live entries linking to path.
	Backlinks(ctx context.Context, path string, page domain.Page) (*domain.EntryPage, error)

	// ListWorkflows returns matching workflows.
	ListWorkflows(ctx context.Context, filter domain.WorkflowFilter) ([]domain.WorkflowInfo, error)

	// SetWorkflowEnabled toggles a workflow.
	SetWorkflowEnabled(ctx context.Context, workflowID string, enabled bool) error

	// TriggerWorkflow runs a workflow with optional input.
	TriggerWorkflow(ctx context.Context, workflowID string, input map[string]any) (*TriggerResult, error)

	// GetExecution returns one execution record.
	GetExecution(ctx context.Context, executionID string) (*domain.ExecutionRecord, error)

	// ListExecutions returns records, newest first.
	ListExecutions(ctx context.Context, filter domain.ExecutionFilter) ([]domain.ExecutionRecord, error)

	// CancelExecution cancels an execution.
	CancelExecution(ctx context.Context, executionID string) (*domain.ExecutionRecord, error)

	// SuspendExecution suspends a running execution.
	SuspendExecution(ctx context.Context, executionID string) (*domain.ExecutionRecord, error)

	// ResumeExecution resumes a suspended execution.
	ResumeExecution(ctx context.Context, executionID string) (*domain.ExecutionRecord, error)

	// RetryExecution retries a failed execution.
	RetryExecution(ctx context.Context, executionID string) (*domain.ExecutionRecord, error)

	// Resync runs a full resync.
	Resync(ctx context.Context) (*domain.ResyncReport, error)
}
