package domain

import "time"

// ExecutionState is the lifecycle state of an ExecutionRecord.
type ExecutionState string

// Execution states.
const (
	ExecutionPending   ExecutionState = "pending"
	ExecutionRunning   ExecutionState = "running"
	ExecutionSuspended ExecutionState = "suspended"
	ExecutionCompleted ExecutionState = "completed"
	ExecutionFailed    ExecutionState = "failed"
)

// IsValid returns true if the state is recognised.
func (s ExecutionState) IsValid() bool {
	switch s {
	case ExecutionPending, ExecutionRunning, ExecutionSuspended, ExecutionCompleted, ExecutionFailed:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the state ends an execution. A failed record
// may still be moved back to pending by an explicit retry.
func (s ExecutionState) IsTerminal() bool {
	return s == ExecutionCompleted || s == ExecutionFailed
}

// String returns the string representation.
func (s ExecutionState) String() string {
	return string(s)
}

// transitions lists the permitted state changes.
var transitions = map[ExecutionState][]ExecutionState{
	ExecutionPending:   {ExecutionRunning, ExecutionFailed},
	ExecutionRunning:   {ExecutionCompleted, ExecutionFailed, ExecutionSuspended},
	ExecutionSuspended: {ExecutionRunning, ExecutionFailed},
	ExecutionFailed:    {ExecutionPending},
}

// CanTransition reports whether from → to is permitted.
// pending → failed and suspended → failed are cancellations.
func CanTransition(from, to ExecutionState) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Error kinds recorded on failed executions.
const (
	ErrorKindStep      = "step_failed"
	ErrorKindCancelled = "cancelled"
	ErrorKindInternal  = "internal"
)

// Suspend reasons.
const (
	SuspendRequested = "requested"
	SuspendShutdown  = "shutdown"
)

// ExecutionRequest is one attempt to run a workflow against a trigger.
type ExecutionRequest struct {
	RequestID  string `json:"request_id"`
	WorkflowID string `json:"workflow_id"`

	// TriggerEvent is the vault event that matched. For manual triggers it is
	// a synthetic event; its Path may be empty.
	TriggerEvent *VaultEvent `json:"trigger_event,omitempty"`

	// TriggerInput is the caller-supplied input of a manual trigger.
	TriggerInput map[string]any `json:"trigger_input,omitempty"`

	// Manual marks requests issued through the control surface.
	Manual bool `json:"manual,omitempty"`

	// Queued marks a request withheld behind a busy concurrency slot. Its
	// record is created pending and starts once the slot is handed to it.
	Queued bool `json:"queued,omitempty"`

	RequestedAt time.Time `json:"requested_at"`
}

// TriggerPath returns the path of the triggering event, or "" for pathless triggers.
func (r *ExecutionRequest) TriggerPath() string {
	if r.TriggerEvent == nil {
		return ""
	}
	return r.TriggerEvent.Path
}

// StepResult is the committed outcome of one step.
type StepResult struct {
	StepIndex   int            `json:"step_index"`
	StepName    string         `json:"step_name"`
	Success     bool           `json:"success"`
	Output      map[string]any `json:"output,omitempty"`
	Error       string         `json:"error,omitempty"`
	Attempts    int            `json:"attempts"`
	StartedAt   time.Time      `json:"started_at"`
	CompletedAt time.Time      `json:"completed_at"`
}

// ExecutionError is the verbatim failure detail of a failed execution.
type ExecutionError struct {
	Kind      string `json:"kind"`
	Message   string `json:"message"`
	StepIndex int    `json:"step_index"`
}

// ExecutionRecord is the durable state of one workflow run.
type ExecutionRecord struct {
	ExecutionID string         `json:"execution_id"`
	RequestID   string         `json:"request_id"`
	WorkflowID  string         `json:"workflow_id"`
	State       ExecutionState `json:"state"`

	// CurrentStepIndex is the next step to run. It only moves forward,
	// except when an explicit whole-workflow retry resets it.
	CurrentStepIndex int `json:"current_step_index"`

	// PendingInput is the input persisted before running CurrentStepIndex.
	PendingInput map[string]any `json:"pending_input,omitempty"`

	StepResults []StepResult `json:"step_results"`

	TriggerEvent *VaultEvent    `json:"trigger_event,omitempty"`
	TriggerInput map[string]any `json:"trigger_input,omitempty"`

	StartedAt   time.Time       `json:"started_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
	Error       *ExecutionError `json:"error,omitempty"`

	// RetryCount counts step retries plus explicit execution retries.
	RetryCount int `json:"retry_count"`

	// ManualRetries counts explicit failed → pending retries.
	ManualRetries int `json:"manual_retries"`

	// SuspendReason is set while the record is suspended.
	SuspendReason string `json:"suspend_reason,omitempty"`

	// Queued is set on a record waiting for its concurrency slot, usually
	// while pending. Workers never pick up a queued record.
	Queued bool `json:"queued,omitempty"`
}

// TriggerPath returns the path of the triggering event, or "".
func (r *ExecutionRecord) TriggerPath() string {
	if r.TriggerEvent == nil {
		return ""
	}
	return r.TriggerEvent.Path
}

// Request rebuilds the request the record was created from.
func (r *ExecutionRecord) Request() *ExecutionRequest {
	return &ExecutionRequest{
		RequestID:    r.RequestID,
		WorkflowID:   r.WorkflowID,
		TriggerEvent: r.TriggerEvent,
		TriggerInput: r.TriggerInput,
		Manual:       r.TriggerEvent == nil || r.TriggerEvent.Synthetic,
		Queued:       r.Queued,
		RequestedAt:  r.StartedAt,
	}
}

// NewExecutionRecord creates a pending record for a request.
func NewExecutionRecord(executionID string, req *ExecutionRequest, now time.Time) *ExecutionRecord {
	return &ExecutionRecord{
		ExecutionID:  executionID,
		RequestID:    req.RequestID,
		WorkflowID:   req.WorkflowID,
		State:        ExecutionPending,
		TriggerEvent: req.TriggerEvent,
		TriggerInput: req.TriggerInput,
		Queued:       req.Queued,
		StartedAt:    now,
		UpdatedAt:    now,
	}
}

// StepInput is what a step body receives.
type StepInput struct {
	ExecutionID string
	WorkflowID  string
	StepIndex   int
	Spec        StepSpec

	// Trigger is the triggering event, nil for pathless manual triggers.
	Trigger *VaultEvent

	// Input is the manual trigger input.
	Input map[string]any

	// Prior holds the committed results of steps 0..StepIndex-1.
	Prior []StepResult

	// Attempt is 1 for the first invocation of this step.
	Attempt int
}

// StepOutput is the opaque payload a successful step returns.
type StepOutput map[string]any

// ExecutionFilter selects execution records.
type ExecutionFilter struct {
	WorkflowID string           `json:"workflow_id,omitempty"`
	States     []ExecutionState `json:"states,omitempty"`
	Since      time.Time        `json:"since,omitempty"`
	Limit      int              `json:"limit,omitempty"`
}
