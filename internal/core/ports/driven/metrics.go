package driven

import "time"

// Metrics records operational counters. Implementations must be safe for
// concurrent use.
type Metrics interface {
	// EventEmitted counts a normalised vault event.
	EventEmitted(kind string)

	// CacheWrite counts a shadow cache write by outcome
	// ("created", "modified", "removed", "unchanged", "stale").
	CacheWrite(outcome string)

	// ExecutionFinished records a terminal or suspended execution.
	ExecutionFinished(workflowID, state string, elapsed time.Duration)

	// StepAttempt records one step invocation.
	StepAttempt(workflowID, stepType string, success bool, elapsed time.Duration)

	// Resync records a full resync pass.
	Resync(drift int, elapsed time.Duration)

	// SetDegraded flags whether the change source is disconnected.
	SetDegraded(degraded bool)
}
