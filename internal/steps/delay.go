package steps

import (
	"context"
	"time"

	"github.com/weave-nn/weaver/internal/core/domain"
)

// TypeDelay is the step type name of the delay step.
const TypeDelay = "delay"

// maxDelay caps a single delay step.
const maxDelay = 24 * time.Hour

// Delay waits for a configured duration.
//
// Config: duration (a duration string or seconds). Cancellation interrupts
// the wait.
type Delay struct{}

// NewDelay creates a delay step.
func NewDelay() *Delay {
	return &Delay{}
}

// Execute waits for the configured duration.
func (d *Delay) Execute(ctx context.Context, in *domain.StepInput) (domain.StepOutput, error) {
	wait, err := durationOpt(in.Spec.Config, "duration", time.Second)
	if err != nil {
		return nil, err
	}
	if wait < 0 || wait > maxDelay {
		return nil, configError("duration", "must be between 0 and 24h")
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-timer.C:
		return domain.StepOutput{"waited_ms": wait.Milliseconds()}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
