package steps

import (
	"context"
	"errors"

	"github.com/weave-nn/weaver/internal/core/domain"
)

// TypeFail is the step type name of the fail step.
const TypeFail = "fail"

// Fail always fails, optionally recovering after some attempts.
//
// Config: message, permanent (skip retries), succeed_after (attempt number
// from which the step succeeds; 0 never succeeds).
type Fail struct{}

// NewFail creates a fail step.
func NewFail() *Fail {
	return &Fail{}
}

// Execute fails according to its config.
func (f *Fail) Execute(_ context.Context, in *domain.StepInput) (domain.StepOutput, error) {
	msg, err := stringOpt(in.Spec.Config, "message", "step failed on purpose")
	if err != nil {
		return nil, err
	}
	permanent, err := boolOpt(in.Spec.Config, "permanent", false)
	if err != nil {
		return nil, err
	}
	succeedAfter, err := intOpt(in.Spec.Config, "succeed_after", 0)
	if err != nil {
		return nil, err
	}

	if succeedAfter > 0 && in.Attempt >= succeedAfter {
		return domain.StepOutput{"attempts": in.Attempt}, nil
	}

	failure := errors.New(expand(msg, in))
	if permanent {
		return nil, domain.Permanent(failure)
	}
	return nil, domain.Retryable(failure)
}
