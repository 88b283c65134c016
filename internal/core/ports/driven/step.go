package driven

import (
	"context"

	"github.com/weave-nn/weaver/internal/core/domain"
)

// Step is the body of one workflow step.
// Bodies must be re-entrant: a crash between a step's side effects and its
// commit re-invokes it on resume.
type Step interface {
	// Execute runs the step. Failures wrapped with domain.Permanent are not
	// retried; every other error is.
	Execute(ctx context.Context, in *domain.StepInput) (domain.StepOutput, error)
}

// StepFunc adapts a function to the Step interface.
type StepFunc func(ctx context.Context, in *domain.StepInput) (domain.StepOutput, error)

// Execute calls f.
func (f StepFunc) Execute(ctx context.Context, in *domain.StepInput) (domain.StepOutput, error) {
	return f(ctx, in)
}

// StepCatalog resolves step types to bodies.
type StepCatalog interface {
	// Get returns the body for a step type.
	// Returns domain.ErrUnsupportedType for unknown types.
	Get(stepType string) (Step, error)

	// Types lists the registered step types, sorted.
	Types() []string
}
