package driven

import (
	"context"

	"github.com/weave-nn/weaver/internal/core/domain"
)

// WorkflowLoader reads workflow definitions from persistent configuration.
type WorkflowLoader interface {
	// Load returns every definition found. A malformed file fails the load
	// with an error naming the file.
	Load(ctx context.Context) ([]domain.WorkflowDefinition, error)
}
