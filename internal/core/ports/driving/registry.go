package driving

import "github.com/weave-nn/weaver/internal/core/domain"

// WorkflowRegistry holds workflow definitions in registration order.
type WorkflowRegistry interface {
	// Register validates and adds a definition.
	// Returns *domain.DuplicateIDError if the ID is already registered and
	// an error wrapping domain.ErrInvalidWorkflow for malformed definitions.
	Register(def domain.WorkflowDefinition) error

	// Unregister removes a definition so it can be re-registered.
	Unregister(id string) error

	// SetEnabled toggles a workflow without unregistering it.
	SetEnabled(id string, enabled bool) error

	// Get returns a registered workflow.
	Get(id string) (*domain.WorkflowInfo, error)

	// List returns matching workflows in registration order.
	List(filter domain.WorkflowFilter) []domain.WorkflowInfo

	// Patterns returns the parsed trigger patterns of a workflow.
	Patterns(id string) ([]domain.TriggerPattern, error)
}
