package steps

import (
	"fmt"
	"net/http"
	"sort"
	"sync"

	"github.com/weave-nn/weaver/internal/core/domain"
	"github.com/weave-nn/weaver/internal/core/ports/driven"
)

// Verify interface compliance at compile time.
var _ driven.StepCatalog = (*Catalog)(nil)

// Catalog maps step type names to step bodies.
type Catalog struct {
	mu    sync.RWMutex
	steps map[string]driven.Step
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{steps: make(map[string]driven.Step)}
}

// Default returns a catalog with every built-in step type registered.
// A nil client uses http.DefaultClient; the engine bounds each attempt
// through its context.
func Default(client *http.Client) *Catalog {
	c := NewCatalog()
	c.MustRegister(TypeLog, NewLog())
	c.MustRegister(TypeDelay, NewDelay())
	c.MustRegister(TypeHTTP, NewHTTP(client))
	c.MustRegister(TypeFail, NewFail())
	return c
}

// Register adds a step type. Registering a type twice fails.
func (c *Catalog) Register(stepType string, step driven.Step) error {
	if stepType == "" || step == nil {
		return fmt.Errorf("%w: step type and body are required", domain.ErrInvalidInput)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.steps[stepType]; exists {
		return fmt.Errorf("%w: %q", domain.ErrDuplicateStepType, stepType)
	}
	c.steps[stepType] = step
	return nil
}

// MustRegister is Register that panics on error.
func (c *Catalog) MustRegister(stepType string, step driven.Step) {
	if err := c.Register(stepType, step); err != nil {
		panic(err)
	}
}

// Get returns the body for a step type.
func (c *Catalog) Get(stepType string) (driven.Step, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.steps[stepType]
	if !ok {
		return nil, fmt.Errorf("%w: step type %q", domain.ErrUnsupportedType, stepType)
	}
	return s, nil
}

// Types lists the registered step types, sorted.
func (c *Catalog) Types() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.steps))
	for t := range c.steps {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
