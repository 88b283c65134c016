package services

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
	"github.com/xeipuuv/gojsonschema"

	"github.com/weave-nn/weaver/internal/core/domain"
	"github.com/weave-nn/weaver/internal/core/ports/driven"
	"github.com/weave-nn/weaver/internal/core/ports/driving"
	"github.com/weave-nn/weaver/internal/logger"
)

// Ensure Registry implements the interface.
var _ driving.WorkflowRegistry = (*Registry)(nil)

// registered is one workflow held by the registry.
type registered struct {
	def          *domain.WorkflowDefinition
	patterns     []domain.TriggerPattern
	enabled      bool
	registeredAt time.Time
}

// Registry holds workflow definitions in registration order.
// Definitions are validated once, at registration; matching never fails.
type Registry struct {
	validate *validator.Validate
	steps    driven.StepCatalog

	mu    sync.RWMutex
	order []string
	byID  map[string]*registered
	now   func() time.Time
}

// NewRegistry creates an empty registry. When steps is non-nil, every
// step type must resolve in it.
func NewRegistry(steps driven.StepCatalog) *Registry {
	return &Registry{
		validate: validator.New(validator.WithRequiredStructEnabled()),
		steps:    steps,
		byID:     make(map[string]*registered),
		now:      time.Now,
	}
}

// Register validates and adds a definition.
func (r *Registry) Register(def domain.WorkflowDefinition) error {
	patterns, err := r.check(&def)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byID[def.ID]; exists {
		return &domain.DuplicateIDError{ID: def.ID}
	}
	r.byID[def.ID] = &registered{
		def:          def.Clone(),
		patterns:     patterns,
		enabled:      def.Enabled,
		registeredAt: r.now(),
	}
	r.order = append(r.order, def.ID)

	logger.Debug("Registered workflow %s (%d steps, %d patterns, %s)",
		def.ID, len(def.Steps), len(patterns), def.Concurrency)
	return nil
}

// Unregister removes a definition.
func (r *Registry) Unregister(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[id]; !ok {
		return fmt.Errorf("workflow %q: %w", id, domain.ErrNotFound)
	}
	delete(r.byID, id)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

// SetEnabled toggles a workflow.
func (r *Registry) SetEnabled(id string, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.byID[id]
	if !ok {
		return fmt.Errorf("workflow %q: %w", id, domain.ErrNotFound)
	}
	w.enabled = enabled
	return nil
}

// Get returns a registered workflow.
func (r *Registry) Get(id string) (*domain.WorkflowInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("workflow %q: %w", id, domain.ErrNotFound)
	}
	info := w.info()
	return &info, nil
}

// List returns matching workflows in registration order.
func (r *Registry) List(filter domain.WorkflowFilter) []domain.WorkflowInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.WorkflowInfo, 0, len(r.order))
	for _, id := range r.order {
		w := r.byID[id]
		if filter.EnabledOnly && !w.enabled {
			continue
		}
		if filter.IDPrefix != "" && !strings.HasPrefix(id, filter.IDPrefix) {
			continue
		}
		out = append(out, w.info())
	}
	return out
}

// Patterns returns the parsed trigger patterns of a workflow.
func (r *Registry) Patterns(id string) ([]domain.TriggerPattern, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("workflow %q: %w", id, domain.ErrNotFound)
	}
	return append([]domain.TriggerPattern(nil), w.patterns...), nil
}

// check validates a definition and parses its trigger patterns.
func (r *Registry) check(def *domain.WorkflowDefinition) ([]domain.TriggerPattern, error) {
	if err := r.validate.Struct(def); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return nil, fmt.Errorf("%w: %s: field %s failed %q",
				domain.ErrInvalidWorkflow, def.ID, fe.Namespace(), fe.Tag())
		}
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrInvalidWorkflow, def.ID, err)
	}

	patterns := make([]domain.TriggerPattern, 0, len(def.TriggerPatterns))
	for _, raw := range def.TriggerPatterns {
		p, err := domain.ParseTriggerPattern(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: pattern %q: %w", domain.ErrInvalidWorkflow, def.ID, raw, err)
		}
		if p.Glob != "" && !doublestar.ValidatePattern(p.Glob) {
			return nil, fmt.Errorf("%w: %s: pattern %q: %w", domain.ErrInvalidWorkflow, def.ID, raw, domain.ErrInvalidPattern)
		}
		patterns = append(patterns, p)
	}

	seen := make(map[string]struct{}, len(def.Steps))
	for i, step := range def.Steps {
		if _, dup := seen[step.Name]; dup {
			return nil, fmt.Errorf("%w: %s: duplicate step name %q", domain.ErrInvalidWorkflow, def.ID, step.Name)
		}
		seen[step.Name] = struct{}{}
		if r.steps == nil {
			continue
		}
		if _, err := r.steps.Get(step.Type); err != nil {
			return nil, fmt.Errorf("%w: %s: step %d (%s): %w", domain.ErrInvalidWorkflow, def.ID, i, step.Name, err)
		}
	}

	if def.Schedule != "" {
		if _, err := cron.ParseStandard(def.Schedule); err != nil {
			return nil, fmt.Errorf("%w: %s: schedule %q: %v", domain.ErrInvalidWorkflow, def.ID, def.Schedule, err)
		}
	}

	if def.InputSchema != nil {
		if _, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(def.InputSchema)); err != nil {
			return nil, fmt.Errorf("%w: %s: input schema: %v", domain.ErrInvalidWorkflow, def.ID, err)
		}
	}

	return patterns, nil
}

func (w *registered) info() domain.WorkflowInfo {
	def := w.def.Clone()
	def.Enabled = w.enabled
	return domain.WorkflowInfo{
		Definition:   *def,
		Enabled:      w.enabled,
		RegisteredAt: w.registeredAt,
	}
}
