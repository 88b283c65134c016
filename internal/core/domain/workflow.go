package domain

import (
	"strings"
	"time"
)

// ConcurrencyPolicy controls how many executions of a workflow may be in flight.
type ConcurrencyPolicy string

// Concurrency policies.
const (
	// ConcurrencyAllowParallel emits every matching request unconditionally.
	ConcurrencyAllowParallel ConcurrencyPolicy = "allow-parallel"

	// ConcurrencySerializePerPath allows one in-flight execution per (workflow, path).
	ConcurrencySerializePerPath ConcurrencyPolicy = "serialize-per-path"

	// ConcurrencySingletonGlobal allows one in-flight execution per workflow.
	ConcurrencySingletonGlobal ConcurrencyPolicy = "singleton-global"
)

// IsValid returns true if the policy is recognised.
func (p ConcurrencyPolicy) IsValid() bool {
	switch p {
	case ConcurrencyAllowParallel, ConcurrencySerializePerPath, ConcurrencySingletonGlobal:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (p ConcurrencyPolicy) String() string {
	return string(p)
}

// StepSpec declares one step of a workflow. The Type selects the step body;
// Config is passed to it verbatim.
type StepSpec struct {
	// Name identifies the step within its workflow.
	Name string `json:"name" toml:"name" validate:"required"`

	// Type is the registered step type (e.g. "log", "http").
	Type string `json:"type" toml:"type" validate:"required"`

	// Timeout overrides the engine's default per-step timeout. Zero uses the default.
	Timeout time.Duration `json:"timeout,omitempty" toml:"-" validate:"gte=0"`

	// MaxRetries overrides the engine's default retry bound when set.
	MaxRetries *int `json:"max_retries,omitempty" toml:"-" validate:"omitempty,gte=0"`

	// Config is step-type specific configuration.
	Config map[string]any `json:"config,omitempty" toml:"config"`
}

// WorkflowDefinition is a registered workflow. It is immutable once registered.
type WorkflowDefinition struct {
	// ID is unique across the registry.
	ID string `json:"id" validate:"required,max=128"`

	// Description is free text for discovery.
	Description string `json:"description,omitempty"`

	// TriggerPatterns are path globs, optionally prefixed with change kinds
	// ("created,modified:notes/**/*.md"), or a bare change kind ("removed").
	TriggerPatterns []string `json:"trigger_patterns" validate:"dive,required"`

	// Steps run strictly in order.
	Steps []StepSpec `json:"steps" validate:"required,min=1,dive"`

	// Enabled controls whether the workflow matches events.
	Enabled bool `json:"enabled"`

	// Concurrency is the in-flight policy enforced by the trigger matcher.
	Concurrency ConcurrencyPolicy `json:"concurrency" validate:"required,oneof=allow-parallel serialize-per-path singleton-global"`

	// Schedule is an optional cron expression that fires a manual trigger.
	Schedule string `json:"schedule,omitempty"`

	// InputSchema is an optional JSON schema for manual trigger input.
	InputSchema map[string]any `json:"input_schema,omitempty"`
}

// Clone returns a deep copy of the definition.
func (d *WorkflowDefinition) Clone() *WorkflowDefinition {
	c := *d
	c.TriggerPatterns = append([]string(nil), d.TriggerPatterns...)
	c.Steps = make([]StepSpec, len(d.Steps))
	for i, s := range d.Steps {
		s.Config = cloneMap(s.Config)
		if s.MaxRetries != nil {
			n := *s.MaxRetries
			s.MaxRetries = &n
		}
		c.Steps[i] = s
	}
	c.InputSchema = cloneMap(d.InputSchema)
	return &c
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		if nested, ok := v.(map[string]any); ok {
			v = cloneMap(nested)
		}
		out[k] = v
	}
	return out
}

// TriggerPattern is a parsed trigger pattern.
type TriggerPattern struct {
	// Glob is the path glob. Empty matches every path.
	Glob string

	// Kinds restricts matching to these change kinds. Empty matches every kind.
	Kinds []ChangeKind
}

// ParseTriggerPattern parses the textual trigger pattern forms:
//
//	"**/*.md"                 any change to a matching path
//	"created:inbox/*.md"      only creations
//	"created,modified:*.md"   creations or modifications
//	"removed"                 any removal
//
// Glob syntax is not validated here.
func ParseTriggerPattern(s string) (TriggerPattern, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return TriggerPattern{}, ErrInvalidPattern
	}

	if kind := ChangeKind(s); kind.IsValid() {
		return TriggerPattern{Kinds: []ChangeKind{kind}}, nil
	}

	prefix, glob, found := strings.Cut(s, ":")
	if !found {
		return TriggerPattern{Glob: s}, nil
	}

	var kinds []ChangeKind
	for _, part := range strings.Split(prefix, ",") {
		kind := ChangeKind(strings.TrimSpace(part))
		if !kind.IsValid() {
			return TriggerPattern{}, ErrInvalidPattern
		}
		kinds = append(kinds, kind)
	}
	glob = strings.TrimSpace(glob)
	if glob == "" {
		return TriggerPattern{}, ErrInvalidPattern
	}
	return TriggerPattern{Glob: glob, Kinds: kinds}, nil
}

// MatchesKind reports whether the pattern accepts the change kind.
func (p TriggerPattern) MatchesKind(kind ChangeKind) bool {
	if len(p.Kinds) == 0 {
		return true
	}
	for _, k := range p.Kinds {
		if k == kind {
			return true
		}
	}
	return false
}

// WorkflowFilter selects workflows from the registry.
type WorkflowFilter struct {
	// EnabledOnly excludes disabled workflows.
	EnabledOnly bool `json:"enabled_only,omitempty"`

	// IDPrefix restricts results to IDs with this prefix.
	IDPrefix string `json:"id_prefix,omitempty"`
}

// WorkflowInfo is the discovery view of a registered workflow.
type WorkflowInfo struct {
	Definition   WorkflowDefinition `json:"definition"`
	Enabled      bool               `json:"enabled"`
	RegisteredAt time.Time          `json:"registered_at"`
}
