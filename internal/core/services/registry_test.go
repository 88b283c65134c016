package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weave-nn/weaver/internal/core/domain"
)

func newTestRegistry() *Registry {
	rec := &stepRecorder{}
	return NewRegistry(fakeCatalog{"log": rec.okStep(), "http": rec.okStep()})
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	r := newTestRegistry()
	def := workflow("summarise", domain.ConcurrencySerializePerPath, []string{"created,modified:notes/**/*.md"}, "log", "http")

	require.NoError(t, r.Register(def))

	info, err := r.Get("summarise")
	require.NoError(t, err)
	assert.True(t, info.Enabled)
	assert.Len(t, info.Definition.Steps, 2)
	assert.False(t, info.RegisteredAt.IsZero())

	patterns, err := r.Patterns("summarise")
	require.NoError(t, err)
	require.Len(t, patterns, 1)
	assert.Equal(t, "notes/**/*.md", patterns[0].Glob)
	assert.Equal(t, []domain.ChangeKind{domain.ChangeCreated, domain.ChangeModified}, patterns[0].Kinds)
}

func TestRegistry_RejectsDuplicateID(t *testing.T) {
	r := newTestRegistry()
	def := workflow("wf", domain.ConcurrencyAllowParallel, []string{"**/*.md"}, "log")
	require.NoError(t, r.Register(def))

	err := r.Register(def)
	assert.ErrorIs(t, err, domain.ErrDuplicateID)

	var dup *domain.DuplicateIDError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "wf", dup.ID)
	assert.Len(t, r.List(domain.WorkflowFilter{}), 1)
}

func TestRegistry_RejectsInvalidDefinitions(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(d *domain.WorkflowDefinition)
	}{
		{"missing id", func(d *domain.WorkflowDefinition) { d.ID = "" }},
		{"no steps", func(d *domain.WorkflowDefinition) { d.Steps = nil }},
		{"unknown policy", func(d *domain.WorkflowDefinition) { d.Concurrency = "sometimes" }},
		{"step without type", func(d *domain.WorkflowDefinition) { d.Steps[0].Type = "" }},
		{"unknown step type", func(d *domain.WorkflowDefinition) { d.Steps[0].Type = "teleport" }},
		{"duplicate step names", func(d *domain.WorkflowDefinition) {
			d.Steps = append(d.Steps, domain.StepSpec{Name: d.Steps[0].Name, Type: "log"})
		}},
		{"invalid glob", func(d *domain.WorkflowDefinition) { d.TriggerPatterns = []string{"notes/[unclosed"} }},
		{"invalid kind prefix", func(d *domain.WorkflowDefinition) { d.TriggerPatterns = []string{"renamed:*.md"} }},
		{"empty pattern", func(d *domain.WorkflowDefinition) { d.TriggerPatterns = []string{""} }},
		{"bad schedule", func(d *domain.WorkflowDefinition) { d.Schedule = "every tuesday" }},
		{"bad input schema", func(d *domain.WorkflowDefinition) {
			d.InputSchema = map[string]any{"type": 12}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRegistry()
			def := workflow("wf", domain.ConcurrencyAllowParallel, []string{"**/*.md"}, "log")
			tt.mutate(&def)

			err := r.Register(def)
			assert.ErrorIs(t, err, domain.ErrInvalidWorkflow)
			_, gerr := r.Get("wf")
			assert.ErrorIs(t, gerr, domain.ErrNotFound)
		})
	}
}

func TestRegistry_AcceptsScheduleAndSchema(t *testing.T) {
	r := newTestRegistry()
	def := workflow("digest", domain.ConcurrencySingletonGlobal, nil, "log")
	def.Schedule = "0 9 * * 1-5"
	def.InputSchema = map[string]any{
		"type":     "object",
		"required": []any{"path"},
	}

	assert.NoError(t, r.Register(def))
}

func TestRegistry_ListPreservesRegistrationOrder(t *testing.T) {
	r := newTestRegistry()
	for _, id := range []string{"zeta", "alpha", "mid"} {
		mustRegister(t, r, workflow(id, domain.ConcurrencyAllowParallel, []string{"**"}, "log"))
	}

	var ids []string
	for _, info := range r.List(domain.WorkflowFilter{}) {
		ids = append(ids, info.Definition.ID)
	}
	assert.Equal(t, []string{"zeta", "alpha", "mid"}, ids)
}

func TestRegistry_ListFilters(t *testing.T) {
	r := newTestRegistry()
	mustRegister(t, r,
		workflow("notes-a", domain.ConcurrencyAllowParallel, []string{"**"}, "log"),
		workflow("notes-b", domain.ConcurrencyAllowParallel, []string{"**"}, "log"),
		workflow("tasks-a", domain.ConcurrencyAllowParallel, []string{"**"}, "log"),
	)
	require.NoError(t, r.SetEnabled("notes-b", false))

	assert.Len(t, r.List(domain.WorkflowFilter{EnabledOnly: true}), 2)
	assert.Len(t, r.List(domain.WorkflowFilter{IDPrefix: "notes-"}), 2)
	assert.Len(t, r.List(domain.WorkflowFilter{EnabledOnly: true, IDPrefix: "notes-"}), 1)
}

func TestRegistry_SetEnabled(t *testing.T) {
	r := newTestRegistry()
	mustRegister(t, r, workflow("wf", domain.ConcurrencyAllowParallel, []string{"**"}, "log"))

	require.NoError(t, r.SetEnabled("wf", false))
	info, _ := r.Get("wf")
	assert.False(t, info.Enabled)
	assert.False(t, info.Definition.Enabled)

	assert.ErrorIs(t, r.SetEnabled("missing", true), domain.ErrNotFound)
}

func TestRegistry_Unregister(t *testing.T) {
	r := newTestRegistry()
	mustRegister(t, r,
		workflow("a", domain.ConcurrencyAllowParallel, []string{"**"}, "log"),
		workflow("b", domain.ConcurrencyAllowParallel, []string{"**"}, "log"),
	)

	require.NoError(t, r.Unregister("a"))
	list := r.List(domain.WorkflowFilter{})
	require.Len(t, list, 1)
	assert.Equal(t, "b", list[0].Definition.ID)

	assert.ErrorIs(t, r.Unregister("a"), domain.ErrNotFound)
	require.NoError(t, r.Register(workflow("a", domain.ConcurrencyAllowParallel, []string{"**"}, "log")))
}

func TestRegistry_DefinitionsAreIsolated(t *testing.T) {
	r := newTestRegistry()
	def := workflow("wf", domain.ConcurrencyAllowParallel, []string{"**"}, "log")
	def.Steps[0].Config = map[string]any{"message": "hello"}
	mustRegister(t, r, def)

	def.Steps[0].Config["message"] = "mutated"
	info, _ := r.Get("wf")
	assert.Equal(t, "hello", info.Definition.Steps[0].Config["message"])

	info.Definition.Steps[0].Config["message"] = "also mutated"
	again, _ := r.Get("wf")
	assert.Equal(t, "hello", again.Definition.Steps[0].Config["message"])
}

func TestRegistry_NilCatalogSkipsTypeCheck(t *testing.T) {
	r := NewRegistry(nil)
	assert.NoError(t, r.Register(workflow("wf", domain.ConcurrencyAllowParallel, []string{"**"}, "anything")))
}
