package file

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/pelletier/go-toml/v2"

	"github.com/weave-nn/weaver/internal/core/domain"
	"github.com/weave-nn/weaver/internal/core/ports/driven"
)

// Ensure WorkflowLoader implements the interface.
var _ driven.WorkflowLoader = (*WorkflowLoader)(nil)

// WorkflowLoader reads one workflow definition per *.toml file under a
// directory, subdirectories included.
type WorkflowLoader struct {
	dir string
}

// NewWorkflowLoader creates a loader for dir.
func NewWorkflowLoader(dir string) *WorkflowLoader {
	return &WorkflowLoader{dir: dir}
}

// Dir returns the workflow directory.
func (l *WorkflowLoader) Dir() string {
	return l.dir
}

// workflowFile is the on-disk form of a workflow definition.
type workflowFile struct {
	ID          string         `toml:"id"`
	Description string         `toml:"description"`
	Triggers    []string       `toml:"triggers"`
	Concurrency string         `toml:"concurrency"`
	Enabled     *bool          `toml:"enabled"`
	Schedule    string         `toml:"schedule"`
	InputSchema map[string]any `toml:"input_schema"`
	Steps       []stepFile     `toml:"steps"`
}

type stepFile struct {
	Name           string         `toml:"name"`
	Type           string         `toml:"type"`
	TimeoutSeconds int            `toml:"timeout_seconds"`
	MaxRetries     *int           `toml:"max_retries"`
	Config         map[string]any `toml:"config"`
}

// Load parses every workflow file in lexical path order. A missing
// directory holds no workflows. The first malformed file fails the load.
func (l *WorkflowLoader) Load(ctx context.Context) ([]domain.WorkflowDefinition, error) {
	if l.dir == "" {
		return nil, nil
	}
	if _, err := os.Stat(l.dir); errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}

	fsys := os.DirFS(l.dir)
	matches, err := doublestar.Glob(fsys, "**/*.toml")
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", l.dir, err)
	}
	sort.Strings(matches)

	defs := make([]domain.WorkflowDefinition, 0, len(matches))
	for _, name := range matches {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", name, err)
		}
		def, err := ParseWorkflow(name, data)
		if err != nil {
			return nil, err
		}
		defs = append(defs, *def)
	}
	return defs, nil
}

// ParseWorkflow decodes one workflow document. Unknown keys are rejected so
// typos surface as errors. The ID defaults to the file name without its
// extension.
func ParseWorkflow(name string, data []byte) (*domain.WorkflowDefinition, error) {
	var wf workflowFile
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&wf); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return nil, fmt.Errorf("%w: %s: %s", domain.ErrInvalidWorkflow, name, strings.TrimSpace(strict.String()))
		}
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrInvalidWorkflow, name, err)
	}

	def := &domain.WorkflowDefinition{
		ID:              wf.ID,
		Description:     wf.Description,
		TriggerPatterns: wf.Triggers,
		Enabled:         wf.Enabled == nil || *wf.Enabled,
		Concurrency:     domain.ConcurrencyPolicy(wf.Concurrency),
		Schedule:        wf.Schedule,
		InputSchema:     wf.InputSchema,
	}
	if def.ID == "" {
		def.ID = strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	}
	if def.Concurrency == "" {
		def.Concurrency = domain.ConcurrencyAllowParallel
	}

	for i, s := range wf.Steps {
		if s.TimeoutSeconds < 0 {
			return nil, fmt.Errorf("%w: %s: step %d: negative timeout_seconds", domain.ErrInvalidWorkflow, name, i)
		}
		def.Steps = append(def.Steps, domain.StepSpec{
			Name:       s.Name,
			Type:       s.Type,
			Timeout:    time.Duration(s.TimeoutSeconds) * time.Second,
			MaxRetries: s.MaxRetries,
			Config:     s.Config,
		})
	}
	return def, nil
}
