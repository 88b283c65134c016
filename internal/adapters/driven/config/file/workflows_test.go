package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weave-nn/weaver/internal/core/domain"
)

const summariseWorkflow = `
id = "summarise"
description = "Post new notes to the summariser"
triggers = ["created,modified:notes/**/*.md"]
concurrency = "serialize-per-path"

[input_schema]
type = "object"

[[steps]]
name = "announce"
type = "log"

[steps.config]
message = "summarising"

[[steps]]
name = "post"
type = "http"
timeout_seconds = 30
max_retries = 5

[steps.config]
url = "http://localhost:8080/summarise"
`

func writeWorkflow(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0700))
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
}

func TestParseWorkflow(t *testing.T) {
	def, err := ParseWorkflow("summarise.toml", []byte(summariseWorkflow))
	require.NoError(t, err)

	assert.Equal(t, "summarise", def.ID)
	assert.Equal(t, []string{"created,modified:notes/**/*.md"}, def.TriggerPatterns)
	assert.Equal(t, domain.ConcurrencySerializePerPath, def.Concurrency)
	assert.True(t, def.Enabled, "enabled defaults to true")
	assert.Equal(t, "object", def.InputSchema["type"])

	require.Len(t, def.Steps, 2)
	assert.Equal(t, "log", def.Steps[0].Type)
	assert.Equal(t, "summarising", def.Steps[0].Config["message"])
	assert.Zero(t, def.Steps[0].Timeout)
	assert.Nil(t, def.Steps[0].MaxRetries)

	assert.Equal(t, 30*time.Second, def.Steps[1].Timeout)
	require.NotNil(t, def.Steps[1].MaxRetries)
	assert.Equal(t, 5, *def.Steps[1].MaxRetries)
	assert.Equal(t, "http://localhost:8080/summarise", def.Steps[1].Config["url"])
}

func TestParseWorkflow_Defaults(t *testing.T) {
	def, err := ParseWorkflow("digests/daily.toml", []byte(`
schedule = "0 9 * * *"
enabled = false

[[steps]]
name = "say"
type = "log"
`))
	require.NoError(t, err)
	assert.Equal(t, "daily", def.ID)
	assert.Equal(t, domain.ConcurrencyAllowParallel, def.Concurrency)
	assert.False(t, def.Enabled)
	assert.Empty(t, def.TriggerPatterns)
}

func TestParseWorkflow_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"syntax", `id = "broken`},
		{"unknown key", "id = \"x\"\ntrigers = [\"**\"]\n"},
		{"wrong type", "id = 7\n"},
		{"negative timeout", "[[steps]]\nname = \"a\"\ntype = \"log\"\ntimeout_seconds = -1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseWorkflow("bad.toml", []byte(tt.content))
			assert.ErrorIs(t, err, domain.ErrInvalidWorkflow)
			assert.ErrorContains(t, err, "bad.toml")
		})
	}
}

func TestWorkflowLoader_Load(t *testing.T) {
	dir := t.TempDir()
	writeWorkflow(t, dir, "b.toml", "id = \"b\"\n[[steps]]\nname = \"s\"\ntype = \"log\"\n")
	writeWorkflow(t, dir, "a.toml", "id = \"a\"\n[[steps]]\nname = \"s\"\ntype = \"log\"\n")
	writeWorkflow(t, dir, "nested/c.toml", "[[steps]]\nname = \"s\"\ntype = \"log\"\n")
	writeWorkflow(t, dir, "README.md", "not a workflow")

	defs, err := NewWorkflowLoader(dir).Load(context.Background())
	require.NoError(t, err)

	ids := make([]string, len(defs))
	for i, d := range defs {
		ids[i] = d.ID
	}
	assert.Equal(t, []string{"a", "b", "c"}, ids)
}

func TestWorkflowLoader_MissingDirectory(t *testing.T) {
	defs, err := NewWorkflowLoader(filepath.Join(t.TempDir(), "absent")).Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, defs)

	defs, err = NewWorkflowLoader("").Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, defs)
}

func TestWorkflowLoader_MalformedFileFailsLoad(t *testing.T) {
	dir := t.TempDir()
	writeWorkflow(t, dir, "good.toml", "[[steps]]\nname = \"s\"\ntype = \"log\"\n")
	writeWorkflow(t, dir, "zz-broken.toml", "steps = [")

	_, err := NewWorkflowLoader(dir).Load(context.Background())
	assert.ErrorIs(t, err, domain.ErrInvalidWorkflow)
	assert.ErrorContains(t, err, "zz-broken.toml")
}
