package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weave-nn/weaver/internal/adapters/driving/cli"
	"github.com/weave-nn/weaver/internal/core/domain"
)

const testConfig = `
[normalizer]
debounce_ms = 20

[scheduler]
enabled = false
`

const logOnCreate = `
id = "log-new-notes"
triggers = ["created:notes/**/*.md"]
concurrency = "serialize-per-path"

[[steps]]
name = "announce"
type = "log"

[steps.config]
message = "new note {path}"
`

type fixture struct {
	dataDir string
	vault   string
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	f := fixture{dataDir: t.TempDir(), vault: t.TempDir()}
	require.NoError(t, os.WriteFile(filepath.Join(f.dataDir, "config.toml"), []byte(testConfig), 0o600))
	require.NoError(t, os.MkdirAll(filepath.Join(f.dataDir, "workflows"), 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(f.dataDir, "workflows", "log.toml"), []byte(logOnCreate), 0o600))
	f.write(t, "notes/a.md", "---\nkind: task\nstatus: open\n---\nSee [[b]] #alpha\n")
	return f
}

func (f fixture) write(t *testing.T, rel, content string) {
	t.Helper()
	full := filepath.Join(f.vault, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

func (f fixture) bootstrap(t *testing.T) *cli.Runtime {
	t.Helper()
	rt, err := bootstrap(context.Background(), cli.Options{DataDir: f.dataDir, VaultRoot: f.vault})
	require.NoError(t, err)
	require.NoError(t, rt.Err)
	require.NotNil(t, rt.Control)
	return rt
}

func TestBootstrap_WithoutVault(t *testing.T) {
	rt, err := bootstrap(context.Background(), cli.Options{DataDir: t.TempDir()})
	require.NoError(t, err)
	assert.ErrorIs(t, rt.Err, errNoVault)
	assert.NotNil(t, rt.Settings)
	assert.Nil(t, rt.Control)
	assert.Nil(t, rt.Daemon)
}

func TestBootstrap_MissingVaultKeepsSettings(t *testing.T) {
	rt, err := bootstrap(context.Background(), cli.Options{
		DataDir:   t.TempDir(),
		VaultRoot: filepath.Join(t.TempDir(), "nope"),
	})
	require.NoError(t, err)
	assert.Error(t, rt.Err)
	assert.NotNil(t, rt.Settings)
	assert.Nil(t, rt.Control)
}

func TestApp_OneShotResyncRecordsTriggeredExecutions(t *testing.T) {
	f := newFixture(t)
	rt := f.bootstrap(t)
	defer func() { assert.NoError(t, rt.Close()) }()
	ctx := context.Background()

	report, err := rt.Control.Resync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Created)

	entry, err := rt.Control.GetEntry(ctx, "notes/a.md")
	require.NoError(t, err)
	assert.Equal(t, "task", entry.Kind)
	assert.Equal(t, []string{"alpha"}, entry.Tags)
	assert.Positive(t, entry.Sequence)

	records, err := rt.Control.ListExecutions(ctx, domain.ExecutionFilter{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "log-new-notes", records[0].WorkflowID)
	assert.Equal(t, domain.ExecutionPending, records[0].State)

	again, err := rt.Control.Resync(ctx)
	require.NoError(t, err)
	assert.Zero(t, again.Drift())
}

func TestApp_ServeRecoversAndReactsToChanges(t *testing.T) {
	f := newFixture(t)

	// A first process records the pending execution for a.md.
	rt := f.bootstrap(t)
	_, err := rt.Control.Resync(context.Background())
	require.NoError(t, err)
	require.NoError(t, rt.Close())

	rt = f.bootstrap(t)
	defer func() { assert.NoError(t, rt.Close()) }()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- rt.Daemon.Run(ctx, "") }()

	completed := func(path string) bool {
		records, err := rt.Control.ListExecutions(context.Background(), domain.ExecutionFilter{
			States: []domain.ExecutionState{domain.ExecutionCompleted},
		})
		if err != nil {
			return false
		}
		for i := range records {
			if records[i].TriggerPath() == path {
				return true
			}
		}
		return false
	}

	require.Eventually(t, func() bool { return completed("notes/a.md") }, 5*time.Second, 20*time.Millisecond,
		"pending execution from the previous process runs on start")

	// Give the watcher a moment to attach before writing.
	time.Sleep(100 * time.Millisecond)
	f.write(t, "notes/b.md", "# B\n")
	require.Eventually(t, func() bool { return completed("notes/b.md") }, 5*time.Second, 20*time.Millisecond)

	entry, err := rt.Control.GetEntry(context.Background(), "notes/b.md")
	require.NoError(t, err)
	assert.False(t, entry.Deleted)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
	}
}
