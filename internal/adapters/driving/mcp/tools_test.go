package mcp

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weave-nn/weaver/internal/core/domain"
	"github.com/weave-nn/weaver/internal/core/ports/driving"
)

func newTestServer(t *testing.T, ctl *mockControl) *Server {
	t.Helper()
	s, err := NewServer(&Ports{Control: ctl})
	require.NoError(t, err)
	return s
}

func TestServer_handleQueryEntries(t *testing.T) {
	ctx := context.Background()

	t.Run("maps filter and page", func(t *testing.T) {
		ctl := sampleControl()
		s := newTestServer(t, ctl)

		_, out, err := s.handleQueryEntries(ctx, nil, QueryEntriesInput{
			PathPrefix: "notes/", Tag: "go", LinkTarget: "notes/b.md", After: "x", Limit: 5,
		})
		require.NoError(t, err)

		assert.Equal(t, domain.EntryFilter{PathPrefix: "notes/", Tag: "go", LinkTarget: "notes/b.md"}, ctl.lastFilter)
		assert.Equal(t, domain.Page{After: "x", Limit: 5}, ctl.lastPage)
		assert.Equal(t, 2, out.Count)
		assert.Equal(t, "cursor-2", out.NextCursor)
		assert.Equal(t, "notes/a.md", out.Entries[0].Path)
		assert.Equal(t, "2026-03-01T12:00:00Z", out.Entries[0].LastSeenAt)
		assert.Equal(t, []string{"notes/b.md"}, out.Entries[0].OutboundLinks)
		assert.True(t, out.Entries[1].Deleted)
		assert.NotEmpty(t, out.Entries[1].DeletedAt)
		assert.NotNil(t, out.Entries[1].Tags)
	})

	t.Run("propagates errors", func(t *testing.T) {
		ctl := sampleControl()
		ctl.err = errors.New("storage down")
		_, _, err := newTestServer(t, ctl).handleQueryEntries(ctx, nil, QueryEntriesInput{})
		assert.EqualError(t, err, "storage down")
	})
}

func TestServer_handleGetEntry(t *testing.T) {
	s := newTestServer(t, sampleControl())

	_, out, err := s.handleGetEntry(context.Background(), nil, PathInput{Path: "notes/a.md"})
	require.NoError(t, err)
	assert.Equal(t, "concept", out.Kind)
	assert.Empty(t, out.DeletedAt)

	_, _, err = s.handleGetEntry(context.Background(), nil, PathInput{Path: "missing.md"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestServer_handleCountEntries(t *testing.T) {
	ctl := sampleControl()
	s := newTestServer(t, ctl)

	_, out, err := s.handleCountEntries(context.Background(), nil, QueryEntriesInput{Kind: "concept", IncludeDeleted: true})
	require.NoError(t, err)
	assert.Equal(t, domain.EntryFilter{Kind: "concept", IncludeDeleted: true}, ctl.lastFilter)
	assert.Equal(t, 2, out.Total)
	assert.Equal(t, 1, out.ByKind["concept"])
	assert.NotNil(t, out.ByTag)
}

func TestServer_handleListWorkflows(t *testing.T) {
	_, out, err := newTestServer(t, sampleControl()).handleListWorkflows(context.Background(), nil, ListWorkflowsInput{})
	require.NoError(t, err)
	require.Equal(t, 1, out.Count)
	assert.Equal(t, "summarise", out.Workflows[0].ID)
	assert.Equal(t, "serialize-per-path", out.Workflows[0].Concurrency)
	assert.Equal(t, []string{"post (http)"}, out.Workflows[0].Steps)
}

func TestServer_handleTriggerWorkflow(t *testing.T) {
	ctx := context.Background()

	t.Run("accepted", func(t *testing.T) {
		ctl := sampleControl()
		ctl.trigger = &driving.TriggerResult{
			Request:   domain.ExecutionRequest{RequestID: "req-9"},
			Execution: &ctl.executions[0],
		}
		s := newTestServer(t, ctl)

		_, out, err := s.handleTriggerWorkflow(ctx, nil, TriggerWorkflowInput{
			WorkflowID: "summarise", Input: map[string]any{"path": "notes/a.md"},
		})
		require.NoError(t, err)
		assert.Equal(t, "summarise", ctl.lastWorkflow)
		assert.Equal(t, "notes/a.md", ctl.lastInput["path"])
		assert.Equal(t, "req-9", out.RequestID)
		assert.False(t, out.Withheld)
		require.NotNil(t, out.Execution)
		assert.Equal(t, "exec-1", out.Execution.ExecutionID)
	})

	t.Run("withheld", func(t *testing.T) {
		ctl := sampleControl()
		ctl.trigger = &driving.TriggerResult{Request: domain.ExecutionRequest{RequestID: "req-9"}, Withheld: true}

		_, out, err := newTestServer(t, ctl).handleTriggerWorkflow(ctx, nil, TriggerWorkflowInput{WorkflowID: "summarise"})
		require.NoError(t, err)
		assert.True(t, out.Withheld)
		assert.Nil(t, out.Execution)
	})

	t.Run("invalid input", func(t *testing.T) {
		ctl := sampleControl()
		ctl.err = domain.ErrInvalidTriggerInput
		_, _, err := newTestServer(t, ctl).handleTriggerWorkflow(ctx, nil, TriggerWorkflowInput{WorkflowID: "summarise"})
		assert.ErrorIs(t, err, domain.ErrInvalidTriggerInput)
	})
}

func TestServer_handleExecutions(t *testing.T) {
	ctx := context.Background()

	t.Run("get maps record", func(t *testing.T) {
		_, out, err := newTestServer(t, sampleControl()).handleGetExecution(ctx, nil, ExecutionIDInput{ExecutionID: "exec-1"})
		require.NoError(t, err)
		assert.Equal(t, "completed", out.State)
		assert.Equal(t, "notes/a.md", out.TriggerPath)
		assert.Equal(t, "modified", out.TriggerKind)
		assert.Equal(t, "2026-03-01T12:01:00Z", out.CompletedAt)
		require.Len(t, out.Steps, 1)
		assert.Equal(t, 2, out.Steps[0].Attempts)
		assert.Equal(t, 200, out.Steps[0].Output["status"])
	})

	t.Run("list maps filter", func(t *testing.T) {
		ctl := sampleControl()
		_, out, err := newTestServer(t, ctl).handleListExecutions(ctx, nil, ListExecutionsInput{
			WorkflowID: "summarise",
			States:     []string{"failed", "completed"},
			Since:      "2026-03-01T00:00:00Z",
			Limit:      10,
		})
		require.NoError(t, err)
		assert.Equal(t, 1, out.Count)
		assert.Equal(t, "summarise", ctl.lastExecFilter.WorkflowID)
		assert.Equal(t, []domain.ExecutionState{domain.ExecutionFailed, domain.ExecutionCompleted}, ctl.lastExecFilter.States)
		assert.Equal(t, 10, ctl.lastExecFilter.Limit)
		assert.False(t, ctl.lastExecFilter.Since.IsZero())
	})

	t.Run("list rejects bad since", func(t *testing.T) {
		_, _, err := newTestServer(t, sampleControl()).handleListExecutions(ctx, nil, ListExecutionsInput{Since: "yesterday"})
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("control operations", func(t *testing.T) {
		ctl := sampleControl()
		s := newTestServer(t, ctl)
		for _, handler := range []func() error{
			func() error {
				_, _, err := s.executionControl(ctl.CancelExecution)(ctx, nil, ExecutionIDInput{ExecutionID: "exec-1"})
				return err
			},
			func() error {
				_, _, err := s.executionControl(ctl.RetryExecution)(ctx, nil, ExecutionIDInput{ExecutionID: "exec-1"})
				return err
			},
		} {
			require.NoError(t, handler())
		}
		assert.Equal(t, []string{"cancel:exec-1", "retry:exec-1"}, ctl.controlled)

		_, _, err := s.executionControl(ctl.ResumeExecution)(ctx, nil, ExecutionIDInput{ExecutionID: "nope"})
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}
