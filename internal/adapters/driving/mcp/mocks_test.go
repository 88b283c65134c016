package mcp

import (
	"context"
	"time"

	"github.com/weave-nn/weaver/internal/core/domain"
	"github.com/weave-nn/weaver/internal/core/ports/driving"
)

var testTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// mockControl is a canned ControlSurface. Calls record their arguments.
type mockControl struct {
	entries    []domain.VaultEntry
	counts     *domain.EntryCounts
	workflows  []domain.WorkflowInfo
	executions []domain.ExecutionRecord
	trigger    *driving.TriggerResult
	err        error

	lastFilter     domain.EntryFilter
	lastPage       domain.Page
	lastExecFilter domain.ExecutionFilter
	lastWorkflow   string
	lastInput      map[string]any
	controlled     []string
}

var _ driving.ControlSurface = (*mockControl)(nil)

func (m *mockControl) QueryEntries(_ context.Context, f domain.EntryFilter, p domain.Page) (*domain.EntryPage, error) {
	m.lastFilter, m.lastPage = f, p
	if m.err != nil {
		return nil, m.err
	}
	return &domain.EntryPage{Entries: m.entries, NextCursor: "cursor-2"}, nil
}

func (m *mockControl) GetEntry(_ context.Context, path string) (*domain.VaultEntry, error) {
	if m.err != nil {
		return nil, m.err
	}
	for i := range m.entries {
		if m.entries[i].Path == path {
			return &m.entries[i], nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockControl) CountEntries(_ context.Context, f domain.EntryFilter) (*domain.EntryCounts, error) {
	m.lastFilter = f
	if m.err != nil {
		return nil, m.err
	}
	return m.counts, nil
}

func (m *mockControl) Backlinks(ctx context.Context, path string, p domain.Page) (*domain.EntryPage, error) {
	return m.QueryEntries(ctx, domain.EntryFilter{LinkTarget: path}, p)
}

func (m *mockControl) ListWorkflows(_ context.Context, _ domain.WorkflowFilter) ([]domain.WorkflowInfo, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.workflows, nil
}

func (m *mockControl) SetWorkflowEnabled(_ context.Context, id string, _ bool) error {
	m.lastWorkflow = id
	return m.err
}

func (m *mockControl) TriggerWorkflow(_ context.Context, id string, input map[string]any) (*driving.TriggerResult, error) {
	m.lastWorkflow, m.lastInput = id, input
	if m.err != nil {
		return nil, m.err
	}
	return m.trigger, nil
}

func (m *mockControl) GetExecution(_ context.Context, id string) (*domain.ExecutionRecord, error) {
	if m.err != nil {
		return nil, m.err
	}
	for i := range m.executions {
		if m.executions[i].ExecutionID == id {
			return &m.executions[i], nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockControl) ListExecutions(_ context.Context, f domain.ExecutionFilter) ([]domain.ExecutionRecord, error) {
	m.lastExecFilter = f
	if m.err != nil {
		return nil, m.err
	}
	return m.executions, nil
}

func (m *mockControl) control(op, id string) (*domain.ExecutionRecord, error) {
	m.controlled = append(m.controlled, op+":"+id)
	if m.err != nil {
		return nil, m.err
	}
	return m.GetExecution(context.Background(), id)
}

func (m *mockControl) CancelExecution(_ context.Context, id string) (*domain.ExecutionRecord, error) {
	return m.control("cancel", id)
}

func (m *mockControl) SuspendExecution(_ context.Context, id string) (*domain.ExecutionRecord, error) {
	return m.control("suspend", id)
}

func (m *mockControl) ResumeExecution(_ context.Context, id string) (*domain.ExecutionRecord, error) {
	return m.control("resume", id)
}

func (m *mockControl) RetryExecution(_ context.Context, id string) (*domain.ExecutionRecord, error) {
	return m.control("retry", id)
}

func (m *mockControl) Resync(context.Context) (*domain.ResyncReport, error) {
	return &domain.ResyncReport{}, m.err
}

func sampleControl() *mockControl {
	done := testTime.Add(time.Minute)
	return &mockControl{
		entries: []domain.VaultEntry{
			{
				Path: "notes/a.md", Kind: "concept", Status: "draft",
				Tags: []string{"go"}, OutboundLinks: []string{"notes/b.md"},
				ContentHash: "abc", LastSeenAt: testTime, LastModifiedAt: testTime,
			},
			{Path: "notes/gone.md", Deleted: true, DeletedAt: testTime},
		},
		counts: &domain.EntryCounts{Total: 2, Live: 1, Deleted: 1, ByKind: map[string]int{"concept": 1}},
		workflows: []domain.WorkflowInfo{{
			Definition: domain.WorkflowDefinition{
				ID:              "summarise",
				TriggerPatterns: []string{"**/*.md"},
				Concurrency:     domain.ConcurrencySerializePerPath,
				Steps:           []domain.StepSpec{{Name: "post", Type: "http"}},
				Enabled:         true,
			},
			Enabled:      true,
			RegisteredAt: testTime,
		}},
		executions: []domain.ExecutionRecord{{
			ExecutionID:      "exec-1",
			RequestID:        "req-1",
			WorkflowID:       "summarise",
			State:            domain.ExecutionCompleted,
			CurrentStepIndex: 1,
			TriggerEvent:     &domain.VaultEvent{Path: "notes/a.md", ChangeKind: domain.ChangeModified},
			StepResults: []domain.StepResult{{
				StepIndex: 0, StepName: "post", Success: true, Attempts: 2,
				Output: map[string]any{"status": 200},
			}},
			StartedAt:   testTime,
			UpdatedAt:   done,
			CompletedAt: &done,
			RetryCount:  1,
		}},
	}
}
