// Package tuitest provides an in-memory control surface for TUI tests.
package tuitest

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/weave-nn/weaver/internal/core/domain"
	"github.com/weave-nn/weaver/internal/core/ports/driving"
)

// Control is an in-memory driving.ControlSurface. Entries are served in
// the order given, paged by path.
type Control struct {
	mu sync.Mutex

	Entries    []domain.VaultEntry
	Workflows  []domain.WorkflowInfo
	Executions []domain.ExecutionRecord

	// Err, when set, is returned by every call.
	Err error

	Pages      []domain.Page
	ExecFilter domain.ExecutionFilter
	Triggered  []string
	Actions    []string
}

var _ driving.ControlSurface = (*Control)(nil)

// Sample returns a control populated with a small vault.
func Sample() *Control {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	done := now.Add(time.Second)
	return &Control{
		Entries: []domain.VaultEntry{
			{Path: "notes/a.md", Kind: "task", Status: "open", Tags: []string{"alpha"},
				OutboundLinks: []string{"notes/b.md"}, ContentHash: "h-a", LastSeenAt: now, Sequence: 1},
			{Path: "notes/b.md", Tags: []string{}, OutboundLinks: []string{}, ContentHash: "h-b", LastSeenAt: now, Sequence: 2},
			{Path: "notes/old.md", Deleted: true, DeletedAt: now, Tags: []string{}, OutboundLinks: []string{}, Sequence: 3},
		},
		Workflows: []domain.WorkflowInfo{
			{Definition: domain.WorkflowDefinition{ID: "summarise", TriggerPatterns: []string{"created:notes/**"},
				Concurrency: domain.ConcurrencySerializePerPath, Steps: []domain.StepSpec{{Name: "log", Type: "log"}}}, Enabled: true},
			{Definition: domain.WorkflowDefinition{ID: "digest", Schedule: "@daily",
				Concurrency: domain.ConcurrencySingletonGlobal, Steps: []domain.StepSpec{{Name: "log", Type: "log"}}}, Enabled: false},
		},
		Executions: []domain.ExecutionRecord{
			{ExecutionID: "exec-2", WorkflowID: "summarise", State: domain.ExecutionRunning, CurrentStepIndex: 0,
				TriggerEvent: &domain.VaultEvent{Path: "notes/b.md", ChangeKind: domain.ChangeCreated}, StartedAt: now, UpdatedAt: now},
			{ExecutionID: "exec-1", WorkflowID: "summarise", State: domain.ExecutionFailed, CurrentStepIndex: 0,
				TriggerEvent: &domain.VaultEvent{Path: "notes/a.md", ChangeKind: domain.ChangeCreated},
				StepResults: []domain.StepResult{{StepIndex: 0, StepName: "log", Error: "boom", Attempts: 3}},
				Error:       &domain.ExecutionError{Kind: domain.ErrorKindStep, Message: "boom"},
				StartedAt:   now, UpdatedAt: done, CompletedAt: &done},
		},
	}
}

// QueryEntries implements driving.ControlSurface.
func (c *Control) QueryEntries(_ context.Context, filter domain.EntryFilter, page domain.Page) (*domain.EntryPage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Pages = append(c.Pages, page)
	if c.Err != nil {
		return nil, c.Err
	}

	limit := page.EffectiveLimit()
	out := &domain.EntryPage{Entries: []domain.VaultEntry{}}
	for i := range c.Entries {
		e := c.Entries[i]
		if e.Path <= page.After || !strings.HasPrefix(e.Path, filter.PathPrefix) {
			continue
		}
		if len(out.Entries) == limit {
			out.NextCursor = out.Entries[limit-1].Path
			break
		}
		out.Entries = append(out.Entries, e)
	}
	return out, nil
}

// GetEntry implements driving.ControlSurface.
func (c *Control) GetEntry(_ context.Context, path string) (*domain.VaultEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.Entries {
		if c.Entries[i].Path == path {
			e := c.Entries[i]
			return &e, nil
		}
	}
	return nil, domain.ErrNotFound
}

// CountEntries implements driving.ControlSurface.
func (c *Control) CountEntries(_ context.Context, _ domain.EntryFilter) (*domain.EntryCounts, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return nil, c.Err
	}
	counts := &domain.EntryCounts{ByKind: map[string]int{}, ByStatus: map[string]int{}, ByTag: map[string]int{}}
	for i := range c.Entries {
		counts.Total++
		if c.Entries[i].Deleted {
			counts.Deleted++
		} else {
			counts.Live++
		}
	}
	return counts, nil
}

// Backlinks implements driving.ControlSurface.
func (c *Control) Backlinks(_ context.Context, path string, _ domain.Page) (*domain.EntryPage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := &domain.EntryPage{Entries: []domain.VaultEntry{}}
	for i := range c.Entries {
		if !c.Entries[i].Deleted && c.Entries[i].LinksTo(path) {
			out.Entries = append(out.Entries, c.Entries[i])
		}
	}
	return out, nil
}

// ListWorkflows implements driving.ControlSurface.
func (c *Control) ListWorkflows(_ context.Context, _ domain.WorkflowFilter) ([]domain.WorkflowInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return nil, c.Err
	}
	return append([]domain.WorkflowInfo(nil), c.Workflows...), nil
}

// SetWorkflowEnabled implements driving.ControlSurface.
func (c *Control) SetWorkflowEnabled(_ context.Context, workflowID string, enabled bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return c.Err
	}
	for i := range c.Workflows {
		if c.Workflows[i].Definition.ID == workflowID {
			c.Workflows[i].Enabled = enabled
			return nil
		}
	}
	return domain.ErrNotFound
}

// TriggerWorkflow implements driving.ControlSurface.
func (c *Control) TriggerWorkflow(_ context.Context, workflowID string, input map[string]any) (*driving.TriggerResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Triggered = append(c.Triggered, workflowID)
	if c.Err != nil {
		return nil, c.Err
	}
	rec := domain.ExecutionRecord{
		ExecutionID:  "exec-manual",
		WorkflowID:   workflowID,
		State:        domain.ExecutionPending,
		TriggerInput: input,
	}
	c.Executions = append([]domain.ExecutionRecord{rec}, c.Executions...)
	return &driving.TriggerResult{
		Request:   domain.ExecutionRequest{RequestID: "req-manual", WorkflowID: workflowID, Manual: true},
		Execution: &rec,
	}, nil
}

// GetExecution implements driving.ControlSurface.
func (c *Control) GetExecution(_ context.Context, executionID string) (*domain.ExecutionRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.find(executionID)
}

func (c *Control) find(executionID string) (*domain.ExecutionRecord, error) {
	for i := range c.Executions {
		if c.Executions[i].ExecutionID == executionID {
			return &c.Executions[i], nil
		}
	}
	return nil, domain.ErrNotFound
}

// ListExecutions implements driving.ControlSurface.
func (c *Control) ListExecutions(_ context.Context, filter domain.ExecutionFilter) ([]domain.ExecutionRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ExecFilter = filter
	if c.Err != nil {
		return nil, c.Err
	}
	out := []domain.ExecutionRecord{}
	for i := range c.Executions {
		if filter.WorkflowID != "" && c.Executions[i].WorkflowID != filter.WorkflowID {
			continue
		}
		out = append(out, c.Executions[i])
	}
	return out, nil
}

func (c *Control) transition(action, id string, to domain.ExecutionState) (*domain.ExecutionRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Actions = append(c.Actions, action+":"+id)
	if c.Err != nil {
		return nil, c.Err
	}
	rec, err := c.find(id)
	if err != nil {
		return nil, err
	}
	rec.State = to
	out := *rec
	return &out, nil
}

// CancelExecution implements driving.ControlSurface.
func (c *Control) CancelExecution(_ context.Context, id string) (*domain.ExecutionRecord, error) {
	return c.transition("cancel", id, domain.ExecutionFailed)
}

// SuspendExecution implements driving.ControlSurface.
func (c *Control) SuspendExecution(_ context.Context, id string) (*domain.ExecutionRecord, error) {
	return c.transition("suspend", id, domain.ExecutionSuspended)
}

// ResumeExecution implements driving.ControlSurface.
func (c *Control) ResumeExecution(_ context.Context, id string) (*domain.ExecutionRecord, error) {
	return c.transition("resume", id, domain.ExecutionPending)
}

// RetryExecution implements driving.ControlSurface.
func (c *Control) RetryExecution(_ context.Context, id string) (*domain.ExecutionRecord, error) {
	return c.transition("retry", id, domain.ExecutionPending)
}

// Resync implements driving.ControlSurface.
func (c *Control) Resync(_ context.Context) (*domain.ResyncReport, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return nil, c.Err
	}
	return &domain.ResyncReport{Scanned: len(c.Entries)}, nil
}
