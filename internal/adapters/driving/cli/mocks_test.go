package cli

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"

	"github.com/weave-nn/weaver/internal/core/domain"
	"github.com/weave-nn/weaver/internal/core/ports/driving"
)

var testTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type mockControl struct {
	entries    []domain.VaultEntry
	workflows  []domain.WorkflowInfo
	executions []domain.ExecutionRecord

	lastEntryFilter domain.EntryFilter
	lastPage        domain.Page
	lastExecFilter  domain.ExecutionFilter
	lastTrigger     string
	lastInput       map[string]any
	lastAction      string
	enabled         map[string]bool
	err             error
}

func (m *mockControl) QueryEntries(_ context.Context, filter domain.EntryFilter, page domain.Page) (*domain.EntryPage, error) {
	m.lastEntryFilter = filter
	m.lastPage = page
	if m.err != nil {
		return nil, m.err
	}
	return &domain.EntryPage{Entries: m.entries}, nil
}

func (m *mockControl) GetEntry(_ context.Context, path string) (*domain.VaultEntry, error) {
	for i := range m.entries {
		if m.entries[i].Path == path {
			e := m.entries[i]
			return &e, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockControl) CountEntries(_ context.Context, filter domain.EntryFilter) (*domain.EntryCounts, error) {
	m.lastEntryFilter = filter
	counts := &domain.EntryCounts{ByKind: map[string]int{}, ByStatus: map[string]int{}, ByTag: map[string]int{}}
	for i := range m.entries {
		e := &m.entries[i]
		counts.Total++
		if e.Deleted {
			counts.Deleted++
			continue
		}
		counts.Live++
		if e.Kind != "" {
			counts.ByKind[e.Kind]++
		}
		for _, t := range e.Tags {
			counts.ByTag[t]++
		}
	}
	return counts, nil
}

func (m *mockControl) Backlinks(_ context.Context, path string, _ domain.Page) (*domain.EntryPage, error) {
	out := &domain.EntryPage{}
	for i := range m.entries {
		if m.entries[i].LinksTo(path) {
			out.Entries = append(out.Entries, m.entries[i])
		}
	}
	return out, nil
}

func (m *mockControl) ListWorkflows(_ context.Context, _ domain.WorkflowFilter) ([]domain.WorkflowInfo, error) {
	return m.workflows, m.err
}

func (m *mockControl) SetWorkflowEnabled(_ context.Context, workflowID string, enabled bool) error {
	if m.err != nil {
		return m.err
	}
	if m.enabled == nil {
		m.enabled = make(map[string]bool)
	}
	m.enabled[workflowID] = enabled
	return nil
}

func (m *mockControl) TriggerWorkflow(_ context.Context, workflowID string, input map[string]any) (*driving.TriggerResult, error) {
	m.lastTrigger = workflowID
	m.lastInput = input
	if m.err != nil {
		return nil, m.err
	}
	rec := &domain.ExecutionRecord{ExecutionID: "exec-1", WorkflowID: workflowID, State: domain.ExecutionPending}
	return &driving.TriggerResult{Request: domain.ExecutionRequest{RequestID: "req-1", WorkflowID: workflowID}, Execution: rec}, nil
}

func (m *mockControl) GetExecution(_ context.Context, executionID string) (*domain.ExecutionRecord, error) {
	for i := range m.executions {
		if m.executions[i].ExecutionID == executionID {
			r := m.executions[i]
			return &r, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockControl) ListExecutions(_ context.Context, filter domain.ExecutionFilter) ([]domain.ExecutionRecord, error) {
	m.lastExecFilter = filter
	return m.executions, m.err
}

func (m *mockControl) transition(action, id string, to domain.ExecutionState) (*domain.ExecutionRecord, error) {
	m.lastAction = action
	if m.err != nil {
		return nil, m.err
	}
	rec, err := m.GetExecution(context.Background(), id)
	if err != nil {
		return nil, err
	}
	rec.State = to
	return rec, nil
}

func (m *mockControl) CancelExecution(_ context.Context, id string) (*domain.ExecutionRecord, error) {
	return m.transition("cancel", id, domain.ExecutionFailed)
}

func (m *mockControl) SuspendExecution(_ context.Context, id string) (*domain.ExecutionRecord, error) {
	return m.transition("suspend", id, domain.ExecutionSuspended)
}

func (m *mockControl) ResumeExecution(_ context.Context, id string) (*domain.ExecutionRecord, error) {
	return m.transition("resume", id, domain.ExecutionPending)
}

func (m *mockControl) RetryExecution(_ context.Context, id string) (*domain.ExecutionRecord, error) {
	return m.transition("retry", id, domain.ExecutionPending)
}

func (m *mockControl) Resync(_ context.Context) (*domain.ResyncReport, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &domain.ResyncReport{Scanned: 3, Created: 1, Unchanged: 2, Duration: 12 * time.Millisecond}, nil
}

type mockSettings struct {
	settings domain.AppSettings
	vault    string
	invalid  error
}

func (m *mockSettings) Get() (*domain.AppSettings, error) {
	s := m.settings
	return &s, nil
}

func (m *mockSettings) Save(s *domain.AppSettings) error {
	m.settings = *s
	return nil
}

func (m *mockSettings) SetVaultRoot(root string) error {
	m.vault = root
	m.settings.Vault.Root = root
	return nil
}

func (m *mockSettings) Validate() error { return m.invalid }

func (m *mockSettings) GetDefaults() domain.AppSettings { return domain.DefaultAppSettings() }

type mockDaemon struct {
	runs        int
	metricsAddr string
}

func (d *mockDaemon) Run(_ context.Context, metricsAddr string) error {
	d.runs++
	d.metricsAddr = metricsAddr
	return nil
}

func sampleControl() *mockControl {
	return &mockControl{
		entries: []domain.VaultEntry{
			{
				Path:           "notes/a.md",
				Kind:           "task",
				Status:         "open",
				Tags:           []string{"project/alpha", "urgent"},
				OutboundLinks:  []string{"notes/b.md"},
				ContentHash:    strings.Repeat("a", 64),
				LastModifiedAt: testTime,
				Sequence:       4,
			},
			{
				Path:          "notes/b.md",
				Kind:          "note",
				Tags:          []string{"project/alpha"},
				OutboundLinks: []string{},
				ContentHash:   strings.Repeat("b", 64),
				Sequence:      5,
			},
		},
		workflows: []domain.WorkflowInfo{
			{
				Definition: domain.WorkflowDefinition{
					ID:              "summarise",
					TriggerPatterns: []string{"created,modified:notes/**/*.md"},
					Concurrency:     domain.ConcurrencySerializePerPath,
					Steps:           []domain.StepSpec{{Name: "log", Type: "log"}},
					Enabled:         true,
				},
				Enabled:      true,
				RegisteredAt: testTime,
			},
			{
				Definition: domain.WorkflowDefinition{
					ID:          "digest",
					Schedule:    "0 9 * * *",
					Concurrency: domain.ConcurrencySingletonGlobal,
					Steps:       []domain.StepSpec{{Name: "post", Type: "http"}},
				},
				RegisteredAt: testTime,
			},
		},
		executions: []domain.ExecutionRecord{
			{
				ExecutionID:      "exec-1",
				WorkflowID:       "summarise",
				State:            domain.ExecutionFailed,
				CurrentStepIndex: 1,
				TriggerEvent:     &domain.VaultEvent{Path: "notes/a.md", ChangeKind: domain.ChangeModified, Sequence: 4},
				StartedAt:        testTime,
				UpdatedAt:        testTime,
				StepResults: []domain.StepResult{
					{StepIndex: 0, StepName: "log", Success: true, Attempts: 1, StartedAt: testTime, CompletedAt: testTime.Add(5 * time.Millisecond)},
				},
				Error: &domain.ExecutionError{Kind: domain.ErrorKindStep, Message: "boom", StepIndex: 1},
			},
		},
	}
}

// execute runs the root command against rt and returns combined output.
func execute(t *testing.T, rt *Runtime, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)

	prev := bootstrap
	SetBootstrap(func(context.Context, Options) (*Runtime, error) {
		if rt == nil {
			return nil, errors.New("bootstrap failed")
		}
		return rt, nil
	})

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		bootstrap = prev
	})

	err := rootCmd.ExecuteContext(context.Background())
	require.NoError(t, teardown())
	return buf.String(), err
}

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}
