// Package messages defines Bubbletea message types for the TUI.
// Messages represent events and commands that flow through the Elm architecture.
package messages

import (
	"github.com/weave-nn/weaver/internal/core/domain"
)

// ViewType identifies which view is currently active.
type ViewType int

const (
	// ViewMenu is the main navigation menu.
	ViewMenu ViewType = iota
	// ViewEntries lists shadow cache entries.
	ViewEntries
	// ViewWorkflows lists registered workflows.
	ViewWorkflows
	// ViewExecutions lists execution records.
	ViewExecutions
	// ViewHelp is the help/keybindings view.
	ViewHelp
)

// String returns the string representation of the view type.
func (v ViewType) String() string {
	switch v {
	case ViewMenu:
		return "menu"
	case ViewEntries:
		return "entries"
	case ViewWorkflows:
		return "workflows"
	case ViewExecutions:
		return "executions"
	case ViewHelp:
		return "help"
	default:
		return "unknown"
	}
}

// ViewChanged is sent when navigating between views.
type ViewChanged struct {
	View ViewType
}

// ErrorOccurred signals that an error happened.
type ErrorOccurred struct {
	Err error
}

// Quit signals the application should exit.
type Quit struct{}

// EntriesLoaded carries one page of entries and the cache counts.
type EntriesLoaded struct {
	Page   *domain.EntryPage
	Counts *domain.EntryCounts
	Err    error
}

// WorkflowsLoaded carries the registered workflows.
type WorkflowsLoaded struct {
	Workflows []domain.WorkflowInfo
	Err       error
}

// WorkflowToggled signals a workflow was enabled or disabled.
type WorkflowToggled struct {
	WorkflowID string
	Enabled    bool
	Err        error
}

// WorkflowTriggered signals a manual trigger was accepted.
type WorkflowTriggered struct {
	WorkflowID  string
	ExecutionID string
	Withheld    bool
	Err         error
}

// ExecutionsLoaded carries execution records, newest first.
type ExecutionsLoaded struct {
	Executions []domain.ExecutionRecord
	Err        error
}

// ExecutionUpdated carries a record after a lifecycle action.
type ExecutionUpdated struct {
	Action    string
	Execution *domain.ExecutionRecord
	Err       error
}

// WorkflowSelected asks the executions view to show one workflow.
type WorkflowSelected struct {
	WorkflowID string
}
