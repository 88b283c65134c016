package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/weave-nn/weaver/internal/adapters/driving/tui/components/status"
	"github.com/weave-nn/weaver/internal/adapters/driving/tui/keymap"
	"github.com/weave-nn/weaver/internal/adapters/driving/tui/messages"
	"github.com/weave-nn/weaver/internal/adapters/driving/tui/styles"
	"github.com/weave-nn/weaver/internal/adapters/driving/tui/views/entries"
	"github.com/weave-nn/weaver/internal/adapters/driving/tui/views/executions"
	"github.com/weave-nn/weaver/internal/adapters/driving/tui/views/menu"
	"github.com/weave-nn/weaver/internal/adapters/driving/tui/views/workflows"
)

// App routes messages between the menu, list views, help and status bar.
// Views own their data loading; App only switches between them and turns
// loaded and action messages into status bar text.
type App struct {
	ports  *Ports
	styles *styles.Styles
	keymap *keymap.KeyMap
	help   help.Model
	status *status.Bar

	menuView       *menu.View
	entriesView    *entries.View
	workflowsView  *workflows.View
	executionsView *executions.View

	currentView messages.ViewType

	width  int
	height int
	ready  bool
}

var _ tea.Model = (*App)(nil)

// NewApp creates a new TUI application. Vault is shown on the menu.
func NewApp(ctx context.Context, ports *Ports, vault string) (*App, error) {
	if err := ports.Validate(); err != nil {
		return nil, fmt.Errorf("creating app: %w", err)
	}

	s := styles.DefaultStyles()
	km := keymap.DefaultKeyMap()
	return &App{
		ports:          ports,
		styles:         s,
		keymap:         km,
		help:           help.New(),
		status:         status.NewBar(s, km),
		menuView:       menu.NewView(s, vault),
		entriesView:    entries.NewView(ctx, s, ports.Control),
		workflowsView:  workflows.NewView(ctx, s, ports.Control),
		executionsView: executions.NewView(ctx, s, ports.Control),
		currentView:    messages.ViewMenu,
	}, nil
}

// Init sets the terminal title.
func (a *App) Init() tea.Cmd {
	return tea.SetWindowTitle("weaver")
}

// Update implements tea.Model.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.SetDimensions(msg.Width, msg.Height)
		return a, nil

	case tea.KeyMsg:
		return a.handleKey(msg)

	case messages.ViewChanged:
		return a, a.switchTo(msg.View)

	case messages.WorkflowSelected:
		a.executionsView.SetWorkflow(msg.WorkflowID, messages.ViewWorkflows)
		return a, a.switchTo(messages.ViewExecutions)

	case messages.Quit:
		return a, tea.Quit

	case messages.ErrorOccurred:
		a.status.SetError(msg.Err)
		return a, nil

	case messages.EntriesLoaded:
		a.entriesView, cmd = a.entriesView.Update(msg)
		a.status.SetError(msg.Err)
		if msg.Counts != nil {
			a.status.SetCount(msg.Counts.Live, "live entries")
		}
		return a, cmd

	case messages.WorkflowsLoaded:
		a.workflowsView, cmd = a.workflowsView.Update(msg)
		a.status.SetError(msg.Err)
		a.status.SetCount(len(msg.Workflows), "workflows")
		return a, cmd

	case messages.WorkflowToggled:
		a.workflowsView, cmd = a.workflowsView.Update(msg)
		if msg.Err != nil {
			a.status.SetError(msg.Err)
		} else if msg.Enabled {
			a.status.SetNotice(fmt.Sprintf("Workflow %s enabled.", msg.WorkflowID))
		} else {
			a.status.SetNotice(fmt.Sprintf("Workflow %s disabled.", msg.WorkflowID))
		}
		return a, cmd

	case messages.WorkflowTriggered:
		a.workflowsView, cmd = a.workflowsView.Update(msg)
		switch {
		case msg.Err != nil:
			a.status.SetError(msg.Err)
		case msg.Withheld:
			a.status.SetNotice(fmt.Sprintf("Workflow %s is busy; execution %s was queued.", msg.WorkflowID, msg.ExecutionID))
		default:
			a.status.SetNotice(fmt.Sprintf("Execution %s accepted.", msg.ExecutionID))
		}
		return a, cmd

	case messages.ExecutionsLoaded:
		a.executionsView, cmd = a.executionsView.Update(msg)
		if msg.Err != nil {
			a.status.SetError(msg.Err)
		}
		return a, cmd

	case messages.ExecutionUpdated:
		a.executionsView, cmd = a.executionsView.Update(msg)
		if msg.Err != nil {
			a.status.SetError(fmt.Errorf("%s: %w", msg.Action, msg.Err))
		} else {
			a.status.SetNotice(fmt.Sprintf("Execution %s is now %s.", msg.Execution.ExecutionID, msg.Execution.State))
		}
		return a, cmd
	}
	return a, nil
}

func (a *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return a, tea.Quit
	}
	if a.currentView != messages.ViewMenu && msg.String() == "?" {
		return a, a.switchTo(messages.ViewHelp)
	}

	var cmd tea.Cmd
	switch a.currentView {
	case messages.ViewMenu:
		a.menuView, cmd = a.menuView.Update(msg)
	case messages.ViewEntries:
		a.entriesView, cmd = a.entriesView.Update(msg)
	case messages.ViewWorkflows:
		a.workflowsView, cmd = a.workflowsView.Update(msg)
	case messages.ViewExecutions:
		a.executionsView, cmd = a.executionsView.Update(msg)
	case messages.ViewHelp:
		if msg.Type == tea.KeyEsc || msg.String() == "q" {
			return a, a.switchTo(messages.ViewMenu)
		}
	}
	return a, cmd
}

// switchTo makes view current and returns its load command.
func (a *App) switchTo(view messages.ViewType) tea.Cmd {
	a.currentView = view
	a.status.Clear()

	switch view {
	case messages.ViewEntries:
		a.status.SetBindings(a.keymap.EntriesHelp())
		return a.entriesView.Init()
	case messages.ViewWorkflows:
		a.status.SetBindings(a.keymap.WorkflowsHelp())
		return a.workflowsView.Init()
	case messages.ViewExecutions:
		a.status.SetBindings(a.keymap.ExecutionsHelp())
		return a.executionsView.Init()
	case messages.ViewMenu:
		// Leaving a filtered list resets it for the next visit from the menu.
		a.executionsView.SetWorkflow("", messages.ViewMenu)
	case messages.ViewHelp:
	}
	return nil
}

// View renders the active view above the status bar.
func (a *App) View() string {
	if !a.ready {
		return "Initialising..."
	}

	var body string
	switch a.currentView {
	case messages.ViewEntries:
		body = a.entriesView.View()
	case messages.ViewWorkflows:
		body = a.workflowsView.View()
	case messages.ViewExecutions:
		body = a.executionsView.View()
	case messages.ViewHelp:
		body = a.viewHelp()
	default:
		body = a.menuView.View()
	}

	bar := a.status.View()
	gap := a.height - lipgloss.Height(body) - lipgloss.Height(bar)
	if gap < 1 {
		gap = 1
	}
	return body + strings.Repeat("\n", gap) + bar
}

func (a *App) viewHelp() string {
	var b strings.Builder
	b.WriteString(a.styles.Title.Render("Help"))
	b.WriteString("\n\n")
	b.WriteString(a.help.FullHelpView(a.keymap.FullHelp()))
	b.WriteString("\n\n")
	b.WriteString(a.styles.Help.Render("[esc] back to menu"))
	return b.String()
}

// Run starts the TUI and blocks until the user quits or ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	p := tea.NewProgram(a, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}

// CurrentView reports which view is on screen.
func (a *App) CurrentView() messages.ViewType {
	return a.currentView
}

// Status returns the status bar.
func (a *App) Status() *status.Bar {
	return a.status
}

// SetDimensions sets the terminal dimensions on every view.
func (a *App) SetDimensions(width, height int) {
	a.width = width
	a.height = height
	a.ready = true
	a.help.Width = width
	a.status.SetWidth(width)
	a.menuView.SetDimensions(width, height)
	a.entriesView.SetDimensions(width, height)
	a.workflowsView.SetDimensions(width, height)
	a.executionsView.SetDimensions(width, height)
}
