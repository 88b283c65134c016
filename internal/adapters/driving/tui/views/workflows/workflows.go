// Package workflows provides the workflow list for the TUI.
package workflows

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/weave-nn/weaver/internal/adapters/driving/tui/components/list"
	"github.com/weave-nn/weaver/internal/adapters/driving/tui/components/text"
	"github.com/weave-nn/weaver/internal/adapters/driving/tui/messages"
	"github.com/weave-nn/weaver/internal/adapters/driving/tui/styles"
	"github.com/weave-nn/weaver/internal/core/domain"
	"github.com/weave-nn/weaver/internal/core/ports/driving"
)

// View lists registered workflows.
type View struct {
	ctx     context.Context
	styles  *styles.Styles
	control driving.ControlSurface

	workflows []domain.WorkflowInfo
	cursor    *list.Cursor
	loading   bool
	err       error
	width     int
}

// NewView creates a new workflows view.
func NewView(ctx context.Context, s *styles.Styles, control driving.ControlSurface) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	return &View{
		ctx:     ctx,
		styles:  s,
		control: control,
		cursor:  list.NewCursor(16),
		width:   80,
	}
}

// Init loads the workflows.
func (v *View) Init() tea.Cmd {
	return v.load()
}

func (v *View) load() tea.Cmd {
	v.loading = true
	return func() tea.Msg {
		if v.control == nil {
			return messages.WorkflowsLoaded{Err: fmt.Errorf("control surface not available")}
		}
		wfs, err := v.control.ListWorkflows(v.ctx, domain.WorkflowFilter{})
		return messages.WorkflowsLoaded{Workflows: wfs, Err: err}
	}
}

// Update handles messages for the workflows view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case messages.WorkflowsLoaded:
		v.loading = false
		v.err = msg.Err
		if msg.Err == nil {
			v.workflows = msg.Workflows
			v.cursor.SetSize(len(v.workflows))
		}
		return v, nil

	case messages.WorkflowToggled:
		if msg.Err != nil {
			v.err = msg.Err
			return v, nil
		}
		return v, v.load()

	case messages.WorkflowTriggered:
		v.err = msg.Err
		return v, nil

	case tea.KeyMsg:
		return v.handleKey(msg)
	}
	return v, nil
}

func (v *View) handleKey(msg tea.KeyMsg) (*View, tea.Cmd) {
	if v.cursor.Update(msg) {
		return v, nil
	}

	switch msg.String() {
	case "esc":
		return v, func() tea.Msg { return messages.ViewChanged{View: messages.ViewMenu} }
	case "r":
		return v, v.load()
	}

	wf := v.current()
	if wf == nil {
		return v, nil
	}
	id := wf.Definition.ID

	switch msg.String() {
	case "enter":
		return v, func() tea.Msg { return messages.WorkflowSelected{WorkflowID: id} }
	case "e":
		enable := !wf.Enabled
		return v, func() tea.Msg {
			err := v.control.SetWorkflowEnabled(v.ctx, id, enable)
			return messages.WorkflowToggled{WorkflowID: id, Enabled: enable, Err: err}
		}
	case "t":
		return v, func() tea.Msg {
			res, err := v.control.TriggerWorkflow(v.ctx, id, nil)
			out := messages.WorkflowTriggered{WorkflowID: id, Err: err}
			if res != nil {
				out.Withheld = res.Withheld
				if res.Execution != nil {
					out.ExecutionID = res.Execution.ExecutionID
				}
			}
			return out
		}
	}
	return v, nil
}

func (v *View) current() *domain.WorkflowInfo {
	if len(v.workflows) == 0 || v.control == nil {
		return nil
	}
	return &v.workflows[v.cursor.Selected()]
}

// View renders the workflows view.
func (v *View) View() string {
	var b strings.Builder

	b.WriteString(v.styles.Title.Render("Workflows"))
	b.WriteString("\n\n")

	switch {
	case v.err != nil:
		b.WriteString(v.styles.Error.Render(fmt.Sprintf("Error: %s", v.err)))
		b.WriteString("\n\n")
	case v.loading && len(v.workflows) == 0:
		b.WriteString(v.styles.Muted.Render("Loading workflows..."))
		b.WriteString("\n\n")
	}

	if len(v.workflows) == 0 && !v.loading && v.err == nil {
		b.WriteString(v.styles.Muted.Render("No workflows registered."))
		b.WriteString("\n\n")
	}

	if len(v.workflows) > 0 {
		b.WriteString(v.renderTable())
		b.WriteString("\n")
	}

	b.WriteString(v.styles.Help.Render("[enter] executions  [e] enable/disable  [t] trigger  [r] reload  [esc] back"))
	return b.String()
}

func (v *View) renderTable() string {
	triggerWidth := max(v.width-52, 16)
	var b strings.Builder
	b.WriteString(v.styles.Header.Render(fmt.Sprintf("  %-24s %-8s %-20s %s", "ID", "ENABLED", "CONCURRENCY", "TRIGGERS")))
	b.WriteString("\n")

	start, end := v.cursor.Window()
	for i := start; i < end; i++ {
		wf := &v.workflows[i]
		enabled := "no"
		if wf.Enabled {
			enabled = "yes"
		}
		row := fmt.Sprintf("%-24s %-8s %-20s %s",
			text.Truncate(wf.Definition.ID, 24),
			enabled,
			wf.Definition.Concurrency,
			text.Truncate(triggers(&wf.Definition), triggerWidth))
		switch {
		case i == v.cursor.Selected():
			b.WriteString(v.styles.Selected.Render("> " + row))
		case !wf.Enabled:
			b.WriteString("  " + v.styles.Muted.Render(row))
		default:
			b.WriteString("  " + v.styles.Normal.Render(row))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func triggers(def *domain.WorkflowDefinition) string {
	parts := append([]string(nil), def.TriggerPatterns...)
	if def.Schedule != "" {
		parts = append(parts, "cron:"+def.Schedule)
	}
	return text.OrDash(strings.Join(parts, ", "))
}

// SetDimensions sets the view dimensions.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.cursor.SetHeight(height - 8)
}

// Workflows returns the loaded workflows.
func (v *View) Workflows() []domain.WorkflowInfo {
	return v.workflows
}

// Err returns the last error.
func (v *View) Err() error {
	return v.err
}
