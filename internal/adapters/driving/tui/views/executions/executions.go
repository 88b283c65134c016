// Package executions provides the execution list for the TUI.
package executions

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/weave-nn/weaver/internal/adapters/driving/tui/components/list"
	"github.com/weave-nn/weaver/internal/adapters/driving/tui/components/text"
	"github.com/weave-nn/weaver/internal/adapters/driving/tui/messages"
	"github.com/weave-nn/weaver/internal/adapters/driving/tui/styles"
	"github.com/weave-nn/weaver/internal/core/domain"
	"github.com/weave-nn/weaver/internal/core/ports/driving"
)

// listLimit caps how many records one load fetches.
const listLimit = 200

type action func(ctx context.Context, id string) (*domain.ExecutionRecord, error)

// View lists execution records, newest first, and drives their lifecycle.
type View struct {
	ctx     context.Context
	styles  *styles.Styles
	control driving.ControlSurface
	now     func() time.Time

	workflowID string
	back       messages.ViewType

	records []domain.ExecutionRecord
	cursor  *list.Cursor
	detail  bool
	loading bool
	err     error
	width   int
}

// NewView creates a new executions view.
func NewView(ctx context.Context, s *styles.Styles, control driving.ControlSurface) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	return &View{
		ctx:     ctx,
		styles:  s,
		control: control,
		now:     time.Now,
		back:    messages.ViewMenu,
		cursor:  list.NewCursor(16),
		width:   80,
	}
}

// SetWorkflow restricts the list to one workflow. Esc then returns to back.
// An empty id shows every workflow.
func (v *View) SetWorkflow(id string, back messages.ViewType) {
	v.workflowID = id
	v.back = back
	v.cursor.Reset()
	v.detail = false
}

// Init loads the records.
func (v *View) Init() tea.Cmd {
	return v.load()
}

func (v *View) load() tea.Cmd {
	v.loading = true
	filter := domain.ExecutionFilter{WorkflowID: v.workflowID, Limit: listLimit}
	return func() tea.Msg {
		if v.control == nil {
			return messages.ExecutionsLoaded{Err: fmt.Errorf("control surface not available")}
		}
		records, err := v.control.ListExecutions(v.ctx, filter)
		return messages.ExecutionsLoaded{Executions: records, Err: err}
	}
}

// Update handles messages for the executions view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case messages.ExecutionsLoaded:
		v.loading = false
		v.err = msg.Err
		if msg.Err == nil {
			v.records = msg.Executions
			v.cursor.SetSize(len(v.records))
		}
		return v, nil

	case messages.ExecutionUpdated:
		v.err = msg.Err
		if msg.Err != nil {
			return v, nil
		}
		return v, v.load()

	case tea.KeyMsg:
		return v.handleKey(msg)
	}
	return v, nil
}

func (v *View) handleKey(msg tea.KeyMsg) (*View, tea.Cmd) {
	if !v.detail && v.cursor.Update(msg) {
		return v, nil
	}

	switch msg.String() {
	case "esc":
		if v.detail {
			v.detail = false
			return v, nil
		}
		back := v.back
		return v, func() tea.Msg { return messages.ViewChanged{View: back} }
	case "r":
		return v, v.load()
	case "enter":
		if len(v.records) > 0 {
			v.detail = !v.detail
		}
		return v, nil
	}

	if len(v.records) == 0 || v.control == nil {
		return v, nil
	}
	id := v.records[v.cursor.Selected()].ExecutionID

	switch msg.String() {
	case "c":
		return v, v.act("cancel", id, v.control.CancelExecution)
	case "s":
		return v, v.act("suspend", id, v.control.SuspendExecution)
	case "u":
		return v, v.act("resume", id, v.control.ResumeExecution)
	case "R":
		return v, v.act("retry", id, v.control.RetryExecution)
	}
	return v, nil
}

func (v *View) act(name, id string, fn action) tea.Cmd {
	ctx := v.ctx
	return func() tea.Msg {
		rec, err := fn(ctx, id)
		return messages.ExecutionUpdated{Action: name, Execution: rec, Err: err}
	}
}

// View renders the executions view.
func (v *View) View() string {
	var b strings.Builder

	title := "Executions"
	if v.workflowID != "" {
		title += " of " + v.workflowID
	}
	b.WriteString(v.styles.Title.Render(title))
	b.WriteString("\n\n")

	if v.err != nil {
		b.WriteString(v.styles.Error.Render(fmt.Sprintf("Error: %s", v.err)))
		b.WriteString("\n\n")
	}

	switch {
	case v.loading && len(v.records) == 0:
		b.WriteString(v.styles.Muted.Render("Loading executions..."))
		b.WriteString("\n\n")
	case len(v.records) == 0:
		b.WriteString(v.styles.Muted.Render("No executions recorded."))
		b.WriteString("\n\n")
	case v.detail:
		b.WriteString(v.renderDetail(&v.records[v.cursor.Selected()]))
		b.WriteString("\n\n")
	default:
		b.WriteString(v.renderTable())
		b.WriteString("\n")
	}

	if v.detail {
		b.WriteString(v.styles.Help.Render("[enter/esc] close  [c] cancel  [s] suspend  [u] resume  [R] retry"))
	} else {
		b.WriteString(v.styles.Help.Render("[enter] details  [c] cancel  [s] suspend  [u] resume  [R] retry  [r] reload  [esc] back"))
	}
	return b.String()
}

func (v *View) renderTable() string {
	triggerWidth := max(v.width-66, 12)
	var b strings.Builder
	b.WriteString(v.styles.Header.Render(fmt.Sprintf("  %-14s %-20s %-10s %-5s %-10s %s",
		"ID", "WORKFLOW", "STATE", "STEP", "UPDATED", "TRIGGER")))
	b.WriteString("\n")

	now := v.now()
	start, end := v.cursor.Window()
	for i := start; i < end; i++ {
		r := &v.records[i]
		row := fmt.Sprintf("%-14s %-20s %-10s %-5d %-10s %s",
			text.Truncate(r.ExecutionID, 14),
			text.Truncate(r.WorkflowID, 20),
			r.State,
			r.CurrentStepIndex,
			text.Ago(r.UpdatedAt, now),
			text.Truncate(trigger(r), triggerWidth))
		if i == v.cursor.Selected() {
			b.WriteString(v.styles.Selected.Render("> " + row))
		} else {
			b.WriteString("  " + v.styles.State(r.State).Render(row))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (v *View) renderDetail(r *domain.ExecutionRecord) string {
	var b strings.Builder
	field := func(name, value string) {
		b.WriteString(v.styles.Subtitle.Render(fmt.Sprintf("%-12s", name)))
		b.WriteString(v.styles.Normal.Render(value))
		b.WriteString("\n")
	}

	field("Execution", r.ExecutionID)
	field("Workflow", r.WorkflowID)
	b.WriteString(v.styles.Subtitle.Render(fmt.Sprintf("%-12s", "State")))
	b.WriteString(v.styles.State(r.State).Render(string(r.State)))
	b.WriteString("\n")
	if r.SuspendReason != "" {
		field("Suspended", r.SuspendReason)
	}
	field("Trigger", trigger(r))
	field("Started", text.Time(r.StartedAt))
	field("Updated", text.Time(r.UpdatedAt))
	if r.CompletedAt != nil {
		field("Completed", text.Time(*r.CompletedAt))
	}
	field("Retries", fmt.Sprintf("%d automatic, %d manual", r.RetryCount, r.ManualRetries))
	if r.Error != nil {
		b.WriteString(v.styles.Subtitle.Render(fmt.Sprintf("%-12s", "Error")))
		b.WriteString(v.styles.Error.Render(fmt.Sprintf("%s at step %d: %s", r.Error.Kind, r.Error.StepIndex, r.Error.Message)))
		b.WriteString("\n")
	}

	if len(r.StepResults) > 0 {
		b.WriteString("\n")
		b.WriteString(v.styles.Header.Render("Steps"))
		b.WriteString("\n")
		for _, s := range r.StepResults {
			mark, style := "ok", v.styles.Success
			if !s.Success {
				mark, style = "failed", v.styles.Error
			}
			line := fmt.Sprintf("  %d. %-20s %-6s attempts=%d", s.StepIndex, s.StepName, mark, s.Attempts)
			if s.Error != "" {
				line += "  " + s.Error
			}
			b.WriteString(style.Render(line))
			b.WriteString("\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func trigger(r *domain.ExecutionRecord) string {
	switch {
	case r.TriggerEvent != nil:
		return fmt.Sprintf("%s %s", r.TriggerEvent.ChangeKind, r.TriggerEvent.Path)
	case len(r.TriggerInput) > 0:
		return "manual"
	default:
		return "-"
	}
}

// SetDimensions sets the view dimensions.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.cursor.SetHeight(height - 8)
}

// Records returns the loaded records.
func (v *View) Records() []domain.ExecutionRecord {
	return v.records
}

// WorkflowID returns the workflow filter, empty for all workflows.
func (v *View) WorkflowID() string {
	return v.workflowID
}

// Err returns the last error.
func (v *View) Err() error {
	return v.err
}
