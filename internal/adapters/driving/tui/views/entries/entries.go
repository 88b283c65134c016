// Package entries provides the shadow cache browser for the TUI.
package entries

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

// chromeLines is the number of lines around the table.
const chromeLines = 8

// View lists cache entries one page at a time.
type View struct {
	ctx     context.Context
	styles  *styles.Styles
	control driving.ControlSurface

	entries []domain.VaultEntry
	counts  *domain.EntryCounts
	cursor  *list.Cursor

	// pages holds the cursor that produced each page visited so far; the
	// last element is the current page.
	pages []string
	next  string

	detail  bool
	loading bool
	err     error
	width   int
	height  int
}

// NewView creates a new entries view.
func NewView(ctx context.Context, s *styles.Styles, control driving.ControlSurface) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	return &View{
		ctx:     ctx,
		styles:  s,
		control: control,
		cursor:  list.NewCursor(24 - chromeLines),
		pages:   []string{""},
		width:   80,
		height:  24,
	}
}

// Init loads the first page.
func (v *View) Init() tea.Cmd {
	v.pages = []string{""}
	v.detail = false
	v.cursor.Reset()
	return v.load()
}

func (v *View) load() tea.Cmd {
	v.loading = true
	after := v.pages[len(v.pages)-1]
	limit := max(v.height-chromeLines, 1)
	return func() tea.Msg {
		if v.control == nil {
			return messages.EntriesLoaded{Err: fmt.Errorf("control surface not available")}
		}
		page, err := v.control.QueryEntries(v.ctx, domain.EntryFilter{}, domain.Page{After: after, Limit: limit})
		if err != nil {
			return messages.EntriesLoaded{Err: err}
		}
		counts, err := v.control.CountEntries(v.ctx, domain.EntryFilter{})
		return messages.EntriesLoaded{Page: page, Counts: counts, Err: err}
	}
}

// Update handles messages for the entries view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case messages.EntriesLoaded:
		v.loading = false
		v.err = msg.Err
		if msg.Page != nil {
			v.entries = msg.Page.Entries
			v.next = msg.Page.NextCursor
			v.cursor.SetSize(len(v.entries))
		}
		if msg.Counts != nil {
			v.counts = msg.Counts
		}
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
	case "enter":
		if len(v.entries) > 0 {
			v.detail = !v.detail
		}
	case "esc":
		if v.detail {
			v.detail = false
			return v, nil
		}
		return v, func() tea.Msg { return messages.ViewChanged{View: messages.ViewMenu} }
	case "n", "pgdown":
		if v.next == "" || v.loading {
			return v, nil
		}
		v.pages = append(v.pages, v.next)
		v.cursor.Reset()
		v.detail = false
		return v, v.load()
	case "p", "pgup":
		if len(v.pages) < 2 || v.loading {
			return v, nil
		}
		v.pages = v.pages[:len(v.pages)-1]
		v.cursor.Reset()
		v.detail = false
		return v, v.load()
	case "r":
		return v, v.load()
	}
	return v, nil
}

// View renders the entries view.
func (v *View) View() string {
	var b strings.Builder

	b.WriteString(v.styles.Title.Render("Entries"))
	if v.counts != nil {
		b.WriteString("  ")
		b.WriteString(v.styles.Muted.Render(fmt.Sprintf("%d live, %d deleted", v.counts.Live, v.counts.Deleted)))
	}
	b.WriteString("\n\n")

	switch {
	case v.err != nil:
		b.WriteString(v.styles.Error.Render(fmt.Sprintf("Error: %s", v.err)))
	case v.loading && len(v.entries) == 0:
		b.WriteString(v.styles.Muted.Render("Loading entries..."))
	case len(v.entries) == 0:
		b.WriteString(v.styles.Muted.Render("The cache is empty. Run 'weaver resync' to populate it."))
	case v.detail:
		b.WriteString(v.renderDetail(&v.entries[v.cursor.Selected()]))
	default:
		b.WriteString(v.renderTable())
	}

	b.WriteString("\n\n")
	b.WriteString(v.styles.Help.Render(v.helpLine()))
	return b.String()
}

func (v *View) renderTable() string {
	pathWidth := max(v.width-40, 20)
	var b strings.Builder
	b.WriteString(v.styles.Header.Render(fmt.Sprintf("  %-*s %-10s %-10s %s", pathWidth, "PATH", "KIND", "STATUS", "TAGS")))
	b.WriteString("\n")

	start, end := v.cursor.Window()
	for i := start; i < end; i++ {
		e := &v.entries[i]
		row := fmt.Sprintf("%-*s %-10s %-10s %s",
			pathWidth, text.Truncate(e.Path, pathWidth),
			text.Truncate(text.OrDash(e.Kind), 10),
			text.Truncate(text.OrDash(e.Status), 10),
			text.Truncate(strings.Join(e.Tags, ","), 20))
		switch {
		case i == v.cursor.Selected():
			b.WriteString(v.styles.Selected.Render("> " + row))
		case e.Deleted:
			b.WriteString("  " + v.styles.Muted.Render(row))
		default:
			b.WriteString("  " + v.styles.Normal.Render(row))
		}
		b.WriteString("\n")
	}

	b.WriteString(v.styles.Muted.Render(fmt.Sprintf("page %d", len(v.pages))))
	return b.String()
}

func (v *View) renderDetail(e *domain.VaultEntry) string {
	var b strings.Builder
	field := func(name, value string) {
		b.WriteString(v.styles.Subtitle.Render(fmt.Sprintf("%-14s", name)))
		b.WriteString(v.styles.Normal.Render(value))
		b.WriteString("\n")
	}

	field("Path", e.Path)
	field("Kind", text.OrDash(e.Kind))
	field("Status", text.OrDash(e.Status))
	field("Tags", text.OrDash(strings.Join(e.Tags, ", ")))
	field("Links", text.OrDash(strings.Join(e.OutboundLinks, ", ")))
	field("Hash", text.OrDash(e.ContentHash))
	field("Modified", text.Time(e.LastModifiedAt))
	field("Seen", text.Time(e.LastSeenAt))
	field("Sequence", fmt.Sprintf("%d", e.Sequence))
	if e.Deleted {
		field("Deleted", text.Time(e.DeletedAt))
	}
	return strings.TrimRight(b.String(), "\n")
}

func (v *View) helpLine() string {
	if v.detail {
		return "[enter/esc] close"
	}
	return "[j/k] navigate  [enter] details  [n/p] page  [r] reload  [esc] back"
}

// SetDimensions sets the view dimensions.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
	v.cursor.SetHeight(height - chromeLines)
}

// Entries returns the entries of the current page.
func (v *View) Entries() []domain.VaultEntry {
	return v.entries
}

// Page returns the 1-based number of the current page.
func (v *View) Page() int {
	return len(v.pages)
}

// Err returns the last error.
func (v *View) Err() error {
	return v.err
}
