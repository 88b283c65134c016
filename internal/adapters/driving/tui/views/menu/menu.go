// Package menu provides the start screen of the TUI.
package menu

import (
	"fmt"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/weave-nn/weaver/internal/adapters/driving/tui/components/list"
	"github.com/weave-nn/weaver/internal/adapters/driving/tui/messages"
	"github.com/weave-nn/weaver/internal/adapters/driving/tui/styles"
)

// Item is one destination on the menu. An item with Quit set ends the
// program instead of switching views.
type Item struct {
	Label string
	Hint  string
	View  messages.ViewType
	Quit  bool
}

var defaultItems = []Item{
	{Label: "Entries", Hint: "browse the shadow cache", View: messages.ViewEntries},
	{Label: "Workflows", Hint: "enable, disable and trigger", View: messages.ViewWorkflows},
	{Label: "Executions", Hint: "inspect and control runs", View: messages.ViewExecutions},
	{Label: "Help", View: messages.ViewHelp},
	{Label: "Quit", Quit: true},
}

// View lists the destinations. Digits 1-9 jump straight to an item.
type View struct {
	styles *styles.Styles
	vault  string
	items  []Item
	cursor *list.Cursor

	width, height int
}

// NewView creates the menu. A non-empty vault is shown under the title.
func NewView(s *styles.Styles, vault string) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	cursor := list.NewCursor(len(defaultItems))
	cursor.SetSize(len(defaultItems))
	return &View{
		styles: s,
		vault:  vault,
		items:  defaultItems,
		cursor: cursor,
		width:  80,
		height: 24,
	}
}

func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	if v.cursor.Update(msg) {
		return v, nil
	}
	km, ok := msg.(tea.KeyMsg)
	if !ok {
		return v, nil
	}

	key := km.String()
	switch {
	case key == "enter":
		return v, v.activate(v.cursor.Selected())
	case key == "q":
		return v, tea.Quit
	}
	if n, err := strconv.Atoi(key); err == nil && n >= 1 && n <= len(v.items) {
		return v, v.activate(n - 1)
	}
	return v, nil
}

func (v *View) activate(i int) tea.Cmd {
	item := v.items[i]
	if item.Quit {
		return tea.Quit
	}
	return func() tea.Msg { return messages.ViewChanged{View: item.View} }
}

func (v *View) View() string {
	var b strings.Builder
	b.WriteString(v.styles.Title.Render("Weaver") + "\n")
	if v.vault != "" {
		b.WriteString(v.styles.Muted.Render(v.vault) + "\n")
	}
	b.WriteString("\n")

	for i, item := range v.items {
		label := fmt.Sprintf("%d %s", i+1, item.Label)
		if i == v.cursor.Selected() {
			label = v.styles.Selected.Render("> " + label)
		} else {
			label = "  " + v.styles.Normal.Render(label)
		}
		if item.Hint != "" {
			label += "  " + v.styles.Muted.Render(item.Hint)
		}
		b.WriteString(label + "\n")
	}

	b.WriteString("\n" + v.styles.Help.Render("[j/k] navigate  [1-5] jump  [enter] select  [q] quit"))
	return b.String()
}

func (v *View) SetDimensions(width, height int) {
	v.width, v.height = width, height
}

// Selected returns the highlighted item index.
func (v *View) Selected() int {
	return v.cursor.Selected()
}
