package menu

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weave-nn/weaver/internal/adapters/driving/tui/messages"
)

func keyRunes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestNewView(t *testing.T) {
	view := NewView(nil, "/vault")

	require.NotNil(t, view)
	assert.NotNil(t, view.styles)
	assert.Len(t, view.items, 5)
	assert.Zero(t, view.Selected())
}

func TestView_Navigate(t *testing.T) {
	view := NewView(nil, "")

	view.Update(keyRunes("j"))
	view.Update(tea.KeyMsg{Type: tea.KeyDown})
	assert.Equal(t, 2, view.Selected())

	view.Update(keyRunes("k"))
	assert.Equal(t, 1, view.Selected())

	view.Update(tea.KeyMsg{Type: tea.KeyUp})
	view.Update(tea.KeyMsg{Type: tea.KeyUp})
	assert.Zero(t, view.Selected(), "stops at the first item")

	for range 10 {
		view.Update(keyRunes("j"))
	}
	assert.Equal(t, len(view.items)-1, view.Selected(), "stops at the last item")
}

func TestView_EnterChangesView(t *testing.T) {
	view := NewView(nil, "")
	view.Update(keyRunes("j"))

	_, cmd := view.Update(tea.KeyMsg{Type: tea.KeyEnter})

	require.NotNil(t, cmd)
	assert.Equal(t, messages.ViewChanged{View: messages.ViewWorkflows}, cmd())
}

func TestView_EnterOnQuit(t *testing.T) {
	view := NewView(nil, "")
	for range view.items {
		view.Update(keyRunes("j"))
	}

	_, cmd := view.Update(tea.KeyMsg{Type: tea.KeyEnter})

	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestView_QKeyQuits(t *testing.T) {
	view := NewView(nil, "")

	_, cmd := view.Update(keyRunes("q"))

	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestView_IgnoresOtherMessages(t *testing.T) {
	view := NewView(nil, "")

	_, cmd := view.Update(tea.WindowSizeMsg{Width: 10, Height: 10})

	assert.Nil(t, cmd)
}

func TestView_Render(t *testing.T) {
	view := NewView(nil, "/home/me/notes")

	out := view.View()

	assert.Contains(t, out, "Weaver")
	assert.Contains(t, out, "/home/me/notes")
	assert.Contains(t, out, "> 1 Entries")
	assert.Contains(t, out, "3 Executions")
}

func TestView_DigitJumps(t *testing.T) {
	view := NewView(nil, "")

	_, cmd := view.Update(keyRunes("3"))
	require.NotNil(t, cmd)
	assert.Equal(t, messages.ViewChanged{View: messages.ViewExecutions}, cmd())

	_, cmd = view.Update(keyRunes("5"))
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())

	_, cmd = view.Update(keyRunes("9"))
	assert.Nil(t, cmd)
	assert.Zero(t, view.Selected(), "jumps do not move the cursor")
}
