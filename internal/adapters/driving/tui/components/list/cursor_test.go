package list

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
)

func TestCursor_Moves(t *testing.T) {
	c := NewCursor(10)
	c.SetSize(3)

	assert.True(t, c.Update(tea.KeyMsg{Type: tea.KeyDown}))
	assert.True(t, c.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("j")}))
	assert.Equal(t, 2, c.Selected())

	c.MoveDown()
	assert.Equal(t, 2, c.Selected(), "stops at the last row")

	assert.True(t, c.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("k")}))
	assert.Equal(t, 1, c.Selected())

	c.MoveUp()
	c.MoveUp()
	assert.Zero(t, c.Selected(), "stops at the first row")
}

func TestCursor_IgnoresOtherInput(t *testing.T) {
	c := NewCursor(10)
	c.SetSize(3)

	assert.False(t, c.Update(tea.KeyMsg{Type: tea.KeyEnter}))
	assert.False(t, c.Update(tea.WindowSizeMsg{Width: 10, Height: 10}))
	assert.Zero(t, c.Selected())
}

func TestCursor_SetSizeClamps(t *testing.T) {
	c := NewCursor(10)
	c.SetSize(5)
	for range 4 {
		c.MoveDown()
	}
	assert.Equal(t, 4, c.Selected())

	c.SetSize(2)
	assert.Equal(t, 1, c.Selected())

	c.SetSize(0)
	assert.Zero(t, c.Selected())
	c.MoveDown()
	assert.Zero(t, c.Selected())
}

func TestCursor_Window(t *testing.T) {
	c := NewCursor(3)
	c.SetSize(10)

	start, end := c.Window()
	assert.Equal(t, 0, start)
	assert.Equal(t, 3, end)

	for range 5 {
		c.MoveDown()
	}
	start, end = c.Window()
	assert.Equal(t, 3, start)
	assert.Equal(t, 6, end)

	c.SetSize(2)
	start, end = c.Window()
	assert.Equal(t, 0, start)
	assert.Equal(t, 2, end)
}
