// Package list provides the row cursor shared by the list views.
package list

import tea "github.com/charmbracelet/bubbletea"

// Cursor tracks the selected row of a list and the window of rows that fit
// on screen.
type Cursor struct {
	selected int
	size     int
	height   int
}

// NewCursor creates a cursor showing up to height rows.
func NewCursor(height int) *Cursor {
	c := &Cursor{}
	c.SetHeight(height)
	return c
}

// Update moves the cursor on up/down/j/k and reports whether it handled msg.
func (c *Cursor) Update(msg tea.Msg) bool {
	km, ok := msg.(tea.KeyMsg)
	if !ok {
		return false
	}
	switch km.String() {
	case "up", "k":
		c.MoveUp()
	case "down", "j":
		c.MoveDown()
	default:
		return false
	}
	return true
}

// MoveUp selects the previous row.
func (c *Cursor) MoveUp() {
	if c.selected > 0 {
		c.selected--
	}
}

// MoveDown selects the next row.
func (c *Cursor) MoveDown() {
	if c.selected < c.size-1 {
		c.selected++
	}
}

// SetSize sets the number of rows and clamps the selection.
func (c *Cursor) SetSize(n int) {
	c.size = max(n, 0)
	if c.selected >= c.size {
		c.selected = max(c.size-1, 0)
	}
}

// SetHeight sets how many rows fit on screen.
func (c *Cursor) SetHeight(height int) {
	c.height = max(height, 1)
}

// Reset selects the first row.
func (c *Cursor) Reset() {
	c.selected = 0
}

// Selected returns the selected index. It is 0 for an empty list.
func (c *Cursor) Selected() int {
	return c.selected
}

// Window returns the [start, end) range of rows to render so the selection
// stays visible.
func (c *Cursor) Window() (start, end int) {
	if c.selected >= c.height {
		start = c.selected - c.height + 1
	}
	end = min(start+c.height, c.size)
	return start, end
}
