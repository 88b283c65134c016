// Package status provides the status bar shown under every view.
package status

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"

	"github.com/weave-nn/weaver/internal/adapters/driving/tui/components/text"
	"github.com/weave-nn/weaver/internal/adapters/driving/tui/keymap"
	"github.com/weave-nn/weaver/internal/adapters/driving/tui/styles"
)

// State is what the left side of the bar is showing.
type State string

const (
	StateReady   State = "ready"
	StateLoading State = "loading"
	StateError   State = "error"
	StateNotice  State = "notice"
)

const hintSeparator = " | "

// Bar shows the view's state on the left and key hints on the right. When
// the terminal is too narrow, hints are dropped from the end first and the
// message is truncated last.
type Bar struct {
	styles   *styles.Styles
	keymap   *keymap.KeyMap
	bindings []key.Binding

	state   State
	message string
	count   int
	noun    string

	width int
}

// NewBar creates a ready bar. Nil arguments select the defaults.
func NewBar(s *styles.Styles, km *keymap.KeyMap) *Bar {
	if s == nil {
		s = styles.DefaultStyles()
	}
	if km == nil {
		km = keymap.DefaultKeyMap()
	}
	return &Bar{styles: s, keymap: km, state: StateReady, width: 80}
}

// View renders the bar at its full width.
func (s *Bar) View() string {
	room := s.width - s.styles.StatusBar.GetHorizontalFrameSize()
	style, label := s.label()

	hints := s.hints()
	for len(hints) > 0 && len([]rune(label))+1+lipgloss.Width(strings.Join(hints, hintSeparator)) > room {
		hints = hints[:len(hints)-1]
	}
	right := strings.Join(hints, hintSeparator)
	if right == "" {
		label = text.Truncate(label, max(room, 0))
	}

	left := style.Render(label)
	gap := max(room-lipgloss.Width(left)-lipgloss.Width(right), 0)
	if right != "" {
		gap = max(gap, 1)
	}
	return s.styles.StatusBar.Width(s.width).Render(left + strings.Repeat(" ", gap) + s.styles.Muted.Render(right))
}

func (s *Bar) label() (lipgloss.Style, string) {
	switch s.state {
	case StateLoading:
		return s.styles.Muted, "Loading..."
	case StateError:
		if s.message == "" {
			return s.styles.Error, "Error"
		}
		return s.styles.Error, "Error: " + s.message
	case StateNotice:
		return s.styles.Success, s.message
	}
	if s.noun != "" {
		return s.styles.Normal, fmt.Sprintf("%d %s", s.count, s.noun)
	}
	return s.styles.Muted, "Ready"
}

func (s *Bar) hints() []string {
	bindings := s.bindings
	if len(bindings) == 0 {
		bindings = s.keymap.ShortHelp()
	}
	out := make([]string, 0, len(bindings))
	for _, b := range bindings {
		h := b.Help()
		out = append(out, h.Key+": "+h.Desc)
	}
	return out
}

func (s *Bar) SetState(state State) { s.state = state }
func (s *Bar) State() State         { return s.state }
func (s *Bar) Message() string      { return s.message }
func (s *Bar) Count() int           { return s.count }
func (s *Bar) SetWidth(width int)   { s.width = width }

// SetError shows err. A nil err clears an error but leaves a notice alone.
func (s *Bar) SetError(err error) {
	switch {
	case err != nil:
		s.state, s.message = StateError, err.Error()
	case s.state == StateError:
		s.state, s.message = StateReady, ""
	}
}

// SetNotice shows a one-line confirmation.
func (s *Bar) SetNotice(message string) {
	s.state, s.message = StateNotice, message
}

// SetCount shows "count noun" while the bar is ready.
func (s *Bar) SetCount(count int, noun string) {
	s.count, s.noun = count, noun
}

// SetBindings replaces the key hints. Nil restores the defaults.
func (s *Bar) SetBindings(bindings []key.Binding) {
	s.bindings = bindings
}

// Clear returns the bar to its initial state.
func (s *Bar) Clear() {
	*s = Bar{styles: s.styles, keymap: s.keymap, state: StateReady, width: s.width}
}
