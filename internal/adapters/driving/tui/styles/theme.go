// Package styles provides colour themes and styling for the TUI.
package styles

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/weave-nn/weaver/internal/core/domain"
)

// Theme is the palette every style is derived from.
type Theme struct {
	Accent    lipgloss.Color // titles, selection background
	Highlight lipgloss.Color // running executions, subtitles
	Text      lipgloss.Color
	Dim       lipgloss.Color
	Good      lipgloss.Color
	Caution   lipgloss.Color
	Bad       lipgloss.Color
	Frame     lipgloss.Color
	Bar       lipgloss.Color // status bar background, selected text
}

// DefaultTheme is a slate palette for dark terminals.
func DefaultTheme() *Theme {
	return &Theme{
		Accent:    "#0EA5E9",
		Highlight: "#A78BFA",
		Text:      "#E2E8F0",
		Dim:       "#64748B",
		Good:      "#86EFAC",
		Caution:   "#FDE68A",
		Bad:       "#FCA5A5",
		Frame:     "#334155",
		Bar:       "#0F172A",
	}
}

// Styles are the rendered styles of a theme.
type Styles struct {
	theme *Theme

	Title    lipgloss.Style
	Subtitle lipgloss.Style
	Normal   lipgloss.Style
	Muted    lipgloss.Style
	Selected lipgloss.Style
	Error    lipgloss.Style
	Success  lipgloss.Style
	Warning  lipgloss.Style

	// Header renders table column headings.
	Header lipgloss.Style

	StatusBar lipgloss.Style
	Help      lipgloss.Style
	Border    lipgloss.Style
}

// NewStyles derives styles from theme, or from DefaultTheme when nil.
func NewStyles(theme *Theme) *Styles {
	if theme == nil {
		theme = DefaultTheme()
	}
	fg := func(c lipgloss.Color) lipgloss.Style { return lipgloss.NewStyle().Foreground(c) }

	return &Styles{
		theme:     theme,
		Title:     fg(theme.Accent).Bold(true),
		Subtitle:  fg(theme.Highlight),
		Normal:    fg(theme.Text),
		Muted:     fg(theme.Dim),
		Selected:  fg(theme.Bar).Background(theme.Accent).Bold(true),
		Error:     fg(theme.Bad),
		Success:   fg(theme.Good),
		Warning:   fg(theme.Caution),
		Header:    fg(theme.Dim).Bold(true).Underline(true),
		StatusBar: fg(theme.Dim).Background(theme.Bar).Padding(0, 1),
		Help:      fg(theme.Dim),
		Border:    lipgloss.NewStyle().BorderStyle(lipgloss.RoundedBorder()).BorderForeground(theme.Frame),
	}
}

// DefaultStyles returns styles with the default theme.
func DefaultStyles() *Styles {
	return NewStyles(DefaultTheme())
}

// Theme returns the palette the styles were built from.
func (s *Styles) Theme() *Theme {
	return s.theme
}

// State picks the style an execution state is drawn in.
func (s *Styles) State(state domain.ExecutionState) lipgloss.Style {
	switch state {
	case domain.ExecutionCompleted:
		return s.Success
	case domain.ExecutionFailed:
		return s.Error
	case domain.ExecutionSuspended:
		return s.Warning
	case domain.ExecutionRunning:
		return s.Subtitle
	}
	return s.Muted
}
