// Package keymap holds the key bindings shared by every TUI view.
package keymap

import (
	"github.com/charmbracelet/bubbles/key"
)

// KeyMap lists every binding. Views pick the subset they respond to.
type KeyMap struct {
	Quit    key.Binding
	Help    key.Binding
	Back    key.Binding
	Up      key.Binding
	Down    key.Binding
	Select  key.Binding
	Refresh key.Binding

	// NextPage follows the entries cursor.
	NextPage key.Binding

	// Toggle enables or disables the selected workflow.
	Toggle key.Binding

	// Trigger runs the selected workflow with no input.
	Trigger key.Binding

	Cancel  key.Binding
	Suspend key.Binding
	Resume  key.Binding
	Retry   key.Binding
}

// DefaultKeyMap returns the vim-flavoured defaults.
func DefaultKeyMap() *KeyMap {
	return &KeyMap{
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
		Back: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "back"),
		),
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
		Select: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "select"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "reload"),
		),
		NextPage: key.NewBinding(
			key.WithKeys("n", "pgdown"),
			key.WithHelp("n", "next page"),
		),
		Toggle: key.NewBinding(
			key.WithKeys("e"),
			key.WithHelp("e", "enable/disable"),
		),
		Trigger: key.NewBinding(
			key.WithKeys("t"),
			key.WithHelp("t", "trigger"),
		),
		Cancel: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "cancel"),
		),
		Suspend: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "suspend"),
		),
		Resume: key.NewBinding(
			key.WithKeys("u"),
			key.WithHelp("u", "resume"),
		),
		Retry: key.NewBinding(
			key.WithKeys("R"),
			key.WithHelp("R", "retry"),
		),
	}
}

// ShortHelp returns the bindings shown in the status bar.
func (k *KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Quit, k.Help}
}

// EntriesHelp returns bindings for the entries view.
func (k *KeyMap) EntriesHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.NextPage, k.Refresh, k.Back}
}

// WorkflowsHelp returns bindings for the workflows view.
func (k *KeyMap) WorkflowsHelp() []key.Binding {
	return []key.Binding{k.Select, k.Toggle, k.Trigger, k.Refresh, k.Back}
}

// ExecutionsHelp returns bindings for the executions view.
func (k *KeyMap) ExecutionsHelp() []key.Binding {
	return []key.Binding{k.Cancel, k.Suspend, k.Resume, k.Retry, k.Refresh, k.Back}
}

// FullHelp groups bindings into the columns of the help view.
func (k *KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Select, k.Back},
		k.EntriesHelp(),
		k.WorkflowsHelp(),
		k.ExecutionsHelp(),
		{k.Help, k.Quit},
	}
}

// Matches reports whether keyStr is one of binding's keys.
func Matches(keyStr string, binding key.Binding) bool {
	for _, k := range binding.Keys() {
		if k == keyStr {
			return true
		}
	}
	return false
}
