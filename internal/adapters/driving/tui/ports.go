// Package tui provides an interactive terminal user interface for weaver.
// It is a driving adapter over the control surface.
package tui

import (
	"github.com/weave-nn/weaver/internal/core/ports/driving"
)

// Ports aggregates the driving ports required by the TUI.
type Ports struct {
	// Control queries the cache and manages workflows and executions.
	Control driving.ControlSurface
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p == nil || p.Control == nil {
		return ErrMissingControl
	}
	return nil
}
