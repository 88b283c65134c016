package mcp

import (
	"github.com/weave-nn/weaver/internal/core/ports/driving"
)

// Ports aggregates the driving ports required by the MCP server.
type Ports struct {
	// Control answers queries and drives executions.
	Control driving.ControlSurface
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p == nil || p.Control == nil {
		return ErrMissingControlSurface
	}
	return nil
}
