// Package mcp exposes the vault index and workflow controls as an MCP
// (Model Context Protocol) server so agents can query and drive Weaver.
package mcp

import "errors"

// ErrMissingControlSurface is returned when the control surface is not provided.
var ErrMissingControlSurface = errors.New("mcp: control surface is required")
