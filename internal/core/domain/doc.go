// Package domain defines the core business entities for Weaver.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - VaultEvent: One debounced change for a single vault path
//   - VaultEntry: A shadow cache row, live or tombstoned
//   - WorkflowDefinition: A registered workflow and its trigger patterns
//   - ExecutionRequest / ExecutionRecord: One durable workflow run
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
