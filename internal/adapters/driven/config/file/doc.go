// Package file provides file-based implementations of driven port interfaces.
// These adapters persist data to the local filesystem.
//
// Adapters:
//   - ConfigStore: TOML configuration with WEAVER_ environment overrides
//   - WorkflowLoader: one TOML workflow definition per file
package file
