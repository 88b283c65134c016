// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the application to function:
//
//   - ChangeSource: Watches and lists the vault file tree
//   - FactExtractor: Hashes content and extracts tags, links and metadata
//   - EntryStore: Shadow cache persistence (entries, tags, links)
//   - ExecutionStore: Execution record persistence (records, step results)
//   - StepCatalog: Resolves step types to step bodies
//   - ConfigStore: Application configuration
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - MaintenanceStore: Without it, maintenance jobs do not run.
//   - WorkflowLoader: Without it, workflows must be registered programmatically.
//   - Metrics: Without it, nothing is recorded.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter, connector, or normaliser package
package driven
