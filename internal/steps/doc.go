// Package steps provides the built-in workflow step types.
//
// Steps are registered by type name in a Catalog. Workflow definitions
// refer to them by that name and configure them through the step's
// config table.
package steps
