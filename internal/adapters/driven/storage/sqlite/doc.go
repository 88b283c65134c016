// Package sqlite provides a unified SQLite-based implementation of the
// driven storage ports.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that
// requires no CGO. One database connection pool backs three stores:
//
//   - EntryStore: shadow cache entries with their tag and link rows
//   - ExecutionStore: execution records and committed step results
//   - MaintenanceStore: maintenance job state and run log
//
// # Schema
//
// The schema is managed through versioned migrations in the migrations/
// directory. Each migration is a pair of .up.sql and .down.sql files and is
// applied in its own transaction.
//
// # Data Location
//
// By default, the database is stored at ~/.weaver/data/weaver.db
//
// # Thread Safety
//
// All operations are safe for concurrent use. Multi-row writes run in a
// transaction; SQLite in WAL mode serialises writers.
package sqlite
