// Package store provides SQLite-backed storage for the task catalog and for
// the record collections that tasks copy between.
//
// A catalog database holds:
//   - Stores: alias → SQLite path of every record store tasks refer to
//   - Tasks: task definitions, including each task's persisted cursor
//   - Task dependencies: the edges of the dependency graph
//   - Sync steps: an append-only audit log of every step a run performed
//
// Any Store also serves as a record store: Fetch reads a bounded, ordered
// batch from a collection and InsertIfAbsent writes a record keyed by identity.
//
// # Critical Patterns
//
// Deterministic Query Results
//   - Catalog reads order by name (tasks) or id (steps)
//   - Collection fetches always order by the sort keys plus "id" ASC
//
// Canonical Persistence
//   - Cursors, filters and order specs are stored as RFC 8785 canonical JSON
//   - Timestamps are stored as fixed-width UTC strings (ir.TimeLayout)
//   - Timestamp columns are compared through the tasksync_time SQL function,
//     so rows written by other tools in other layouts still sort chronologically
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
