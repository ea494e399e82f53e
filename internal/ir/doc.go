// Package ir provides the shared data model for tasksync.
//
// This package contains type definitions and pure helpers only. All other
// internal packages import ir; ir imports nothing internal. This keeps the
// model the foundational layer with no circular dependencies.
//
// Key design constraints:
//   - Cursor values are scalars with a total order per kind (string, int,
//     bool, timestamp). Floats, nulls and nested values never appear in a cursor.
//   - Timestamps are persisted in one fixed-width UTC layout (TimeLayout), in
//     which lexical order equals chronological order.
//   - Cursor keys are signed order keys ("-sender"), so ascending and
//     descending specs of one field are distinct cursor slots.
//   - All JSON tags use snake_case.
package ir
