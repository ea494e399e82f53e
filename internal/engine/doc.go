// Package engine implements the incremental sync engine.
//
// ARCHITECTURE:
//
// A run loads the task graph once, then drives tasks one batch step at a time:
//
//	Graph (validated DAG) → Scheduler → Runner.Step → Fetcher → RecordStore
//	                                               → Handler → Target
//	                                               → CursorStore, StepLog
//
// Step state machine:
//
//	Fetching → Applying → Committed
//	                    → Stalled       (ProgressStallError, nothing persisted)
//	                    → Inconsistent  (InconsistentHandlerError, nothing persisted)
//
// A step persists the task's cursor only after the handler returns, so a
// failure or cancellation before then leaves the cursor where it was.
//
// Scheduling is single-threaded and deterministic: among ready tasks the
// lowest name runs first. Cross-process exclusion per task is delegated to
// an optional TaskLocker.
//
// CRITICAL PATTERNS:
//
// Resume after the cursor, re-admitting ties: see package cursor.
//
// Never retry: stalls and inconsistent handlers abort the run. Cursors
// committed before the failure stay committed.
package engine
