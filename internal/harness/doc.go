// Package harness runs sync scenarios against the real engine.
//
// A scenario declares collections with seed records, the tasks copying
// between them, and a sequence of operations with their expected outcomes.
// Every scenario runs in a fresh in-memory catalog with a fixed run id and a
// deterministic wall clock, so the resulting trace is reproducible.
//
// # Scenario Format
//
//	name: stock_ties
//	description: "Ties on the cursor are re-read and copied once"
//	run_id: run-1
//	collections:
//	  raw_stock_action:
//	    columns:
//	      - {name: update_datetime, type: DATETIME}
//	      - {name: sender, type: TEXT}
//	    records:
//	      - {id: 1, update_datetime: "2024-01-01T01:03:04Z", sender: bob}
//	  stock_action:
//	    columns: [...]
//	tasks:
//	  stock:
//	    source: raw_stock_action
//	    target: stock_action
//	    handler: stock.raw_actions
//	    batch_size: 2
//	    order_by: [update_datetime, -sender]
//	ops:
//	  - step: stock
//	    expect: {count: 2, applied: 2, finished: false}
//	  - schedule: {passes: 0}
//	    expect: {finished_tasks: [stock]}
//	assertions:
//	  - type: collection_count
//	    collection: stock_action
//	    count: 3
//
// Record values are converted by the declared column type: DATETIME values
// are parsed as timestamps, BOOLEAN values must be booleans.
//
// # Operations
//
//   - step: one batch step of a task
//   - run: step a task until it finishes or fails
//   - schedule: one scheduler run over every task
//
// An expect clause checks count, applied, finished, the resulting cursor or
// the runtime error code. A failed operation without an expected error ends
// the scenario.
//
// # Assertion Types
//
//   - collection_count: number of records in a collection, optionally filtered
//   - record: field values of the record matching where
//   - cursor: the persisted cursor of a task
//   - step_log: number of logged steps, optionally for one task
package harness
