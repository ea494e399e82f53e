// Package queryir provides the abstract query representation used to fetch
// batches from a record store.
//
// The cursor package builds boundary predicates in this IR, the querysql
// package compiles them to parameterized SQL, and Eval evaluates them against
// a single record in memory:
//
//	[cursor.Boundary] → [Query IR] → [querysql] → SQLite
//	                               → [Eval]     (in-memory stores, tests)
//
// FRAGMENT:
//
//   - Select(from, filter, order, limit) - one collection, bounded fetch
//   - Predicates: Equals, Greater, Less, And, Or
//
// The fragment has no joins, no aggregations and no NULL comparisons.
//
// SEALED INTERFACES:
//
// Query and Predicate are sealed interfaces using the marker method pattern.
// Only types in this package implement them, so backends can switch over
// them exhaustively:
//
//	switch p := pred.(type) {
//	case Equals:
//	case Greater:
//	case Less:
//	case And:
//	case Or:
//	}
//
// All literal values are ir.IRValue. Timestamps are compared through their
// canonical string form so that every backend agrees on their order.
package queryir
