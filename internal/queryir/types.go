package queryir

import "github.com/roach88/tasksync/internal/ir"

// Query represents an abstract query in the QueryIR.
//
// This is a sealed interface - only types in this package implement it.
type Query interface {
	queryNode() // Marker method - seals interface to this package
}

// Predicate represents a filter condition in the QueryIR.
//
// This is a sealed interface - only types in this package implement it.
//
// Predicate types:
//   - Equals: field = value
//   - Greater: field > value
//   - Less: field < value
//   - And: all predicates must be true
//   - Or: at least one predicate must be true
type Predicate interface {
	predicateNode() // Marker method - seals interface to this package
}

// Order is one sort key of a Select.
type Order struct {
	Field      string
	Descending bool
}

// Select reads a bounded, ordered batch from one collection.
//
// Semantics:
//
//	SELECT * FROM <from> WHERE <filter> ORDER BY <order_by> LIMIT <limit>
//
// A nil Filter matches every record. A Limit of zero or less means unbounded;
// Validate warns about it because batch fetches must always be bounded.
type Select struct {
	From    string    // Collection name
	Filter  Predicate // WHERE conditions (nil = no filter)
	OrderBy []Order   // Sort keys, most significant first
	Limit   int       // Maximum number of records
}

func (Select) queryNode() {}

// Equals represents a field-equals-literal predicate.
//
//	<field> = <value>
type Equals struct {
	Field string
	Value ir.IRValue
}

func (Equals) predicateNode() {}

// Greater represents a strict greater-than comparison.
//
//	<field> > <value>
type Greater struct {
	Field string
	Value ir.IRValue
}

func (Greater) predicateNode() {}

// Less represents a strict less-than comparison.
//
//	<field> < <value>
type Less struct {
	Field string
	Value ir.IRValue
}

func (Less) predicateNode() {}

// And represents a conjunction of predicates. An empty And is always true.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// Or represents a disjunction of predicates. An empty Or is always false.
type Or struct {
	Predicates []Predicate
}

func (Or) predicateNode() {}

// FilterEquals builds the conjunction of field = value for every entry of
// filter, in canonical key order. An empty filter yields nil.
func FilterEquals(filter ir.IRObject) Predicate {
	if len(filter) == 0 {
		return nil
	}
	preds := make([]Predicate, 0, len(filter))
	for _, field := range filter.SortedKeys() {
		preds = append(preds, Equals{Field: field, Value: filter[field]})
	}
	if len(preds) == 1 {
		return preds[0]
	}
	return And{Predicates: preds}
}

// Conjoin combines predicates with And, dropping nil entries.
// Returns nil when nothing is left and the sole predicate when only one is.
func Conjoin(preds ...Predicate) Predicate {
	var kept []Predicate
	for _, p := range preds {
		if p != nil {
			kept = append(kept, p)
		}
	}
	switch len(kept) {
	case 0:
		return nil
	case 1:
		return kept[0]
	default:
		return And{Predicates: kept}
	}
}
