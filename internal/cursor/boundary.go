package cursor

import (
	"fmt"

	"github.com/roach88/tasksync/internal/ir"
	"github.com/roach88/tasksync/internal/queryir"
)

// Boundary builds the predicate selecting every record at or after lastSync
// in the order given by orderBy.
//
// An empty lastSync yields nil: the task has not progressed, so everything
// matches. An empty orderBy with a non-empty lastSync also yields nil; callers
// detect that case with IsDegraded and report it.
func Boundary(orderBy []ir.OrderKey, lastSync ir.Cursor) (queryir.Predicate, error) {
	if lastSync.IsEmpty() || len(orderBy) == 0 {
		return nil, nil
	}

	values := make([]ir.IRValue, len(orderBy))
	for i, key := range orderBy {
		v, ok := lastSync[string(key)]
		if !ok {
			return nil, fmt.Errorf("cursor has no slot for order key %q", string(key))
		}
		if !ir.IsCursorKind(v) {
			return nil, fmt.Errorf("cursor slot %q: %w", string(key), ErrUnorderable)
		}
		values[i] = v
	}

	clauses := make([]queryir.Predicate, 0, len(orderBy)+1)
	for depth := 0; depth <= len(orderBy); depth++ {
		terms := make([]queryir.Predicate, 0, depth+1)
		for i := 0; i < depth; i++ {
			terms = append(terms, queryir.Equals{Field: orderBy[i].Field(), Value: values[i]})
		}
		if depth < len(orderBy) {
			terms = append(terms, strictlyAfter(orderBy[depth], values[depth]))
		}
		clauses = append(clauses, queryir.Conjoin(terms...))
	}
	return queryir.Or{Predicates: clauses}, nil
}

func strictlyAfter(key ir.OrderKey, v ir.IRValue) queryir.Predicate {
	if key.Descending() {
		return queryir.Less{Field: key.Field(), Value: v}
	}
	return queryir.Greater{Field: key.Field(), Value: v}
}

// IsDegraded reports the configuration where a cursor exists but no order is
// declared. Progress cannot be bounded, so every fetch matches everything.
func IsDegraded(orderBy []ir.OrderKey, lastSync ir.Cursor) bool {
	return len(orderBy) == 0 && !lastSync.IsEmpty()
}

// Order converts order keys into query sort keys.
func Order(orderBy []ir.OrderKey) []queryir.Order {
	out := make([]queryir.Order, len(orderBy))
	for i, key := range orderBy {
		out[i] = queryir.Order{Field: key.Field(), Descending: key.Descending()}
	}
	return out
}
