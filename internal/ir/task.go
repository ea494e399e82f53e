package ir

import (
	"errors"
	"fmt"
)

// ValidationError describes one invalid field of a task definition.
type ValidationError struct {
	Task    string `json:"task"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	if e.Task == "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("task %q: %s: %s", e.Task, e.Field, e.Message)
}

// Validate checks the structural invariants of a task definition.
// All violations are returned, joined with errors.Join.
//
// An empty OrderBy with a non-empty LastSync is accepted: that is the
// degraded ordering mode, reported at fetch time rather than rejected here.
func (t Task) Validate() error {
	var errs []error
	fail := func(field, format string, args ...any) {
		errs = append(errs, &ValidationError{Task: t.Name, Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if t.Name == "" {
		fail("name", "name is required")
	}
	if t.Source.Collection == "" {
		fail("source.collection", "source collection is required")
	}
	if t.Target.Collection == "" {
		fail("target.collection", "target collection is required")
	}
	if t.Handler == "" {
		fail("handler", "sync handler is required")
	}
	if t.BatchSize <= 0 {
		fail("batch_size", "batch size must be positive, got %d", t.BatchSize)
	}

	seen := make(map[OrderKey]bool, len(t.OrderBy))
	for _, k := range t.OrderBy {
		if k.Field() == "" {
			fail("order_by", "empty order key %q", string(k))
			continue
		}
		if seen[k] {
			fail("order_by", "duplicate order key %q", string(k))
		}
		seen[k] = true
	}

	for _, field := range t.FilterBy.SortedKeys() {
		switch t.FilterBy[field].(type) {
		case IRNull, nil:
			fail("filter_by", "field %q compared to null never matches", field)
		case IRFloat:
			fail("filter_by", "field %q: float equality is not supported", field)
		}
	}

	if !t.LastSync.IsEmpty() && len(t.OrderBy) > 0 {
		for _, k := range t.OrderBy {
			v, ok := t.LastSync[string(k)]
			if !ok {
				fail("last_sync", "missing cursor slot for order key %q", string(k))
				continue
			}
			if !IsCursorKind(v) {
				fail("last_sync", "cursor slot %q holds %s, which has no total order", string(k), KindName(v))
			}
		}
		for _, key := range IRObject(t.LastSync).SortedKeys() {
			if !seen[OrderKey(key)] {
				fail("last_sync", "cursor slot %q is not an order key", key)
			}
		}
	}

	deps := make(map[string]bool, len(t.Dependencies))
	for _, dep := range t.Dependencies {
		if dep == t.Name {
			fail("dependencies", "task depends on itself")
		}
		if deps[dep] {
			fail("dependencies", "duplicate dependency %q", dep)
		}
		deps[dep] = true
	}

	return errors.Join(errs...)
}
