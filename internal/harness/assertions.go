package harness

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/tasksync/internal/ir"
	"github.com/roach88/tasksync/internal/queryir"
	"github.com/roach88/tasksync/internal/store"
)

// AssertionError is returned when an assertion fails.
// It includes the trace to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  %s\n", event)
		}
	}
	return buf.String()
}

// AssertionContext gives assertions access to the scenario's final state.
type AssertionContext struct {
	Store   *store.Store
	Ctx     context.Context
	Columns map[string]map[string]string // collection -> column -> declared type
}

// EvaluateAssertions runs every assertion and returns the failure messages.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errs []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertCollectionCount:
			err = assertCollectionCount(actx, a)
		case AssertRecord:
			err = assertRecord(actx, a)
		case AssertCursor:
			err = assertCursor(actx, a)
		case AssertStepLog:
			err = assertStepLog(result.Steps, a)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			if ae, ok := err.(*AssertionError); ok {
				ae.Trace = result.Trace
			}
			errs = append(errs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return errs
}

// whereFilter converts a where mapping into an equality filter using the
// collection's column types.
func whereFilter(actx *AssertionContext, collection string, where map[string]any) (queryir.Predicate, error) {
	if len(where) == 0 {
		return nil, nil
	}
	rec, err := toRecord(actx.Columns[collection], where)
	if err != nil {
		return nil, fmt.Errorf("where: %w", err)
	}
	return queryir.FilterEquals(ir.IRObject(rec)), nil
}

// assertCollectionCount checks the number of records matching where.
func assertCollectionCount(actx *AssertionContext, a Assertion) error {
	filter, err := whereFilter(actx, a.Collection, a.Where)
	if err != nil {
		return err
	}
	n, err := actx.Store.Count(actx.Ctx, a.Collection, filter)
	if err != nil {
		return err
	}
	if n != a.Count {
		return &AssertionError{
			Type:     AssertCollectionCount,
			Expected: fmt.Sprintf("%d record(s) in %s where %s", a.Count, a.Collection, formatMap(a.Where)),
			Actual:   fmt.Sprintf("%d record(s)", n),
		}
	}
	return nil
}

// assertRecord checks the fields of the single record matching where,
// using subset semantics.
func assertRecord(actx *AssertionContext, a Assertion) error {
	filter, err := whereFilter(actx, a.Collection, a.Where)
	if err != nil {
		return err
	}
	recs, err := actx.Store.Fetch(actx.Ctx, queryir.Select{From: a.Collection, Filter: filter, Limit: 2})
	if err != nil {
		return err
	}
	switch len(recs) {
	case 0:
		return &AssertionError{
			Type:     AssertRecord,
			Expected: fmt.Sprintf("record in %s where %s", a.Collection, formatMap(a.Where)),
			Actual:   "record not found",
		}
	case 1:
	default:
		return &AssertionError{
			Type:     AssertRecord,
			Expected: fmt.Sprintf("exactly one record in %s where %s", a.Collection, formatMap(a.Where)),
			Actual:   "multiple records matched (assertion is ambiguous)",
		}
	}

	want, err := toRecord(actx.Columns[a.Collection], a.Expect)
	if err != nil {
		return fmt.Errorf("expect: %w", err)
	}
	got := recs[0]
	for _, field := range ir.IRObject(want).SortedKeys() {
		actual, ok := got[field]
		if !ok {
			return &AssertionError{
				Type:     AssertRecord,
				Expected: fmt.Sprintf("field %q to exist", field),
				Actual:   fmt.Sprintf("fields present: %v", ir.IRObject(got).SortedKeys()),
			}
		}
		if !valuesEqual(want[field], actual) {
			return &AssertionError{
				Type:     AssertRecord,
				Expected: fmt.Sprintf("field %q = %s", field, formatValue(want[field])),
				Actual:   fmt.Sprintf("field %q = %s", field, formatValue(actual)),
			}
		}
	}
	return nil
}

// assertCursor checks a task's persisted cursor. An empty expect means the
// task has not progressed.
func assertCursor(actx *AssertionContext, a Assertion) error {
	task, err := actx.Store.GetTask(actx.Ctx, a.Task)
	if err != nil {
		return err
	}
	want, err := toCursor(nil, a.Expect)
	if err != nil {
		return fmt.Errorf("expect: %w", err)
	}
	if !want.Equal(task.LastSync) {
		return &AssertionError{
			Type:     AssertCursor,
			Expected: fmt.Sprintf("cursor of %s = %s", a.Task, want),
			Actual:   task.LastSync.String(),
		}
	}
	return nil
}

// assertStepLog checks the number of logged steps, for one task if named.
func assertStepLog(steps []ir.StepRecord, a Assertion) error {
	n := 0
	for _, s := range steps {
		if a.Task == "" || s.Task == a.Task {
			n++
		}
	}
	if n != a.Count {
		scope := "all tasks"
		if a.Task != "" {
			scope = a.Task
		}
		return &AssertionError{
			Type:     AssertStepLog,
			Expected: fmt.Sprintf("%d logged step(s) for %s", a.Count, scope),
			Actual:   fmt.Sprintf("%d logged step(s)", n),
		}
	}
	return nil
}

// valuesEqual compares record values. Floats compare numerically; every
// other kind goes through ir.Equal.
func valuesEqual(want, got ir.IRValue) bool {
	if wf, ok := want.(ir.IRFloat); ok {
		gf, ok := got.(ir.IRFloat)
		return ok && wf == gf
	}
	if _, ok := want.(ir.IRNull); ok {
		_, ok := got.(ir.IRNull)
		return ok
	}
	return ir.Equal(want, got)
}

func formatValue(v ir.IRValue) string {
	b, err := ir.MarshalIRValue(v)
	if err != nil {
		return ir.KindName(v)
	}
	return string(b)
}

// formatMap renders a where clause with sorted keys for readable messages.
func formatMap(m map[string]any) string {
	if len(m) == 0 {
		return "(any)"
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%v", k, m[k])
	}
	return strings.Join(parts, ", ")
}
