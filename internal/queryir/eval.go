package queryir

import (
	"fmt"

	"github.com/roach88/tasksync/internal/ir"
)

// Eval reports whether rec satisfies p. A nil predicate matches everything.
//
// A field missing from the record, or holding NULL, satisfies no comparison,
// as in SQL. Comparing values of different kinds is an error.
func Eval(p Predicate, rec ir.Record) (bool, error) {
	switch pred := p.(type) {
	case nil:
		return true, nil
	case Equals:
		c, ok, err := compareField(rec, pred.Field, pred.Value)
		return ok && c == 0, err
	case Greater:
		c, ok, err := compareField(rec, pred.Field, pred.Value)
		return ok && c > 0, err
	case Less:
		c, ok, err := compareField(rec, pred.Field, pred.Value)
		return ok && c < 0, err
	case And:
		for _, sub := range pred.Predicates {
			m, err := Eval(sub, rec)
			if err != nil || !m {
				return false, err
			}
		}
		return true, nil
	case Or:
		for _, sub := range pred.Predicates {
			m, err := Eval(sub, rec)
			if err != nil {
				return false, err
			}
			if m {
				return true, nil
			}
		}
		return false, nil
	default:
		return false, fmt.Errorf("unknown predicate type: %T", p)
	}
}

// compareField compares rec[field] with value. ok is false when either side is NULL.
func compareField(rec ir.Record, field string, value ir.IRValue) (int, bool, error) {
	got, present := rec[field]
	if !present || isNull(got) || isNull(value) {
		return 0, false, nil
	}
	if a, ok := got.(ir.IRFloat); ok {
		if b, ok := value.(ir.IRFloat); ok {
			return cmpFloat(float64(a), float64(b)), true, nil
		}
	}
	c, err := ir.Compare(got, value)
	if err != nil {
		return 0, false, fmt.Errorf("field %q: %w", field, err)
	}
	return c, true, nil
}

func isNull(v ir.IRValue) bool {
	if v == nil {
		return true
	}
	_, null := v.(ir.IRNull)
	return null
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
