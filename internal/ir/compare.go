package ir

import (
	"fmt"
	"strings"
)

// Compare orders two cursor values of the same kind.
// Returns -1, 0 or 1. Values of different kinds, or kinds without a total
// order, are an error rather than an arbitrary answer.
//
// A timestamp compares equal to its canonical string form, because a cursor
// read back from the catalog holds the string a freshly encoded one held as time.
func Compare(a, b IRValue) (int, error) {
	a, b = orderable(a), orderable(b)

	switch av := a.(type) {
	case IRString:
		bv, ok := b.(IRString)
		if !ok {
			return 0, mismatch(a, b)
		}
		return strings.Compare(string(av), string(bv)), nil
	case IRInt:
		bv, ok := b.(IRInt)
		if !ok {
			return 0, mismatch(a, b)
		}
		switch {
		case av < bv:
			return -1, nil
		case av > bv:
			return 1, nil
		default:
			return 0, nil
		}
	case IRBool:
		bv, ok := b.(IRBool)
		if !ok {
			return 0, mismatch(a, b)
		}
		switch {
		case av == bv:
			return 0, nil
		case !bool(av):
			return -1, nil
		default:
			return 1, nil
		}
	default:
		return 0, fmt.Errorf("kind %s has no total order", KindName(a))
	}
}

// Equal reports whether two cursor values are equal. Incomparable values are unequal.
func Equal(a, b IRValue) bool {
	c, err := Compare(a, b)
	return err == nil && c == 0
}

// orderable maps timestamps onto their canonical string form.
func orderable(v IRValue) IRValue {
	if t, ok := v.(IRTime); ok {
		return IRString(CanonicalTime(t.Time()))
	}
	return v
}

func mismatch(a, b IRValue) error {
	return fmt.Errorf("cannot compare %s with %s", KindName(a), KindName(b))
}
