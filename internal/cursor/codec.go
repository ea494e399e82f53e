package cursor

import (
	"errors"
	"fmt"

	"github.com/roach88/tasksync/internal/ir"
)

var (
	// ErrMissingField reports a record that lacks a field named by an order key.
	ErrMissingField = errors.New("record has no field for order key")

	// ErrUnorderable reports a record field whose value cannot be a cursor value.
	ErrUnorderable = errors.New("value has no total order")
)

// Encode projects rec onto orderBy. The result is keyed by the signed order
// key, so "-sender" and "sender" occupy different slots.
// Timestamps are stored in their canonical string form.
func Encode(rec ir.Record, orderBy []ir.OrderKey) (ir.Cursor, error) {
	c := make(ir.Cursor, len(orderBy))
	for _, key := range orderBy {
		v, ok := rec[key.Field()]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrMissingField, string(key))
		}
		if !ir.IsCursorKind(v) {
			return nil, fmt.Errorf("%w: field %q holds %s", ErrUnorderable, key.Field(), ir.KindName(v))
		}
		c[string(key)] = v
	}
	return c.Canonical(), nil
}
