package harness

import (
	"fmt"
	"time"

	"github.com/roach88/tasksync/internal/ir"
)

// toValue converts a YAML scalar into a record value. A string in a
// DATETIME column is parsed as a timestamp.
func toValue(colType string, v any) (ir.IRValue, error) {
	if s, ok := v.(string); ok && colType == "DATETIME" {
		t, err := ir.ParseTime(s)
		if err != nil {
			return nil, err
		}
		return ir.NewIRTime(t), nil
	}
	if t, ok := v.(time.Time); ok {
		return ir.NewIRTime(t), nil
	}
	if colType == "BOOLEAN" {
		if _, ok := v.(bool); !ok && v != nil {
			return nil, fmt.Errorf("expected a boolean, got %T", v)
		}
	}
	return ir.FromGo(v)
}

// toRecord converts a YAML mapping using the declared column types.
func toRecord(types map[string]string, raw map[string]any) (ir.Record, error) {
	rec := make(ir.Record, len(raw))
	for field, v := range raw {
		val, err := toValue(types[field], v)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", field, err)
		}
		rec[field] = val
	}
	return rec, nil
}

// toCursor converts a YAML mapping keyed by signed order keys. Without
// column types, strings that parse as timestamps are taken as timestamps.
func toCursor(types map[string]string, raw map[string]any) (ir.Cursor, error) {
	c := make(ir.Cursor, len(raw))
	for key, v := range raw {
		colType := types[ir.OrderKey(key).Field()]
		if s, ok := v.(string); ok && types == nil {
			if _, err := ir.ParseTime(s); err == nil {
				colType = "DATETIME"
			}
		}
		val, err := toValue(colType, v)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", key, err)
		}
		c[key] = val
	}
	return c, nil
}
