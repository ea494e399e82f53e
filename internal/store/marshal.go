package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/tasksync/internal/ir"
)

// marshalCursor converts a cursor to canonical JSON TEXT for storage.
// An empty cursor is stored as "{}".
func marshalCursor(c ir.Cursor) (string, error) {
	if c.IsEmpty() {
		return "{}", nil
	}
	data, err := ir.MarshalCanonical(c)
	if err != nil {
		return "", fmt.Errorf("marshal cursor: %w", err)
	}
	return string(data), nil
}

// unmarshalCursor parses canonical JSON TEXT into a cursor.
// Uses ir.IRObject.UnmarshalJSON, which reads integers through json.Number
// to avoid float64 precision loss for values > 2^53.
func unmarshalCursor(data string) (ir.Cursor, error) {
	if data == "" || data == "{}" {
		return ir.Cursor{}, nil
	}
	var c ir.Cursor
	if err := json.Unmarshal([]byte(data), &c); err != nil {
		return nil, fmt.Errorf("unmarshal cursor: %w", err)
	}
	return c, nil
}

// marshalFilter converts a filter to canonical JSON TEXT for storage.
func marshalFilter(f ir.IRObject) (string, error) {
	if len(f) == 0 {
		return "{}", nil
	}
	data, err := ir.MarshalCanonical(f)
	if err != nil {
		return "", fmt.Errorf("marshal filter: %w", err)
	}
	return string(data), nil
}

func unmarshalFilter(data string) (ir.IRObject, error) {
	if data == "" || data == "{}" {
		return ir.IRObject{}, nil
	}
	var obj ir.IRObject
	if err := json.Unmarshal([]byte(data), &obj); err != nil {
		return nil, fmt.Errorf("unmarshal filter: %w", err)
	}
	return obj, nil
}

// marshalOrderBy stores signed order keys as a canonical JSON array.
func marshalOrderBy(keys []ir.OrderKey) (string, error) {
	if keys == nil {
		keys = []ir.OrderKey{}
	}
	data, err := ir.MarshalCanonical(keys)
	if err != nil {
		return "", fmt.Errorf("marshal order_by: %w", err)
	}
	return string(data), nil
}

func unmarshalOrderBy(data string) ([]ir.OrderKey, error) {
	var keys []string
	if err := json.Unmarshal([]byte(data), &keys); err != nil {
		return nil, fmt.Errorf("unmarshal order_by: %w", err)
	}
	return ir.ParseOrderBy(keys), nil
}
