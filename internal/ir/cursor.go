package ir

import (
	"fmt"
	"strings"
)

// Cursor is the composite last-seen sort-key tuple of a task: one value per
// signed order key. An empty cursor means the task has never progressed.
type Cursor map[string]IRValue

// IsEmpty reports whether the cursor has no slots.
func (c Cursor) IsEmpty() bool {
	return len(c) == 0
}

// Clone returns a copy of the cursor. A nil cursor clones to an empty one.
func (c Cursor) Clone() Cursor {
	out := make(Cursor, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// Canonical returns the persisted form: timestamps become TimeLayout strings.
func (c Cursor) Canonical() Cursor {
	out := make(Cursor, len(c))
	for k, v := range c {
		out[k] = orderable(v)
	}
	return out
}

// Equal reports whether both cursors hold the same key set with equal values.
// A timestamp equals its canonical string, so a freshly encoded cursor equals
// the same cursor read back from the catalog.
func (c Cursor) Equal(other Cursor) bool {
	if len(c) != len(other) {
		return false
	}
	for k, v := range c {
		ov, ok := other[k]
		if !ok || !Equal(v, ov) {
			return false
		}
	}
	return true
}

// MarshalJSON writes the canonical form with sorted keys.
func (c Cursor) MarshalJSON() ([]byte, error) {
	return MarshalCanonical(IRObject(c.Canonical()))
}

// UnmarshalJSON reads a flat object of scalars.
func (c *Cursor) UnmarshalJSON(data []byte) error {
	var obj IRObject
	if err := obj.UnmarshalJSON(data); err != nil {
		return fmt.Errorf("cursor: %w", err)
	}
	*c = Cursor(obj)
	return nil
}

func (c Cursor) String() string {
	keys := IRObject(c).SortedKeys()
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		b, err := MarshalIRValue(c[k])
		if err != nil {
			b = []byte(KindName(c[k]))
		}
		parts = append(parts, k+"="+string(b))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
