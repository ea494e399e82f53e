package ir

import (
	"fmt"
	"strings"
	"time"
)

// Defaults carried by a task definition that leaves the field out.
const (
	DefaultStore     = "default"
	DefaultBatchSize = 100
	IdentityField    = "id"
)

// OrderKey is a signed field name. A leading "-" marks descending order.
// The signed form is also the key of the cursor slot for that field.
type OrderKey string

// Field returns the field name with the sign stripped.
func (k OrderKey) Field() string {
	return strings.TrimPrefix(string(k), "-")
}

// Descending reports whether the key sorts in descending order.
func (k OrderKey) Descending() bool {
	return strings.HasPrefix(string(k), "-")
}

// DefaultOrderBy returns the order used when a task declares none: identity ascending.
func DefaultOrderBy() []OrderKey {
	return []OrderKey{IdentityField}
}

// ParseOrderBy converts signed field names into order keys.
func ParseOrderBy(keys []string) []OrderKey {
	out := make([]OrderKey, len(keys))
	for i, k := range keys {
		out[i] = OrderKey(strings.TrimSpace(k))
	}
	return out
}

// CollectionRef names a collection inside a physical store.
type CollectionRef struct {
	Collection string `json:"collection" yaml:"collection"`
	Store      string `json:"store" yaml:"store"`
}

func (r CollectionRef) String() string {
	return r.Store + "/" + r.Collection
}

// Task is a unit of synchronization work: copy Source into Target in batches
// of BatchSize, ordered by OrderBy, resuming after LastSync.
type Task struct {
	Name         string        `json:"name"`
	Source       CollectionRef `json:"source"`
	Target       CollectionRef `json:"target"`
	Handler      string        `json:"handler"`
	BatchSize    int           `json:"batch_size"`
	OrderBy      []OrderKey    `json:"order_by"`
	FilterBy     IRObject      `json:"filter_by"`
	LastSync     Cursor        `json:"last_sync"`
	Dependencies []string      `json:"dependencies,omitempty"`
}

func (t Task) String() string {
	return t.Name
}

// Clone returns a deep copy of the task, so a loaded graph cannot be mutated
// through the slice it was built from.
func (t Task) Clone() Task {
	c := t
	c.OrderBy = append([]OrderKey(nil), t.OrderBy...)
	c.Dependencies = append([]string(nil), t.Dependencies...)
	if t.FilterBy != nil {
		c.FilterBy = make(IRObject, len(t.FilterBy))
		for k, v := range t.FilterBy {
			c.FilterBy[k] = v
		}
	}
	c.LastSync = t.LastSync.Clone()
	return c
}

// Record is one row of a collection, keyed by field name.
type Record map[string]IRValue

// ID returns the record's identity value, or IRNull if it has none.
func (r Record) ID() IRValue {
	if v, ok := r[IdentityField]; ok {
		return v
	}
	return IRNull{}
}

// Clone returns a shallow copy of the record's field map.
func (r Record) Clone() Record {
	c := make(Record, len(r))
	for k, v := range r {
		c[k] = v
	}
	return c
}

// SyncResult reports one batch step of a sync handler.
//
// Count is the number of records the handler processed, including records it
// found already present in the target. Applied counts only new target writes.
type SyncResult struct {
	Finished      bool      `json:"finished"`
	Count         int       `json:"count"`
	Applied       int       `json:"applied"`
	Start         time.Time `json:"start"`
	End           time.Time `json:"end"`
	LastSyncModel Record    `json:"-"`
}

func (r SyncResult) String() string {
	return fmt.Sprintf("finished=%t count=%d applied=%d", r.Finished, r.Count, r.Applied)
}

// StepRecord is the audit row written to the run log after every step.
type StepRecord struct {
	RunID    string    `json:"run_id"`
	Seq      int64     `json:"seq"`
	Task     string    `json:"task"`
	Count    int       `json:"count"`
	Applied  int       `json:"applied"`
	Finished bool      `json:"finished"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	LastSync Cursor    `json:"last_sync"`
}
