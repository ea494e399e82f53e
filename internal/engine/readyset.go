package engine

import "slices"

// readySet holds the names of tasks that may run next.
//
// Extraction is deterministic: Pop always returns the lowest name, so a run
// over the same catalog executes steps in the same order every time.
// Duplicate pushes are ignored.
//
// Not safe for concurrent use; the scheduler is single-threaded.
type readySet struct {
	names []string // sorted ascending
}

func newReadySet() *readySet {
	return &readySet{names: make([]string, 0, 16)}
}

// Push adds a name. Reports false if it was already present.
func (r *readySet) Push(name string) bool {
	i, found := slices.BinarySearch(r.names, name)
	if found {
		return false
	}
	r.names = slices.Insert(r.names, i, name)
	return true
}

// Pop removes and returns the lowest name.
// Returns ("", false) if the set is empty.
func (r *readySet) Pop() (string, bool) {
	if len(r.names) == 0 {
		return "", false
	}
	name := r.names[0]
	r.names = r.names[1:]
	if len(r.names) == 0 {
		r.names = r.names[:0:0]
	}
	return name, true
}

// Len returns the number of ready names.
func (r *readySet) Len() int {
	return len(r.names)
}
