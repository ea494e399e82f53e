// Package cursor encodes the last-seen sort-key tuple of a task and builds
// the boundary predicate that resumes a fetch right after it.
//
// Given order keys k0..kn-1 and cursor values v0..vn-1, the boundary is the
// disjunction over depths d = 0..n:
//
//	d < n:  k0 = v0 AND ... AND k(d-1) = v(d-1) AND kd > vd   (kd < vd if descending)
//	d = n:  k0 = v0 AND ... AND k(n-1) = v(n-1)
//
// The last clause re-admits records tied with the cursor on every key, so a
// batch boundary that falls inside a run of ties never skips a record.
// Records re-admitted this way were already applied and are absorbed by the
// handler's insert-if-absent semantics.
package cursor
