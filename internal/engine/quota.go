package engine

// DefaultMaxSteps bounds the steps of one run when no quota is configured.
// A run that needs more is either misconfigured or should be split.
const DefaultMaxSteps = 100000

// quotaEnforcer counts the steps of a run and enforces a maximum.
//
// Stall detection catches a task that stops moving; the quota catches a run
// that keeps moving for far longer than expected (for example a source that
// grows as fast as it is copied).
type quotaEnforcer struct {
	maxSteps int
	current  int
}

func newQuotaEnforcer(maxSteps int) *quotaEnforcer {
	return &quotaEnforcer{maxSteps: maxSteps}
}

// Check increments the step counter and validates it against the limit.
// A non-positive limit disables the quota.
func (q *quotaEnforcer) Check() error {
	q.current++
	if q.maxSteps > 0 && q.current > q.maxSteps {
		return NewQuotaError(q.current, q.maxSteps)
	}
	return nil
}
