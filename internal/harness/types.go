package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/tasksync/internal/engine"
	"github.com/roach88/tasksync/internal/ir"
)

// TraceEvent is the outcome of one scenario operation.
type TraceEvent struct {
	Seq      int               `json:"seq"`
	Op       string            `json:"op"` // "step", "run" or "schedule"
	Task     string            `json:"task,omitempty"`
	Count    int               `json:"count"`
	Applied  int               `json:"applied"`
	Finished bool              `json:"finished"`
	Cursor   ir.Cursor         `json:"cursor,omitempty"`
	Report   *engine.RunReport `json:"report,omitempty"`
	Error    string            `json:"error,omitempty"`
}

// String renders the event as one trace line.
func (e TraceEvent) String() string {
	head := fmt.Sprintf("[%d] %s", e.Seq, e.Op)
	if e.Task != "" {
		head += " " + e.Task
	}
	if e.Error != "" {
		return head + ": error=" + e.Error
	}
	if e.Report != nil {
		r := e.Report
		return fmt.Sprintf("%s: passes=%d steps=%d count=%d applied=%d finished=%v unfinished=%v skipped=%v",
			head, r.Passes, r.Steps, r.Count, r.Applied, r.Finished, r.Unfinished, r.Skipped)
	}
	return fmt.Sprintf("%s: count=%d applied=%d finished=%t cursor=%s",
		head, e.Count, e.Applied, e.Finished, e.Cursor)
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every expect clause and assertion held.
	Pass bool `json:"pass"`

	// Trace holds one event per executed operation.
	Trace []TraceEvent `json:"trace"`

	// Steps is the step log written during the scenario, in order.
	Steps []ir.StepRecord `json:"steps"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Steps:  []ir.StepRecord{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Render returns the trace and step log as text, one line per entry.
func (r *Result) Render(name string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "scenario %s\n", name)
	for _, e := range r.Trace {
		fmt.Fprintln(&b, e.String())
	}
	for _, s := range r.Steps {
		fmt.Fprintf(&b, "log %d %s: count=%d applied=%d finished=%t cursor=%s\n",
			s.Seq, s.Task, s.Count, s.Applied, s.Finished, s.LastSync)
	}
	return b.String()
}
