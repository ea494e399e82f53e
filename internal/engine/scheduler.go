package engine

import (
	"context"
	"log/slog"
	"slices"

	"github.com/roach88/tasksync/internal/ir"
)

// Stepper performs one batch step of a task. Implemented by *Runner.
type Stepper interface {
	Step(ctx context.Context, task *ir.Task) (ir.SyncResult, error)
}

// RunReport summarizes a scheduler run.
type RunReport struct {
	RunID      string   `json:"run_id"`
	Passes     int      `json:"passes"`
	Steps      int      `json:"steps"`
	Count      int      `json:"count"`
	Applied    int      `json:"applied"`
	Finished   []string `json:"finished"`
	Unfinished []string `json:"unfinished"`
	Skipped    []string `json:"skipped"`
}

// Scheduler drives every task of a graph in dependency order.
//
// Within a pass each ready task is stepped exactly once. A task that
// finishes releases the dependents whose dependencies have all finished, and
// they run in the same pass. A task that does not finish is not stepped
// again in that pass, so its dependents wait.
type Scheduler struct {
	stepper   Stepper
	runID     string
	maxPasses int
	maxSteps  int
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithMaxPasses bounds the number of passes. Zero repeats passes until
// every task has finished or no task is ready. The default is one pass.
func WithMaxPasses(n int) SchedulerOption {
	return func(s *Scheduler) {
		s.maxPasses = n
	}
}

// WithMaxSteps bounds the steps of a run. Zero disables the bound.
func WithMaxSteps(n int) SchedulerOption {
	return func(s *Scheduler) {
		s.maxSteps = n
	}
}

// WithReportRunID sets the run identifier copied into the report.
func WithReportRunID(id string) SchedulerOption {
	return func(s *Scheduler) {
		s.runID = id
	}
}

// NewScheduler creates a scheduler stepping tasks through stepper.
func NewScheduler(stepper Stepper, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		stepper:   stepper,
		maxPasses: 1,
		maxSteps:  DefaultMaxSteps,
	}
	if r, ok := stepper.(*Runner); ok {
		s.runID = r.RunID()
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run executes passes over g until every task has finished, no task is
// ready, or the pass limit is reached.
//
// The first error aborts the run. Cursors committed by earlier steps stay
// committed; the partial report is returned with the error.
func (s *Scheduler) Run(ctx context.Context, g *Graph) (RunReport, error) {
	report := RunReport{RunID: s.runID}
	finished := make(map[string]bool, g.Len())
	quota := newQuotaEnforcer(s.maxSteps)

	for s.maxPasses == 0 || report.Passes < s.maxPasses {
		ready := s.initialReady(g, finished)
		if ready.Len() == 0 {
			break
		}
		report.Passes++
		slog.Debug("start pass", "pass", report.Passes, "ready", ready.Len())

		stepped, err := s.pass(ctx, g, ready, finished, quota, &report)
		if err != nil {
			s.summarize(g, finished, &report)
			return report, err
		}
		if stepped == 0 || len(finished) == g.Len() {
			break
		}
	}

	s.summarize(g, finished, &report)
	for _, name := range report.Skipped {
		slog.Warn("task not executed; a dependency did not finish", "task", name)
	}
	return report, nil
}

// pass steps every task that becomes ready once. Returns how many steps ran.
func (s *Scheduler) pass(ctx context.Context, g *Graph, ready *readySet, finished map[string]bool, quota *quotaEnforcer, report *RunReport) (int, error) {
	synced := make(map[string]bool)
	steps := 0
	for {
		name, ok := ready.Pop()
		if !ok {
			return steps, nil
		}
		if err := ctx.Err(); err != nil {
			return steps, err
		}
		if err := quota.Check(); err != nil {
			return steps, err
		}

		task, _ := g.Task(name)
		res, err := s.stepper.Step(ctx, task)
		if err != nil {
			return steps, err
		}
		steps++
		report.Steps++
		report.Count += res.Count
		report.Applied += res.Applied
		synced[name] = true

		if !res.Finished {
			continue
		}
		finished[name] = true
		for _, dep := range g.Dependents(name) {
			if synced[dep] || finished[dep] {
				continue
			}
			if allFinished(g.Dependencies(dep), finished) {
				ready.Push(dep)
			}
		}
	}
}

// initialReady returns the unfinished tasks whose dependencies have all
// finished. On the first pass these are exactly the tasks without
// dependencies.
func (s *Scheduler) initialReady(g *Graph, finished map[string]bool) *readySet {
	ready := newReadySet()
	for _, name := range g.Names() {
		if finished[name] {
			continue
		}
		if allFinished(g.Dependencies(name), finished) {
			ready.Push(name)
		}
	}
	return ready
}

func (s *Scheduler) summarize(g *Graph, finished map[string]bool, report *RunReport) {
	report.Finished = []string{}
	report.Unfinished = []string{}
	report.Skipped = []string{}
	for _, name := range g.Names() {
		switch {
		case finished[name]:
			report.Finished = append(report.Finished, name)
		case allFinished(g.Dependencies(name), finished):
			report.Unfinished = append(report.Unfinished, name)
		default:
			report.Skipped = append(report.Skipped, name)
		}
	}
}

func allFinished(deps []string, finished map[string]bool) bool {
	return !slices.ContainsFunc(deps, func(d string) bool { return !finished[d] })
}
