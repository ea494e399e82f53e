package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/tasksync/internal/cursor"
	"github.com/roach88/tasksync/internal/ir"
)

// Runner executes single batch steps of tasks.
//
// A step fetches the next batch, hands it to the task's handler and commits
// the new cursor. The cursor is committed only after the handler returns, so
// a failed or cancelled step leaves it untouched.
//
// Runner is not safe for concurrent use. Parallel runs over the same catalog
// coordinate through a TaskLocker.
type Runner struct {
	fetcher  *Fetcher
	resolve  Resolver
	handlers HandlerResolver
	cursors  CursorStore
	steps    StepLog
	locker   TaskLocker
	clock    *Clock
	runID    string
	now      func() time.Time
	resolved map[string]Handler
	checked  map[string]bool
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithStepLog records every step in log.
func WithStepLog(log StepLog) RunnerOption {
	return func(r *Runner) {
		r.steps = log
	}
}

// WithLocker takes a per-task lock around every step.
func WithLocker(l TaskLocker) RunnerOption {
	return func(r *Runner) {
		r.locker = l
	}
}

// WithClock sets the logical clock stamping step records.
func WithClock(c *Clock) RunnerOption {
	return func(r *Runner) {
		r.clock = c
	}
}

// WithRunID sets the run identifier written to step records.
func WithRunID(id string) RunnerOption {
	return func(r *Runner) {
		r.runID = id
	}
}

// WithNow overrides the wall clock used for step start and end times.
func WithNow(now func() time.Time) RunnerOption {
	return func(r *Runner) {
		r.now = now
	}
}

// NewRunner creates a runner reading and writing record stores through
// resolve, looking up handlers in handlers and committing cursors to cursors.
func NewRunner(resolve Resolver, handlers HandlerResolver, cursors CursorStore, opts ...RunnerOption) *Runner {
	r := &Runner{
		fetcher:  NewFetcher(resolve),
		resolve:  resolve,
		handlers: handlers,
		cursors:  cursors,
		clock:    NewClock(),
		runID:    UUIDv7Generator{}.Generate(),
		now:      time.Now,
		resolved: make(map[string]Handler),
		checked:  make(map[string]bool),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunID returns the identifier stamped on this runner's step records.
func (r *Runner) RunID() string {
	return r.runID
}

// Step performs one batch step of task and updates task.LastSync on commit.
//
// Outcomes:
//   - empty batch: finished, nothing written
//   - handler reports records without a last record, or the reverse:
//     InconsistentHandlerError, nothing written
//   - unfinished step whose cursor did not move: ProgressStallError,
//     nothing written
//   - otherwise the new cursor is committed and the handler's finished flag
//     is returned
func (r *Runner) Step(ctx context.Context, task *ir.Task) (ir.SyncResult, error) {
	if r.locker != nil {
		unlock, ok, err := r.locker.TryLock(ctx, task.Name)
		if err != nil {
			return ir.SyncResult{}, fmt.Errorf("lock task %s: %w", task.Name, err)
		}
		if !ok {
			return ir.SyncResult{}, NewLockedError(task.Name)
		}
		defer func() {
			if err := unlock(context.WithoutCancel(ctx)); err != nil {
				slog.Warn("failed to release task lock", "task", task.Name, "error", err)
			}
		}()
	}
	return r.step(ctx, task)
}

func (r *Runner) step(ctx context.Context, task *ir.Task) (ir.SyncResult, error) {
	handler, err := r.handler(task)
	if err != nil {
		return ir.SyncResult{}, err
	}
	target, err := r.resolve(task.Target.Store)
	if err != nil {
		return ir.SyncResult{}, NewConfigurationError(task.Name, fmt.Sprintf("target store %q", task.Target.Store), err)
	}
	if err := r.checkCollections(ctx, task, target); err != nil {
		return ir.SyncResult{}, err
	}

	start := r.now()
	slog.Debug("start sync", "task", task.Name, "cursor", task.LastSync.String())

	batch, err := r.fetcher.Fetch(ctx, *task)
	if err != nil {
		return ir.SyncResult{}, err
	}

	result, err := handler(ctx, batch, NewTarget(target, task.Target.Collection), task.Clone())
	if err != nil {
		return ir.SyncResult{}, fmt.Errorf("handler %s for task %s: %w", task.Handler, task.Name, err)
	}
	if result.Start.IsZero() {
		result.Start = start
	}
	if result.End.IsZero() {
		result.End = r.now()
	}

	if result.LastSyncModel == nil {
		if result.Count != 0 {
			return ir.SyncResult{}, NewInconsistentHandlerError(task.Name, result.Count)
		}
		result.Finished = true
		return result, r.record(ctx, task, result)
	}
	if result.Count == 0 {
		return ir.SyncResult{}, NewInconsistentHandlerError(task.Name, 0)
	}

	next, err := cursor.Encode(result.LastSyncModel, task.OrderBy)
	if err != nil {
		return ir.SyncResult{}, NewConfigurationError(task.Name, "cannot encode cursor from last record", err)
	}
	if next.Equal(task.LastSync) {
		if !result.Finished {
			return ir.SyncResult{}, NewStallError(task.Name, task.BatchSize, task.LastSync.String())
		}
		return result, r.record(ctx, task, result)
	}

	// The handler already wrote the batch; commit even if the caller gave up.
	if err := r.cursors.SaveCursor(context.WithoutCancel(ctx), task.Name, next); err != nil {
		return ir.SyncResult{}, fmt.Errorf("save cursor for task %s: %w", task.Name, err)
	}
	task.LastSync = next
	return result, r.record(ctx, task, result)
}

// handler resolves task's handler once per runner.
func (r *Runner) handler(task *ir.Task) (Handler, error) {
	if h, ok := r.resolved[task.Name]; ok {
		return h, nil
	}
	h, err := r.handlers.Resolve(task.Handler)
	if err != nil {
		return nil, NewConfigurationError(task.Name, fmt.Sprintf("unknown handler %q", task.Handler), err)
	}
	r.resolved[task.Name] = h
	return h, nil
}

// checkCollections verifies once per runner that task's source and target
// collections exist.
func (r *Runner) checkCollections(ctx context.Context, task *ir.Task, target RecordStore) error {
	if r.checked[task.Name] {
		return nil
	}
	src, err := r.resolve(task.Source.Store)
	if err != nil {
		return NewConfigurationError(task.Name, fmt.Sprintf("source store %q", task.Source.Store), err)
	}
	for _, side := range []struct {
		role string
		rs   RecordStore
		ref  ir.CollectionRef
	}{
		{"source", src, task.Source},
		{"target", target, task.Target},
	} {
		ok, err := side.rs.CollectionExists(ctx, side.ref.Collection)
		if err != nil {
			return fmt.Errorf("check %s collection %s: %w", side.role, side.ref, err)
		}
		if !ok {
			return NewConfigurationError(task.Name,
				fmt.Sprintf("%s collection %s does not exist", side.role, side.ref), nil)
		}
	}
	r.checked[task.Name] = true
	return nil
}

// record logs the step and appends it to the step log, if any.
func (r *Runner) record(ctx context.Context, task *ir.Task, result ir.SyncResult) error {
	seq := r.clock.Next()
	slog.Info("sync step",
		"task", task.Name,
		"seq", seq,
		"count", result.Count,
		"applied", result.Applied,
		"finished", result.Finished,
		"cursor", task.LastSync.String(),
		"elapsed", result.End.Sub(result.Start))

	if r.steps == nil {
		return nil
	}
	err := r.steps.AppendStep(context.WithoutCancel(ctx), ir.StepRecord{
		RunID:    r.runID,
		Seq:      seq,
		Task:     task.Name,
		Count:    result.Count,
		Applied:  result.Applied,
		Finished: result.Finished,
		Start:    result.Start,
		End:      result.End,
		LastSync: task.LastSync.Clone(),
	})
	if err != nil {
		return fmt.Errorf("append step for task %s: %w", task.Name, err)
	}
	return nil
}

// RunUntilFinished steps task until it finishes or a step fails.
// Returns the accumulated result of all steps.
func (r *Runner) RunUntilFinished(ctx context.Context, task *ir.Task) (ir.SyncResult, error) {
	var total ir.SyncResult
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		res, err := r.Step(ctx, task)
		if err != nil {
			return total, err
		}
		if total.Start.IsZero() {
			total.Start = res.Start
		}
		total.End = res.End
		total.Count += res.Count
		total.Applied += res.Applied
		if res.LastSyncModel != nil {
			total.LastSyncModel = res.LastSyncModel
		}
		if res.Finished {
			total.Finished = true
			return total, nil
		}
	}
}
