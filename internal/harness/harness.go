package harness

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/tasksync/internal/engine"
	"github.com/roach88/tasksync/internal/handler"
	"github.com/roach88/tasksync/internal/ir"
	"github.com/roach88/tasksync/internal/store"
	"github.com/roach88/tasksync/internal/testutil"
)

// Harness holds the state of one scenario execution.
type Harness struct {
	store   *store.Store
	graph   *engine.Graph
	runner  *engine.Runner
	columns map[string]map[string]string // collection -> column -> declared type
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory catalog. Execution flow:
//  1. Create and seed the collections
//  2. Apply the tasks and build the dependency graph
//  3. Execute the operations, checking each expect clause
//  4. Read the step log and evaluate the assertions
//
// The returned error covers setup problems only. Failed expectations are
// reported through Result.Errors.
func Run(scenario *Scenario) (*Result, error) {
	ctx := context.Background()

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	h := &Harness{
		store:   st,
		columns: make(map[string]map[string]string),
	}
	if err := h.seed(ctx, scenario.Collections); err != nil {
		return nil, fmt.Errorf("failed to seed collections: %w", err)
	}
	if err := h.applyTasks(ctx, scenario.Tasks); err != nil {
		return nil, fmt.Errorf("failed to apply tasks: %w", err)
	}

	pool := store.NewPool(st, nil)
	defer pool.Close()
	runID := scenario.RunID
	if runID == "" {
		runID = DefaultRunID
	}
	h.runner = engine.NewRunner(engine.PoolResolver(pool), handler.Default(), st,
		engine.WithStepLog(st),
		engine.WithRunID(runID),
		engine.WithNow(testutil.NewDeterministicClock().Now),
	)

	result := NewResult()
	for i, op := range scenario.Ops {
		ev := h.execute(ctx, i+1, op)
		result.Trace = append(result.Trace, ev)

		errs := checkExpect(ev, op.Expect)
		for _, msg := range errs {
			result.AddError(fmt.Sprintf("ops[%d]: %s", i, msg))
		}
		if ev.Error != "" && (op.Expect == nil || op.Expect.Error == "") {
			break
		}
	}

	steps, err := st.ListSteps(ctx, runID, "")
	if err != nil {
		return nil, fmt.Errorf("failed to read step log: %w", err)
	}
	result.Steps = steps

	actx := &AssertionContext{Store: st, Ctx: ctx, Columns: h.columns}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}
	return result, nil
}

// seed creates every collection and inserts its records, in name order.
func (h *Harness) seed(ctx context.Context, collections map[string]CollectionDef) error {
	names := make([]string, 0, len(collections))
	for name := range collections {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		def := collections[name]
		if err := h.store.CreateCollection(ctx, name, def.Columns); err != nil {
			return err
		}
		types := map[string]string{ir.IdentityField: "INTEGER"}
		for _, c := range def.Columns {
			types[c.Name] = strings.ToUpper(c.Type)
		}
		h.columns[name] = types

		for i, raw := range def.Records {
			rec, err := toRecord(types, raw)
			if err != nil {
				return fmt.Errorf("%s.records[%d]: %w", name, i, err)
			}
			if _, err := h.store.InsertIfAbsent(ctx, name, rec); err != nil {
				return fmt.Errorf("%s.records[%d]: %w", name, i, err)
			}
		}
	}
	return nil
}

// applyTasks converts the task definitions, writes them to the catalog and
// loads the graph the operations run against.
func (h *Harness) applyTasks(ctx context.Context, defs map[string]TaskDef) error {
	tasks := make([]ir.Task, 0, len(defs))
	for name, def := range defs {
		t, err := h.task(name, def)
		if err != nil {
			return err
		}
		if err := t.Validate(); err != nil {
			return err
		}
		tasks = append(tasks, t)
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].Name < tasks[j].Name })

	if _, err := h.store.Apply(ctx, tasks, store.ApplyOptions{}); err != nil {
		return err
	}
	g, err := engine.NewGraph(tasks)
	if err != nil {
		return err
	}
	h.graph = g
	return nil
}

func (h *Harness) task(name string, def TaskDef) (ir.Task, error) {
	t := ir.Task{
		Name:         name,
		Source:       ir.CollectionRef{Collection: def.Source, Store: ir.DefaultStore},
		Target:       ir.CollectionRef{Collection: def.Target, Store: ir.DefaultStore},
		Handler:      def.Handler,
		BatchSize:    def.BatchSize,
		OrderBy:      ir.ParseOrderBy(def.OrderBy),
		Dependencies: def.DependsOn,
	}
	if t.BatchSize == 0 {
		t.BatchSize = ir.DefaultBatchSize
	}
	if def.OrderBy == nil {
		t.OrderBy = ir.DefaultOrderBy()
	}

	types := h.columns[def.Source]
	if len(def.FilterBy) > 0 {
		filter, err := toRecord(types, def.FilterBy)
		if err != nil {
			return ir.Task{}, fmt.Errorf("tasks.%s.filter_by: %w", name, err)
		}
		t.FilterBy = ir.IRObject(filter)
	}
	if len(def.LastSync) > 0 {
		cursor, err := toCursor(types, def.LastSync)
		if err != nil {
			return ir.Task{}, fmt.Errorf("tasks.%s.last_sync: %w", name, err)
		}
		t.LastSync = cursor
	}
	return t, nil
}

// execute runs one operation and records its outcome.
func (h *Harness) execute(ctx context.Context, seq int, op Op) TraceEvent {
	switch {
	case op.Schedule != nil:
		ev := TraceEvent{Seq: seq, Op: "schedule"}
		maxSteps := op.Schedule.MaxSteps
		if maxSteps == 0 {
			maxSteps = engine.DefaultMaxSteps
		}
		report, err := engine.NewScheduler(h.runner,
			engine.WithMaxPasses(op.Schedule.Passes),
			engine.WithMaxSteps(maxSteps),
		).Run(ctx, h.graph)
		if err != nil {
			ev.Error = errorCode(err)
			return ev
		}
		ev.Report = &report
		ev.Count, ev.Applied = report.Count, report.Applied
		ev.Finished = len(report.Unfinished) == 0 && len(report.Skipped) == 0
		return ev

	case op.Run != "":
		task, _ := h.graph.Task(op.Run)
		res, err := h.runner.RunUntilFinished(ctx, task)
		return stepEvent(seq, "run", task, res, err)

	default:
		task, _ := h.graph.Task(op.Step)
		res, err := h.runner.Step(ctx, task)
		return stepEvent(seq, "step", task, res, err)
	}
}

func stepEvent(seq int, op string, task *ir.Task, res ir.SyncResult, err error) TraceEvent {
	ev := TraceEvent{Seq: seq, Op: op, Task: task.Name}
	if err != nil {
		ev.Error = errorCode(err)
		return ev
	}
	ev.Count, ev.Applied, ev.Finished = res.Count, res.Applied, res.Finished
	ev.Cursor = task.LastSync.Clone()
	return ev
}

// errorCode returns the runtime error code of err, or its message.
func errorCode(err error) string {
	var re *engine.RuntimeError
	if errors.As(err, &re) {
		return string(re.Code)
	}
	return err.Error()
}

// checkExpect compares an outcome with its expect clause.
func checkExpect(ev TraceEvent, exp *Expect) []string {
	if exp == nil {
		if ev.Error != "" {
			return []string{fmt.Sprintf("unexpected error %s", ev.Error)}
		}
		return nil
	}
	if exp.Error != "" || ev.Error != "" {
		if exp.Error != ev.Error {
			return []string{fmt.Sprintf("error: expected %q, got %q", exp.Error, ev.Error)}
		}
		return nil
	}

	var errs []string
	mismatch := func(field string, want, got any) {
		errs = append(errs, fmt.Sprintf("%s: expected %v, got %v", field, want, got))
	}
	if exp.Count != nil && *exp.Count != ev.Count {
		mismatch("count", *exp.Count, ev.Count)
	}
	if exp.Applied != nil && *exp.Applied != ev.Applied {
		mismatch("applied", *exp.Applied, ev.Applied)
	}
	if exp.Finished != nil && *exp.Finished != ev.Finished {
		mismatch("finished", *exp.Finished, ev.Finished)
	}
	if exp.Cursor != nil {
		want, err := toCursor(nil, exp.Cursor)
		if err != nil {
			errs = append(errs, fmt.Sprintf("cursor: %v", err))
		} else if !want.Equal(ev.Cursor) {
			mismatch("cursor", want, ev.Cursor)
		}
	}

	if r := ev.Report; r != nil {
		if exp.Steps != nil && *exp.Steps != r.Steps {
			mismatch("steps", *exp.Steps, r.Steps)
		}
		if exp.Passes != nil && *exp.Passes != r.Passes {
			mismatch("passes", *exp.Passes, r.Passes)
		}
		for _, c := range []struct {
			field     string
			want, got []string
		}{
			{"finished_tasks", exp.FinishedTasks, r.Finished},
			{"unfinished_tasks", exp.UnfinishedTasks, r.Unfinished},
			{"skipped_tasks", exp.SkippedTasks, r.Skipped},
		} {
			if c.want != nil && strings.Join(c.want, ",") != strings.Join(c.got, ",") {
				mismatch(c.field, c.want, c.got)
			}
		}
	}
	return errs
}
