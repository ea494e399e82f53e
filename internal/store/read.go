package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/tasksync/internal/ir"
)

// StoreDef is a registered store alias.
type StoreDef struct {
	Alias string `json:"alias"`
	Path  string `json:"path"`
}

// ListStores returns every registered store, ordered by alias.
// Returns an empty slice (not nil) if none are registered.
func (s *Store) ListStores(ctx context.Context) ([]StoreDef, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT alias, path FROM stores ORDER BY alias COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query stores: %w", err)
	}
	defer rows.Close()

	stores := []StoreDef{}
	for rows.Next() {
		var d StoreDef
		if err := rows.Scan(&d.Alias, &d.Path); err != nil {
			return nil, fmt.Errorf("scan store: %w", err)
		}
		stores = append(stores, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stores: %w", err)
	}
	return stores, nil
}

const taskColumns = `name, source_collection, source_store, target_collection, target_store,
	handler, batch_size, order_by, filter_by, last_sync`

// ListTasks returns every task with its dependencies, ordered by name.
// Returns an empty slice (not nil) if the catalog has no tasks.
func (s *Store) ListTasks(ctx context.Context) ([]ir.Task, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+taskColumns+`
		FROM tasks
		ORDER BY name COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	tasks := []ir.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}
	rows.Close()

	deps, err := s.readDependencies(ctx)
	if err != nil {
		return nil, err
	}
	for i := range tasks {
		tasks[i].Dependencies = deps[tasks[i].Name]
	}
	return tasks, nil
}

// GetTask returns one task with its dependencies.
// Returns an error wrapping sql.ErrNoRows if not found.
func (s *Store) GetTask(ctx context.Context, name string) (ir.Task, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE name = ?`, name)
	t, err := scanTask(row)
	if err != nil {
		return ir.Task{}, fmt.Errorf("get task %q: %w", name, err)
	}

	deps, err := queryStrings(ctx, s.db, `
		SELECT depends_on FROM task_dependencies
		WHERE task = ?
		ORDER BY depends_on COLLATE BINARY ASC
	`, name)
	if err != nil {
		return ir.Task{}, fmt.Errorf("get task %q: dependencies: %w", name, err)
	}
	if len(deps) > 0 {
		t.Dependencies = deps
	}
	return t, nil
}

// LoadCursor reads a task's persisted cursor.
// Returns an error wrapping sql.ErrNoRows if the task does not exist.
func (s *Store) LoadCursor(ctx context.Context, name string) (ir.Cursor, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT last_sync FROM tasks WHERE name = ?`, name).Scan(&data)
	if err != nil {
		return nil, fmt.Errorf("load cursor %q: %w", name, err)
	}
	c, err := unmarshalCursor(data)
	if err != nil {
		return nil, fmt.Errorf("load cursor %q: %w", name, err)
	}
	return c, nil
}

func (s *Store) readDependencies(ctx context.Context) (map[string][]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT task, depends_on FROM task_dependencies
		ORDER BY task COLLATE BINARY ASC, depends_on COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query dependencies: %w", err)
	}
	defer rows.Close()

	deps := make(map[string][]string)
	for rows.Next() {
		var task, dep string
		if err := rows.Scan(&task, &dep); err != nil {
			return nil, fmt.Errorf("scan dependency: %w", err)
		}
		deps[task] = append(deps[task], dep)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dependencies: %w", err)
	}
	return deps, nil
}

// ListSteps returns logged steps in execution order. An empty runID returns
// the steps of every run; an empty task returns the steps of every task.
// Returns an empty slice (not nil) if none match.
func (s *Store) ListSteps(ctx context.Context, runID, task string) ([]ir.StepRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, seq, task, count, applied, finished, started_at, ended_at, last_sync
		FROM sync_steps
		WHERE (? = '' OR run_id = ?) AND (? = '' OR task = ?)
		ORDER BY id ASC
	`, runID, runID, task, task)
	if err != nil {
		return nil, fmt.Errorf("query steps: %w", err)
	}
	defer rows.Close()

	steps := []ir.StepRecord{}
	for rows.Next() {
		step, err := scanStep(rows)
		if err != nil {
			return nil, err
		}
		steps = append(steps, step)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate steps: %w", err)
	}
	return steps, nil
}

// scanner abstracts sql.Row and sql.Rows for scanning.
type scanner interface {
	Scan(dest ...any) error
}

func scanTask(row scanner) (ir.Task, error) {
	var t ir.Task
	var orderJSON, filterJSON, cursorJSON string

	err := row.Scan(
		&t.Name,
		&t.Source.Collection,
		&t.Source.Store,
		&t.Target.Collection,
		&t.Target.Store,
		&t.Handler,
		&t.BatchSize,
		&orderJSON,
		&filterJSON,
		&cursorJSON,
	)
	if err == sql.ErrNoRows {
		return ir.Task{}, err
	}
	if err != nil {
		return ir.Task{}, fmt.Errorf("scan task: %w", err)
	}

	if t.OrderBy, err = unmarshalOrderBy(orderJSON); err != nil {
		return ir.Task{}, fmt.Errorf("task %q: %w", t.Name, err)
	}
	if t.FilterBy, err = unmarshalFilter(filterJSON); err != nil {
		return ir.Task{}, fmt.Errorf("task %q: %w", t.Name, err)
	}
	if t.LastSync, err = unmarshalCursor(cursorJSON); err != nil {
		return ir.Task{}, fmt.Errorf("task %q: %w", t.Name, err)
	}
	return t, nil
}

func scanStep(row scanner) (ir.StepRecord, error) {
	var step ir.StepRecord
	var started, ended, cursorJSON string

	err := row.Scan(
		&step.RunID,
		&step.Seq,
		&step.Task,
		&step.Count,
		&step.Applied,
		&step.Finished,
		&started,
		&ended,
		&cursorJSON,
	)
	if err != nil {
		return ir.StepRecord{}, fmt.Errorf("scan step: %w", err)
	}

	if step.Start, err = ir.ParseTime(started); err != nil {
		return ir.StepRecord{}, fmt.Errorf("step %s/%d: %w", step.RunID, step.Seq, err)
	}
	if step.End, err = ir.ParseTime(ended); err != nil {
		return ir.StepRecord{}, fmt.Errorf("step %s/%d: %w", step.RunID, step.Seq, err)
	}
	if step.LastSync, err = unmarshalCursor(cursorJSON); err != nil {
		return ir.StepRecord{}, fmt.Errorf("step %s/%d: %w", step.RunID, step.Seq, err)
	}
	return step, nil
}
