package store

import (
	"context"
	"database/sql"
	"fmt"
	"slices"

	"github.com/roach88/tasksync/internal/ir"
)

// ApplyOptions controls how Apply treats existing catalog rows.
type ApplyOptions struct {
	// Reset replaces every persisted cursor with the declared one (usually empty).
	Reset bool

	// Prune deletes catalog tasks that the applied set does not name.
	Prune bool
}

// ApplyReport lists what Apply changed, each slice sorted by task name.
type ApplyReport struct {
	Created      []string `json:"created"`
	Updated      []string `json:"updated"`
	Pruned       []string `json:"pruned"`
	CursorsReset []string `json:"cursors_reset"`
}

// PutStore registers or re-points a store alias.
// Uses ON CONFLICT(alias) DO UPDATE so applying the same catalog twice is a no-op.
func (s *Store) PutStore(ctx context.Context, alias, path string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO stores (alias, path) VALUES (?, ?)
		ON CONFLICT(alias) DO UPDATE SET path = excluded.path
	`, alias, path)
	if err != nil {
		return fmt.Errorf("put store %q: %w", alias, err)
	}
	return nil
}

// Apply upserts task definitions in one transaction.
//
// Structural fields are always overwritten. A persisted cursor survives unless
// opts.Reset is set or the task's order changed, since a cursor is only
// meaningful for the order it was encoded with.
func (s *Store) Apply(ctx context.Context, tasks []ir.Task, opts ApplyOptions) (ApplyReport, error) {
	report := ApplyReport{
		Created:      []string{},
		Updated:      []string{},
		Pruned:       []string{},
		CursorsReset: []string{},
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return report, fmt.Errorf("apply: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	names := make(map[string]bool, len(tasks))
	for _, t := range tasks {
		names[t.Name] = true

		created, reset, err := upsertTask(ctx, tx, t, opts.Reset)
		if err != nil {
			return report, err
		}
		switch {
		case created:
			report.Created = append(report.Created, t.Name)
		default:
			report.Updated = append(report.Updated, t.Name)
		}
		if reset {
			report.CursorsReset = append(report.CursorsReset, t.Name)
		}
	}

	// Dependencies last: every referenced task must exist (foreign keys).
	for _, t := range tasks {
		if _, err := tx.ExecContext(ctx, `DELETE FROM task_dependencies WHERE task = ?`, t.Name); err != nil {
			return report, fmt.Errorf("apply %q: clear dependencies: %w", t.Name, err)
		}
		for _, dep := range t.Dependencies {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO task_dependencies (task, depends_on) VALUES (?, ?)
				ON CONFLICT DO NOTHING
			`, t.Name, dep)
			if err != nil {
				return report, fmt.Errorf("apply %q: dependency %q: %w", t.Name, dep, err)
			}
		}
	}

	if opts.Prune {
		existing, err := queryStrings(ctx, tx, `SELECT name FROM tasks ORDER BY name COLLATE BINARY ASC`)
		if err != nil {
			return report, fmt.Errorf("apply: list tasks: %w", err)
		}
		for _, name := range existing {
			if names[name] {
				continue
			}
			if _, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE name = ?`, name); err != nil {
				return report, fmt.Errorf("apply: prune %q: %w", name, err)
			}
			report.Pruned = append(report.Pruned, name)
		}
	}

	if err := tx.Commit(); err != nil {
		return report, fmt.Errorf("apply: commit: %w", err)
	}

	slices.Sort(report.Created)
	slices.Sort(report.Updated)
	slices.Sort(report.CursorsReset)
	return report, nil
}

// upsertTask writes one task row. It reports whether the row was new and
// whether an existing cursor was replaced.
func upsertTask(ctx context.Context, tx *sql.Tx, t ir.Task, reset bool) (created, cursorReset bool, err error) {
	orderJSON, err := marshalOrderBy(t.OrderBy)
	if err != nil {
		return false, false, fmt.Errorf("apply %q: %w", t.Name, err)
	}
	filterJSON, err := marshalFilter(t.FilterBy)
	if err != nil {
		return false, false, fmt.Errorf("apply %q: %w", t.Name, err)
	}
	cursorJSON, err := marshalCursor(t.LastSync)
	if err != nil {
		return false, false, fmt.Errorf("apply %q: %w", t.Name, err)
	}

	var oldOrder, oldCursor string
	err = tx.QueryRowContext(ctx, `SELECT order_by, last_sync FROM tasks WHERE name = ?`, t.Name).
		Scan(&oldOrder, &oldCursor)
	switch {
	case err == sql.ErrNoRows:
		created = true
	case err != nil:
		return false, false, fmt.Errorf("apply %q: read existing: %w", t.Name, err)
	default:
		if !reset && oldOrder == orderJSON {
			cursorJSON = oldCursor
		} else {
			cursorReset = oldCursor != cursorJSON
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO tasks
		(name, source_collection, source_store, target_collection, target_store,
		 handler, batch_size, order_by, filter_by, last_sync)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			source_collection = excluded.source_collection,
			source_store      = excluded.source_store,
			target_collection = excluded.target_collection,
			target_store      = excluded.target_store,
			handler           = excluded.handler,
			batch_size        = excluded.batch_size,
			order_by          = excluded.order_by,
			filter_by         = excluded.filter_by,
			last_sync         = excluded.last_sync
	`,
		t.Name,
		t.Source.Collection,
		t.Source.Store,
		t.Target.Collection,
		t.Target.Store,
		t.Handler,
		t.BatchSize,
		orderJSON,
		filterJSON,
		cursorJSON,
	)
	if err != nil {
		return false, false, fmt.Errorf("apply %q: %w", t.Name, err)
	}
	return created, cursorReset, nil
}

// SaveCursor persists a task's cursor.
// Returns an error wrapping sql.ErrNoRows if the task does not exist.
func (s *Store) SaveCursor(ctx context.Context, name string, c ir.Cursor) error {
	data, err := marshalCursor(c)
	if err != nil {
		return fmt.Errorf("save cursor %q: %w", name, err)
	}

	res, err := s.db.ExecContext(ctx, `UPDATE tasks SET last_sync = ? WHERE name = ?`, data, name)
	if err != nil {
		return fmt.Errorf("save cursor %q: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("save cursor %q: %w", name, err)
	}
	if n == 0 {
		return fmt.Errorf("save cursor %q: %w", name, sql.ErrNoRows)
	}
	return nil
}

// ResetCursor clears a task's cursor so the next run starts from the beginning.
func (s *Store) ResetCursor(ctx context.Context, name string) error {
	return s.SaveCursor(ctx, name, nil)
}

// AppendStep records one executed step in the run log.
// Uses ON CONFLICT(run_id, seq) DO NOTHING - rewriting a step is a no-op.
func (s *Store) AppendStep(ctx context.Context, step ir.StepRecord) error {
	cursorJSON, err := marshalCursor(step.LastSync)
	if err != nil {
		return fmt.Errorf("append step: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sync_steps
		(run_id, seq, task, count, applied, finished, started_at, ended_at, last_sync)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, seq) DO NOTHING
	`,
		step.RunID,
		step.Seq,
		step.Task,
		step.Count,
		step.Applied,
		step.Finished,
		ir.CanonicalTime(step.Start),
		ir.CanonicalTime(step.End),
		cursorJSON,
	)
	if err != nil {
		return fmt.Errorf("append step: %w", err)
	}
	return nil
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func queryStrings(ctx context.Context, q queryer, query string, args ...any) ([]string, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
