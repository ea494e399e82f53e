package engine

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/tasksync/internal/ir"
	"github.com/roach88/tasksync/internal/store"
)

var t0 = time.Date(2024, 1, 1, 2, 3, 4, 0, time.UTC)

// testTask returns a valid copy task reading raw_<name> into <name>.
func testTask(name string, deps ...string) ir.Task {
	return ir.Task{
		Name:         name,
		Source:       ir.CollectionRef{Collection: "raw_" + name, Store: ir.DefaultStore},
		Target:       ir.CollectionRef{Collection: name, Store: ir.DefaultStore},
		Handler:      "copy",
		BatchSize:    10,
		OrderBy:      ir.DefaultOrderBy(),
		Dependencies: deps,
	}
}

// stockTask mirrors the raw stock action sync: canceled rows are skipped and
// the newest update wins ties by sender descending.
func stockTask(batchSize int) ir.Task {
	return ir.Task{
		Name:      "stock",
		Source:    ir.CollectionRef{Collection: "raw_stock_action", Store: ir.DefaultStore},
		Target:    ir.CollectionRef{Collection: "stock_action", Store: ir.DefaultStore},
		Handler:   "copy",
		BatchSize: batchSize,
		OrderBy:   []ir.OrderKey{"update_datetime", "-sender"},
		FilterBy:  ir.IRObject{"canceled": ir.IRBool(false)},
	}
}

var stockColumns = []store.Column{
	{Name: "id", Type: "INTEGER"},
	{Name: "update_datetime", Type: "DATETIME"},
	{Name: "sender", Type: "TEXT"},
	{Name: "stock_number", Type: "TEXT"},
	{Name: "canceled", Type: "BOOLEAN"},
}

func stockRecord(id int64, at time.Time, sender string, canceled bool) ir.Record {
	return ir.Record{
		"id":              ir.IRInt(id),
		"update_datetime": ir.NewIRTime(at),
		"sender":          ir.IRString(sender),
		"stock_number":    ir.IRString(fmt.Sprintf("S-%d", id)),
		"canceled":        ir.IRBool(canceled),
	}
}

// handlerMap is a HandlerResolver over a fixed map.
type handlerMap map[string]Handler

func (m handlerMap) Resolve(name string) (Handler, error) {
	h, ok := m[name]
	if !ok {
		return nil, fmt.Errorf("no handler %q", name)
	}
	return h, nil
}

// copyAll writes every record of the batch and follows the handler contract.
func copyAll(ctx context.Context, batch []ir.Record, target Target, task ir.Task) (ir.SyncResult, error) {
	res := ir.SyncResult{Start: time.Now()}
	for _, rec := range batch {
		applied, err := target.Put(ctx, rec)
		if err != nil {
			return ir.SyncResult{}, err
		}
		if applied {
			res.Applied++
		}
		res.Count++
		res.LastSyncModel = rec
	}
	res.Finished = res.Count < task.BatchSize
	res.End = time.Now()
	return res, nil
}

// spyCursors counts cursor commits before delegating.
type spyCursors struct {
	CursorStore
	saves int
}

func (s *spyCursors) SaveCursor(ctx context.Context, task string, c ir.Cursor) error {
	s.saves++
	return s.CursorStore.SaveCursor(ctx, task, c)
}

// fixture is a catalog that doubles as the default record store.
type fixture struct {
	t       *testing.T
	ctx     context.Context
	catalog *store.Store
	cursors *spyCursors
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return &fixture{t: t, ctx: context.Background(), catalog: s, cursors: &spyCursors{CursorStore: s}}
}

func (f *fixture) resolver() Resolver {
	return func(alias string) (RecordStore, error) {
		if alias != ir.DefaultStore {
			return nil, fmt.Errorf("unknown store %q", alias)
		}
		return f.catalog, nil
	}
}

func (f *fixture) runner(handlers handlerMap, opts ...RunnerOption) *Runner {
	opts = append([]RunnerOption{WithStepLog(f.catalog), WithRunID("run-1")}, opts...)
	return NewRunner(f.resolver(), handlers, f.cursors, opts...)
}

// apply registers tasks in the catalog and creates their collections.
func (f *fixture) apply(cols []store.Column, tasks ...ir.Task) {
	f.t.Helper()
	_, err := f.catalog.Apply(f.ctx, tasks, store.ApplyOptions{})
	require.NoError(f.t, err)
	for _, task := range tasks {
		for _, name := range []string{task.Source.Collection, task.Target.Collection} {
			exists, err := f.catalog.CollectionExists(f.ctx, name)
			require.NoError(f.t, err)
			if !exists {
				require.NoError(f.t, f.catalog.CreateCollection(f.ctx, name, cols))
			}
		}
	}
}

func (f *fixture) seed(collection string, recs ...ir.Record) {
	f.t.Helper()
	for _, rec := range recs {
		_, err := f.catalog.InsertIfAbsent(f.ctx, collection, rec)
		require.NoError(f.t, err)
	}
}

func (f *fixture) count(collection string) int {
	f.t.Helper()
	n, err := f.catalog.Count(f.ctx, collection, nil)
	require.NoError(f.t, err)
	return n
}

func (f *fixture) storedCursor(task string) ir.Cursor {
	f.t.Helper()
	c, err := f.catalog.LoadCursor(f.ctx, task)
	require.NoError(f.t, err)
	return c
}
