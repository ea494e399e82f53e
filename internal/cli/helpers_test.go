package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/tasksync/internal/ir"
	"github.com/roach88/tasksync/internal/store"
)

var t0 = time.Date(2024, 1, 1, 2, 3, 4, 0, time.UTC)

// stockCatalog copies live stock actions into the archive store, then
// audits the archive once the copy has caught up.
const stockCatalog = `
store:
  archive:
    path: archive.db
collection:
  raw_stock_action:
    columns:
      - {name: update_datetime, type: DATETIME}
      - {name: sender, type: TEXT}
      - {name: stock_number, type: TEXT}
      - {name: canceled, type: BOOLEAN}
  stock_action:
    store: archive
    columns:
      - {name: update_datetime, type: DATETIME}
      - {name: sender, type: TEXT}
      - {name: stock_number, type: TEXT}
  stock_audit:
    store: archive
    columns:
      - {name: update_datetime, type: DATETIME}
      - {name: sender, type: TEXT}
      - {name: stock_number, type: TEXT}
task:
  stock:
    source: {collection: raw_stock_action}
    target: {collection: stock_action, store: archive}
    handler: stock.raw_actions
    batch_size: 2
    order_by: [update_datetime, -sender]
    filter_by:
      canceled: false
  audit:
    source: {collection: stock_action, store: archive}
    target: {collection: stock_audit, store: archive}
    handler: copy
    depends_on: [stock]
`

// writeCatalog writes files into a fresh catalog directory.
func writeCatalog(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "catalog")
	require.NoError(t, os.MkdirAll(dir, 0755))
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
	}
	return dir
}

// execute runs the root command with args and returns its output.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

// appliedStock applies catalog to a new database and seeds the raw
// actions: bob@t-1, bob@t0, alice@t0 and a canceled row.
func appliedStock(t *testing.T, catalog string) string {
	t.Helper()
	dir := writeCatalog(t, map[string]string{"catalog.yaml": catalog})
	db := filepath.Join(t.TempDir(), "catalog.db")

	_, err := execute(t, "apply", dir, "--db", db)
	require.NoError(t, err)

	seedRaw(t, db,
		stockRecord(1, t0.Add(-time.Hour), "bob", false),
		stockRecord(2, t0, "bob", false),
		stockRecord(3, t0, "alice", false),
		stockRecord(4, t0, "zed", true),
	)
	return db
}

func stockRecord(id int64, at time.Time, sender string, canceled bool) ir.Record {
	return ir.Record{
		"id":              ir.IRInt(id),
		"update_datetime": ir.NewIRTime(at),
		"sender":          ir.IRString(sender),
		"stock_number":    ir.IRString("S-" + sender),
		"canceled":        ir.IRBool(canceled),
	}
}

func seedRaw(t *testing.T, db string, recs ...ir.Record) {
	t.Helper()
	s, err := store.Open(db)
	require.NoError(t, err)
	defer s.Close()
	for _, rec := range recs {
		_, err := s.InsertIfAbsent(context.Background(), "raw_stock_action", rec)
		require.NoError(t, err)
	}
}

// archiveCount counts the rows of an archive collection.
func archiveCount(t *testing.T, db, collection string) int {
	t.Helper()
	s, err := store.OpenRecords(filepath.Join(filepath.Dir(db), "archive.db"))
	require.NoError(t, err)
	defer s.Close()
	n, err := s.Count(context.Background(), collection, nil)
	require.NoError(t, err)
	return n
}

func loadTask(t *testing.T, db, name string) ir.Task {
	t.Helper()
	s, err := store.Open(db)
	require.NoError(t, err)
	defer s.Close()
	task, err := s.GetTask(context.Background(), name)
	require.NoError(t, err)
	return task
}
