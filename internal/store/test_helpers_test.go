package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/roach88/tasksync/internal/ir"
)

// createTestStore creates a new catalog store in a temp directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestTask returns a task with minimal required fields.
func createTestTask(name string, deps ...string) ir.Task {
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

// stockColumns is the column set of the raw stock action fixture.
var stockColumns = []Column{
	{Name: "id", Type: "INTEGER"},
	{Name: "update_datetime", Type: "DATETIME"},
	{Name: "sender", Type: "TEXT"},
	{Name: "stock_number", Type: "TEXT"},
	{Name: "canceled", Type: "BOOLEAN"},
}

func mustCreate(t *testing.T, s *Store, name string, cols []Column) {
	t.Helper()
	if err := s.CreateCollection(context.Background(), name, cols); err != nil {
		t.Fatalf("CreateCollection(%q) failed: %v", name, err)
	}
}
