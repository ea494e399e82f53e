package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tasksync/internal/engine"
	"github.com/roach88/tasksync/internal/ir"
)

func TestStatus_Text(t *testing.T) {
	db := appliedStock(t, stockCatalog)
	_, err := runWith(t, &RunOptions{Database: db, Passes: 1})
	require.NoError(t, err)

	out, err := execute(t, "status", "--db", db)
	require.NoError(t, err)

	assert.Contains(t, out, "default/raw_stock_action -> archive/stock_action via stock.raw_actions, batch 2")
	assert.Contains(t, out, "order:  update_datetime, -sender")
	assert.Contains(t, out, `filter: {canceled=false}`)
	assert.Contains(t, out, `cursor: {-sender="bob", update_datetime="2024-01-01T02:03:04.000000Z"}`)
	assert.Contains(t, out, "after:  stock")
	assert.Contains(t, out, "cursor: (not started)")
}

func TestStatus_JSON(t *testing.T) {
	db := appliedStock(t, stockCatalog)

	out, err := execute(t, "--format", "json", "status", "--db", db)
	require.NoError(t, err)

	var resp struct {
		Data []TaskStatus `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data, 2)
	assert.Equal(t, "audit", resp.Data[0].Name)
	assert.Equal(t, []string{"stock"}, resp.Data[0].Dependencies)
	assert.Equal(t, "stock", resp.Data[1].Name)
	assert.Equal(t, []string{"update_datetime", "-sender"}, resp.Data[1].OrderBy)
	assert.Equal(t, ir.IRObject{"canceled": ir.IRBool(false)}, resp.Data[1].FilterBy)
	assert.True(t, resp.Data[1].LastSync.IsEmpty())
}

func TestStatus_Empty(t *testing.T) {
	out, err := execute(t, "status", "--db", filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	assert.Contains(t, out, "No tasks registered")
}

func TestReset_Named(t *testing.T) {
	db := appliedStock(t, stockCatalog)
	_, err := runWith(t, &RunOptions{Database: db, Passes: 0})
	require.NoError(t, err)

	out, err := execute(t, "reset", "--db", db, "--name", "stock")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Reset 1 cursor(s): stock")
	assert.True(t, loadTask(t, db, "stock").LastSync.IsEmpty())
	assert.False(t, loadTask(t, db, "audit").LastSync.IsEmpty())

	// Replaying from the start finds every record already copied.
	out, err = runWith(t, &RunOptions{Database: db, Name: "stock", RunIDs: engine.NewFixedGenerator("run-2")})
	require.NoError(t, err)
	var resp struct {
		Data RunResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, 5, resp.Data.Count)
	assert.Equal(t, 0, resp.Data.Applied)
	assert.True(t, resp.Data.Finished)
}

func TestReset_All(t *testing.T) {
	db := appliedStock(t, stockCatalog)
	_, err := runWith(t, &RunOptions{Database: db, Passes: 0})
	require.NoError(t, err)

	_, err = execute(t, "reset", "--db", db, "--all")
	require.NoError(t, err)
	assert.True(t, loadTask(t, db, "stock").LastSync.IsEmpty())
	assert.True(t, loadTask(t, db, "audit").LastSync.IsEmpty())
}

func TestReset_Errors(t *testing.T) {
	db := appliedStock(t, stockCatalog)

	_, err := execute(t, "reset", "--db", db, "--name", "missing")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, err = execute(t, "reset", "--db", db)
	require.Error(t, err, "--name or --all is required")

	_, err = execute(t, "reset", "--db", db, "--name", "stock", "--all")
	require.Error(t, err)
}

func TestExport_RoundTrip(t *testing.T) {
	db := appliedStock(t, stockCatalog)
	_, err := runWith(t, &RunOptions{Database: db, Passes: 1})
	require.NoError(t, err)

	dir := filepath.Join(t.TempDir(), "exported")
	require.NoError(t, os.MkdirAll(dir, 0755))
	out, err := execute(t, "export", "--db", db, "-o", filepath.Join(dir, "catalog.yaml"))
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Exported 2 task(s)")

	// Restoring into a fresh database carries the cursor over.
	restored := filepath.Join(t.TempDir(), "restored.db")
	_, err = execute(t, "apply", dir, "--db", restored)
	require.NoError(t, err)

	want := loadTask(t, db, "stock")
	got := loadTask(t, restored, "stock")
	assert.Equal(t, want.OrderBy, got.OrderBy)
	assert.Equal(t, want.FilterBy, got.FilterBy)
	assert.Equal(t, want.Target, got.Target)
	assert.True(t, want.LastSync.Equal(got.LastSync), "cursor %s", got.LastSync)
	assert.Equal(t, []string{"stock"}, loadTask(t, restored, "audit").Dependencies)
}

func TestExport_Stdout(t *testing.T) {
	db := appliedStock(t, stockCatalog)

	out, err := execute(t, "export", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "archive:")
	assert.Contains(t, out, "handler: stock.raw_actions")
	assert.Contains(t, out, "batch_size: 2")
}

func TestSteps_ListsLoggedSteps(t *testing.T) {
	db := appliedStock(t, stockCatalog)
	_, err := runWith(t, &RunOptions{Database: db, Passes: 0})
	require.NoError(t, err)

	out, err := execute(t, "--format", "json", "steps", "--db", db)
	require.NoError(t, err)

	var resp struct {
		Data StepsResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data.Steps, 4)

	var tasks []string
	var counts []int
	for i, s := range resp.Data.Steps {
		assert.Equal(t, "run-1", s.RunID)
		assert.Equal(t, int64(i+1), s.Seq)
		tasks = append(tasks, s.Task)
		counts = append(counts, s.Count)
	}
	assert.Equal(t, []string{"stock", "stock", "stock", "audit"}, tasks)
	assert.Equal(t, []int{2, 2, 1, 3}, counts)
	assert.Equal(t, StepsStats{Runs: 1, Steps: 4, Count: 8, Applied: 6, Finished: 2}, resp.Data.Stats)
}

func TestSteps_FilterAndText(t *testing.T) {
	db := appliedStock(t, stockCatalog)
	_, err := runWith(t, &RunOptions{Database: db, Passes: 0})
	require.NoError(t, err)

	out, err := execute(t, "steps", "--db", db, "--name", "audit")
	require.NoError(t, err)
	assert.Contains(t, out, "=== Run run-1 ===")
	assert.Contains(t, out, "[4] audit: count=3 applied=3 finished cursor={id=3}")
	assert.NotContains(t, out, "stock:")

	out, err = execute(t, "steps", "--db", db, "--run", "other")
	require.NoError(t, err)
	assert.Contains(t, out, "No steps logged")
}
