package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tasksync/internal/engine"
	"github.com/roach88/tasksync/internal/ir"
	"github.com/roach88/tasksync/internal/lock"
	"github.com/roach88/tasksync/internal/store"
)

type reportResponse struct {
	Status string           `json:"status"`
	Data   engine.RunReport `json:"data"`
	Error  *CLIError        `json:"error"`
}

// runWith executes the run command with fixed run ids and JSON output.
func runWith(t *testing.T, opts *RunOptions) (string, error) {
	t.Helper()
	if opts.RootOptions == nil {
		opts.RootOptions = &RootOptions{Format: "json"}
	}
	if opts.RunIDs == nil {
		opts.RunIDs = engine.NewFixedGenerator("run-1")
	}
	if opts.LockTTL == 0 {
		opts.LockTTL = lock.DefaultTTL
	}
	buf := &bytes.Buffer{}
	cmd := &cobra.Command{}
	cmd.SetOut(buf)
	cmd.SetErr(io.Discard)
	err := runSync(opts, cmd)
	return buf.String(), err
}

func decodeReport(t *testing.T, out string) reportResponse {
	t.Helper()
	var resp reportResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	return resp
}

func stockCursor(at time.Time, sender string) ir.Cursor {
	return ir.Cursor{"update_datetime": ir.NewIRTime(at), "-sender": ir.IRString(sender)}
}

func TestRun_SinglePass(t *testing.T) {
	db := appliedStock(t, stockCatalog)

	out, err := runWith(t, &RunOptions{Database: db, Passes: 1, MaxSteps: engine.DefaultMaxSteps})
	require.NoError(t, err)

	resp := decodeReport(t, out)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, engine.RunReport{
		RunID:      "run-1",
		Passes:     1,
		Steps:      1,
		Count:      2,
		Applied:    2,
		Finished:   []string{},
		Unfinished: []string{"stock"},
		Skipped:    []string{"audit"},
	}, resp.Data)

	assert.Equal(t, 2, archiveCount(t, db, "stock_action"))
	assert.Equal(t, 0, archiveCount(t, db, "stock_audit"))
	got := loadTask(t, db, "stock").LastSync
	assert.True(t, stockCursor(t0, "bob").Equal(got), "cursor %s", got)
}

func TestRun_UntilDrained(t *testing.T) {
	db := appliedStock(t, stockCatalog)

	out, err := runWith(t, &RunOptions{Database: db, Passes: 0})
	require.NoError(t, err)

	resp := decodeReport(t, out)
	assert.Equal(t, engine.RunReport{
		RunID:      "run-1",
		Passes:     3,
		Steps:      4,
		Count:      8,
		Applied:    6,
		Finished:   []string{"audit", "stock"},
		Unfinished: []string{},
		Skipped:    []string{},
	}, resp.Data)

	assert.Equal(t, 3, archiveCount(t, db, "stock_action"))
	assert.Equal(t, 3, archiveCount(t, db, "stock_audit"))

	stock := loadTask(t, db, "stock").LastSync
	assert.True(t, stockCursor(t0, "alice").Equal(stock), "cursor %s", stock)
	audit := loadTask(t, db, "audit").LastSync
	assert.True(t, ir.Cursor{"id": ir.IRInt(3)}.Equal(audit), "cursor %s", audit)
}

func TestRun_RerunAppliesNothing(t *testing.T) {
	db := appliedStock(t, stockCatalog)
	_, err := runWith(t, &RunOptions{Database: db, Passes: 0})
	require.NoError(t, err)
	before := loadTask(t, db, "stock").LastSync

	out, err := runWith(t, &RunOptions{Database: db, Passes: 0, RunIDs: engine.NewFixedGenerator("run-2")})
	require.NoError(t, err)

	resp := decodeReport(t, out)
	assert.Equal(t, 1, resp.Data.Passes)
	assert.Equal(t, 2, resp.Data.Steps)
	assert.Equal(t, 2, resp.Data.Count, "the cursor records are re-read")
	assert.Equal(t, 0, resp.Data.Applied)
	assert.Equal(t, []string{"audit", "stock"}, resp.Data.Finished)

	assert.Equal(t, 3, archiveCount(t, db, "stock_action"))
	assert.True(t, before.Equal(loadTask(t, db, "stock").LastSync))
}

func TestRun_NamedTask(t *testing.T) {
	db := appliedStock(t, stockCatalog)

	out, err := runWith(t, &RunOptions{
		RootOptions: &RootOptions{Format: "text"},
		Database:    db,
		Name:        "stock",
	})
	require.NoError(t, err)
	assert.Contains(t, out, "✓ stock finished: 5 record(s) processed, 3 applied")

	assert.Equal(t, 3, archiveCount(t, db, "stock_action"))
	assert.Equal(t, 0, archiveCount(t, db, "stock_audit"), "dependents are not run")
}

func TestRun_NamedTaskIgnoresOtherBrokenTasks(t *testing.T) {
	db := appliedStock(t, stockCatalog)
	s, err := store.Open(db)
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, s.Exec(ctx, `INSERT INTO tasks
		(name, source_collection, source_store, target_collection, target_store, handler, batch_size)
		VALUES ('broken', '', 'default', 'nowhere', 'default', 'copy', 1)`))
	require.NoError(t, s.Exec(ctx, `INSERT INTO task_dependencies (task, depends_on) VALUES ('broken', 'broken')`))
	require.NoError(t, s.Close())

	_, err = runWith(t, &RunOptions{Database: db, Passes: 1})
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	out, err := runWith(t, &RunOptions{
		RootOptions: &RootOptions{Format: "text"},
		Database:    db,
		Name:        "stock",
	})
	require.NoError(t, err)
	assert.Contains(t, out, "✓ stock finished")
	assert.Equal(t, 3, archiveCount(t, db, "stock_action"))

	_, err = runWith(t, &RunOptions{Database: db, Name: "broken"})
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestRun_UnknownName(t *testing.T) {
	db := appliedStock(t, stockCatalog)

	_, err := runWith(t, &RunOptions{Database: db, Name: "missing"})
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRun_StallKeepsCommittedCursor(t *testing.T) {
	db := appliedStock(t, strings.Replace(stockCatalog, "batch_size: 2", "batch_size: 1", 1))

	out, err := runWith(t, &RunOptions{Database: db, Name: "stock"})
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.True(t, engine.IsStallError(err))

	resp := decodeReport(t, out)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "PROGRESS_STALL", resp.Error.Code)

	got := loadTask(t, db, "stock").LastSync
	assert.True(t, stockCursor(t0.Add(-time.Hour), "bob").Equal(got), "cursor %s", got)
	assert.Equal(t, 1, archiveCount(t, db, "stock_action"))
}

func TestRun_RedisLock(t *testing.T) {
	m := miniredis.RunT(t)
	db := appliedStock(t, stockCatalog)

	_, err := runWith(t, &RunOptions{Database: db, Passes: 0, Redis: "redis://" + m.Addr()})
	require.NoError(t, err)
	assert.Equal(t, 3, archiveCount(t, db, "stock_action"))
	assert.False(t, m.Exists(lock.DefaultPrefix+"stock"), "lock released after each step")
}

func TestRun_TaskLockedElsewhere(t *testing.T) {
	m := miniredis.RunT(t)
	require.NoError(t, m.Set(lock.DefaultPrefix+"stock", "other-process"))
	db := appliedStock(t, stockCatalog)

	out, err := runWith(t, &RunOptions{Database: db, Redis: m.Addr()})
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.True(t, engine.IsLockedError(err))
	assert.Contains(t, out, "TASK_LOCKED")
	assert.Equal(t, 0, archiveCount(t, db, "stock_action"))
}

func TestRun_RedisUnavailable(t *testing.T) {
	m := miniredis.RunT(t)
	addr := m.Addr()
	m.Close()
	db := appliedStock(t, stockCatalog)

	_, err := runWith(t, &RunOptions{Database: db, Redis: addr})
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRun_StepQuota(t *testing.T) {
	db := appliedStock(t, stockCatalog)

	_, err := runWith(t, &RunOptions{Database: db, Passes: 0, MaxSteps: 2})
	require.Error(t, err)
	assert.True(t, engine.IsQuotaError(err))
	assert.Equal(t, 3, archiveCount(t, db, "stock_action"), "steps before the quota stay committed")
}

func TestRun_TextReport(t *testing.T) {
	db := appliedStock(t, stockCatalog)

	out, err := execute(t, "run", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "1 pass(es), 1 step(s), 2 record(s) processed, 2 applied")
	assert.Contains(t, out, "unfinished: stock")
	assert.Contains(t, out, "skipped:    audit")
}
