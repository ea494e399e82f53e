package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/tasksync/internal/engine"
	"github.com/roach88/tasksync/internal/handler"
	"github.com/roach88/tasksync/internal/ir"
	"github.com/roach88/tasksync/internal/lock"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database string
	Name     string
	Passes   int
	MaxSteps int
	Redis    string
	LockTTL  time.Duration

	// RunIDs overrides the run identifier generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	RunIDs engine.RunIDGenerator

	// Handlers overrides the handler registry (for testing).
	// If nil, defaults to the built-in handlers.
	Handlers *handler.Registry
}

// RunResult is the JSON payload of a named-task run.
type RunResult struct {
	RunID    string    `json:"run_id"`
	Task     string    `json:"task"`
	Count    int       `json:"count"`
	Applied  int       `json:"applied"`
	Finished bool      `json:"finished"`
	Cursor   ir.Cursor `json:"cursor"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Sync tasks from the catalog",
		Long: `Sync tasks registered in the catalog database.

Without --name, every task runs in dependency order: each ready task takes
one batch step per pass, and a task whose dependencies have all finished
becomes ready in the same pass. --passes bounds the number of passes
(0 repeats passes until nothing is left to do).

With --name, the named task is stepped until it finishes or fails. Only
that task is loaded and validated, so other broken tasks do not block it.

The run aborts on a progress stall, an inconsistent handler result or a
configuration error. Cursors committed before the failure are kept.

Examples:
  tasksync run --db ./catalog.db
  tasksync run --db ./catalog.db --passes 0
  tasksync run --db ./catalog.db --name stock
  tasksync run --db ./catalog.db --redis redis://localhost:6379/0`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to the catalog database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Name, "name", "", "run only this task, until it finishes")
	cmd.Flags().IntVar(&opts.Passes, "passes", 1, "maximum scheduler passes (0 = until drained)")
	cmd.Flags().IntVar(&opts.MaxSteps, "max-steps", engine.DefaultMaxSteps, "maximum steps per run (0 = unlimited)")
	cmd.Flags().StringVar(&opts.Redis, "redis", "", "redis URL for cross-process task locks")
	cmd.Flags().DurationVar(&opts.LockTTL, "lock-ttl", lock.DefaultTTL, "task lock expiry")

	return cmd
}

func runSync(opts *RunOptions, cmd *cobra.Command) error {
	setupLogging(opts.RootOptions, cmd.ErrOrStderr())
	out := opts.formatter(cmd)

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, stopping after the current step", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	sess, err := openSession(ctx, opts.Database)
	if err != nil {
		return out.Fail(ExitCommandError, "failed to open catalog", err)
	}
	defer func() {
		if closeErr := sess.Close(); closeErr != nil {
			slog.Error("error closing catalog", "error", closeErr)
		}
	}()

	runIDs := opts.RunIDs
	if runIDs == nil {
		runIDs = engine.UUIDv7Generator{}
	}
	handlers := opts.Handlers
	if handlers == nil {
		handlers = handler.Default()
	}
	runnerOpts := []engine.RunnerOption{
		engine.WithStepLog(sess.catalog),
		engine.WithRunID(runIDs.Generate()),
	}
	if opts.Redis != "" {
		client, err := lock.Connect(ctx, opts.Redis)
		if err != nil {
			return out.Fail(ExitCommandError, "failed to connect to redis", err)
		}
		defer client.Close()
		runnerOpts = append(runnerOpts, engine.WithLocker(lock.NewRedisLocker(client, opts.LockTTL)))
	}
	runner := engine.NewRunner(engine.PoolResolver(sess.pool), handlers, sess.catalog, runnerOpts...)

	if opts.Name != "" {
		return runNamed(ctx, opts, out, runner, sess)
	}

	graph, err := sess.graph(ctx)
	if err != nil {
		return out.Fail(ExitFailure, "invalid catalog", err)
	}
	slog.Info("run starting", "run_id", runner.RunID(), "db", opts.Database, "tasks", graph.Len())

	report, err := engine.NewScheduler(runner,
		engine.WithMaxPasses(opts.Passes),
		engine.WithMaxSteps(opts.MaxSteps),
	).Run(ctx, graph)
	if err != nil {
		return out.Fail(ExitFailure, "sync failed", err)
	}
	return out.Success(report, formatReport(report))
}

// runNamed steps one task until it finishes. Only that task is loaded and
// validated; the rest of the catalog may be broken.
func runNamed(ctx context.Context, opts *RunOptions, out *OutputFormatter, runner *engine.Runner, sess *session) error {
	task, err := sess.catalog.GetTask(ctx, opts.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return out.Fail(ExitCommandError, "unknown task", fmt.Errorf("no task named %q", opts.Name))
	}
	if err != nil {
		return out.Fail(ExitCommandError, "failed to load task", err)
	}
	if err := task.Validate(); err != nil {
		return out.Fail(ExitFailure, "invalid task",
			engine.NewConfigurationError(task.Name, "invalid task definition", err))
	}
	slog.Info("run starting", "run_id", runner.RunID(), "db", opts.Database, "task", task.Name)

	res, err := runner.RunUntilFinished(ctx, &task)
	if err != nil {
		return out.Fail(ExitFailure, "sync failed", err)
	}
	result := RunResult{
		RunID:    runner.RunID(),
		Task:     task.Name,
		Count:    res.Count,
		Applied:  res.Applied,
		Finished: res.Finished,
		Cursor:   task.LastSync,
	}
	return out.Success(result, fmt.Sprintf("✓ %s finished: %d record(s) processed, %d applied, cursor %s",
		task.Name, res.Count, res.Applied, task.LastSync))
}

func formatReport(r engine.RunReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Run %s: %d pass(es), %d step(s), %d record(s) processed, %d applied\n",
		r.RunID, r.Passes, r.Steps, r.Count, r.Applied)
	fmt.Fprintf(&b, "  finished:   %s\n", listOrNone(r.Finished))
	fmt.Fprintf(&b, "  unfinished: %s\n", listOrNone(r.Unfinished))
	fmt.Fprintf(&b, "  skipped:    %s", listOrNone(r.Skipped))
	return b.String()
}

func listOrNone(names []string) string {
	if len(names) == 0 {
		return "-"
	}
	return strings.Join(names, ", ")
}
