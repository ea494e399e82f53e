package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/tasksync/internal/ir"
	"github.com/roach88/tasksync/internal/store"
)

// StepsOptions holds flags for the steps command.
type StepsOptions struct {
	*RootOptions
	Database string
	RunID    string
	Task     string // optional - filter to one task
}

// StepsResult holds the step log listing.
type StepsResult struct {
	RunID string          `json:"run_id,omitempty"`
	Task  string          `json:"task,omitempty"`
	Steps []ir.StepRecord `json:"steps"`
	Stats StepsStats      `json:"stats"`
}

// StepsStats summarises the listed steps.
type StepsStats struct {
	Runs     int `json:"runs"`
	Steps    int `json:"steps"`
	Count    int `json:"count"`
	Applied  int `json:"applied"`
	Finished int `json:"finished"`
}

// NewStepsCommand creates the steps command.
func NewStepsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StepsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "steps",
		Short: "Show the step log",
		Long: `Show the logged steps of past runs in execution order.

Every step that committed a cursor or found its task finished is logged with
its run id, sequence number, record counts and the cursor it left behind.

Examples:
  tasksync steps --db ./catalog.db
  tasksync steps --db ./catalog.db --run 0192f1c4-...
  tasksync steps --db ./catalog.db --name stock --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSteps(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to the catalog database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "only steps of this run")
	cmd.Flags().StringVar(&opts.Task, "name", "", "only steps of this task")

	return cmd
}

func runSteps(opts *StepsOptions, cmd *cobra.Command) error {
	out := opts.formatter(cmd)

	catalog, err := store.Open(opts.Database)
	if err != nil {
		return out.Fail(ExitCommandError, "failed to open catalog", err)
	}
	defer catalog.Close()

	steps, err := catalog.ListSteps(context.Background(), opts.RunID, opts.Task)
	if err != nil {
		return out.Fail(ExitCommandError, "failed to read step log", err)
	}

	result := StepsResult{
		RunID: opts.RunID,
		Task:  opts.Task,
		Steps: steps,
		Stats: stepsStats(steps),
	}
	if opts.Format == "json" {
		return out.Success(result, "")
	}
	writeStepsText(out.Writer, result, opts.Verbose)
	return nil
}

func stepsStats(steps []ir.StepRecord) StepsStats {
	runs := make(map[string]bool)
	var s StepsStats
	for _, step := range steps {
		runs[step.RunID] = true
		s.Count += step.Count
		s.Applied += step.Applied
		if step.Finished {
			s.Finished++
		}
	}
	s.Runs = len(runs)
	s.Steps = len(steps)
	return s
}

// writeStepsText prints steps grouped under a header per run.
func writeStepsText(w io.Writer, result StepsResult, verbose bool) {
	if len(result.Steps) == 0 {
		fmt.Fprintln(w, "No steps logged")
		return
	}

	run := ""
	for _, step := range result.Steps {
		if step.RunID != run {
			if run != "" {
				fmt.Fprintln(w)
			}
			run = step.RunID
			fmt.Fprintf(w, "=== Run %s ===\n", run)
		}
		state := "partial"
		if step.Finished {
			state = "finished"
		}
		fmt.Fprintf(w, "  [%d] %s: count=%d applied=%d %s cursor=%s\n",
			step.Seq, step.Task, step.Count, step.Applied, state, step.LastSync)
		if verbose {
			fmt.Fprintf(w, "       %s .. %s\n", ir.CanonicalTime(step.Start), ir.CanonicalTime(step.End))
		}
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "%d run(s), %d step(s), %d record(s) processed, %d applied\n",
		result.Stats.Runs, result.Stats.Steps, result.Stats.Count, result.Stats.Applied)
}
