package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/tasksync/internal/store"
)

// ResetOptions holds flags for the reset command.
type ResetOptions struct {
	*RootOptions
	Database string
	Names    []string
	All      bool
}

// NewResetCommand creates the reset command.
func NewResetCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ResetOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Clear task cursors",
		Long: `Clear the cursor of one or more tasks so the next run starts from the
first record of the source. Records already in the target are kept; the
handlers skip them by identity.

Examples:
  tasksync reset --db ./catalog.db --name stock
  tasksync reset --db ./catalog.db --all`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReset(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to the catalog database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringSliceVar(&opts.Names, "name", nil, "task to reset (repeatable)")
	cmd.Flags().BoolVar(&opts.All, "all", false, "reset every task")
	cmd.MarkFlagsMutuallyExclusive("name", "all")
	cmd.MarkFlagsOneRequired("name", "all")

	return cmd
}

func runReset(opts *ResetOptions, cmd *cobra.Command) error {
	ctx := context.Background()
	out := opts.formatter(cmd)

	catalog, err := store.Open(opts.Database)
	if err != nil {
		return out.Fail(ExitCommandError, "failed to open catalog", err)
	}
	defer catalog.Close()

	names := opts.Names
	if opts.All {
		tasks, err := catalog.ListTasks(ctx)
		if err != nil {
			return out.Fail(ExitCommandError, "failed to list tasks", err)
		}
		names = make([]string, len(tasks))
		for i, t := range tasks {
			names[i] = t.Name
		}
	}

	for _, name := range names {
		if err := catalog.ResetCursor(ctx, name); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return out.Fail(ExitCommandError, "unknown task", fmt.Errorf("no task named %q", name))
			}
			return out.Fail(ExitCommandError, "failed to reset cursor", err)
		}
		out.VerboseLog("reset %s", name)
	}

	return out.Success(map[string][]string{"reset": names},
		fmt.Sprintf("✓ Reset %d cursor(s): %s", len(names), listOrNone(names)))
}
