package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/tasksync/internal/config"
	"github.com/roach88/tasksync/internal/store"
)

// ExportOptions holds flags for the export command.
type ExportOptions struct {
	*RootOptions
	Database string
	Output   string
}

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the catalog back out as YAML",
		Long: `Render the stores and tasks of a catalog database, current cursors
included, in the YAML catalog format. Applying the output with --reset
restores the catalog.

Examples:
  tasksync export --db ./catalog.db
  tasksync export --db ./catalog.db -o ./backup/catalog.yaml`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to the catalog database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write to this file instead of stdout")

	return cmd
}

func runExport(opts *ExportOptions, cmd *cobra.Command) error {
	ctx := context.Background()
	out := opts.formatter(cmd)

	catalog, err := store.Open(opts.Database)
	if err != nil {
		return out.Fail(ExitCommandError, "failed to open catalog", err)
	}
	defer catalog.Close()

	stores, err := catalog.ListStores(ctx)
	if err != nil {
		return out.Fail(ExitCommandError, "failed to list stores", err)
	}
	tasks, err := catalog.ListTasks(ctx)
	if err != nil {
		return out.Fail(ExitCommandError, "failed to list tasks", err)
	}

	data, err := config.Marshal(&config.Catalog{Stores: stores, Tasks: tasks})
	if err != nil {
		return out.Fail(ExitFailure, "failed to render catalog", err)
	}

	if opts.Output == "" {
		_, err := cmd.OutOrStdout().Write(data)
		return err
	}
	if err := os.WriteFile(opts.Output, data, 0o644); err != nil {
		return out.Fail(ExitCommandError, "failed to write output", err)
	}
	return out.Success(map[string]any{"path": opts.Output, "tasks": len(tasks)},
		fmt.Sprintf("✓ Exported %d task(s) to %s", len(tasks), opts.Output))
}
