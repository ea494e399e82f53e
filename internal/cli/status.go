package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/tasksync/internal/ir"
	"github.com/roach88/tasksync/internal/store"
)

// StatusOptions holds flags for the status command.
type StatusOptions struct {
	*RootOptions
	Database string
}

// TaskStatus is one row of the status listing.
type TaskStatus struct {
	Name         string      `json:"name"`
	Source       string      `json:"source"`
	Target       string      `json:"target"`
	Handler      string      `json:"handler"`
	BatchSize    int         `json:"batch_size"`
	OrderBy      []string    `json:"order_by"`
	FilterBy     ir.IRObject `json:"filter_by"`
	LastSync     ir.Cursor   `json:"last_sync"`
	Dependencies []string    `json:"dependencies"`
}

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StatusOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "List tasks and their cursors",
		Long: `List every task in the catalog with its source, target, handler,
batch size, order, filter and current cursor.

Examples:
  tasksync status --db ./catalog.db
  tasksync status --db ./catalog.db --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to the catalog database (required)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runStatus(opts *StatusOptions, cmd *cobra.Command) error {
	out := opts.formatter(cmd)

	catalog, err := store.Open(opts.Database)
	if err != nil {
		return out.Fail(ExitCommandError, "failed to open catalog", err)
	}
	defer catalog.Close()

	tasks, err := catalog.ListTasks(context.Background())
	if err != nil {
		return out.Fail(ExitCommandError, "failed to list tasks", err)
	}

	rows := make([]TaskStatus, len(tasks))
	for i, t := range tasks {
		rows[i] = taskStatus(t)
	}
	return out.Success(rows, formatStatus(rows))
}

func taskStatus(t ir.Task) TaskStatus {
	order := make([]string, len(t.OrderBy))
	for i, k := range t.OrderBy {
		order[i] = string(k)
	}
	filter := t.FilterBy
	if filter == nil {
		filter = ir.IRObject{}
	}
	deps := t.Dependencies
	if deps == nil {
		deps = []string{}
	}
	return TaskStatus{
		Name:         t.Name,
		Source:       t.Source.String(),
		Target:       t.Target.String(),
		Handler:      t.Handler,
		BatchSize:    t.BatchSize,
		OrderBy:      order,
		FilterBy:     filter,
		LastSync:     t.LastSync.Clone(),
		Dependencies: deps,
	}
}

func formatStatus(rows []TaskStatus) string {
	if len(rows) == 0 {
		return "No tasks registered"
	}
	var b strings.Builder
	for i, r := range rows {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%s\n", r.Name)
		fmt.Fprintf(&b, "  %s -> %s via %s, batch %d\n", r.Source, r.Target, r.Handler, r.BatchSize)
		fmt.Fprintf(&b, "  order:  %s\n", listOrNone(r.OrderBy))
		if len(r.FilterBy) > 0 {
			fmt.Fprintf(&b, "  filter: %s\n", ir.Cursor(r.FilterBy))
		}
		if len(r.Dependencies) > 0 {
			fmt.Fprintf(&b, "  after:  %s\n", strings.Join(r.Dependencies, ", "))
		}
		cursor := "(not started)"
		if !r.LastSync.IsEmpty() {
			cursor = r.LastSync.String()
		}
		fmt.Fprintf(&b, "  cursor: %s", cursor)
	}
	return b.String()
}
