package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/tasksync/internal/config"
	"github.com/roach88/tasksync/internal/handler"
	"github.com/roach88/tasksync/internal/store"
)

// ApplyOptions holds flags for the apply command.
type ApplyOptions struct {
	*RootOptions
	Database string
	Reset    bool
	Prune    bool
}

// ApplyResult is the JSON payload of the apply command.
type ApplyResult struct {
	store.ApplyReport
	Stores             []string `json:"stores"`
	CollectionsCreated []string `json:"collections_created"`
}

// NewApplyCommand creates the apply command.
func NewApplyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ApplyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "apply <catalog-dir>",
		Short: "Register stores and tasks from a catalog directory",
		Long: `Load a CUE or YAML catalog directory and write it into the catalog database.

Stores are registered, declared collections are created when absent and task
definitions are upserted. A task's cursor is kept unless --reset is given or
its order_by changed. --prune removes tasks the directory no longer declares.

Nothing is written when the catalog fails validation.

Examples:
  tasksync apply ./catalog --db ./catalog.db
  tasksync apply ./catalog --db ./catalog.db --reset`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApply(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to the catalog database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().BoolVar(&opts.Reset, "reset", false, "replace persisted cursors with the declared ones")
	cmd.Flags().BoolVar(&opts.Prune, "prune", false, "delete tasks not declared in the directory")

	return cmd
}

func runApply(opts *ApplyOptions, dir string, cmd *cobra.Command) error {
	ctx := context.Background()
	out := opts.formatter(cmd)

	cat, errs := loadCatalogDir(dir, handler.Default())
	if len(errs) > 0 {
		return outputLoadErrors(out, errs)
	}

	out.VerboseLog("Loaded %d task(s) from %d file(s) in %s", len(cat.Tasks), cat.FileCount, dir)

	catalog, err := store.Open(opts.Database)
	if err != nil {
		return out.Fail(ExitCommandError, "failed to open catalog", err)
	}
	defer catalog.Close()

	result := ApplyResult{Stores: []string{}, CollectionsCreated: []string{}}
	for _, s := range cat.Stores {
		if err := catalog.PutStore(ctx, s.Alias, s.Path); err != nil {
			return out.Fail(ExitCommandError, "failed to register store", err)
		}
		result.Stores = append(result.Stores, s.Alias)
	}

	pool := store.NewPool(catalog, cat.Stores)
	defer pool.Close()
	created, err := createCollections(ctx, pool, cat.Collections)
	result.CollectionsCreated = created
	if err != nil {
		return out.Fail(ExitCommandError, "failed to create collections", err)
	}

	report, err := catalog.Apply(ctx, cat.Tasks, store.ApplyOptions{Reset: opts.Reset, Prune: opts.Prune})
	if err != nil {
		return out.Fail(ExitCommandError, "failed to apply tasks", err)
	}
	result.ApplyReport = report

	return out.Success(result, fmt.Sprintf(
		"✓ Applied %d task(s): %d created, %d updated, %d pruned, %d cursor(s) reset; %d collection(s) created",
		len(cat.Tasks), len(report.Created), len(report.Updated), len(report.Pruned),
		len(report.CursorsReset), len(created)))
}

func createCollections(ctx context.Context, pool *store.Pool, cols []config.Collection) ([]string, error) {
	created := []string{}
	for _, c := range cols {
		s, err := pool.Get(c.Store)
		if err != nil {
			return created, err
		}
		exists, err := s.CollectionExists(ctx, c.Name)
		if err != nil {
			return created, err
		}
		if exists {
			continue
		}
		if err := s.CreateCollection(ctx, c.Name, c.Columns); err != nil {
			return created, err
		}
		created = append(created, c.Name)
	}
	return created, nil
}

// outputLoadErrors reports every catalog problem. A directory that cannot be
// read at all is a command error; anything found inside it is a failure.
func outputLoadErrors(out *OutputFormatter, errs []error) error {
	if len(errs) == 1 && isDirectoryError(errs[0]) {
		return out.Fail(ExitCommandError, "cannot load catalog", errs[0])
	}
	msgs := make([]string, len(errs))
	for i, err := range errs {
		msgs[i] = err.Error()
	}
	if out.Format == "json" {
		_ = out.Error(errorCode(errs[0]), fmt.Sprintf("catalog has %d error(s)", len(errs)), msgs)
	} else {
		fmt.Fprintln(out.Writer, "✗ Catalog invalid")
		for i, err := range errs {
			fmt.Fprintf(out.Writer, "  %s: %s\n", errorCode(err), msgs[i])
		}
	}
	return WrapExitError(ExitFailure, fmt.Sprintf("catalog has %d error(s)", len(errs)), errors.Join(errs...))
}

func isDirectoryError(err error) bool {
	var le *config.LoadError
	if !errors.As(err, &le) {
		return false
	}
	switch le.Code {
	case config.ErrCodeScanError, config.ErrCodeNoFiles, config.ErrCodeNotFound, config.ErrCodeMixed:
		return true
	}
	return false
}
