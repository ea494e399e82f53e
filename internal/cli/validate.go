package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/tasksync/internal/handler"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool     `json:"valid"`
	Tasks  []string `json:"tasks"`
	Errors []string `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <catalog-dir>",
		Short: "Check a catalog directory without writing anything",
		Long: `Load a CUE or YAML catalog directory and check every task: required
fields, batch size, order keys, cursor shape, handler names and dependency
cycles. Nothing is written.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runValidate(opts *RootOptions, dir string, cmd *cobra.Command) error {
	out := opts.formatter(cmd)

	cat, errs := loadCatalogDir(dir, handler.Default())
	if len(errs) > 0 {
		return outputLoadErrors(out, errs)
	}

	names := make([]string, len(cat.Tasks))
	for i, t := range cat.Tasks {
		names[i] = t.Name
		out.VerboseLog("task %s: %s -> %s via %s", t.Name, t.Source, t.Target, t.Handler)
	}
	return out.Success(ValidationResult{Valid: true, Tasks: names},
		fmt.Sprintf("✓ Catalog valid: %d task(s)", len(names)))
}
