// Command tasksync copies records between collections in bounded,
// resumable batches and runs dependent copy tasks in order.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/roach88/tasksync/internal/cli"
)

func main() {
	err := cli.NewRootCommand().Execute()
	var exitErr *cli.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		// Flag and argument errors; command failures are already reported.
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	os.Exit(cli.GetExitCode(err))
}
