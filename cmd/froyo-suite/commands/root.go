package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// ExitError carries a process exit status without an error message.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	opts := &globalOptions{version: version}

	rootCmd := &cobra.Command{
		Use:   "froyo-suite",
		Short: "Compile shell suites and run them on a remote host",
		Long: `froyo-suite compiles suites of shell scripts and ships each transcript to a
remote host through the local ssh client.

Suites are Starlark files. Each registered unit is built against the
connection when the run reaches it, filtered by tags, previewed and
confirmed in debug mode, and executed once the host answers on its port.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	opts.bind(rootCmd)

	rootCmd.AddCommand(newRunCommand(opts))
	rootCmd.AddCommand(newRenderCommand(opts))
	rootCmd.AddCommand(newCheckCommand(opts))
	rootCmd.AddCommand(newHistoryCommand(opts))

	return rootCmd
}
