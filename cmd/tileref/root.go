package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/odvcencio/tileref/internal/config"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

type exitCodeError struct {
	code int
	err  error
}

func (e exitCodeError) Error() string {
	if e.err == nil {
		return "command failed"
	}
	return e.err.Error()
}

func (e exitCodeError) Unwrap() error { return e.err }

func (e exitCodeError) ExitCode() int {
	if e.code <= 0 {
		return 1
	}
	return e.code
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "tileref [project]",
		Short: "Rewrite a C# project to use Terraria.Tile by reference",
		Long: `tileref loads a .csproj project, finds every local and assignment of the
target type and rewrites them to ref locals and ref re-assignments. Null
checks against the target become constants, and assignments through a
two-index indexer are commented out for manual review.

Without a subcommand tileref runs "rewrite".`,
		Args:          cobra.MaximumNArgs(1),
		RunE:          runRewrite,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	config.RegisterFlags(root.PersistentFlags())

	root.AddCommand(newRewriteCmd(), newWatchCmd(), newVersionCmd())
	return root
}

func newRewriteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rewrite [project]",
		Short: "Rewrite every file of the project once",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runRewrite,
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "tileref %s\n", version)
			return err
		},
	}
}

func isTerminal(cmd *cobra.Command) bool {
	in, ok := cmd.InOrStdin().(*os.File)
	return ok && isTerminalFile(in)
}
