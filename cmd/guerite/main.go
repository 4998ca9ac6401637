// Command guerite runs the supervisor daemon: cobra wires a root command
// (daemon mode, the default action) plus validate and version subcommands,
// the way the teacher's cmd/ package layers verbs over one binary.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	buildVersion = "dev"
	buildCommit  = "unknown"
	buildDate    = "unknown"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "guerite",
		Short:         "Guerite watches labeled containers and keeps them updated",
		Long:          "Guerite is a supervisor daemon for container engines. It watches containers carrying guerite.* labels and performs cron-scheduled update, restart, recreate, and health-restart actions with rollback.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runDaemon,
	}

	root.AddCommand(newValidateCommand())
	root.AddCommand(newVersionCommand())

	return root
}
