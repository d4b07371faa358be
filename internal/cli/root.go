// Package cli implements the backport command line.
package cli

import (
	"os"

	"github.com/spf13/cobra"
)

// globalFlags are shared by every command
type globalFlags struct {
	configPath string
	debug      bool
	logFile    string
	repo       string
}

// NewRootCmd creates the root cobra command
func NewRootCmd(version, commit, date string) *cobra.Command {
	globals := &globalFlags{}
	run := &runFlags{}

	rootCmd := &cobra.Command{
		Use:   "backport",
		Short: "Backport merged pull requests to release branches",
		Long: `Backport carries merged pull requests to older release branches.

The mode is selected by flags:
  initial backport     --commits start..end, or --pull-request N with --label and --head-commit
  chain continuation   --chain-backport --merged-pr N
  branch promotion     --commits start..end --promoted-to-branch branch-X.Y`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			mode, err := run.mode()
			if err != nil {
				return err
			}
			return withContext(cmd, globals, func(rc *runContext) error {
				return dispatch(cmd.Context(), rc.orchestrator, rc.github, mode, run)
			})
		},
	}

	rootCmd.PersistentFlags().StringVar(&globals.configPath, "config", "", "configuration file (default .backport.yaml when present)")
	rootCmd.PersistentFlags().BoolVar(&globals.debug, "debug", os.Getenv("DEBUG") != "", "enable debug output")
	rootCmd.PersistentFlags().StringVar(&globals.logFile, "log-file", os.Getenv("BACKPORT_LOG_FILE"), "also write a rotated log to this file")
	rootCmd.PersistentFlags().StringVar(&globals.repo, "repo", "", "owner/name of the repository (default $GITHUB_REPOSITORY)")
	run.register(rootCmd)

	rootCmd.AddCommand(newConfigCmd(globals))
	rootCmd.AddCommand(newVersionCmd(version, commit, date))

	return rootCmd
}
