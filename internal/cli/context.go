package cli

import (
	"github.com/spf13/cobra"

	"backport.dev/backport/internal/config"
	"backport.dev/backport/internal/github"
	"backport.dev/backport/internal/runtime"
)

// runContext is what a command needs once configuration and clients are ready
type runContext struct {
	runtime      *runtime.Context
	github       github.Client
	orchestrator orchestrator
}

// withContext loads the configuration, builds the run's clients and calls fn
func withContext(cmd *cobra.Command, globals *globalFlags, fn func(rc *runContext) error) error {
	cfg, err := config.Load(globals.configPath)
	if err != nil {
		return err
	}
	rt, err := runtime.NewContext(cmd.Context(), cfg, runtime.Options{
		Repo:        globals.repo,
		Debug:       globals.debug,
		LogFilePath: globals.logFile,
	})
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close() }()

	rt.Splog.Debug("run %s acting on %s", rt.RunID, rt.Repo)
	err = fn(&runContext{runtime: rt, github: rt.GitHub, orchestrator: rt.Orchestrator()})
	if err != nil {
		rt.Splog.Error("%v", err)
	}
	return err
}
