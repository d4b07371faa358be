// Package runtime provides the execution context for backport commands.
//
// It assembles the shared dependencies a run needs from the loaded
// configuration: the logger, the GitHub client, the optional issue tracker
// and the orchestrator built on top of them.
package runtime
