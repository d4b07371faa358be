package runtime

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"backport.dev/backport/internal/backport"
	"backport.dev/backport/internal/cherrypick"
	"backport.dev/backport/internal/config"
	"backport.dev/backport/internal/github"
	"backport.dev/backport/internal/jira"
	"backport.dev/backport/internal/milestone"
	"backport.dev/backport/internal/output"
	"backport.dev/backport/internal/subissue"
	"backport.dev/backport/internal/version"
)

// Options selects how a Context is assembled
type Options struct {
	// Repo is the "owner/name" repository acted on. Defaults to GITHUB_REPOSITORY,
	// then to the primary repository.
	Repo        string
	Debug       bool
	LogFilePath string
}

// Context provides access to the clients and logger of one run
type Context struct {
	Config  *config.Config
	Splog   *output.Splog
	GitHub  *github.RealClient
	Tracker subissue.Tracker
	Repo    string
	RunID   string
	RunURL  string
}

// NewContext builds a Context from cfg. The GitHub token is required; the issue
// tracker is left nil when JIRA_AUTH is not set.
func NewContext(ctx context.Context, cfg *config.Config, opts Options) (*Context, error) {
	runID := cfg.Credentials.RunID
	if runID == "" {
		runID = uuid.NewString()
	}

	splog, err := output.NewSplogWithOptions(output.Options{
		LogFilePath: opts.LogFilePath,
		Debug:       opts.Debug,
		RunID:       runID,
	})
	if err != nil {
		return nil, err
	}

	repo := RepoOf(cfg, opts.Repo)
	if err := cfg.Credentials.RequireGitHubToken(); err != nil {
		_ = splog.Close()
		return nil, err
	}
	client, err := github.NewRealClient(ctx, cfg.GitHub.Host, cfg.Credentials.GitHubToken, repo)
	if err != nil {
		_ = splog.Close()
		return nil, err
	}

	rc := &Context{
		Config: cfg,
		Splog:  splog,
		GitHub: client,
		Repo:   repo,
		RunID:  runID,
		RunURL: cfg.Credentials.RunURL(),
	}

	if cfg.Credentials.JiraEnabled() {
		tracker, err := jira.NewClient(cfg.Jira.BaseURL, cfg.Credentials.JiraAuth, cfg.Jira.RequestsPerSecond)
		if err != nil {
			_ = splog.Close()
			return nil, fmt.Errorf("failed to create jira client: %w", err)
		}
		rc.Tracker = tracker
	} else {
		splog.Warn("JIRA_AUTH is not set, sub-issue creation is disabled")
	}

	return rc, nil
}

// RepoOf picks the repository a run acts on
func RepoOf(cfg *config.Config, override string) string {
	switch {
	case override != "":
		return override
	case cfg.Credentials.Repository != "":
		return cfg.Credentials.Repository
	default:
		return cfg.PrimaryRepo
	}
}

// Orchestrator wires a backport.Orchestrator against the run's clients
func (c *Context) Orchestrator() *backport.Orchestrator {
	cfg := c.Config
	_, name, _ := github.SplitFullName(c.Repo)
	token := cfg.Credentials.GitHubToken

	executor := cherrypick.NewExecutor(cherrypick.Options{
		Identity:  cherrypick.Identity{Name: cfg.Bot.Name, Email: cfg.Bot.Email},
		ScanDepth: cfg.History.ScanDepth,
	}, c.Splog)

	resolver := milestone.NewResolver(c.GitHub, milestone.Options{
		TagRepo:        cfg.Milestone.TagRepo,
		TagPrefix:      cfg.Milestone.TagPrefix,
		VersionFile:    cfg.Milestone.VersionFile,
		MainlineBranch: cfg.Milestone.MainlineBranch,
	}, c.Splog)

	return backport.New(backport.Deps{
		GitHub:   c.GitHub,
		Registry: version.NewRegistry(cfg.PrimaryRepo),
		SubIssues: subissue.NewManager(c.Tracker, subissue.Options{
			OrgDomain: cfg.Jira.OrgDomain,
			RunURL:    c.RunURL,
		}, c.Splog),
		Picker:     executor,
		Milestones: resolver,
		Assigner:   milestone.NewAssigner(c.GitHub, c.Splog),
		Splog:      c.Splog,
	}, backport.Options{
		BotLogin:                  cfg.Bot.Login,
		SourceURL:                 cherrypick.RepoURL(cfg.GitHub.Host, token, c.Repo),
		PushURL:                   cherrypick.RepoURL(cfg.GitHub.Host, token, cfg.Bot.Login+"/"+name),
		PriorityLabels:            cfg.Labels.Priority,
		ForceOnCloudLabel:         cfg.Labels.ForceOnCloud,
		ForceOnCloudExcludedRepos: cfg.Labels.ForceOnCloudExcludedRepos,
		MilestoneRepos:            cfg.Milestone.Repos,
		MaxChainDepth:             cfg.Chain.MaxDepth,
		Workers:                   cfg.Parallel.Workers,
		ScanDepth:                 cfg.History.ScanDepth,
	})
}

// Close flushes the run's log file
func (c *Context) Close() error {
	return c.Splog.Close()
}
