package config

import (
	"fmt"
	"os"
	"strings"

	bperrors "backport.dev/backport/internal/errors"
)

const masked = "********"

// Credentials and run coordinates taken from the environment
type Credentials struct {
	GitHubToken string `yaml:"githubToken"`
	// JiraAuth is "user:token"; empty disables the issue tracker
	JiraAuth   string `yaml:"jiraAuth"`
	ServerURL  string `yaml:"serverURL"`
	Repository string `yaml:"repository"`
	RunID      string `yaml:"runID"`
}

// CredentialsFromEnv reads GITHUB_TOKEN, JIRA_AUTH and the GitHub Actions run variables
func CredentialsFromEnv() Credentials {
	return Credentials{
		GitHubToken: os.Getenv("GITHUB_TOKEN"),
		JiraAuth:    os.Getenv("JIRA_AUTH"),
		ServerURL:   os.Getenv("GITHUB_SERVER_URL"),
		Repository:  os.Getenv("GITHUB_REPOSITORY"),
		RunID:       os.Getenv("GITHUB_RUN_ID"),
	}
}

// RequireGitHubToken fails when no GitHub token is configured
func (c Credentials) RequireGitHubToken() error {
	if c.GitHubToken == "" {
		return fmt.Errorf("GITHUB_TOKEN is not set: %w", bperrors.ErrMissingCredentials)
	}
	return nil
}

// JiraEnabled reports whether issue-tracker credentials are present
func (c Credentials) JiraEnabled() bool {
	return c.JiraAuth != ""
}

// RunURL links to the automation run, or "" outside of one
func (c Credentials) RunURL() string {
	if c.Repository == "" || c.RunID == "" {
		return ""
	}
	server := c.ServerURL
	if server == "" {
		server = "https://github.com"
	}
	return strings.TrimSuffix(server, "/") + "/" + c.Repository + "/actions/runs/" + c.RunID
}

// Masked hides secrets and keeps the run coordinates
func (c Credentials) Masked() Credentials {
	out := c
	if out.GitHubToken != "" {
		out.GitHubToken = masked
	}
	if user, _, ok := strings.Cut(out.JiraAuth, ":"); ok {
		out.JiraAuth = user + ":" + masked
	} else if out.JiraAuth != "" {
		out.JiraAuth = masked
	}
	return out
}
