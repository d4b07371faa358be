// Package github provides a client for interacting with the GitHub API.
package github

import (
	"context"
)

// PullRequest contains information about a pull request
// This is a simplified struct to avoid coupling to go-github library
type PullRequest struct {
	Number         int
	HTMLURL        string
	Title          string
	Body           string
	State          string
	Merged         bool
	MergeCommitSHA string
	Draft          bool
	Base           string
	Head           string
	Author         string
	Labels         []string
	Milestone      string
}

// HasLabel reports whether the pull request currently carries label
func (pr *PullRequest) HasLabel(label string) bool {
	for _, l := range pr.Labels {
		if l == label {
			return true
		}
	}
	return false
}

// User is a GitHub account
type User struct {
	Login string
	Email string
}

// Commit is a commit as seen by the GitHub API
type Commit struct {
	SHA     string
	Message string
	Parents []string
}

// Subject returns the first line of the commit message
func (c *Commit) Subject() string {
	for i := 0; i < len(c.Message); i++ {
		if c.Message[i] == '\n' {
			return c.Message[:i]
		}
	}
	return c.Message
}

// Milestone is a repository milestone
type Milestone struct {
	Number int
	Title  string
}

// CreatePROptions contains options for creating a pull request
type CreatePROptions struct {
	Title string
	Body  string
	Head  string
	Base  string
	Draft bool
}

// UpdatePROptions contains options for updating a pull request
type UpdatePROptions struct {
	Title *string
	Body  *string
}

// Client is an interface for GitHub API interactions.
// A client is bound to one repository; the few calls that read other
// repositories take owner and name explicitly.
type Client interface {
	// GetOwnerRepo returns the repository owner and name
	GetOwnerRepo() (owner, repo string)

	// GetPullRequest fetches a pull request by number
	GetPullRequest(ctx context.Context, number int) (*PullRequest, error)

	// ListPullRequestsByHead lists pull requests whose head is "owner:branch", newest first
	ListPullRequestsByHead(ctx context.Context, head, state string) ([]*PullRequest, error)

	// CreatePullRequest creates a new pull request
	CreatePullRequest(ctx context.Context, opts CreatePROptions) (*PullRequest, error)

	// UpdatePullRequest updates an existing pull request
	UpdatePullRequest(ctx context.Context, number int, opts UpdatePROptions) error

	// AddLabels adds labels to an issue or pull request
	AddLabels(ctx context.Context, number int, labels ...string) error

	// RemoveLabel removes a label from an issue or pull request
	RemoveLabel(ctx context.Context, number int, label string) error

	// AddAssignees assigns users to an issue or pull request
	AddAssignees(ctx context.Context, number int, logins ...string) error

	// CreateComment comments on an issue or pull request
	CreateComment(ctx context.Context, number int, body string) error

	// ListMilestones lists milestones in every state
	ListMilestones(ctx context.Context) ([]*Milestone, error)

	// CreateMilestone creates a milestone
	CreateMilestone(ctx context.Context, title string) (*Milestone, error)

	// SetMilestone sets the milestone of an issue or pull request
	SetMilestone(ctx context.Context, number int, milestoneNumber int) error

	// GetUser fetches a user by login
	GetUser(ctx context.Context, login string) (*User, error)

	// GetCommit fetches a single commit
	GetCommit(ctx context.Context, sha string) (*Commit, error)

	// ListBranchCommits lists up to limit commits reachable from branch, newest first
	ListBranchCommits(ctx context.Context, branch string, limit int) ([]*Commit, error)

	// CompareCommits lists the commits in base..head
	CompareCommits(ctx context.Context, base, head string) ([]*Commit, error)

	// ListPullRequestCommits lists the commits of a pull request
	ListPullRequestCommits(ctx context.Context, number int) ([]*Commit, error)

	// ListPullRequestsWithCommit lists the pull requests associated with a commit
	ListPullRequestsWithCommit(ctx context.Context, sha string) ([]*PullRequest, error)

	// ListClosedEventCommits lists the commit ids recorded on "closed" issue events
	ListClosedEventCommits(ctx context.Context, number int) ([]string, error)

	// ListTags lists tag names of owner/repo
	ListTags(ctx context.Context, owner, repo string) ([]string, error)

	// GetFileContent reads a file from owner/repo at ref
	GetFileContent(ctx context.Context, owner, repo, path, ref string) (string, error)
}

// FullName returns "owner/repo" for a client
func FullName(c Client) string {
	owner, repo := c.GetOwnerRepo()
	return owner + "/" + repo
}
