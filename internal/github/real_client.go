package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/go-github/v62/github"
	"golang.org/x/oauth2"

	bperrors "backport.dev/backport/internal/errors"
)

const listPageSize = 100

// RealClient implements Client using the real GitHub API
type RealClient struct {
	client *github.Client
	owner  string
	repo   string
}

// NewRealClient creates a client for fullName ("owner/repo") on hostname
func NewRealClient(ctx context.Context, hostname, token, fullName string) (*RealClient, error) {
	if token == "" {
		return nil, fmt.Errorf("GITHUB_TOKEN is not set: %w", bperrors.ErrMissingCredentials)
	}
	owner, repo, err := SplitFullName(fullName)
	if err != nil {
		return nil, err
	}

	client, err := createGitHubClient(ctx, hostname, token)
	if err != nil {
		return nil, fmt.Errorf("failed to create GitHub client: %w", err)
	}

	return NewRealClientFromGitHub(client, owner, repo), nil
}

// NewRealClientFromGitHub wraps an already configured go-github client
func NewRealClientFromGitHub(client *github.Client, owner, repo string) *RealClient {
	return &RealClient{client: client, owner: owner, repo: repo}
}

// SplitFullName splits "owner/repo"
func SplitFullName(fullName string) (string, string, error) {
	owner, repo, ok := strings.Cut(fullName, "/")
	if !ok || owner == "" || repo == "" || strings.Contains(repo, "/") {
		return "", "", fmt.Errorf("invalid repository name %q: expected owner/repo", fullName)
	}
	return owner, repo, nil
}

// createGitHubClient creates a GitHub client configured for the given hostname
// Supports both github.com and GitHub Enterprise instances
func createGitHubClient(ctx context.Context, hostname, token string) (*github.Client, error) {
	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: token},
	)
	tc := oauth2.NewClient(ctx, ts)
	client := github.NewClient(tc)

	if hostname != "" && hostname != "github.com" {
		baseURL, err := url.Parse(fmt.Sprintf("https://%s/api/v3/", hostname))
		if err != nil {
			return nil, fmt.Errorf("failed to parse base URL for hostname %s: %w", hostname, err)
		}
		uploadURL, err := url.Parse(fmt.Sprintf("https://%s/api/uploads/", hostname))
		if err != nil {
			return nil, fmt.Errorf("failed to parse upload URL for hostname %s: %w", hostname, err)
		}

		client.BaseURL = baseURL
		client.UploadURL = uploadURL
	}

	return client, nil
}

// apiError converts a go-github error into a RemoteAPIError carrying the HTTP status
func apiError(operation string, resp *github.Response, err error) error {
	status := 0
	if resp != nil && resp.Response != nil {
		status = resp.StatusCode
	}
	var errResp *github.ErrorResponse
	if status == 0 && errors.As(err, &errResp) && errResp.Response != nil {
		status = errResp.Response.StatusCode
	}
	return bperrors.NewRemoteAPIError("github", operation, status, err)
}

// GetOwnerRepo returns the repository owner and name
func (c *RealClient) GetOwnerRepo() (string, string) {
	return c.owner, c.repo
}

// GetPullRequest fetches a pull request by number
func (c *RealClient) GetPullRequest(ctx context.Context, number int) (*PullRequest, error) {
	pr, resp, err := c.client.PullRequests.Get(ctx, c.owner, c.repo, number)
	if err != nil {
		return nil, apiError(fmt.Sprintf("get pull request #%d", number), resp, err)
	}
	return toPullRequest(pr), nil
}

// ListPullRequestsByHead lists pull requests whose head is "owner:branch", newest first
func (c *RealClient) ListPullRequestsByHead(ctx context.Context, head, state string) ([]*PullRequest, error) {
	prs, resp, err := c.client.PullRequests.List(ctx, c.owner, c.repo, &github.PullRequestListOptions{
		Head:      head,
		State:     state,
		Sort:      "created",
		Direction: "desc",
		ListOptions: github.ListOptions{
			PerPage: listPageSize,
		},
	})
	if err != nil {
		return nil, apiError("list pull requests for "+head, resp, err)
	}

	result := make([]*PullRequest, 0, len(prs))
	for _, pr := range prs {
		result = append(result, toPullRequest(pr))
	}
	return result, nil
}

// CreatePullRequest creates a new pull request
func (c *RealClient) CreatePullRequest(ctx context.Context, opts CreatePROptions) (*PullRequest, error) {
	newPR := &github.NewPullRequest{
		Title: github.String(opts.Title),
		Head:  github.String(opts.Head),
		Base:  github.String(opts.Base),
		Draft: github.Bool(opts.Draft),
	}

	if opts.Body != "" {
		newPR.Body = github.String(opts.Body)
	}

	createdPR, resp, err := c.client.PullRequests.Create(ctx, c.owner, c.repo, newPR)
	if err != nil {
		return nil, apiError("create pull request", resp, err)
	}
	return toPullRequest(createdPR), nil
}

// UpdatePullRequest updates an existing pull request
func (c *RealClient) UpdatePullRequest(ctx context.Context, number int, opts UpdatePROptions) error {
	update := &github.PullRequest{}
	if opts.Title != nil {
		update.Title = opts.Title
	}
	if opts.Body != nil {
		update.Body = opts.Body
	}

	_, resp, err := c.client.PullRequests.Edit(ctx, c.owner, c.repo, number, update)
	if err != nil {
		return apiError(fmt.Sprintf("update pull request #%d", number), resp, err)
	}
	return nil
}

// AddLabels adds labels to an issue or pull request
func (c *RealClient) AddLabels(ctx context.Context, number int, labels ...string) error {
	if len(labels) == 0 {
		return nil
	}
	_, resp, err := c.client.Issues.AddLabelsToIssue(ctx, c.owner, c.repo, number, labels)
	if err != nil {
		return apiError(fmt.Sprintf("add labels to #%d", number), resp, err)
	}
	return nil
}

// RemoveLabel removes a label from an issue or pull request
func (c *RealClient) RemoveLabel(ctx context.Context, number int, label string) error {
	resp, err := c.client.Issues.RemoveLabelForIssue(ctx, c.owner, c.repo, number, label)
	if err != nil {
		return apiError(fmt.Sprintf("remove label %q from #%d", label, number), resp, err)
	}
	return nil
}

// AddAssignees assigns users to an issue or pull request
func (c *RealClient) AddAssignees(ctx context.Context, number int, logins ...string) error {
	_, resp, err := c.client.Issues.AddAssignees(ctx, c.owner, c.repo, number, logins)
	if err != nil {
		return apiError(fmt.Sprintf("assign #%d", number), resp, err)
	}
	return nil
}

// CreateComment comments on an issue or pull request
func (c *RealClient) CreateComment(ctx context.Context, number int, body string) error {
	_, resp, err := c.client.Issues.CreateComment(ctx, c.owner, c.repo, number, &github.IssueComment{
		Body: github.String(body),
	})
	if err != nil {
		return apiError(fmt.Sprintf("comment on #%d", number), resp, err)
	}
	return nil
}

// ListMilestones lists milestones in every state
func (c *RealClient) ListMilestones(ctx context.Context) ([]*Milestone, error) {
	var result []*Milestone
	opts := &github.MilestoneListOptions{
		State:       "all",
		ListOptions: github.ListOptions{PerPage: listPageSize},
	}
	for {
		milestones, resp, err := c.client.Issues.ListMilestones(ctx, c.owner, c.repo, opts)
		if err != nil {
			return nil, apiError("list milestones", resp, err)
		}
		for _, m := range milestones {
			result = append(result, &Milestone{Number: m.GetNumber(), Title: m.GetTitle()})
		}
		if resp.NextPage == 0 {
			return result, nil
		}
		opts.Page = resp.NextPage
	}
}

// CreateMilestone creates a milestone
func (c *RealClient) CreateMilestone(ctx context.Context, title string) (*Milestone, error) {
	m, resp, err := c.client.Issues.CreateMilestone(ctx, c.owner, c.repo, &github.Milestone{
		Title: github.String(title),
	})
	if err != nil {
		return nil, apiError(fmt.Sprintf("create milestone %q", title), resp, err)
	}
	return &Milestone{Number: m.GetNumber(), Title: m.GetTitle()}, nil
}

// SetMilestone sets the milestone of an issue or pull request
func (c *RealClient) SetMilestone(ctx context.Context, number int, milestoneNumber int) error {
	_, resp, err := c.client.Issues.Edit(ctx, c.owner, c.repo, number, &github.IssueRequest{
		Milestone: github.Int(milestoneNumber),
	})
	if err != nil {
		return apiError(fmt.Sprintf("set milestone on #%d", number), resp, err)
	}
	return nil
}

// GetUser fetches a user by login
func (c *RealClient) GetUser(ctx context.Context, login string) (*User, error) {
	u, resp, err := c.client.Users.Get(ctx, login)
	if err != nil {
		return nil, apiError("get user "+login, resp, err)
	}
	return &User{Login: u.GetLogin(), Email: u.GetEmail()}, nil
}

// GetCommit fetches a single commit
func (c *RealClient) GetCommit(ctx context.Context, sha string) (*Commit, error) {
	commit, resp, err := c.client.Repositories.GetCommit(ctx, c.owner, c.repo, sha, nil)
	if err != nil {
		return nil, apiError("get commit "+sha, resp, err)
	}
	return toCommit(commit), nil
}

// ListBranchCommits lists up to limit commits reachable from branch, newest first
func (c *RealClient) ListBranchCommits(ctx context.Context, branch string, limit int) ([]*Commit, error) {
	var result []*Commit
	opts := &github.CommitsListOptions{
		SHA:         branch,
		ListOptions: github.ListOptions{PerPage: listPageSize},
	}
	for len(result) < limit {
		commits, resp, err := c.client.Repositories.ListCommits(ctx, c.owner, c.repo, opts)
		if err != nil {
			return nil, apiError("list commits of "+branch, resp, err)
		}
		for _, commit := range commits {
			if len(result) == limit {
				break
			}
			result = append(result, toCommit(commit))
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return result, nil
}

// CompareCommits lists the commits in base..head
func (c *RealClient) CompareCommits(ctx context.Context, base, head string) ([]*Commit, error) {
	var result []*Commit
	opts := &github.ListOptions{PerPage: listPageSize}
	for {
		comparison, resp, err := c.client.Repositories.CompareCommits(ctx, c.owner, c.repo, base, head, opts)
		if err != nil {
			return nil, apiError(fmt.Sprintf("compare %s..%s", base, head), resp, err)
		}
		for _, commit := range comparison.Commits {
			result = append(result, toCommit(commit))
		}
		if resp.NextPage == 0 {
			return result, nil
		}
		opts.Page = resp.NextPage
	}
}

// ListPullRequestCommits lists the commits of a pull request
func (c *RealClient) ListPullRequestCommits(ctx context.Context, number int) ([]*Commit, error) {
	var result []*Commit
	opts := &github.ListOptions{PerPage: listPageSize}
	for {
		commits, resp, err := c.client.PullRequests.ListCommits(ctx, c.owner, c.repo, number, opts)
		if err != nil {
			return nil, apiError(fmt.Sprintf("list commits of #%d", number), resp, err)
		}
		for _, commit := range commits {
			result = append(result, toCommit(commit))
		}
		if resp.NextPage == 0 {
			return result, nil
		}
		opts.Page = resp.NextPage
	}
}

// ListPullRequestsWithCommit lists the pull requests associated with a commit
func (c *RealClient) ListPullRequestsWithCommit(ctx context.Context, sha string) ([]*PullRequest, error) {
	prs, resp, err := c.client.PullRequests.ListPullRequestsWithCommit(ctx, c.owner, c.repo, sha, &github.ListOptions{PerPage: listPageSize})
	if err != nil {
		return nil, apiError("list pull requests of commit "+sha, resp, err)
	}
	result := make([]*PullRequest, 0, len(prs))
	for _, pr := range prs {
		result = append(result, toPullRequest(pr))
	}
	return result, nil
}

// ListClosedEventCommits lists the commit ids recorded on "closed" issue events
func (c *RealClient) ListClosedEventCommits(ctx context.Context, number int) ([]string, error) {
	var result []string
	opts := &github.ListOptions{PerPage: listPageSize}
	for {
		events, resp, err := c.client.Issues.ListIssueEvents(ctx, c.owner, c.repo, number, opts)
		if err != nil {
			return nil, apiError(fmt.Sprintf("list events of #%d", number), resp, err)
		}
		for _, event := range events {
			if event.GetEvent() == "closed" && event.GetCommitID() != "" {
				result = append(result, event.GetCommitID())
			}
		}
		if resp.NextPage == 0 {
			return result, nil
		}
		opts.Page = resp.NextPage
	}
}

// ListTags lists tag names of owner/repo
func (c *RealClient) ListTags(ctx context.Context, owner, repo string) ([]string, error) {
	var result []string
	opts := &github.ListOptions{PerPage: listPageSize}
	for {
		tags, resp, err := c.client.Repositories.ListTags(ctx, owner, repo, opts)
		if err != nil {
			return nil, apiError(fmt.Sprintf("list tags of %s/%s", owner, repo), resp, err)
		}
		for _, tag := range tags {
			result = append(result, tag.GetName())
		}
		if resp.NextPage == 0 {
			return result, nil
		}
		opts.Page = resp.NextPage
	}
}

// GetFileContent reads a file from owner/repo at ref
func (c *RealClient) GetFileContent(ctx context.Context, owner, repo, path, ref string) (string, error) {
	file, _, resp, err := c.client.Repositories.GetContents(ctx, owner, repo, path, &github.RepositoryContentGetOptions{Ref: ref})
	if err != nil {
		return "", apiError(fmt.Sprintf("read %s@%s from %s/%s", path, ref, owner, repo), resp, err)
	}
	if file == nil {
		return "", bperrors.NewRemoteAPIError("github", "read "+path, http.StatusNotFound, fmt.Errorf("%s is a directory", path))
	}
	content, err := file.GetContent()
	if err != nil {
		return "", fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return content, nil
}

// toPullRequest converts a github.PullRequest to PullRequest
func toPullRequest(pr *github.PullRequest) *PullRequest {
	if pr == nil {
		return nil
	}

	info := &PullRequest{
		Number:         pr.GetNumber(),
		HTMLURL:        pr.GetHTMLURL(),
		Title:          pr.GetTitle(),
		Body:           pr.GetBody(),
		State:          pr.GetState(),
		Merged:         pr.GetMerged() || pr.MergedAt != nil,
		MergeCommitSHA: pr.GetMergeCommitSHA(),
		Draft:          pr.GetDraft(),
	}
	if pr.Base != nil {
		info.Base = pr.Base.GetRef()
	}
	if pr.Head != nil {
		info.Head = pr.Head.GetRef()
	}
	if pr.User != nil {
		info.Author = pr.User.GetLogin()
	}
	if pr.Milestone != nil {
		info.Milestone = pr.Milestone.GetTitle()
	}
	for _, label := range pr.Labels {
		info.Labels = append(info.Labels, label.GetName())
	}

	return info
}

// toCommit converts a github.RepositoryCommit to Commit
func toCommit(rc *github.RepositoryCommit) *Commit {
	commit := &Commit{SHA: rc.GetSHA()}
	if rc.Commit != nil {
		commit.Message = rc.Commit.GetMessage()
	}
	for _, parent := range rc.Parents {
		commit.Parents = append(commit.Parents, parent.GetSHA())
	}
	return commit
}
