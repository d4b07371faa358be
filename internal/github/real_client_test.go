package github_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	gh "github.com/google/go-github/v62/github"
	"github.com/stretchr/testify/require"

	bperrors "backport.dev/backport/internal/errors"
	githubpkg "backport.dev/backport/internal/github"
	"backport.dev/backport/testhelpers"
)

func TestCreatePullRequest(t *testing.T) {
	t.Run("creates a pull request successfully", func(t *testing.T) {
		config := testhelpers.NewMockGitHubServerConfig()
		client := testhelpers.NewMockGitHubClient(t, config)

		opts := githubpkg.CreatePROptions{
			Title: "[Backport 2025.4] Fix bug",
			Body:  "This is a test PR",
			Head:  "bot:backport/100/to-2025.4",
			Base:  "next-2025.4",
		}

		pr, err := client.CreatePullRequest(context.Background(), opts)
		require.NoError(t, err)
		require.Equal(t, 1, pr.Number)
		require.Equal(t, opts.Title, pr.Title)
		require.Equal(t, opts.Body, pr.Body)
		require.Equal(t, "backport/100/to-2025.4", pr.Head)
		require.Equal(t, opts.Base, pr.Base)
		require.False(t, pr.Draft)
		require.NotEmpty(t, pr.HTMLURL)
	})

	t.Run("creates a draft pull request", func(t *testing.T) {
		config := testhelpers.NewMockGitHubServerConfig()
		client := testhelpers.NewMockGitHubClient(t, config)

		pr, err := client.CreatePullRequest(context.Background(), githubpkg.CreatePROptions{
			Title: "Draft PR",
			Head:  "bot:feature-branch",
			Base:  "next",
			Draft: true,
		})
		require.NoError(t, err)
		require.True(t, pr.Draft)
	})

	t.Run("duplicate head reports a remote API error", func(t *testing.T) {
		config := testhelpers.NewMockGitHubServerConfig()
		client := testhelpers.NewMockGitHubClient(t, config)
		opts := githubpkg.CreatePROptions{Title: "PR", Head: "bot:b", Base: "next"}

		_, err := client.CreatePullRequest(context.Background(), opts)
		require.NoError(t, err)

		_, err = client.CreatePullRequest(context.Background(), opts)
		require.Error(t, err)
		require.True(t, errors.Is(err, bperrors.ErrRemoteAPI))

		var apiErr *bperrors.RemoteAPIError
		require.True(t, errors.As(err, &apiErr))
		require.Equal(t, http.StatusUnprocessableEntity, apiErr.Status)
	})
}

func TestUpdatePullRequest(t *testing.T) {
	t.Run("updates PR body only", func(t *testing.T) {
		config := testhelpers.NewMockGitHubServerConfig()
		config.AddPullRequest(testhelpers.DefaultPRData())
		client := testhelpers.NewMockGitHubClient(t, config)

		newBody := "Updated Body"
		err := client.UpdatePullRequest(context.Background(), 123, githubpkg.UpdatePROptions{Body: &newBody})
		require.NoError(t, err)

		pr, err := client.GetPullRequest(context.Background(), 123)
		require.NoError(t, err)
		require.Equal(t, newBody, pr.Body)
		require.Equal(t, "Test Pull Request", pr.Title)
	})
}

func TestGetPullRequest(t *testing.T) {
	t.Run("converts merged PR fields", func(t *testing.T) {
		config := testhelpers.NewMockGitHubServerConfig()
		data := testhelpers.MergedPRData(100, "abc123", "backport/2025.4", "promoted-to-master")
		data.Milestone = "2025.5.0"
		config.AddPullRequest(data)
		client := testhelpers.NewMockGitHubClient(t, config)

		pr, err := client.GetPullRequest(context.Background(), 100)
		require.NoError(t, err)
		require.True(t, pr.Merged)
		require.Equal(t, "abc123", pr.MergeCommitSHA)
		require.Equal(t, "author", pr.Author)
		require.Equal(t, "2025.5.0", pr.Milestone)
		require.Equal(t, []string{"backport/2025.4", "promoted-to-master"}, pr.Labels)
		require.True(t, pr.HasLabel("backport/2025.4"))
	})

	t.Run("missing PR is not found", func(t *testing.T) {
		client := testhelpers.NewMockGitHubClient(t, testhelpers.NewMockGitHubServerConfig())

		_, err := client.GetPullRequest(context.Background(), 42)
		require.Error(t, err)
		require.True(t, errors.Is(err, bperrors.ErrNotFound))
	})

	t.Run("injected server error is a remote API failure", func(t *testing.T) {
		config := testhelpers.NewMockGitHubServerConfig()
		config.AddPullRequest(testhelpers.DefaultPRData())
		config.ErrorResponses["GET /repos/owner/repo/pulls/123"] = http.StatusForbidden
		client := testhelpers.NewMockGitHubClient(t, config)

		_, err := client.GetPullRequest(context.Background(), 123)
		require.True(t, errors.Is(err, bperrors.ErrRemoteAPI))
		require.False(t, errors.Is(err, bperrors.ErrNotFound))
	})
}

func TestListPullRequestsByHead(t *testing.T) {
	t.Run("filters by head and state", func(t *testing.T) {
		config := testhelpers.NewMockGitHubServerConfig()
		open := testhelpers.DefaultPRData()
		open.Number = 5
		open.Head = "bot:backport/100/to-2025.4"
		config.AddPullRequest(open)

		closed := testhelpers.ClosedPRData(6)
		closed.Head = "bot:backport/100/to-2025.3"
		config.AddPullRequest(closed)
		client := testhelpers.NewMockGitHubClient(t, config)

		prs, err := client.ListPullRequestsByHead(context.Background(), "bot:backport/100/to-2025.4", "open")
		require.NoError(t, err)
		require.Len(t, prs, 1)
		require.Equal(t, 5, prs[0].Number)

		prs, err = client.ListPullRequestsByHead(context.Background(), "bot:backport/100/to-2025.3", "open")
		require.NoError(t, err)
		require.Empty(t, prs)

		prs, err = client.ListPullRequestsByHead(context.Background(), "bot:backport/100/to-2025.3", "all")
		require.NoError(t, err)
		require.Len(t, prs, 1)
	})
}

func TestLabels(t *testing.T) {
	t.Run("adds and removes labels with slashes", func(t *testing.T) {
		config := testhelpers.NewMockGitHubServerConfig()
		config.AddPullRequest(testhelpers.MergedPRData(100, "abc", "backport/2025.4"))
		client := testhelpers.NewMockGitHubClient(t, config)
		ctx := context.Background()

		require.NoError(t, client.AddLabels(ctx, 100, "backport/2025.4-done"))
		require.NoError(t, client.RemoveLabel(ctx, 100, "backport/2025.4"))
		require.Equal(t, []string{"backport/2025.4-done"}, config.LabelsOf(100))
	})

	t.Run("removing an absent label is not found", func(t *testing.T) {
		config := testhelpers.NewMockGitHubServerConfig()
		config.AddPullRequest(testhelpers.DefaultPRData())
		client := testhelpers.NewMockGitHubClient(t, config)

		err := client.RemoveLabel(context.Background(), 123, "backport/2025.4")
		require.True(t, errors.Is(err, bperrors.ErrNotFound))
	})
}

func TestCommentsAndAssignees(t *testing.T) {
	config := testhelpers.NewMockGitHubServerConfig()
	config.AddPullRequest(testhelpers.DefaultPRData())
	client := testhelpers.NewMockGitHubClient(t, config)
	ctx := context.Background()

	require.NoError(t, client.CreateComment(ctx, 123, "@author please resolve conflicts"))
	require.NoError(t, client.AddAssignees(ctx, 123, "author"))
	require.Equal(t, []string{"@author please resolve conflicts"}, config.Comments[123])
	require.Equal(t, []string{"author"}, config.Assignees[123])
}

func TestMilestones(t *testing.T) {
	config := testhelpers.NewMockGitHubServerConfig()
	config.AddPullRequest(testhelpers.DefaultPRData())
	client := testhelpers.NewMockGitHubClient(t, config)
	ctx := context.Background()

	m, err := client.CreateMilestone(ctx, "2025.4.3")
	require.NoError(t, err)
	require.Equal(t, "2025.4.3", m.Title)

	milestones, err := client.ListMilestones(ctx)
	require.NoError(t, err)
	require.Len(t, milestones, 1)

	require.NoError(t, client.SetMilestone(ctx, 123, m.Number))
	pr, err := client.GetPullRequest(ctx, 123)
	require.NoError(t, err)
	require.Equal(t, "2025.4.3", pr.Milestone)
}

func TestCommits(t *testing.T) {
	config := testhelpers.NewMockGitHubServerConfig()
	config.AddCommit("m1", "Merge pull request #100\n\nFix bug", "p1", "p2")
	config.AddCommit("c1", "Fix bug\n\ndetails", "p1")
	config.BranchCommits["branch-2025.4"] = []string{"c1", "m1"}
	config.Comparisons["start...end"] = []string{"c1"}
	config.CommitPRs["c1"] = []int{100}
	config.AddPullRequest(testhelpers.MergedPRData(100, "m1"))
	config.IssueEvents[100] = []*gh.IssueEvent{
		{Event: gh.String("labeled")},
		{Event: gh.String("closed"), CommitID: gh.String("c1")},
	}
	client := testhelpers.NewMockGitHubClient(t, config)
	ctx := context.Background()

	t.Run("get commit keeps parents", func(t *testing.T) {
		commit, err := client.GetCommit(ctx, "m1")
		require.NoError(t, err)
		require.Equal(t, []string{"p1", "p2"}, commit.Parents)
		require.Equal(t, "Merge pull request #100", commit.Subject())
	})

	t.Run("branch history honours the limit", func(t *testing.T) {
		commits, err := client.ListBranchCommits(ctx, "branch-2025.4", 1)
		require.NoError(t, err)
		require.Len(t, commits, 1)
		require.Equal(t, "c1", commits[0].SHA)
	})

	t.Run("compare", func(t *testing.T) {
		commits, err := client.CompareCommits(ctx, "start", "end")
		require.NoError(t, err)
		require.Len(t, commits, 1)
	})

	t.Run("pull requests of a commit", func(t *testing.T) {
		prs, err := client.ListPullRequestsWithCommit(ctx, "c1")
		require.NoError(t, err)
		require.Len(t, prs, 1)
		require.Equal(t, 100, prs[0].Number)

		commits, err := client.ListPullRequestCommits(ctx, 100)
		require.NoError(t, err)
		require.Len(t, commits, 1)
	})

	t.Run("closed events", func(t *testing.T) {
		shas, err := client.ListClosedEventCommits(ctx, 100)
		require.NoError(t, err)
		require.Equal(t, []string{"c1"}, shas)
	})
}

func TestTagsContentsAndUsers(t *testing.T) {
	config := testhelpers.NewMockGitHubServerConfig()
	config.Tags["acme/product"] = []string{"v2025.4.1", "v2025.4.0"}
	config.Files["acme/product/VERSION.txt@master"] = "VERSION=2025.5.0-dev\n"
	config.Users["author"] = &gh.User{Login: gh.String("author"), Email: gh.String("author@example.com")}
	client := testhelpers.NewMockGitHubClient(t, config)
	ctx := context.Background()

	tags, err := client.ListTags(ctx, "acme", "product")
	require.NoError(t, err)
	require.Equal(t, []string{"v2025.4.1", "v2025.4.0"}, tags)

	content, err := client.GetFileContent(ctx, "acme", "product", "VERSION.txt", "master")
	require.NoError(t, err)
	require.Equal(t, "VERSION=2025.5.0-dev\n", content)

	user, err := client.GetUser(ctx, "author")
	require.NoError(t, err)
	require.Equal(t, "author@example.com", user.Email)

	_, err = client.GetUser(ctx, "ghost")
	require.True(t, errors.Is(err, bperrors.ErrNotFound))
}

func TestSplitFullName(t *testing.T) {
	owner, repo, err := githubpkg.SplitFullName("acme/product")
	require.NoError(t, err)
	require.Equal(t, "acme", owner)
	require.Equal(t, "product", repo)

	for _, bad := range []string{"", "acme", "/product", "acme/", "a/b/c"} {
		_, _, err := githubpkg.SplitFullName(bad)
		require.Error(t, err, bad)
	}
}

func TestNewRealClientRequiresToken(t *testing.T) {
	_, err := githubpkg.NewRealClient(context.Background(), "github.com", "", "acme/product")
	require.True(t, errors.Is(err, bperrors.ErrMissingCredentials))
}
