package backport_test

import (
	"context"
	"errors"
	"testing"
	"time"

	gh "github.com/google/go-github/v62/github"
	"github.com/stretchr/testify/require"

	"backport.dev/backport/internal/backport"
	"backport.dev/backport/internal/cherrypick"
	bperrors "backport.dev/backport/internal/errors"
	"backport.dev/backport/testhelpers"
)

func TestBackportChained(t *testing.T) {
	ctx := context.Background()

	t.Run("opens the highest version and defers the rest", func(t *testing.T) {
		s := newScenario(t)
		s.addOriginal("Fix a crash\n\nFixes: PROJ-1", "backport/2025.4", "backport/2025.3", "promoted-to-master")

		results, err := s.orch.Backport(ctx, backport.Request{
			PR:       s.pr(t, 100),
			Versions: versions("2025.3", "2025.4"),
			Commits:  []string{"c1"},
		})
		require.NoError(t, err)
		require.Len(t, results, 1)
		require.Equal(t, backport.StatusCreated, results[0].Status)
		require.Equal(t, "2025.4", results[0].Version.String())

		tracking := s.pr(t, results[0].PR.Number)
		require.Equal(t, "[Backport 2025.4] Fix crash on startup", tracking.Title)
		require.Equal(t, "branch-2025.4", tracking.Base)
		require.Equal(t, "backport/100/to-2025.4", tracking.Head)
		require.False(t, tracking.Draft)
		require.Contains(t, tracking.Body, "Fixes: PROJ-1000")
		require.Contains(t, tracking.Body, "- (cherry picked from commit c1)")
		require.Contains(t, tracking.Body, "This PR is a backport of PR owner/repo#100")
		testhelpers.ExpectLabels(t, tracking.Labels, "backport/2025.3")
		require.Equal(t, []string{"alice"}, s.config.Assignees[tracking.Number])
		require.Empty(t, s.config.Comments[tracking.Number])

		testhelpers.ExpectLabels(t, s.config.LabelsOf(100),
			"backport/2025.4", "backport/2025.3-pending", "promoted-to-master")

		require.Len(t, s.picker.requests, 1)
		require.Equal(t, cherrypick.Request{
			SourceURL:  "https://example.com/owner/repo.git",
			BaseBranch: "branch-2025.4",
			Commits:    []string{"c1"},
			Branch:     "backport/100/to-2025.4",
			PushURL:    "https://example.com/bot/repo.git",
		}, s.picker.requests[0])

		require.Equal(t, []string{"PROJ-1000"}, s.tracker.Created)
		require.Equal(t, "acc-alice", s.tracker.Assignees["PROJ-1000"])
	})

	t.Run("change already on the branch is marked done without a PR", func(t *testing.T) {
		s := newScenario(t)
		s.addOriginal("Fixes: PROJ-1", "backport/2025.4")
		s.config.AddCommit("x1", "Fix crash on startup\n\n(cherry picked from commit c1)")
		s.config.BranchCommits["branch-2025.4"] = []string{"x1"}

		results, err := s.orch.Backport(ctx, backport.Request{
			PR:       s.pr(t, 100),
			Versions: versions("2025.4"),
			Commits:  []string{"c1"},
		})
		require.NoError(t, err)
		require.Len(t, results, 1)
		require.Equal(t, backport.StatusAlreadyPresent, results[0].Status)
		require.Nil(t, results[0].PR)
		require.Empty(t, s.picker.requests)
		testhelpers.ExpectLabels(t, s.config.LabelsOf(100), "backport/2025.4-done")
	})

	t.Run("moves on to the next version when the highest is present", func(t *testing.T) {
		s := newScenario(t)
		s.addOriginal("Fixes: PROJ-1", "backport/2025.4", "backport/2025.3", "backport/2025.2")
		s.config.BranchCommits["branch-2025.4"] = []string{"c1"}

		results, err := s.orch.Backport(ctx, backport.Request{
			PR:       s.pr(t, 100),
			Versions: versions("2025.4", "2025.3", "2025.2"),
			Commits:  []string{"c1"},
		})
		require.NoError(t, err)
		require.Len(t, results, 2)
		require.Equal(t, backport.StatusAlreadyPresent, results[0].Status)
		require.Equal(t, backport.StatusCreated, results[1].Status)
		require.Equal(t, []string{"backport/100/to-2025.3"}, s.picker.branches())
		testhelpers.ExpectLabels(t, s.config.LabelsOf(100),
			"backport/2025.4-done", "backport/2025.3", "backport/2025.2-pending")
	})

	t.Run("all commits skipped by the picker counts as present", func(t *testing.T) {
		s := newScenario(t)
		s.addOriginal("Fixes: PROJ-1", "backport/2025.4")
		s.picker.skipAll = true

		results, err := s.orch.Backport(ctx, backport.Request{
			PR:       s.pr(t, 100),
			Versions: versions("2025.4"),
			Commits:  []string{"c1"},
		})
		require.NoError(t, err)
		require.Equal(t, backport.StatusAlreadyPresent, results[0].Status)
		testhelpers.ExpectLabels(t, s.config.LabelsOf(100), "backport/2025.4-done")
	})

	t.Run("reuses an existing tracking PR", func(t *testing.T) {
		s := newScenario(t)
		s.addOriginal("Fixes: PROJ-1", "backport/2025.4", "backport/2025.3")
		s.config.AddPullRequest(testhelpers.SamplePRData{
			Number: 150,
			Title:  "[Backport 2025.4] Fix crash on startup",
			Body:   "stale",
			Head:   "bot:backport/100/to-2025.4",
			Base:   "branch-2025.4",
			State:  "open",
		})

		results, err := s.orch.Backport(ctx, backport.Request{
			PR:       s.pr(t, 100),
			Versions: versions("2025.4", "2025.3"),
			Commits:  []string{"c1"},
		})
		require.NoError(t, err)
		require.Equal(t, backport.StatusExisting, results[0].Status)
		require.Equal(t, 150, results[0].PR.Number)
		require.Empty(t, s.picker.requests)
		require.Contains(t, s.pr(t, 150).Body, "This PR is a backport of PR owner/repo#100")
		testhelpers.ExpectLabels(t, s.config.LabelsOf(100), "backport/2025.4", "backport/2025.3-pending")
	})

	t.Run("git failure leaves labels untouched", func(t *testing.T) {
		s := newScenario(t)
		s.addOriginal("Fixes: PROJ-1", "backport/2025.4", "backport/2025.3")
		s.picker.err = bperrors.NewGitCommandError("git", []string{"push"}, "", "rejected", errors.New("exit status 1"))

		_, err := s.orch.Backport(ctx, backport.Request{
			PR:       s.pr(t, 100),
			Versions: versions("2025.4", "2025.3"),
			Commits:  []string{"c1"},
		})
		require.ErrorIs(t, err, bperrors.ErrGitOperation)
		testhelpers.ExpectLabels(t, s.config.LabelsOf(100), "backport/2025.4", "backport/2025.3")
		require.Len(t, s.config.PRs, 1)
	})
}

func TestBackportParallel(t *testing.T) {
	s := newScenario(t)
	s.addOriginal("Fixes: PROJ-1", "parallel_backport", "backport/2025.4", "backport/2025.3", "backport/2025.2")

	results, err := s.orch.Backport(context.Background(), backport.Request{
		PR:       s.pr(t, 100),
		Versions: versions("2025.2", "2025.4", "2025.3"),
		Commits:  []string{"c1"},
	})
	require.NoError(t, err)
	require.Len(t, results, 3)
	for _, r := range results {
		require.Equal(t, backport.StatusCreated, r.Status)
		tracking := s.pr(t, r.PR.Number)
		require.Equal(t, "branch-"+r.Version.String(), tracking.Base)
		require.Empty(t, tracking.Labels)
	}
	require.ElementsMatch(t, []string{
		"backport/100/to-2025.4",
		"backport/100/to-2025.3",
		"backport/100/to-2025.2",
	}, s.picker.branches())
	testhelpers.ExpectLabels(t, s.config.LabelsOf(100),
		"parallel_backport", "backport/2025.4", "backport/2025.3", "backport/2025.2")
	require.Len(t, s.tracker.Created, 3)
}

func TestBackportParallelWorkers(t *testing.T) {
	t.Run("one worker runs hops one at a time", func(t *testing.T) {
		s := newScenario(t, func(o *backport.Options) { o.Workers = 1 })
		s.picker.delay = 20 * time.Millisecond
		s.addOriginal("Fixes: PROJ-1", "parallel_backport", "backport/2025.4", "backport/2025.3", "backport/2025.2")

		results, err := s.orch.Backport(context.Background(), backport.Request{
			PR:       s.pr(t, 100),
			Versions: versions("2025.4", "2025.3", "2025.2"),
			Commits:  []string{"c1"},
		})
		require.NoError(t, err)
		require.Len(t, results, 3)
		require.Equal(t, int32(1), s.picker.peak.Load())
	})

	t.Run("hops overlap up to the worker bound", func(t *testing.T) {
		s := newScenario(t, func(o *backport.Options) { o.Workers = 2 })
		s.picker.delay = 50 * time.Millisecond
		s.addOriginal("Fixes: PROJ-1", "parallel_backport", "backport/2025.4", "backport/2025.3", "backport/2025.2")

		results, err := s.orch.Backport(context.Background(), backport.Request{
			PR:       s.pr(t, 100),
			Versions: versions("2025.4", "2025.3", "2025.2"),
			Commits:  []string{"c1"},
		})
		require.NoError(t, err)
		require.Len(t, results, 3)
		require.LessOrEqual(t, s.picker.peak.Load(), int32(2))
	})
}

func TestTrackingDecorations(t *testing.T) {
	ctx := context.Background()

	t.Run("conflicted cherry-pick opens a draft", func(t *testing.T) {
		s := newScenario(t)
		s.addOriginal("Fixes: PROJ-1", "backport/2025.4")
		s.picker.outcome = cherrypick.Conflicted

		results, err := s.orch.Backport(ctx, backport.Request{
			PR:       s.pr(t, 100),
			Versions: versions("2025.4"),
			Commits:  []string{"c1"},
		})
		require.NoError(t, err)
		tracking := s.pr(t, results[0].PR.Number)
		require.True(t, tracking.Draft)
		testhelpers.ExpectLabels(t, tracking.Labels, "conflicts")
		require.Equal(t, []string{
			"@alice - This PR has conflicts, therefore it was moved to `draft` \n" +
				"Please resolve them and mark this PR as ready for review",
		}, s.config.Comments[tracking.Number])
	})

	t.Run("sub-issue failure keeps the parent key and labels the PR", func(t *testing.T) {
		s := newScenario(t)
		s.addOriginal("Fixes: PROJ-1", "backport/2025.4")
		s.tracker.Errors["CreateSubtask"] = bperrors.NewRemoteAPIError("jira", "create issue", 500, errors.New("boom"))

		results, err := s.orch.Backport(ctx, backport.Request{
			PR:       s.pr(t, 100),
			Versions: versions("2025.4"),
			Commits:  []string{"c1"},
		})
		require.NoError(t, err)
		tracking := s.pr(t, results[0].PR.Number)
		require.Contains(t, tracking.Body, "Fixes: PROJ-1\n")
		testhelpers.ExpectLabels(t, tracking.Labels, "jira-sub-issue-creation-failed")
		require.Equal(t, []string{
			"Failed to create backport sub-issue for version 2025.4. View workflow run",
		}, s.tracker.CommentText("PROJ-1"))
	})

	t.Run("priority label and missing fixes warning", func(t *testing.T) {
		s := newScenario(t)
		s.addOriginal("No issue linked", "backport/2025.4", "P1")

		results, err := s.orch.Backport(ctx, backport.Request{
			PR:       s.pr(t, 100),
			Versions: versions("2025.4"),
			Commits:  []string{"c1"},
		})
		require.NoError(t, err)
		tracking := s.pr(t, results[0].PR.Number)
		testhelpers.ExpectLabels(t, tracking.Labels, "P1", "force_on_cloud")
		require.Equal(t, []string{"@alice This backport PR can't be merged without a valid Fixes reference"},
			s.config.Comments[tracking.Number])
	})

	t.Run("excluded repository gets no urgency label", func(t *testing.T) {
		s := newScenario(t, func(o *backport.Options) {
			o.ForceOnCloudExcludedRepos = []string{"Owner/Repo"}
		})
		s.addOriginal("Fixes: PROJ-1", "backport/2025.4", "P0", "P1")

		results, err := s.orch.Backport(ctx, backport.Request{
			PR:       s.pr(t, 100),
			Versions: versions("2025.4"),
			Commits:  []string{"c1"},
		})
		require.NoError(t, err)
		testhelpers.ExpectLabels(t, s.pr(t, results[0].PR.Number).Labels, "P0")
	})

	t.Run("backport milestone from release tags", func(t *testing.T) {
		s := newScenario(t)
		s.addOriginal("Fixes: PROJ-1", "backport/2025.4")
		s.config.Tags["owner/repo"] = []string{"v2025.4.0", "v2025.4.1", "v2025.4.2-rc1", "v2025.3.7"}

		results, err := s.orch.Backport(ctx, backport.Request{
			PR:       s.pr(t, 100),
			Versions: versions("2025.4"),
			Commits:  []string{"c1"},
		})
		require.NoError(t, err)
		require.Equal(t, "2025.4.2", s.pr(t, results[0].PR.Number).Milestone)
		require.Len(t, s.config.Milestones, 1)
	})

	t.Run("issue tracker disabled leaves keys as they are", func(t *testing.T) {
		s := newScenario(t)
		s.addOriginal("Fixes: PROJ-1", "backport/2025.4")
		o := backport.New(backport.Deps{GitHub: s.client, Picker: s.picker}, s.opts)

		results, err := o.Backport(ctx, backport.Request{
			PR:       s.pr(t, 100),
			Versions: versions("2025.4"),
			Commits:  []string{"c1"},
		})
		require.NoError(t, err)
		tracking := s.pr(t, results[0].PR.Number)
		require.Contains(t, tracking.Body, "Fixes: PROJ-1\n")
		require.Empty(t, tracking.Labels)
		require.Empty(t, s.tracker.Created)
	})

	t.Run("older bodies name the issue as the main Jira issue", func(t *testing.T) {
		s := newScenario(t)
		s.addOriginal("The main Jira issue is PROJ-1", "backport/2025.4")
		s.config.Users["alice"] = &gh.User{Login: gh.String("alice")}

		_, err := s.orch.Backport(ctx, backport.Request{
			PR:       s.pr(t, 100),
			Versions: versions("2025.4"),
			Commits:  []string{"c1"},
		})
		require.NoError(t, err)
		require.Equal(t, []string{"PROJ-1000"}, s.tracker.Created)
	})
}
