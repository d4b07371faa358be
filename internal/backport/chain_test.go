package backport_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"backport.dev/backport/internal/backport"
	bperrors "backport.dev/backport/internal/errors"
	"backport.dev/backport/internal/prtext"
	"backport.dev/backport/testhelpers"
)

func TestChain(t *testing.T) {
	ctx := context.Background()

	t.Run("merged hop completes its version and opens the next", func(t *testing.T) {
		s := newScenario(t)
		s.addOriginal("Fix a crash\n\nFixes: PROJ-1", "backport/2025.4", "backport/2025.3-pending")
		s.addTracking(101, 100, "2025.4", "m1", "backport/2025.3")

		results, err := s.orch.Chain(ctx, s.pr(t, 101))
		require.NoError(t, err)
		require.Len(t, results, 1)
		require.Equal(t, backport.StatusCreated, results[0].Status)

		testhelpers.ExpectLabels(t, s.config.LabelsOf(100), "backport/2025.4-done", "backport/2025.3-pending")
		require.Empty(t, s.config.LabelsOf(101))

		tracking := s.pr(t, results[0].PR.Number)
		require.Equal(t, "[Backport 2025.3] Fix crash on startup", tracking.Title)
		require.Equal(t, "branch-2025.3", tracking.Base)
		require.Equal(t, "backport/100/to-2025.3", tracking.Head)
		require.Contains(t, tracking.Body, "Fixes: PROJ-1000")
		require.Contains(t, tracking.Body, "- (cherry picked from commit m1)")
		require.Contains(t, tracking.Body, "This PR is a backport of PR owner/repo#100")
		require.Empty(t, tracking.Labels)
		require.Equal(t, []string{"alice"}, s.config.Assignees[tracking.Number])

		require.Len(t, s.picker.requests, 1)
		require.Equal(t, []string{"m1"}, s.picker.requests[0].Commits)
		require.Equal(t, "branch-2025.3", s.picker.requests[0].BaseBranch)
	})

	t.Run("later versions move to pending on the merged PR", func(t *testing.T) {
		s := newScenario(t)
		s.addOriginal("Fixes: PROJ-1", "backport/2025.4", "backport/2025.3-pending", "backport/2025.2-pending")
		s.addTracking(101, 100, "2025.4", "m1", "backport/2025.2", "backport/2025.3")

		results, err := s.orch.Chain(ctx, s.pr(t, 101))
		require.NoError(t, err)
		require.Equal(t, "2025.3", results[0].Version.String())

		testhelpers.ExpectLabels(t, s.config.LabelsOf(101), "backport/2025.2-pending")
		testhelpers.ExpectLabels(t, s.pr(t, results[0].PR.Number).Labels, "backport/2025.2")
		testhelpers.ExpectLabels(t, s.config.LabelsOf(100),
			"backport/2025.4-done", "backport/2025.3-pending", "backport/2025.2-pending")
	})

	t.Run("last hop completes the chain", func(t *testing.T) {
		s := newScenario(t)
		s.addOriginal("Fixes: PROJ-1", "backport/2025.4-done", "backport/2025.3-pending")
		s.addTracking(102, 100, "2025.3", "m2")

		results, err := s.orch.Chain(ctx, s.pr(t, 102))
		require.NoError(t, err)
		require.Empty(t, results)
		require.Empty(t, s.picker.requests)
		testhelpers.ExpectLabels(t, s.config.LabelsOf(100), "backport/2025.4-done", "backport/2025.3-done")
	})

	t.Run("ignores pull requests that are not backports", func(t *testing.T) {
		s := newScenario(t)
		s.addOriginal("Fixes: PROJ-1", "backport/2025.4")

		results, err := s.orch.Chain(ctx, s.pr(t, 100))
		require.NoError(t, err)
		require.Empty(t, results)
		testhelpers.ExpectLabels(t, s.config.LabelsOf(100), "backport/2025.4")
	})

	t.Run("legacy back-reference", func(t *testing.T) {
		s := newScenario(t)
		s.addOriginal("Fixes: PROJ-1", "backport/2025.4")
		data := testhelpers.MergedPRData(101, "m1")
		data.Title = "[Backport 2025.4] Fix crash on startup"
		data.Body = "- (cherry picked from commit c1)\n\nParent PR: #100"
		s.config.AddPullRequest(data)

		_, err := s.orch.Chain(ctx, s.pr(t, 101))
		require.NoError(t, err)
		testhelpers.ExpectLabels(t, s.config.LabelsOf(100), "backport/2025.4-done")
	})
}

func TestTraceRoot(t *testing.T) {
	ctx := context.Background()

	t.Run("follows back-references to the original", func(t *testing.T) {
		s := newScenario(t)
		s.addOriginal("Fixes: PROJ-1")
		s.addTracking(101, 100, "2025.4", "m1")
		data := testhelpers.MergedPRData(102, "m2")
		data.Title = "[Backport 2025.3] Fix crash on startup"
		data.Body = prtext.FormatBackReference("owner/repo", 101)
		s.config.AddPullRequest(data)

		root, err := s.orch.TraceRoot(ctx, s.pr(t, 102))
		require.NoError(t, err)
		require.Equal(t, 100, root.Number)
		require.Equal(t, "alice", root.Author)
	})

	t.Run("cycle stops at the depth bound", func(t *testing.T) {
		s := newScenario(t)
		for n := 1; n <= 15; n++ {
			data := testhelpers.MergedPRData(n, fmt.Sprintf("m%d", n))
			data.Title = "[Backport 2025.4] Fix"
			data.Body = prtext.FormatBackReference("owner/repo", n%15+1)
			s.config.AddPullRequest(data)
		}

		root, err := s.orch.TraceRoot(ctx, s.pr(t, 1))
		require.ErrorIs(t, err, bperrors.ErrChainTraceExhausted)
		require.Equal(t, 11, root.Number)
	})

	t.Run("configurable bound", func(t *testing.T) {
		s := newScenario(t, func(o *backport.Options) { o.MaxChainDepth = 2 })
		for n := 1; n <= 5; n++ {
			data := testhelpers.MergedPRData(n, fmt.Sprintf("m%d", n))
			data.Body = prtext.FormatBackReference("owner/repo", n+1)
			s.config.AddPullRequest(data)
		}

		root, err := s.orch.TraceRoot(ctx, s.pr(t, 1))
		require.ErrorIs(t, err, bperrors.ErrChainTraceExhausted)
		require.Equal(t, 3, root.Number)
	})

	t.Run("missing parent is reported", func(t *testing.T) {
		s := newScenario(t)
		data := testhelpers.MergedPRData(5, "m5")
		data.Body = prtext.FormatBackReference("owner/repo", 404)
		s.config.AddPullRequest(data)

		root, err := s.orch.TraceRoot(ctx, s.pr(t, 5))
		require.ErrorIs(t, err, bperrors.ErrRemoteAPI)
		require.Equal(t, 5, root.Number)
	})
}

func TestPromote(t *testing.T) {
	ctx := context.Background()

	t.Run("promoted hop continues the chain", func(t *testing.T) {
		s := newScenario(t)
		s.addOriginal("Fixes: PROJ-1", "backport/2025.4", "backport/2025.3-pending")
		s.addTracking(101, 100, "2025.4", "m1", "backport/2025.3")
		s.config.Comparisons["a1...b1"] = []string{"m1"}
		s.config.CommitPRs["m1"] = []int{101}

		require.NoError(t, s.orch.Promote(ctx, "a1..b1", "branch-2025.4"))

		testhelpers.ExpectLabels(t, s.config.LabelsOf(101), "promoted-to-branch-2025.4")
		testhelpers.ExpectLabels(t, s.config.LabelsOf(100), "backport/2025.4-done", "backport/2025.3-pending")
		require.Equal(t, []string{"backport/100/to-2025.3"}, s.picker.branches())
	})

	t.Run("gating branches are ignored", func(t *testing.T) {
		s := newScenario(t)
		s.addTracking(101, 100, "2025.4", "m1", "backport/2025.3")
		s.config.Comparisons["a1...b1"] = []string{"m1"}
		s.config.CommitPRs["m1"] = []int{101}

		require.NoError(t, s.orch.Promote(ctx, "a1..b1", "next-2025.4"))
		require.NoError(t, s.orch.Promote(ctx, "a1..b1", "next"))
		testhelpers.ExpectLabels(t, s.config.LabelsOf(101), "backport/2025.3")
		require.Empty(t, s.picker.requests)
	})

	t.Run("original pull requests in the range are skipped", func(t *testing.T) {
		s := newScenario(t)
		s.addOriginal("Fixes: PROJ-1", "backport/2025.4")
		s.config.Comparisons["a1...b1"] = []string{"c1"}
		s.config.CommitPRs["c1"] = []int{100}

		require.NoError(t, s.orch.Promote(ctx, "a1..b1", "branch-2025.4"))
		testhelpers.ExpectLabels(t, s.config.LabelsOf(100), "backport/2025.4")
	})

	t.Run("malformed range", func(t *testing.T) {
		s := newScenario(t)
		require.Error(t, s.orch.Promote(ctx, "a1", "branch-2025.4"))
	})
}
