package milestone_test

import (
	"context"
	"testing"

	gh "github.com/google/go-github/v62/github"
	"github.com/stretchr/testify/require"

	"backport.dev/backport/internal/github"
	"backport.dev/backport/internal/milestone"
	"backport.dev/backport/internal/output"
	"backport.dev/backport/internal/version"
	"backport.dev/backport/testhelpers"
)

func TestFromTags(t *testing.T) {
	v := version.MustParse("2025.1")

	t.Run("next patch after the latest release", func(t *testing.T) {
		tags := []string{
			"scylla-2025.1.0",
			"scylla-2025.1.3-candidate-20250301",
			"scylla-2025.1.4-rc1",
			"scylla-2025.1.2",
			"scylla-2025.10.7",
			"scylla-2024.2.9",
		}
		title, ok := milestone.FromTags(tags, "scylla-", v)
		require.True(t, ok)
		require.Equal(t, "2025.1.4", title)
	})

	t.Run("prerelease only proposes the first release", func(t *testing.T) {
		title, ok := milestone.FromTags([]string{"scylla-2025.1.0-rc1", "scylla-2025.1.0-rc2-candidate-x.y"}, "scylla-", v)
		require.True(t, ok)
		require.Equal(t, "2025.1.0", title)
	})

	t.Run("no tags is unresolved", func(t *testing.T) {
		_, ok := milestone.FromTags([]string{"scylla-2025.2.0"}, "scylla-", v)
		require.False(t, ok)
	})
}

func TestParseTag(t *testing.T) {
	tag, ok := milestone.ParseTag("scylla-2025.1.3-rc2-candidate-20250301.abc_1", "scylla-")
	require.True(t, ok)
	require.Equal(t, milestone.Tag{Major: 2025, Minor: 1, Patch: 3, RC: 2, Candidate: "20250301.abc_1"}, tag)
	require.True(t, tag.Prerelease())
	require.Equal(t, "2025.1", tag.Series())

	for _, name := range []string{
		"2025.1.3",
		"scylla-2025.1",
		"scylla-2025.1.x",
		"scylla-2025.1.3-rc",
		"scylla-2025.1.3-candidate-",
		"scylla-2025.1.3-candidate-a b",
		"scylla-2025.1.3.4",
	} {
		_, ok := milestone.ParseTag(name, "scylla-")
		require.False(t, ok, name)
	}
}

func TestDevVersion(t *testing.T) {
	title, ok := milestone.DevVersion("#!/bin/sh\nPRODUCT=scylla\nVERSION=2026.2.0-dev\n")
	require.True(t, ok)
	require.Equal(t, "2026.2.0", title)

	_, ok = milestone.DevVersion("VERSION=2026.2.0\n")
	require.False(t, ok)
}

func newResolver(t *testing.T, config *testhelpers.MockGitHubServerConfig) *milestone.Resolver {
	client := testhelpers.NewMockGitHubClient(t, config)
	return milestone.NewResolver(client, milestone.Options{
		TagRepo:        "scylladb/scylladb",
		TagPrefix:      "scylla-",
		VersionFile:    "SCYLLA-VERSION-GEN",
		MainlineBranch: "master",
	}, output.NewDiscardSplog())
}

func TestResolver(t *testing.T) {
	ctx := context.Background()

	t.Run("backport milestone from tag repository", func(t *testing.T) {
		config := testhelpers.NewMockGitHubServerConfig()
		config.Tags["scylladb/scylladb"] = []string{"scylla-2025.3.1", "scylla-2025.4.0-rc3"}
		resolver := newResolver(t, config)

		title, ok := resolver.ResolveBackport(ctx, version.MustParse("2025.3"))
		require.True(t, ok)
		require.Equal(t, "2025.3.2", title)

		title, ok = resolver.ResolveBackport(ctx, version.MustParse("2025.4"))
		require.True(t, ok)
		require.Equal(t, "2025.4.0", title)
	})

	t.Run("manager versions are unresolved", func(t *testing.T) {
		resolver := newResolver(t, testhelpers.NewMockGitHubServerConfig())
		_, ok := resolver.ResolveBackport(ctx, version.MustParse("manager-3.4"))
		require.False(t, ok)
	})

	t.Run("tag listing failure is unresolved", func(t *testing.T) {
		config := testhelpers.NewMockGitHubServerConfig()
		config.ErrorResponses["GET /repos/scylladb/scylladb/tags"] = 500
		resolver := newResolver(t, config)
		_, ok := resolver.ResolveBackport(ctx, version.MustParse("2025.3"))
		require.False(t, ok)
	})

	t.Run("mainline milestone from version file", func(t *testing.T) {
		config := testhelpers.NewMockGitHubServerConfig()
		config.Files["scylladb/scylladb/SCYLLA-VERSION-GEN@master"] = "VERSION=2026.2.0-dev\n"
		resolver := newResolver(t, config)

		title, ok := resolver.ResolveMainline(ctx)
		require.True(t, ok)
		require.Equal(t, "2026.2.0", title)
	})

	t.Run("missing version file is unresolved", func(t *testing.T) {
		resolver := newResolver(t, testhelpers.NewMockGitHubServerConfig())
		_, ok := resolver.ResolveMainline(ctx)
		require.False(t, ok)
	})
}

func TestAssigner(t *testing.T) {
	ctx := context.Background()

	t.Run("reuses an existing milestone", func(t *testing.T) {
		config := testhelpers.NewMockGitHubServerConfig()
		config.Milestones = []*gh.Milestone{{Number: gh.Int(7), Title: gh.String("2025.3.2")}}
		config.AddPullRequest(testhelpers.DefaultPRData())
		client := testhelpers.NewMockGitHubClient(t, config)
		pr, err := client.GetPullRequest(ctx, 123)
		require.NoError(t, err)

		assigner := milestone.NewAssigner(client, output.NewDiscardSplog())
		require.NoError(t, assigner.Assign(ctx, pr, "2025.3.2"))
		require.Len(t, config.Milestones, 1)

		pr, err = client.GetPullRequest(ctx, 123)
		require.NoError(t, err)
		require.Equal(t, "2025.3.2", pr.Milestone)
	})

	t.Run("creates a missing milestone once", func(t *testing.T) {
		config := testhelpers.NewMockGitHubServerConfig()
		config.AddPullRequest(testhelpers.DefaultPRData())
		second := testhelpers.DefaultPRData()
		second.Number = 124
		second.Head = "owner:other"
		config.AddPullRequest(second)
		client := testhelpers.NewMockGitHubClient(t, config)

		assigner := milestone.NewAssigner(client, output.NewDiscardSplog())
		for _, n := range []int{123, 124} {
			pr, err := client.GetPullRequest(ctx, n)
			require.NoError(t, err)
			require.NoError(t, assigner.Assign(ctx, pr, "2025.4.0"))
		}
		require.Len(t, config.Milestones, 1)
	})

	t.Run("skips when already set", func(t *testing.T) {
		config := testhelpers.NewMockGitHubServerConfig()
		config.ErrorResponses["GET /repos/owner/repo/milestones"] = 500
		client := testhelpers.NewMockGitHubClient(t, config)
		assigner := milestone.NewAssigner(client, output.NewDiscardSplog())

		pr := &github.PullRequest{Number: 1, Milestone: "2025.4.0"}
		require.NoError(t, assigner.Assign(ctx, pr, "2025.4.0"))
		require.NoError(t, assigner.Assign(ctx, pr, ""))
	})
}
