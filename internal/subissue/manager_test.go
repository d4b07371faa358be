package subissue_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	bperrors "backport.dev/backport/internal/errors"
	"backport.dev/backport/internal/output"
	"backport.dev/backport/internal/subissue"
	"backport.dev/backport/internal/version"
	"backport.dev/backport/testhelpers"
)

func newManager(tracker *testhelpers.FakeTracker) *subissue.Manager {
	return subissue.NewManager(tracker, subissue.Options{
		OrgDomain: "example.com",
		RunURL:    "https://github.com/acme/product/actions/runs/42",
	}, output.NewDiscardSplog())
}

func TestCreateOrFind(t *testing.T) {
	ctx := context.Background()
	v := version.MustParse("2025.4")

	t.Run("creates a sub-task under the parent", func(t *testing.T) {
		tracker := testhelpers.NewFakeTracker()
		tracker.AddIssue("PROJ-1", "Crash")
		manager := newManager(tracker)

		key, err := manager.CreateOrFind(ctx, "PROJ-1", v, "Fix crash", "acc-1")
		require.NoError(t, err)
		require.Equal(t, "PROJ-1", tracker.Issues[key].ParentKey())
		require.Equal(t, "[Backport 2025.4] - Fix crash", tracker.Issues[key].Fields.Summary)
		require.Equal(t, "Backporting of PROJ-1 to version 2025.4", tracker.Descriptions[key].PlainText())
		require.Equal(t, "acc-1", tracker.Assignees[key])
	})

	t.Run("files under the grandparent when the parent is a sub-task", func(t *testing.T) {
		tracker := testhelpers.NewFakeTracker()
		tracker.AddIssue("PROJ-1", "Epic work")
		tracker.AddSubtask("PROJ-2", "PROJ-1", "[Backport 2025.4] - Fix crash")
		manager := newManager(tracker)

		key, err := manager.CreateOrFind(ctx, "PROJ-2", version.MustParse("2025.3"), "Fix crash", "")
		require.NoError(t, err)
		require.Equal(t, "PROJ-1", tracker.Issues[key].ParentKey())
		require.NotEqual(t, "PROJ-2", tracker.Issues[key].ParentKey())
		require.Equal(t, "Backporting of PROJ-2 (sub-task of PROJ-1) to version 2025.3", tracker.Descriptions[key].PlainText())
	})

	t.Run("finds an existing sub-task and assigns it", func(t *testing.T) {
		tracker := testhelpers.NewFakeTracker()
		tracker.AddIssue("PROJ-1", "Crash")
		tracker.AddSubtask("PROJ-5", "PROJ-1", "[Backport 2025.4] - Fix crash")
		manager := newManager(tracker)

		key, err := manager.CreateOrFind(ctx, "PROJ-1", v, "Fix crash", "acc-1")
		require.NoError(t, err)
		require.Equal(t, "PROJ-5", key)
		require.Empty(t, tracker.Created)
		require.Equal(t, "acc-1", tracker.Assignees["PROJ-5"])
	})

	t.Run("does not match a longer version", func(t *testing.T) {
		tracker := testhelpers.NewFakeTracker()
		tracker.AddIssue("PROJ-1", "Crash")
		tracker.AddSubtask("PROJ-5", "PROJ-1", "[Backport 2025.40] - Fix crash")
		manager := newManager(tracker)

		key, err := manager.CreateOrFind(ctx, "PROJ-1", v, "Fix crash", "")
		require.NoError(t, err)
		require.NotEqual(t, "PROJ-5", key)
		require.Len(t, tracker.Created, 1)
	})

	t.Run("is idempotent across runs", func(t *testing.T) {
		tracker := testhelpers.NewFakeTracker()
		tracker.AddIssue("PROJ-1", "Crash")
		manager := newManager(tracker)

		first, err := manager.CreateOrFind(ctx, "PROJ-1", v, "Fix crash", "")
		require.NoError(t, err)
		second, err := manager.CreateOrFind(ctx, "PROJ-1", v, "Fix crash", "")
		require.NoError(t, err)
		require.Equal(t, first, second)
		require.Len(t, tracker.Created, 1)
	})

	t.Run("tracker failures are sub-issue errors", func(t *testing.T) {
		tracker := testhelpers.NewFakeTracker()
		tracker.AddIssue("PROJ-1", "Crash")
		tracker.Errors["CreateSubtask"] = bperrors.NewRemoteAPIError("jira", "create issue", 403, errors.New("forbidden"))
		manager := newManager(tracker)

		_, err := manager.CreateOrFind(ctx, "PROJ-1", v, "Fix crash", "")
		require.ErrorIs(t, err, bperrors.ErrSubIssueCreation)
		require.ErrorIs(t, err, bperrors.ErrRemoteAPI)
	})

	t.Run("works against the REST client", func(t *testing.T) {
		tracker := testhelpers.NewFakeTracker()
		tracker.AddIssue("PROJ-1", "Epic")
		tracker.AddSubtask("PROJ-2", "PROJ-1", "Original work")
		server := testhelpers.NewMockJiraServer(t, tracker)
		manager := subissue.NewManager(testhelpers.NewMockJiraClient(t, server), subissue.Options{}, nil)

		key, err := manager.CreateOrFind(ctx, "PROJ-2", v, "Fix crash", "")
		require.NoError(t, err)
		require.Equal(t, "PROJ-1", tracker.Issues[key].ParentKey())
	})
}

func TestResolveAssignee(t *testing.T) {
	ctx := context.Background()

	t.Run("public email first", func(t *testing.T) {
		tracker := testhelpers.NewFakeTracker()
		tracker.Users["dev@personal.io"] = "acc-public"
		tracker.Users["dev@example.com"] = "acc-org"
		require.Equal(t, "acc-public", newManager(tracker).ResolveAssignee(ctx, "dev", "dev@personal.io"))
	})

	t.Run("falls back to the organization address", func(t *testing.T) {
		tracker := testhelpers.NewFakeTracker()
		tracker.Users["dev@example.com"] = "acc-org"
		require.Equal(t, "acc-org", newManager(tracker).ResolveAssignee(ctx, "dev", "dev@personal.io"))
		require.Equal(t, "acc-org", newManager(tracker).ResolveAssignee(ctx, "dev", ""))
	})

	t.Run("no match leaves unassigned", func(t *testing.T) {
		require.Empty(t, newManager(testhelpers.NewFakeTracker()).ResolveAssignee(ctx, "dev", ""))
	})
}

func TestMapVersion(t *testing.T) {
	ctx := context.Background()
	v := version.MustParse("2025.3")

	t.Run("maps every key", func(t *testing.T) {
		tracker := testhelpers.NewFakeTracker()
		tracker.AddIssue("PROJ-1", "One")
		tracker.AddIssue("OPS-2", "Two")
		mapping, failed := newManager(tracker).MapVersion(ctx, []string{"PROJ-1", "OPS-2"}, v, "Fix", "")
		require.False(t, failed)
		require.Equal(t, subissue.Mapping{"PROJ-1": "PROJ-1000", "OPS-2": "OPS-1001"}, mapping)
	})

	t.Run("failure falls back to the parent key and comments", func(t *testing.T) {
		tracker := testhelpers.NewFakeTracker()
		tracker.AddIssue("PROJ-1", "One")
		tracker.AddSubtask("PROJ-2", "PROJ-77", "orphaned sub-task")
		mapping, failed := newManager(tracker).MapVersion(ctx, []string{"PROJ-1", "PROJ-2"}, v, "Fix", "")
		require.True(t, failed)
		require.Equal(t, "PROJ-1000", mapping["PROJ-1"])
		require.Equal(t, "PROJ-2", mapping["PROJ-2"])
		require.Equal(t, []string{"Failed to create backport sub-issue for version 2025.3. View workflow run"},
			tracker.CommentText("PROJ-2"))
		require.Empty(t, tracker.CommentText("PROJ-1"))
	})

	t.Run("disabled tracker maps nothing", func(t *testing.T) {
		manager := subissue.NewManager(nil, subissue.Options{}, nil)
		mapping, failed := manager.MapVersion(ctx, []string{"PROJ-1"}, v, "Fix", "")
		require.False(t, failed)
		require.Empty(t, mapping)
		require.False(t, manager.Enabled())
	})
}

func TestReportFailure(t *testing.T) {
	tracker := testhelpers.NewFakeTracker()
	tracker.AddIssue("PROJ-1", "One")
	manager := newManager(tracker)

	require.NoError(t, manager.ReportFailure(context.Background(), "PROJ-1", version.MustParse("2025.3")))
	comments := tracker.Comments["PROJ-1"]
	require.Len(t, comments, 1)
	require.Equal(t, "Failed to create backport sub-issue for version 2025.3. View workflow run", comments[0].PlainText())
	link := comments[0].Content[0].Content[1]
	require.Equal(t, "https://github.com/acme/product/actions/runs/42", link.Marks[0].Attrs["href"])
}
