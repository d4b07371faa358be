// Package testhelpers provides testing utilities for the backport engine,
// including in-memory fakes, mock API servers, Git repository helpers, and
// custom assertions.
package testhelpers

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

// Must is a generic helper function that panics if err is not nil,
// otherwise returns the value. This is useful for test setup code
// where errors are not expected and should halt execution immediately.
func Must[T any](val T, err error) T {
	if err != nil {
		panic(err)
	}
	return val
}

// ExpectRemoteBranches asserts that a bare repository has exactly the expected branches.
func ExpectRemoteBranches(t *testing.T, bareDir string, expected []string) {
	t.Helper()

	branches, err := ListRemoteBranches(bareDir)
	require.NoError(t, err, "Failed to list branches")

	sort.Strings(branches)
	sorted := append([]string{}, expected...)
	sort.Strings(sorted)

	require.Equal(t, sorted, branches, "Branches do not match")
}

// ExpectCommits asserts the newest commit subjects reachable from rev.
func ExpectCommits(t *testing.T, repo *GitRepo, rev string, expected []string) {
	t.Helper()

	messages, err := repo.ListCommitMessages(rev)
	require.NoError(t, err, "Failed to list commits")
	require.GreaterOrEqual(t, len(messages), len(expected), "Not enough commits")
	require.Equal(t, expected, messages[:len(expected)], "Commits do not match")
}

// ExpectLabels asserts the labels of a PR irrespective of order.
func ExpectLabels(t *testing.T, actual []string, expected ...string) {
	t.Helper()
	require.ElementsMatch(t, expected, actual, "Labels do not match")
}
