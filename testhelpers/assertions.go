// Package testhelpers provides testing utilities for binnacle storage,
// including a scene system, Git repository helpers, and custom assertions.
package testhelpers

import (
	"os"
	"path/filepath"
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

// ExpectCleanWorktree asserts that 'git status --porcelain' reports nothing.
func ExpectCleanWorktree(t *testing.T, repo *GitRepo) {
	t.Helper()

	status, err := repo.StatusPorcelain()
	require.NoError(t, err, "Failed to get status")
	require.Empty(t, status, "Working tree is not clean")
}

// ExpectNoWorkingTreeFiles asserts that none of the named files exist in the working tree.
func ExpectNoWorkingTreeFiles(t *testing.T, repo *GitRepo, names ...string) {
	t.Helper()

	for _, name := range names {
		_, err := os.Stat(filepath.Join(repo.Dir, name))
		require.True(t, os.IsNotExist(err), "%s should not exist in the working tree", name)
	}
}

// ExpectHead asserts the checked-out branch and its tip are unchanged.
func ExpectHead(t *testing.T, repo *GitRepo, branch, sha string) {
	t.Helper()

	current, err := repo.CurrentBranchName()
	require.NoError(t, err)
	require.Equal(t, branch, current, "Checked-out branch changed")

	head, err := repo.GetRevision("HEAD")
	require.NoError(t, err)
	require.Equal(t, sha, head, "HEAD moved")
}
