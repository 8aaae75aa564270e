package testhelpers_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"binnacle.dev/binnacle/testhelpers"
)

// TestExampleUsage demonstrates how to use the testhelpers package.
func TestExampleUsage(t *testing.T) {
	scene := testhelpers.NewScene(t, testhelpers.BasicSceneSetup)

	branches, err := scene.Repo.RunGitCommandAndGetOutput("branch", "--list")
	require.NoError(t, err)
	require.Contains(t, branches, "main")

	testhelpers.ExpectCleanWorktree(t, scene.Repo)
}

// TestGitRepoBasicOperations tests basic Git repository operations.
func TestGitRepoBasicOperations(t *testing.T) {
	scene := testhelpers.NewScene(t, nil)

	err := scene.Repo.CreateChangeAndCommit("test content", "test")
	require.NoError(t, err)

	branch, err := scene.Repo.CurrentBranchName()
	require.NoError(t, err)
	require.Equal(t, "main", branch)

	count, err := scene.Repo.CountCommits("main")
	require.NoError(t, err)
	require.Equal(t, 1, count)

	head, err := scene.Repo.GetRevision("HEAD")
	require.NoError(t, err)
	testhelpers.ExpectHead(t, scene.Repo, "main", head)
	testhelpers.ExpectNoWorkingTreeFiles(t, scene.Repo, "tasks.jsonl")
}
