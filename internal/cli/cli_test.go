package cli_test

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"binnacle.dev/binnacle/internal/cli"
	"binnacle.dev/binnacle/internal/config"
	binnacleerrors "binnacle.dev/binnacle/internal/errors"
	"binnacle.dev/binnacle/internal/storage"
	"binnacle.dev/binnacle/testhelpers"
)

type result struct {
	stdout string
	stderr string
	err    error
}

// isolate keeps tests away from the user's log file and backend selection.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("BINNACLE_LOG_FILE", filepath.Join(t.TempDir(), "binnacle.log"))
	t.Setenv(config.BackendEnvVar, "")
	t.Setenv("CLICOLOR_FORCE", "")
	t.Setenv("DEBUG", "")
}

func run(t *testing.T, dir, stdin string, args ...string) result {
	t.Helper()
	var out, errOut bytes.Buffer
	root := cli.NewRootCmd("test", "none", "unknown")
	root.SetArgs(append([]string{"--repo", dir}, args...))
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetIn(strings.NewReader(stdin))
	err := root.Execute()
	return result{stdout: out.String(), stderr: errOut.String(), err: err}
}

func mustRun(t *testing.T, dir string, args ...string) string {
	t.Helper()
	res := run(t, dir, "", args...)
	require.NoError(t, res.err, "binnacle-store %v failed: %s", args, res.stderr)
	return res.stdout
}

func TestInitCommand(t *testing.T) {
	isolate(t)

	t.Run("defaults to git notes and records the choice", func(t *testing.T) {
		scene := testhelpers.NewScene(t, testhelpers.BasicSceneSetup)

		out := mustRun(t, scene.Dir, "init")
		require.Equal(t, "Initialized git-notes storage: git notes (refs/notes/binnacle) in "+scene.Dir+"\n", out)

		cfg, err := config.GetRepoConfig(scene.Dir)
		require.NoError(t, err)
		require.Equal(t, storage.TypeGitNotes, *cfg.Backend)
		testhelpers.ExpectCleanWorktree(t, scene.Repo)
	})

	t.Run("remembers an explicit backend", func(t *testing.T) {
		scene := testhelpers.NewScene(t, testhelpers.BasicSceneSetup)

		mustRun(t, scene.Dir, "--backend", "orphan", "init")
		require.Equal(t, "true\n", mustRun(t, scene.Dir, "exists"))

		info := mustRun(t, scene.Dir, "info")
		require.Contains(t, info, "orphan-branch (from config)")
		require.Contains(t, info, storage.DataRef)
	})

	t.Run("is idempotent", func(t *testing.T) {
		scene := testhelpers.NewScene(t, testhelpers.BasicSceneSetup)
		mustRun(t, scene.Dir, "init")
		mustRun(t, scene.Dir, "append", storage.TasksFile, `{"id":"t1"}`)
		mustRun(t, scene.Dir, "init")
		require.Equal(t, "{\"id\":\"t1\"}\n", mustRun(t, scene.Dir, "read", storage.TasksFile))
	})

	t.Run("rejects a plain directory", func(t *testing.T) {
		testhelpers.RequireGit(t)
		dir := testhelpers.NewPlainDir(t)

		res := run(t, dir, "", "init")
		require.ErrorIs(t, res.err, binnacleerrors.ErrNotAGitRepository)
		require.Contains(t, res.stderr, "not a git repository")
	})
}

func TestExistsCommand(t *testing.T) {
	isolate(t)
	scene := testhelpers.NewScene(t, testhelpers.BasicSceneSetup)

	require.Equal(t, "false\n", mustRun(t, scene.Dir, "exists"))

	res := run(t, scene.Dir, "", "exists", "--quiet")
	require.Error(t, res.err)
	require.Empty(t, res.stdout)
	require.Empty(t, res.stderr)

	mustRun(t, scene.Dir, "init")
	require.Equal(t, "true\n", mustRun(t, scene.Dir, "exists"))
	require.Equal(t, "false\n", mustRun(t, scene.Dir, "--backend", "orphan-branch", "exists"))
	require.Empty(t, mustRun(t, scene.Dir, "exists", "-q"))
}

func TestReadWriteCommands(t *testing.T) {
	isolate(t)

	for _, backend := range []string{storage.TypeGitNotes, storage.TypeOrphanBranch} {
		t.Run(backend, func(t *testing.T) {
			scene := testhelpers.NewScene(t, testhelpers.BasicSceneSetup)

			res := run(t, scene.Dir, "", "--backend", backend, "read", storage.TasksFile)
			require.ErrorIs(t, res.err, binnacleerrors.ErrNotInitialized)

			mustRun(t, scene.Dir, "--backend", backend, "init")
			require.Empty(t, mustRun(t, scene.Dir, "read", storage.TasksFile))

			mustRun(t, scene.Dir, "append", storage.TasksFile, `{"id":"t1"}`)
			mustRun(t, scene.Dir, "append", storage.TasksFile, "plain text")
			require.Equal(t, "{\"id\":\"t1\"}\nplain text\n", mustRun(t, scene.Dir, "read", storage.TasksFile))
			require.JSONEq(t, `[{"id":"t1"},"plain text"]`, mustRun(t, scene.Dir, "read", "--json", storage.TasksFile))

			mustRun(t, scene.Dir, "write", storage.TasksFile, `{"id":"a"}`, `{"id":"b"}`)
			require.Equal(t, "{\"id\":\"a\"}\n{\"id\":\"b\"}\n", mustRun(t, scene.Dir, "read", storage.TasksFile))

			res = run(t, scene.Dir, "{\"sha\":\"1\"}\n\n{\"sha\":\"2\"}\n", "write", storage.CommitsFile)
			require.NoError(t, res.err, res.stderr)
			require.Equal(t, "{\"sha\":\"1\"}\n{\"sha\":\"2\"}\n", mustRun(t, scene.Dir, "read", storage.CommitsFile))

			res = run(t, scene.Dir, "", "write", storage.CommitsFile)
			require.Error(t, res.err)
			require.Contains(t, res.err.Error(), "--allow-empty")

			mustRun(t, scene.Dir, "write", "--allow-empty", storage.CommitsFile)
			require.Empty(t, mustRun(t, scene.Dir, "read", storage.CommitsFile))
			require.Equal(t, "[]\n", mustRun(t, scene.Dir, "read", "--json", storage.CommitsFile))

			testhelpers.ExpectCleanWorktree(t, scene.Repo)
			testhelpers.ExpectNoWorkingTreeFiles(t, scene.Repo, storage.KnownCollections...)
		})
	}
}

func TestAppendRejectsBadRecords(t *testing.T) {
	isolate(t)
	scene := testhelpers.NewScene(t, testhelpers.BasicSceneSetup)
	mustRun(t, scene.Dir, "init")

	require.Error(t, run(t, scene.Dir, "", "append", storage.TasksFile, "   ").err)
	require.Error(t, run(t, scene.Dir, "", "append", storage.TasksFile, "a\nb").err)
	require.Empty(t, mustRun(t, scene.Dir, "read", storage.TasksFile))
}

func TestInfoCommand(t *testing.T) {
	isolate(t)
	scene := testhelpers.NewScene(t, testhelpers.BasicSceneSetup)

	info := mustRun(t, scene.Dir, "info")
	require.Contains(t, info, "git-notes (from default)")
	require.Contains(t, info, "not initialized")

	mustRun(t, scene.Dir, "--backend", "orphan-branch", "init")
	mustRun(t, scene.Dir, "write", storage.TasksFile, `{"id":"t1"}`)

	info = mustRun(t, scene.Dir, "info")
	require.Contains(t, info, "commits:")
	require.Regexp(t, `commits:\s+2\n`, info)
	require.Regexp(t, `tasks\.jsonl:\s+1 records\n`, info)
	require.Regexp(t, `commits\.jsonl:\s+0 records\n`, info)

	t.Setenv(config.BackendEnvVar, "notes")
	info = mustRun(t, scene.Dir, "info")
	require.Contains(t, info, "git-notes (from env)")
}

func TestMigrateCommand(t *testing.T) {
	isolate(t)
	scene := testhelpers.NewScene(t, testhelpers.BasicSceneSetup)

	res := run(t, scene.Dir, "", "migrate", "--to", "orphan-branch")
	require.ErrorIs(t, res.err, binnacleerrors.ErrNotInitialized)

	mustRun(t, scene.Dir, "init")
	mustRun(t, scene.Dir, "write", storage.TasksFile, `{"id":"t1"}`, `{"id":"t2"}`)
	mustRun(t, scene.Dir, "append", storage.TestResultsFile, `{"ok":true}`)

	require.Error(t, run(t, scene.Dir, "", "migrate", "--to", "notes").err, "same source and target")

	out := mustRun(t, scene.Dir, "migrate", "--to", "orphan", "--set-default")
	require.Equal(t, "tasks.jsonl: 2 records\ncommits.jsonl: 0 records\ntest-results.jsonl: 1 records\n", out)

	cfg, err := config.GetRepoConfig(scene.Dir)
	require.NoError(t, err)
	require.Equal(t, storage.TypeOrphanBranch, *cfg.Backend)

	require.Equal(t, "{\"id\":\"t1\"}\n{\"id\":\"t2\"}\n", mustRun(t, scene.Dir, "read", storage.TasksFile))
	require.Equal(t, "{\"id\":\"t1\"}\n{\"id\":\"t2\"}\n", mustRun(t, scene.Dir, "--backend", "notes", "read", storage.TasksFile),
		"the source is left in place")

	out = mustRun(t, scene.Dir, "migrate", "--from", "orphan-branch", "--to", "git-notes", "bugs.jsonl")
	require.Equal(t, "bugs.jsonl: 0 records\n", out)
}

func TestVersionFlag(t *testing.T) {
	isolate(t)
	var out bytes.Buffer
	root := cli.NewRootCmd("1.2.3", "abc", "today")
	root.SetArgs([]string{"--version"})
	root.SetOut(&out)
	require.NoError(t, root.Execute())
	require.Contains(t, out.String(), "1.2.3 (commit abc, built today)")
}
