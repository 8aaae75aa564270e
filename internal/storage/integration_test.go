package storage_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	binnacleerrors "binnacle.dev/binnacle/internal/errors"
	"binnacle.dev/binnacle/internal/git"
	"binnacle.dev/binnacle/internal/storage"
	"binnacle.dev/binnacle/testhelpers"
)

func realBackends() map[string]func() storage.Backend {
	return map[string]func() storage.Backend{
		storage.TypeGitNotes:     func() storage.Backend { return storage.NewGitNotesBackend(storage.Options{}) },
		storage.TypeOrphanBranch: func() storage.Backend { return storage.NewOrphanBranchBackend(storage.Options{}) },
	}
}

func TestOrphanBranchScenario(t *testing.T) {
	ctx := context.Background()
	scene := testhelpers.NewScene(t, testhelpers.BasicSceneSetup)

	b := storage.NewOrphanBranchBackend(storage.Options{})
	require.NoError(t, b.Init(ctx, scene.Dir))
	require.NoError(t, b.WriteJSONL(ctx, storage.TasksFile, []string{`{"id":"test3"}`}))

	got, err := b.ReadJSONL(ctx, storage.TasksFile)
	require.NoError(t, err)
	require.Equal(t, []string{`{"id":"test3"}`}, got)

	count, err := scene.Repo.CountCommits(storage.DataBranch)
	require.NoError(t, err)
	require.GreaterOrEqual(t, count, 2)

	log, err := scene.Repo.RunGitCommandAndGetOutput("log", "--format=%s", storage.DataBranch)
	require.NoError(t, err)
	require.Equal(t, "Update tasks.jsonl\nInitialize binnacle data storage", log)

	repo, err := git.OpenRepository(scene.Dir)
	require.NoError(t, err)
	info, err := repo.InspectRef(storage.DataRef)
	require.NoError(t, err)
	require.Equal(t, 0, info.RootParents, "data branch must start with an orphan commit")
	require.Equal(t, 2, info.CommitCount)

	names, err := repo.TreeFileNames(storage.DataRef)
	require.NoError(t, err)
	require.ElementsMatch(t, storage.KnownCollections, names)

	content, err := scene.Repo.RunGitCommandAndGetOutput("show", storage.DataBranch+":"+storage.TasksFile)
	require.NoError(t, err)
	require.Equal(t, `{"id":"test3"}`, content)
}

func TestGitNotesScenario(t *testing.T) {
	ctx := context.Background()
	scene := testhelpers.NewScene(t, testhelpers.BasicSceneSetup)

	b := storage.NewGitNotesBackend(storage.Options{})
	require.NoError(t, b.Init(ctx, scene.Dir))
	require.NoError(t, b.AppendJSONL(ctx, storage.TasksFile, `{"id":"test1"}`))
	require.NoError(t, b.AppendJSONL(ctx, storage.TasksFile, `{"id":"test2"}`))

	got, err := b.ReadJSONL(ctx, storage.TasksFile)
	require.NoError(t, err)
	require.Equal(t, []string{`{"id":"test1"}`, `{"id":"test2"}`}, got)

	require.NoError(t, b.WriteJSONL(ctx, storage.TasksFile, []string{`{"id":"test3"}`}))
	got, err = b.ReadJSONL(ctx, storage.TasksFile)
	require.NoError(t, err)
	require.Equal(t, []string{`{"id":"test3"}`}, got)

	// The notes are visible to plain git.
	list, err := scene.Repo.RunGitCommandAndGetOutput("notes", "--ref", storage.NotesRef, "list")
	require.NoError(t, err)
	require.Len(t, strings.Split(list, "\n"), 2, "meta note plus tasks note")
}

func TestBackendsAgainstRealGit(t *testing.T) {
	ctx := context.Background()

	for kind, newBackend := range realBackends() {
		t.Run(kind, func(t *testing.T) {
			t.Run("rejects a directory that is not a repository", func(t *testing.T) {
				testhelpers.RequireGit(t)
				dir := testhelpers.NewPlainDir(t)

				err := newBackend().Init(ctx, dir)
				require.ErrorIs(t, err, binnacleerrors.ErrNotAGitRepository)
				require.Contains(t, err.Error(), "not a git repository")
				require.Contains(t, err.Error(), dir)

				exists, err := newBackend().Exists(ctx, dir)
				require.NoError(t, err)
				require.False(t, exists)
			})

			t.Run("leaves the working tree alone", func(t *testing.T) {
				scene := testhelpers.NewScene(t, testhelpers.BasicSceneSetup)
				head, err := scene.Repo.GetRevision("HEAD")
				require.NoError(t, err)

				b := newBackend()
				require.NoError(t, b.Init(ctx, scene.Dir))
				for _, name := range storage.KnownCollections {
					require.NoError(t, b.WriteJSONL(ctx, name, []string{`{"a":1}`, `{"b":2}`}))
					require.NoError(t, b.AppendJSONL(ctx, name, `{"c":3}`))
				}

				testhelpers.ExpectCleanWorktree(t, scene.Repo)
				testhelpers.ExpectNoWorkingTreeFiles(t, scene.Repo, storage.KnownCollections...)
				testhelpers.ExpectHead(t, scene.Repo, "main", head)
			})

			t.Run("init is idempotent and keeps data", func(t *testing.T) {
				scene := testhelpers.NewScene(t, testhelpers.BasicSceneSetup)

				exists, err := newBackend().Exists(ctx, scene.Dir)
				require.NoError(t, err)
				require.False(t, exists)

				b := newBackend()
				require.NoError(t, b.Init(ctx, scene.Dir))
				require.NoError(t, b.AppendJSONL(ctx, storage.CommitsFile, `{"sha":"abc"}`))

				again := newBackend()
				require.NoError(t, again.Init(ctx, scene.Dir))
				require.NoError(t, again.Init(ctx, scene.Dir))

				got, err := again.ReadJSONL(ctx, storage.CommitsFile)
				require.NoError(t, err)
				require.Equal(t, []string{`{"sha":"abc"}`}, got)

				exists, err = newBackend().Exists(ctx, scene.Dir)
				require.NoError(t, err)
				require.True(t, exists)
			})

			t.Run("absent collection reads empty and isolation holds", func(t *testing.T) {
				scene := testhelpers.NewScene(t, testhelpers.BasicSceneSetup)
				b := newBackend()
				require.NoError(t, b.Init(ctx, scene.Dir))

				got, err := b.ReadJSONL(ctx, "ideas.jsonl")
				require.NoError(t, err)
				require.Empty(t, got)

				require.NoError(t, b.WriteJSONL(ctx, storage.TasksFile, []string{`{"id":"t1"}`}))
				require.NoError(t, b.WriteJSONL(ctx, storage.CommitsFile, []string{`{"sha":"1"}`, `{"sha":"2"}`}))

				got, err = b.ReadJSONL(ctx, storage.TasksFile)
				require.NoError(t, err)
				require.Equal(t, []string{`{"id":"t1"}`}, got)
			})

			t.Run("works in a repository without commits", func(t *testing.T) {
				scene := testhelpers.NewScene(t, nil)
				b := newBackend()
				require.NoError(t, b.Init(ctx, scene.Dir))
				require.NoError(t, b.AppendJSONL(ctx, "bugs.jsonl", `{"id":"b1"}`))
				require.NoError(t, b.AppendJSONL(ctx, "bugs.jsonl", `{"id":"b2"}`))

				got, err := b.ReadJSONL(ctx, "bugs.jsonl")
				require.NoError(t, err)
				require.Equal(t, []string{`{"id":"b1"}`, `{"id":"b2"}`}, got)
				testhelpers.ExpectCleanWorktree(t, scene.Repo)
			})

			t.Run("lines keep surrounding whitespace", func(t *testing.T) {
				scene := testhelpers.NewScene(t, testhelpers.BasicSceneSetup)
				b := newBackend()
				require.NoError(t, b.Init(ctx, scene.Dir))

				lines := []string{`{"a":1}   `, "\t{\"b\":2}", `{"c":"x"}` + "\t "}
				require.NoError(t, b.WriteJSONL(ctx, storage.TasksFile, lines))
				got, err := b.ReadJSONL(ctx, storage.TasksFile)
				require.NoError(t, err)
				require.Equal(t, lines, got)

				require.NoError(t, b.AppendJSONL(ctx, storage.TasksFile, `{"d":4}  `))
				got, err = b.ReadJSONL(ctx, storage.TasksFile)
				require.NoError(t, err)
				require.Equal(t, append(lines, `{"d":4}  `), got)
			})

			t.Run("file names with spaces round-trip", func(t *testing.T) {
				scene := testhelpers.NewScene(t, testhelpers.BasicSceneSetup)
				b := newBackend()
				require.NoError(t, b.Init(ctx, scene.Dir))

				lines := []string{`{"id":"s1","text":"with spaces"}`}
				require.NoError(t, b.WriteJSONL(ctx, "my tasks.jsonl", lines))
				got, err := b.ReadJSONL(ctx, "my tasks.jsonl")
				require.NoError(t, err)
				require.Equal(t, lines, got)
			})

			t.Run("bound backend reads state created elsewhere", func(t *testing.T) {
				scene := testhelpers.NewScene(t, testhelpers.BasicSceneSetup)
				b := newBackend()
				require.NoError(t, b.Init(ctx, scene.Dir))
				require.NoError(t, b.WriteJSONL(ctx, storage.TestResultsFile, []string{`{"ok":true}`}))

				var bound storage.Backend
				if kind == storage.TypeGitNotes {
					bound = storage.NewGitNotesBackendAt(scene.Dir, storage.Options{})
				} else {
					bound = storage.NewOrphanBranchBackendAt(scene.Dir, storage.Options{})
				}
				got, err := bound.ReadJSONL(ctx, storage.TestResultsFile)
				require.NoError(t, err)
				require.Equal(t, []string{`{"ok":true}`}, got)
			})
		})
	}
}

func TestOrphanBranchLockedRef(t *testing.T) {
	ctx := context.Background()
	scene := testhelpers.NewScene(t, testhelpers.BasicSceneSetup)

	b := storage.NewOrphanBranchBackend(storage.Options{})
	require.NoError(t, b.Init(ctx, scene.Dir))
	tip, err := scene.Repo.GetRevision(storage.DataBranch)
	require.NoError(t, err)

	lock := filepath.Join(scene.Dir, ".git", "refs", "heads", storage.DataBranch+".lock")
	require.NoError(t, os.WriteFile(lock, nil, 0o644))

	err = b.WriteJSONL(ctx, storage.TasksFile, []string{`{"id":"blocked"}`})
	require.ErrorIs(t, err, binnacleerrors.ErrGitCommand)
	require.NotErrorIs(t, err, binnacleerrors.ErrRefConflict)
	require.NotContains(t, err.Error(), "gave up")
	require.Contains(t, err.Error(), ".lock")

	after, err := scene.Repo.GetRevision(storage.DataBranch)
	require.NoError(t, err)
	require.Equal(t, tip, after)

	require.NoError(t, os.Remove(lock))
	require.NoError(t, b.WriteJSONL(ctx, storage.TasksFile, []string{`{"id":"unblocked"}`}))
}

func TestOrphanBranchInitWithLockedRef(t *testing.T) {
	ctx := context.Background()
	scene := testhelpers.NewScene(t, testhelpers.BasicSceneSetup)

	lock := filepath.Join(scene.Dir, ".git", "refs", "heads", storage.DataBranch+".lock")
	require.NoError(t, os.WriteFile(lock, nil, 0o644))

	err := storage.NewOrphanBranchBackend(storage.Options{}).Init(ctx, scene.Dir)
	require.ErrorIs(t, err, binnacleerrors.ErrGitCommand)
	require.NotErrorIs(t, err, binnacleerrors.ErrRefConflict)
	require.Contains(t, err.Error(), ".lock")
}

func TestOrphanBranchAppendOnCorruptBlob(t *testing.T) {
	ctx := context.Background()
	scene := testhelpers.NewScene(t, testhelpers.BasicSceneSetup)

	b := storage.NewOrphanBranchBackend(storage.Options{})
	require.NoError(t, b.Init(ctx, scene.Dir))
	require.NoError(t, b.WriteJSONL(ctx, storage.TasksFile, []string{`{"id":"only-copy"}`}))
	tip, err := scene.Repo.GetRevision(storage.DataBranch)
	require.NoError(t, err)

	blob, err := scene.Repo.GetRevision(storage.DataBranch + ":" + storage.TasksFile)
	require.NoError(t, err)
	require.NoError(t, os.Remove(filepath.Join(scene.Dir, ".git", "objects", blob[:2], blob[2:])))

	err = b.AppendJSONL(ctx, storage.TasksFile, `{"id":"new"}`)
	require.Error(t, err)
	require.Contains(t, err.Error(), blob)

	after, err := scene.Repo.GetRevision(storage.DataBranch)
	require.NoError(t, err)
	require.Equal(t, tip, after, "a corrupt collection must not be replaced")
}

func TestOrphanBranchConcurrentWriters(t *testing.T) {
	ctx := context.Background()
	scene := testhelpers.NewScene(t, testhelpers.BasicSceneSetup)
	require.NoError(t, storage.NewOrphanBranchBackend(storage.Options{}).Init(ctx, scene.Dir))

	const writers, appends = 4, 5

	var (
		mu        sync.Mutex
		written   []string
		conflicts int
		failures  []error
		wg        sync.WaitGroup
	)
	for w := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b := storage.NewOrphanBranchBackendAt(scene.Dir, storage.Options{})
			for n := range appends {
				line := fmt.Sprintf(`{"writer":%d,"n":%d}`, w, n)
				err := b.AppendJSONL(ctx, storage.TasksFile, line)

				mu.Lock()
				switch {
				case err == nil:
					written = append(written, line)
				case errors.Is(err, binnacleerrors.ErrRefConflict):
					conflicts++
				default:
					failures = append(failures, err)
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Empty(t, failures, "only ref conflicts may fail an append")
	require.Equal(t, writers*appends, len(written)+conflicts)
	require.NotEmpty(t, written)

	got, err := storage.NewOrphanBranchBackendAt(scene.Dir, storage.Options{}).ReadJSONL(ctx, storage.TasksFile)
	require.NoError(t, err)
	require.ElementsMatch(t, written, got, "every acknowledged append is kept and nothing else")

	count, err := scene.Repo.CountCommits(storage.DataBranch)
	require.NoError(t, err)
	require.Equal(t, len(written)+1, count)
}
