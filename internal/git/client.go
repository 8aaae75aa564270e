package git

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	binnacleerrors "binnacle.dev/binnacle/internal/errors"
)

// Client is the set of git plumbing operations the storage backends are built from.
// ExecClient drives the git binary; MockClient keeps an object database in memory.
//
// Absence is reported as an error matching errors.ErrNotFound so callers can tell it
// apart from genuine failures without looking at stderr.
type Client interface {
	// RepoPath returns the repository the client operates on.
	RepoPath() string

	// IsRepository fails with errors.ErrNotAGitRepository unless RepoPath is inside a repository.
	IsRepository(ctx context.Context) error

	// Objects
	HashObject(ctx context.Context, content string) (string, error)
	EmptyTree(ctx context.Context) (string, error)
	LsTree(ctx context.Context, treeish string) ([]TreeEntry, error)
	Mktree(ctx context.Context, entries []TreeEntry) (string, error)
	CommitTree(ctx context.Context, tree string, parents []string, message string) (string, error)
	Show(ctx context.Context, object string) (string, error)

	// Refs
	RefExists(ctx context.Context, ref string) (bool, error)
	RevParse(ctx context.Context, rev string) (string, error)
	// UpdateRef points ref at newValue. A non-empty oldValue makes the update
	// conditional; only a ref that really moved fails with errors.ErrRefConflict.
	UpdateRef(ctx context.Context, ref, newValue, oldValue string) error

	// Notes
	NotesShow(ctx context.Context, notesRef, object string) (string, error)
	NotesAdd(ctx context.Context, notesRef, object, content string) error
	NotesRemove(ctx context.Context, notesRef, object string) error
}

const (
	// refSettleAttempts and refSettleDelay bound how long a failed conditional
	// update waits for a concurrent writer holding the ref lock to finish.
	refSettleAttempts = 10
	refSettleDelay    = 10 * time.Millisecond
)

// ExecClient implements Client by running the git executable in the repository root.
type ExecClient struct {
	runner *CommandRunner
}

// NewExecClient creates a Client for the repository at repoPath.
func NewExecClient(repoPath string, logger *slog.Logger) *ExecClient {
	return &ExecClient{runner: NewCommandRunner(repoPath, logger)}
}

// RepoPath returns the repository root.
func (c *ExecClient) RepoPath() string {
	return c.runner.WorkingDir()
}

// IsRepository checks the path exists and git recognises it as a repository.
func (c *ExecClient) IsRepository(ctx context.Context) error {
	path := c.RepoPath()
	info, err := os.Stat(path)
	if err != nil {
		return binnacleerrors.NewNotAGitRepositoryError(path, err)
	}
	if !info.IsDir() {
		return binnacleerrors.NewNotAGitRepositoryError(path, fmt.Errorf("%s is not a directory", path))
	}
	if _, err := c.runner.Run(ctx, "rev-parse", "--git-dir"); err != nil {
		return binnacleerrors.NewNotAGitRepositoryError(path, err)
	}
	return nil
}

// HashObject writes content as a blob and returns its id.
func (c *ExecClient) HashObject(ctx context.Context, content string) (string, error) {
	out, err := c.runner.RunWithInput(ctx, content, "hash-object", "-w", "--stdin")
	if err != nil {
		return "", err
	}
	return parseObjectID("hash-object", out)
}

// EmptyTree returns the id of the empty tree, writing it through mktree if hashing /dev/null fails.
func (c *ExecClient) EmptyTree(ctx context.Context) (string, error) {
	out, err := c.runner.Run(ctx, "hash-object", "-t", "tree", os.DevNull)
	if err == nil {
		if sha, perr := parseObjectID("hash-object", out); perr == nil {
			return sha, nil
		}
	}
	return c.Mktree(ctx, nil)
}

// LsTree lists the entries of a tree-ish.
func (c *ExecClient) LsTree(ctx context.Context, treeish string) ([]TreeEntry, error) {
	out, err := c.runner.RunRaw(ctx, "ls-tree", "-z", treeish)
	if err != nil {
		return nil, err
	}
	return ParseTreeListing(out)
}

// Mktree builds a tree object from a complete entry list.
func (c *ExecClient) Mktree(ctx context.Context, entries []TreeEntry) (string, error) {
	out, err := c.runner.RunWithInput(ctx, FormatTreeListing(entries), "mktree", "-z")
	if err != nil {
		return "", err
	}
	return parseObjectID("mktree", out)
}

// CommitTree creates a commit for tree with the given parents. No parents makes an orphan commit.
func (c *ExecClient) CommitTree(ctx context.Context, tree string, parents []string, message string) (string, error) {
	args := []string{"commit-tree", tree}
	for _, p := range parents {
		args = append(args, "-p", p)
	}
	args = append(args, "-m", message)
	out, err := c.runner.Run(ctx, args...)
	if err != nil {
		return "", err
	}
	return parseObjectID("commit-tree", out)
}

// Show prints an object, typically "<rev>:<path>". A missing path or revision
// (git exits 128) is reported as ErrNotFound.
func (c *ExecClient) Show(ctx context.Context, object string) (string, error) {
	out, err := c.runner.RunRaw(ctx, "show", object)
	if err != nil {
		if exitCode(err) == 128 {
			return "", fmt.Errorf("%s: %w", object, binnacleerrors.ErrNotFound)
		}
		return "", err
	}
	return out, nil
}

// RefExists reports whether a fully qualified ref exists.
func (c *ExecClient) RefExists(ctx context.Context, ref string) (bool, error) {
	_, err := c.runner.Run(ctx, "show-ref", "--verify", "--quiet", ref)
	if err != nil {
		// Exit code 1 means the ref doesn't exist
		if exitCode(err) == 1 {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// RevParse resolves a revision to an object id.
func (c *ExecClient) RevParse(ctx context.Context, rev string) (string, error) {
	out, err := c.runner.Run(ctx, "rev-parse", "--verify", "--quiet", rev)
	if err != nil {
		if exitCode(err) == 1 {
			return "", fmt.Errorf("%s: %w", rev, binnacleerrors.ErrNotFound)
		}
		return "", err
	}
	return parseObjectID("rev-parse", out)
}

// UpdateRef moves ref to newValue, optionally asserting its current value. A failed
// conditional update is a conflict only if the ref no longer holds oldValue; anything
// else (a stale lock, permissions, a full disk) is returned as the git failure.
func (c *ExecClient) UpdateRef(ctx context.Context, ref, newValue, oldValue string) error {
	args := []string{"update-ref", ref, newValue}
	if oldValue != "" {
		args = append(args, oldValue)
	}
	_, err := c.runner.Run(ctx, args...)
	if err == nil || oldValue == "" {
		return err
	}
	if c.refMoved(ctx, ref, oldValue) {
		return binnacleerrors.NewRefConflictError(ref, oldValue, err)
	}
	return err
}

// refMoved reports whether ref no longer points at expected. An all-zero expected
// value means the ref should not exist. While the ref still looks unchanged it is
// polled briefly, since another writer may hold its lock and be about to move it.
func (c *ExecClient) refMoved(ctx context.Context, ref, expected string) bool {
	for attempt := 1; ; attempt++ {
		current, err := c.RevParse(ctx, ref)
		if err != nil && !errors.Is(err, binnacleerrors.ErrNotFound) {
			return false
		}
		if IsZeroID(expected) {
			if current != "" {
				return true
			}
		} else if current != expected {
			return true
		}
		if attempt == refSettleAttempts {
			return false
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(refSettleDelay):
		}
	}
}

// IsZeroID reports whether sha is git's all-zero object id.
func IsZeroID(sha string) bool {
	return sha != "" && strings.Trim(sha, "0") == ""
}

// NotesShow returns the note attached to object. A missing note is ErrNotFound.
func (c *ExecClient) NotesShow(ctx context.Context, notesRef, object string) (string, error) {
	out, err := c.runner.RunRaw(ctx, "notes", "--ref", notesRef, "show", object)
	if err != nil {
		if exitCode(err) == 1 {
			return "", fmt.Errorf("note for %s: %w", object, binnacleerrors.ErrNotFound)
		}
		return "", err
	}
	return out, nil
}

// NotesAdd attaches content to object, overwriting any existing note. The content is
// written as a blob and attached with -C, which keeps it byte for byte; -m and -F would
// strip trailing whitespace from every line.
func (c *ExecClient) NotesAdd(ctx context.Context, notesRef, object, content string) error {
	blob, err := c.HashObject(ctx, content)
	if err != nil {
		return err
	}
	_, err = c.runner.Run(ctx, "notes", "--ref", notesRef, "add", "-f", "-C", blob, object)
	return err
}

// NotesRemove deletes the note attached to object; a missing note is not an error.
func (c *ExecClient) NotesRemove(ctx context.Context, notesRef, object string) error {
	_, err := c.runner.Run(ctx, "notes", "--ref", notesRef, "remove", "--ignore-missing", object)
	return err
}
