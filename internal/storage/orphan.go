package storage

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	binnacleerrors "binnacle.dev/binnacle/internal/errors"
	"binnacle.dev/binnacle/internal/git"
)

const (
	// DataBranch is the parentless branch holding every collection
	DataBranch = "binnacle-data"
	// DataRef is the fully qualified name of DataBranch
	DataRef = "refs/heads/" + DataBranch

	initialCommitMessage = "Initialize binnacle data storage"

	// maxRefUpdateAttempts bounds how often a write is replayed when the branch
	// moved between reading its tip and updating it.
	maxRefUpdateAttempts = 5
)

// retryBackoff is the base pause before replaying a write; it grows with each attempt
// and is jittered so competing writers spread out.
var retryBackoff = 5 * time.Millisecond

// OrphanBranchBackend stores collections as blobs in the tree of a branch with no
// shared history. Each write builds a new tree from the full listing of the previous
// one and commits it on top of the old tip.
type OrphanBranchBackend struct {
	binding
}

var _ Backend = (*OrphanBranchBackend)(nil)

// NewOrphanBranchBackend creates an orphan-branch backend; call Init before use.
func NewOrphanBranchBackend(opts Options) *OrphanBranchBackend {
	return &OrphanBranchBackend{binding: newBinding(opts)}
}

// NewOrphanBranchBackendAt creates an orphan-branch backend bound to repoPath without
// initializing it. Reads and writes succeed if the data branch already exists.
func NewOrphanBranchBackendAt(repoPath string, opts Options) *OrphanBranchBackend {
	b := NewOrphanBranchBackend(opts)
	b.bind(repoPath)
	return b
}

// Init verifies repoPath is a repository and creates the data branch if it does not exist.
func (b *OrphanBranchBackend) Init(ctx context.Context, repoPath string) error {
	client := b.opts.ClientFactory(repoPath)
	if err := client.IsRepository(ctx); err != nil {
		return err
	}
	b.client, b.initialized = client, false

	exists, err := b.client.RefExists(ctx, DataRef)
	if err != nil {
		return fmt.Errorf("failed to check %s: %w", DataRef, err)
	}
	if !exists {
		if err := b.createBranch(ctx); err != nil {
			return err
		}
	}

	b.initialized = true
	return nil
}

// Exists reports whether the data branch is present in repoPath.
func (b *OrphanBranchBackend) Exists(ctx context.Context, repoPath string) (bool, error) {
	return b.refPresent(ctx, repoPath, DataRef)
}

// ReadJSONL returns the lines of filename at the tip of the data branch.
func (b *OrphanBranchBackend) ReadJSONL(ctx context.Context, filename string) ([]string, error) {
	if err := b.ready(ctx, TypeOrphanBranch, DataRef); err != nil {
		return nil, err
	}
	content, err := b.readFile(ctx, DataRef, filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", filename, err)
	}
	return splitLines(content), nil
}

// AppendJSONL adds line to filename. The existing content is read from the same
// commit that becomes the parent of the new one.
func (b *OrphanBranchBackend) AppendJSONL(ctx context.Context, filename, line string) error {
	if err := b.ready(ctx, TypeOrphanBranch, DataRef); err != nil {
		return err
	}
	err := b.writeFile(ctx, filename, func(previous *git.TreeEntry) (string, error) {
		content, err := b.readEntry(ctx, previous)
		if err != nil {
			return "", err
		}
		return appendLine(content, line), nil
	})
	if err != nil {
		return fmt.Errorf("failed to append to %s: %w", filename, err)
	}
	return nil
}

// WriteJSONL replaces filename. An empty slice leaves an empty blob in the tree.
func (b *OrphanBranchBackend) WriteJSONL(ctx context.Context, filename string, lines []string) error {
	if err := b.ready(ctx, TypeOrphanBranch, DataRef); err != nil {
		return err
	}
	content := joinLines(lines)
	err := b.writeFile(ctx, filename, func(*git.TreeEntry) (string, error) {
		return content, nil
	})
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", filename, err)
	}
	return nil
}

// Location names the data branch and the repository.
func (b *OrphanBranchBackend) Location() string {
	if path := b.repoPath(); path != "" {
		return fmt.Sprintf("orphan branch %s (%s) in %s", DataBranch, DataRef, path)
	}
	return fmt.Sprintf("orphan branch %s (%s)", DataBranch, DataRef)
}

// BackendType returns "orphan-branch".
func (b *OrphanBranchBackend) BackendType() string {
	return TypeOrphanBranch
}

// createBranch commits a tree of empty seed collections with no parent and points
// the data branch at it. Losing a creation race to another process is not an error.
func (b *OrphanBranchBackend) createBranch(ctx context.Context) error {
	tree, err := b.client.EmptyTree(ctx)
	if err != nil {
		return fmt.Errorf("failed to get empty tree: %w", err)
	}

	entries := make([]git.TreeEntry, 0, len(KnownCollections))
	for _, name := range KnownCollections {
		blob, err := b.client.HashObject(ctx, "")
		if err != nil {
			return fmt.Errorf("failed to create blob for %s: %w", name, err)
		}
		entries = append(entries, git.BlobEntry(name, blob))
	}
	if len(entries) > 0 {
		tree, err = b.client.Mktree(ctx, entries)
		if err != nil {
			return fmt.Errorf("failed to create initial tree: %w", err)
		}
	}

	commit, err := b.client.CommitTree(ctx, tree, nil, initialCommitMessage)
	if err != nil {
		return fmt.Errorf("failed to create initial commit: %w", err)
	}

	// An all-zero old value asserts the ref does not exist yet.
	err = b.client.UpdateRef(ctx, DataRef, commit, strings.Repeat("0", len(commit)))
	if errors.Is(err, binnacleerrors.ErrRefConflict) {
		if exists, existsErr := b.client.RefExists(ctx, DataRef); existsErr == nil && exists {
			b.opts.Logger.Debug("data branch created concurrently", "ref", DataRef)
			return nil
		}
	}
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", DataRef, err)
	}
	b.opts.Logger.Debug("created data branch", "ref", DataRef, "commit", commit)
	return nil
}

// readFile returns filename from the tree of rev; a file missing from the tree is empty.
func (b *OrphanBranchBackend) readFile(ctx context.Context, rev, filename string) (string, error) {
	content, err := b.client.Show(ctx, rev+":"+filename)
	if errors.Is(err, binnacleerrors.ErrNotFound) {
		return "", nil
	}
	return content, err
}

// readEntry returns the blob behind a tree entry; a nil entry is an absent file.
// A listed blob that cannot be read is an error, never an empty file.
func (b *OrphanBranchBackend) readEntry(ctx context.Context, entry *git.TreeEntry) (string, error) {
	if entry == nil {
		return "", nil
	}
	content, err := b.client.Show(ctx, entry.SHA)
	if errors.Is(err, binnacleerrors.ErrNotFound) {
		return "", fmt.Errorf("blob %s of %s is missing from the repository", entry.SHA, entry.Name)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read blob %s of %s: %w", entry.SHA, entry.Name, err)
	}
	return content, nil
}

// writeFile commits a new version of filename on top of the current tip. content
// receives the file's entry in the parent tree (nil if absent) so callers can derive
// the new content from it. If the branch moves before the ref update, the whole cycle
// is replayed on the new tip after a short pause.
func (b *OrphanBranchBackend) writeFile(ctx context.Context, filename string, content func(previous *git.TreeEntry) (string, error)) error {
	var lastErr error
	for attempt := 1; attempt <= maxRefUpdateAttempts; attempt++ {
		if attempt > 1 {
			if err := pause(ctx, attempt); err != nil {
				return err
			}
		}
		err := b.commitFile(ctx, filename, content)
		if err == nil {
			return nil
		}
		if !errors.Is(err, binnacleerrors.ErrRefConflict) {
			return err
		}
		lastErr = err
		b.opts.Logger.Debug("data branch moved, retrying", "file", filename, "attempt", attempt)
	}
	return fmt.Errorf("gave up after %d attempts: %w", maxRefUpdateAttempts, lastErr)
}

func pause(ctx context.Context, attempt int) error {
	delay := time.Duration(attempt-1)*retryBackoff + rand.N(2*retryBackoff)
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(delay):
		return nil
	}
}

func (b *OrphanBranchBackend) commitFile(ctx context.Context, filename string, content func(previous *git.TreeEntry) (string, error)) error {
	parent, err := b.client.RevParse(ctx, DataRef)
	if err != nil {
		if errors.Is(err, binnacleerrors.ErrNotFound) {
			return binnacleerrors.NewNotInitializedError(TypeOrphanBranch, DataRef+" disappeared")
		}
		return fmt.Errorf("failed to resolve %s: %w", DataRef, err)
	}
	tree, err := b.client.RevParse(ctx, parent+"^{tree}")
	if err != nil {
		return fmt.Errorf("failed to resolve tree of %s: %w", parent, err)
	}
	entries, err := b.client.LsTree(ctx, tree)
	if err != nil {
		return fmt.Errorf("failed to list tree %s: %w", tree, err)
	}

	var previous *git.TreeEntry
	if entry, ok := git.FindEntry(entries, filename); ok {
		previous = &entry
	}
	data, err := content(previous)
	if err != nil {
		return err
	}
	blob, err := b.client.HashObject(ctx, data)
	if err != nil {
		return fmt.Errorf("failed to create blob: %w", err)
	}

	newTree, err := b.client.Mktree(ctx, git.ReplaceEntry(entries, git.BlobEntry(filename, blob)))
	if err != nil {
		return fmt.Errorf("failed to create tree: %w", err)
	}

	commit, err := b.client.CommitTree(ctx, newTree, []string{parent}, "Update "+filename)
	if err != nil {
		return fmt.Errorf("failed to create commit: %w", err)
	}
	return b.client.UpdateRef(ctx, DataRef, commit, parent)
}
