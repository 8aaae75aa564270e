package storage

import (
	"context"
	"errors"
	"fmt"

	binnacleerrors "binnacle.dev/binnacle/internal/errors"
)

const (
	// NotesRef holds one note per collection
	NotesRef = "refs/notes/binnacle"

	noteTargetPrefix = "binnacle:"
	metaNoteKey      = "meta"
	metaNoteContent  = `{"binnacle":"meta","version":1}`
)

// GitNotesBackend stores each collection as a git note. The note is attached to a
// synthetic blob whose content is "binnacle:<filename>", so the blob id is a stable
// key derived from the file name alone.
type GitNotesBackend struct {
	binding
}

var _ Backend = (*GitNotesBackend)(nil)

// NewGitNotesBackend creates a notes backend; call Init before use.
func NewGitNotesBackend(opts Options) *GitNotesBackend {
	return &GitNotesBackend{binding: newBinding(opts)}
}

// NewGitNotesBackendAt creates a notes backend bound to repoPath without initializing it.
// Reads and writes succeed if the notes ref already exists.
func NewGitNotesBackendAt(repoPath string, opts Options) *GitNotesBackend {
	b := NewGitNotesBackend(opts)
	b.bind(repoPath)
	return b
}

// Init verifies repoPath is a repository and bootstraps the notes ref with a
// "meta" note if it does not exist yet.
func (b *GitNotesBackend) Init(ctx context.Context, repoPath string) error {
	client := b.opts.ClientFactory(repoPath)
	if err := client.IsRepository(ctx); err != nil {
		return err
	}
	b.client, b.initialized = client, false

	exists, err := b.client.RefExists(ctx, NotesRef)
	if err != nil {
		return fmt.Errorf("failed to check %s: %w", NotesRef, err)
	}
	if !exists {
		target, err := b.noteTarget(ctx, metaNoteKey)
		if err != nil {
			return err
		}
		if err := b.client.NotesAdd(ctx, NotesRef, target, metaNoteContent+"\n"); err != nil {
			return fmt.Errorf("failed to create %s: %w", NotesRef, err)
		}
		b.opts.Logger.Debug("created notes ref", "ref", NotesRef, "repo", repoPath)
	}

	b.initialized = true
	return nil
}

// Exists reports whether the notes ref is present in repoPath.
func (b *GitNotesBackend) Exists(ctx context.Context, repoPath string) (bool, error) {
	return b.refPresent(ctx, repoPath, NotesRef)
}

// ReadJSONL returns the lines stored in the note for filename.
func (b *GitNotesBackend) ReadJSONL(ctx context.Context, filename string) ([]string, error) {
	if err := b.ready(ctx, TypeGitNotes, NotesRef); err != nil {
		return nil, err
	}
	target, err := b.noteTarget(ctx, filename)
	if err != nil {
		return nil, err
	}
	content, err := b.readNote(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", filename, err)
	}
	return splitLines(content), nil
}

// AppendJSONL adds line to the note for filename. This is a read-modify-write of
// the note; concurrent writers race and the last one wins.
func (b *GitNotesBackend) AppendJSONL(ctx context.Context, filename, line string) error {
	if err := b.ready(ctx, TypeGitNotes, NotesRef); err != nil {
		return err
	}
	target, err := b.noteTarget(ctx, filename)
	if err != nil {
		return err
	}
	content, err := b.readNote(ctx, target)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", filename, err)
	}
	if err := b.writeNote(ctx, target, appendLine(content, line)); err != nil {
		return fmt.Errorf("failed to append to %s: %w", filename, err)
	}
	return nil
}

// WriteJSONL replaces the note for filename. An empty slice removes the note.
func (b *GitNotesBackend) WriteJSONL(ctx context.Context, filename string, lines []string) error {
	if err := b.ready(ctx, TypeGitNotes, NotesRef); err != nil {
		return err
	}
	target, err := b.noteTarget(ctx, filename)
	if err != nil {
		return err
	}
	if err := b.writeNote(ctx, target, joinLines(lines)); err != nil {
		return fmt.Errorf("failed to write %s: %w", filename, err)
	}
	return nil
}

// Location names the notes ref and the repository.
func (b *GitNotesBackend) Location() string {
	if path := b.repoPath(); path != "" {
		return fmt.Sprintf("git notes (%s) in %s", NotesRef, path)
	}
	return fmt.Sprintf("git notes (%s)", NotesRef)
}

// BackendType returns "git-notes".
func (b *GitNotesBackend) BackendType() string {
	return TypeGitNotes
}

// noteTarget writes the key blob for filename and returns its id. Git deduplicates
// identical content, so repeated calls return the same id and write nothing new.
func (b *GitNotesBackend) noteTarget(ctx context.Context, filename string) (string, error) {
	sha, err := b.client.HashObject(ctx, noteTargetPrefix+filename)
	if err != nil {
		return "", fmt.Errorf("failed to create note target for %s: %w", filename, err)
	}
	return sha, nil
}

func (b *GitNotesBackend) readNote(ctx context.Context, target string) (string, error) {
	content, err := b.client.NotesShow(ctx, NotesRef, target)
	if errors.Is(err, binnacleerrors.ErrNotFound) {
		return "", nil
	}
	return content, err
}

func (b *GitNotesBackend) writeNote(ctx context.Context, target, content string) error {
	if content == "" {
		return b.client.NotesRemove(ctx, NotesRef, target)
	}
	return b.client.NotesAdd(ctx, NotesRef, target, content)
}
