// Package storage implements the JSONL collection store on top of git.
//
// Two backends keep every collection inside the repository's object database
// without touching the working tree, the index or the checked-out branch:
//
//   - GitNotesBackend attaches one note per collection under refs/notes/binnacle.
//   - OrphanBranchBackend commits all collections as blobs on refs/heads/binnacle-data.
//
// Both satisfy Backend and behave identically from the caller's point of view.
// Collection content is never cached; every call reads the current git state.
package storage

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"binnacle.dev/binnacle/internal/git"
)

// Backend type tags reported by BackendType
const (
	TypeGitNotes     = "git-notes"
	TypeOrphanBranch = "orphan-branch"
)

// Collection file names used by the task graph
const (
	TasksFile       = "tasks.jsonl"
	CommitsFile     = "commits.jsonl"
	TestResultsFile = "test-results.jsonl"
)

// KnownCollections are the collections seeded by the orphan backend.
var KnownCollections = []string{TasksFile, CommitsFile, TestResultsFile}

// Backend is the storage contract shared by every backend.
type Backend interface {
	// Init verifies repoPath is a git repository and creates the durable structure if absent.
	Init(ctx context.Context, repoPath string) error
	// Exists reports whether the durable structure is already present, without creating it.
	Exists(ctx context.Context, repoPath string) (bool, error)
	// ReadJSONL returns the non-blank lines of a collection in write order.
	ReadJSONL(ctx context.Context, filename string) ([]string, error)
	// AppendJSONL adds one line to the end of a collection.
	AppendJSONL(ctx context.Context, filename, line string) error
	// WriteJSONL replaces a collection.
	WriteJSONL(ctx context.Context, filename string, lines []string) error
	// Location describes where the data lives.
	Location() string
	// BackendType returns TypeGitNotes or TypeOrphanBranch.
	BackendType() string
}

// ClientFactory builds the git client used for a repository.
type ClientFactory func(repoPath string) git.Client

// Options configures a backend
type Options struct {
	// ClientFactory defaults to an ExecClient running the git binary
	ClientFactory ClientFactory
	// Logger receives debug output; nil disables logging
	Logger *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}
	if o.ClientFactory == nil {
		logger := o.Logger
		o.ClientFactory = func(repoPath string) git.Client {
			return git.NewExecClient(repoPath, logger)
		}
	}
	return o
}

// New returns an uninitialized backend for a type tag. Short aliases are accepted.
func New(kind string, opts Options) (Backend, error) {
	switch ParseType(kind) {
	case TypeGitNotes:
		return NewGitNotesBackend(opts), nil
	case TypeOrphanBranch:
		return NewOrphanBranchBackend(opts), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q (expected %s or %s)", kind, TypeGitNotes, TypeOrphanBranch)
	}
}

// Open returns a backend bound to repoPath without creating anything. Reads and
// writes fail with ErrNotInitialized until the durable structure exists.
func Open(kind, repoPath string, opts Options) (Backend, error) {
	switch ParseType(kind) {
	case TypeGitNotes:
		return NewGitNotesBackendAt(repoPath, opts), nil
	case TypeOrphanBranch:
		return NewOrphanBranchBackendAt(repoPath, opts), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q (expected %s or %s)", kind, TypeGitNotes, TypeOrphanBranch)
	}
}

// RefName returns the ref holding a backend's data.
func RefName(kind string) string {
	switch ParseType(kind) {
	case TypeGitNotes:
		return NotesRef
	case TypeOrphanBranch:
		return DataRef
	default:
		return ""
	}
}

// ParseType normalises a backend name, returning "" for unknown names.
func ParseType(kind string) string {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case TypeGitNotes, "notes", "git_notes":
		return TypeGitNotes
	case TypeOrphanBranch, "orphan", "branch", "orphan_branch":
		return TypeOrphanBranch
	default:
		return ""
	}
}

// splitLines returns the non-blank lines of content, dropping carriage returns.
func splitLines(content string) []string {
	lines := []string{}
	for line := range strings.SplitSeq(content, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}

// joinLines renders lines as newline-terminated JSONL. Blank lines are dropped so
// that writing a blank line never produces an empty record.
func joinLines(lines []string) string {
	var sb strings.Builder
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		sb.WriteString(line)
		sb.WriteByte('\n')
	}
	return sb.String()
}

// appendLine adds line to content, first terminating a final line that lacks a newline.
func appendLine(content, line string) string {
	if content != "" && !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	return content + line + "\n"
}
