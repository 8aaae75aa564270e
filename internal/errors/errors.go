// Package errors provides sentinel errors and custom error types for binnacle storage.
// Use errors.Is() and errors.As() to check for specific error types.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for common conditions
var (
	// ErrNotAGitRepository indicates that a path is not inside a git repository
	ErrNotAGitRepository = errors.New("not a git repository")

	// ErrNotInitialized indicates that a backend was used before its durable structure exists
	ErrNotInitialized = errors.New("storage not initialized")

	// ErrGitCommand indicates that a git subprocess exited with a failure
	ErrGitCommand = errors.New("git command failed")

	// ErrMalformedOutput indicates that git produced output that could not be parsed
	ErrMalformedOutput = errors.New("malformed git output")

	// ErrNotFound indicates that a note, ref or tree entry does not exist.
	// Backends translate it into an empty collection.
	ErrNotFound = errors.New("not found")

	// ErrRefConflict indicates that a ref moved between reading it and updating it
	ErrRefConflict = errors.New("ref update conflict")
)

// NotAGitRepositoryError is returned by Init when the target path is not a repository
type NotAGitRepositoryError struct {
	Path string
	Err  error
}

func (e *NotAGitRepositoryError) Error() string {
	return fmt.Sprintf("not a git repository: %s", e.Path)
}

// Is returns true if the target error is ErrNotAGitRepository
func (e *NotAGitRepositoryError) Is(target error) bool {
	return target == ErrNotAGitRepository
}

func (e *NotAGitRepositoryError) Unwrap() error {
	return e.Err
}

// NewNotAGitRepositoryError creates a new NotAGitRepositoryError
func NewNotAGitRepositoryError(path string, err error) *NotAGitRepositoryError {
	return &NotAGitRepositoryError{Path: path, Err: err}
}

// NotInitializedError is returned when a backend is used before Init
type NotInitializedError struct {
	Backend string
	Hint    string
}

func (e *NotInitializedError) Error() string {
	msg := fmt.Sprintf("%s storage not initialized", e.Backend)
	if e.Hint != "" {
		msg += ": " + e.Hint
	}
	return msg
}

// Is returns true if the target error is ErrNotInitialized
func (e *NotInitializedError) Is(target error) bool {
	return target == ErrNotInitialized
}

// NewNotInitializedError creates a new NotInitializedError
func NewNotInitializedError(backend, hint string) *NotInitializedError {
	return &NotInitializedError{Backend: backend, Hint: hint}
}

// GitCommandError represents an error from a git command execution
type GitCommandError struct {
	Command  string
	Args     []string
	Stdout   string
	Stderr   string
	ExitCode int
	Err      error
}

func (e *GitCommandError) Error() string {
	msg := fmt.Sprintf("git command failed: %s", e.Command)
	if len(e.Args) > 0 {
		msg += fmt.Sprintf(" %v", e.Args)
	}
	if e.ExitCode > 0 {
		msg += fmt.Sprintf(" (exit %d)", e.ExitCode)
	}
	if e.Stderr != "" {
		msg += fmt.Sprintf("\nstderr: %s", e.Stderr)
	}
	if e.Stdout != "" {
		msg += fmt.Sprintf("\nstdout: %s", e.Stdout)
	}
	if e.Err != nil {
		msg += fmt.Sprintf("\n%v", e.Err)
	}
	return msg
}

func (e *GitCommandError) Unwrap() error {
	return e.Err
}

// Is returns true if the target error is ErrGitCommand
func (e *GitCommandError) Is(target error) bool {
	return target == ErrGitCommand
}

// Subcommand returns the git subcommand that failed, skipping leading global options
// such as "--ref" values passed to "git notes".
func (e *GitCommandError) Subcommand() string {
	for _, arg := range e.Args {
		if len(arg) > 0 && arg[0] != '-' {
			return arg
		}
	}
	return ""
}

// NewGitCommandError creates a new GitCommandError
func NewGitCommandError(command string, args []string, stdout, stderr string, exitCode int, err error) *GitCommandError {
	return &GitCommandError{
		Command:  command,
		Args:     args,
		Stdout:   stdout,
		Stderr:   stderr,
		ExitCode: exitCode,
		Err:      err,
	}
}

// MalformedOutputError is returned when git output cannot be parsed
type MalformedOutputError struct {
	Subcommand string
	Output     string
	Reason     string
}

func (e *MalformedOutputError) Error() string {
	msg := fmt.Sprintf("malformed output from git %s", e.Subcommand)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Output != "" {
		msg += fmt.Sprintf(" (%q)", e.Output)
	}
	return msg
}

// Is returns true if the target error is ErrMalformedOutput
func (e *MalformedOutputError) Is(target error) bool {
	return target == ErrMalformedOutput
}

// NewMalformedOutputError creates a new MalformedOutputError
func NewMalformedOutputError(subcommand, output, reason string) *MalformedOutputError {
	return &MalformedOutputError{Subcommand: subcommand, Output: output, Reason: reason}
}

// RefConflictError reports that a ref no longer pointed at the expected value
type RefConflictError struct {
	Ref      string
	Expected string
	Err      error
}

func (e *RefConflictError) Error() string {
	msg := fmt.Sprintf("ref %s moved (expected %s)", e.Ref, e.Expected)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Is returns true if the target error is ErrRefConflict
func (e *RefConflictError) Is(target error) bool {
	return target == ErrRefConflict
}

func (e *RefConflictError) Unwrap() error {
	return e.Err
}

// NewRefConflictError creates a new RefConflictError
func NewRefConflictError(ref, expected string, err error) *RefConflictError {
	return &RefConflictError{Ref: ref, Expected: expected, Err: err}
}
