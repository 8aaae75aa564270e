package git

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os/exec"
	"strings"

	binnacleerrors "binnacle.dev/binnacle/internal/errors"
)

// CommandRunner handles execution of git commands in a single repository.
// No timeout is applied; cancellation comes only from the caller's context.
type CommandRunner struct {
	workingDir string
	logger     *slog.Logger
}

// NewCommandRunner creates a new CommandRunner
func NewCommandRunner(workingDir string, logger *slog.Logger) *CommandRunner {
	return &CommandRunner{workingDir: workingDir, logger: logger}
}

// WorkingDir returns the directory git is run in.
func (r *CommandRunner) WorkingDir() string {
	return r.workingDir
}

// Run executes a git command and returns the trimmed output
func (r *CommandRunner) Run(ctx context.Context, args ...string) (string, error) {
	out, err := r.run(ctx, nil, args...)
	return strings.TrimSpace(out), err
}

// RunRaw executes a git command and returns stdout untouched
func (r *CommandRunner) RunRaw(ctx context.Context, args ...string) (string, error) {
	return r.run(ctx, nil, args...)
}

// RunWithInput executes a git command with input piped to stdin and returns the trimmed output.
// The input is always attached, so an empty string sends an empty stream rather than no stdin.
func (r *CommandRunner) RunWithInput(ctx context.Context, input string, args ...string) (string, error) {
	out, err := r.run(ctx, strings.NewReader(input), args...)
	return strings.TrimSpace(out), err
}

func (r *CommandRunner) run(ctx context.Context, stdin io.Reader, args ...string) (string, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	cmd := exec.CommandContext(ctx, "git", args...)
	if r.workingDir != "" {
		cmd.Dir = r.workingDir
	}
	if stdin != nil {
		cmd.Stdin = stdin
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if r.logger != nil {
		r.logger.Debug("git", "args", args, "dir", r.workingDir, "err", err)
	}
	if err != nil {
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		return "", binnacleerrors.NewGitCommandError("git", args, stdout.String(), strings.TrimSpace(stderr.String()), exitCode, err)
	}
	return stdout.String(), nil
}

// exitCode returns the exit code carried by a git command error, or -1.
func exitCode(err error) int {
	var gitErr *binnacleerrors.GitCommandError
	if errors.As(err, &gitErr) {
		return gitErr.ExitCode
	}
	return -1
}
