package runtime

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"binnacle.dev/binnacle/internal/config"
	"binnacle.dev/binnacle/internal/output"
	"binnacle.dev/binnacle/internal/storage"
)

type contextKey struct{}

// Context provides access to the repository, backend selection and output for commands
type Context struct {
	Splog    *output.Splog
	RepoRoot string
	// BackendFlag is the raw --backend value; empty defers to env and config
	BackendFlag string
}

// NewContext creates a new context for the repository at repoRoot.
// An empty repoRoot means the current directory.
func NewContext(splog *output.Splog, repoRoot, backendFlag string) (*Context, error) {
	if repoRoot == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		repoRoot = wd
	}
	abs, err := filepath.Abs(repoRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", repoRoot, err)
	}
	return &Context{Splog: splog, RepoRoot: abs, BackendFlag: backendFlag}, nil
}

// WithContext stores rc in ctx
func WithContext(ctx context.Context, rc *Context) context.Context {
	return context.WithValue(ctx, contextKey{}, rc)
}

// GetContext returns the Context stored by WithContext
func GetContext(ctx context.Context) (*Context, error) {
	if ctx == nil {
		return nil, fmt.Errorf("no command context")
	}
	rc, ok := ctx.Value(contextKey{}).(*Context)
	if !ok || rc == nil {
		return nil, fmt.Errorf("no command context")
	}
	return rc, nil
}

// StorageOptions routes backend logging through the command's logger
func (c *Context) StorageOptions() storage.Options {
	return storage.Options{Logger: c.Splog.Slog()}
}

// ResolveBackend returns the effective backend type and where it came from
func (c *Context) ResolveBackend() (string, config.Source, error) {
	return config.ResolveBackend(c.RepoRoot, c.BackendFlag)
}

// OpenBackend returns the effective backend bound to the repository, without initializing it
func (c *Context) OpenBackend() (storage.Backend, error) {
	kind, source, err := c.ResolveBackend()
	if err != nil {
		return nil, err
	}
	c.Splog.Debug("using %s backend (from %s)", kind, source)
	return storage.Open(kind, c.RepoRoot, c.StorageOptions())
}
