package storage

import (
	"context"
	"errors"

	binnacleerrors "binnacle.dev/binnacle/internal/errors"
	"binnacle.dev/binnacle/internal/git"
)

// binding holds what a backend knows about its repository between calls:
// the git client and whether the durable structure is known to exist.
type binding struct {
	opts        Options
	client      git.Client
	initialized bool
}

func newBinding(opts Options) binding {
	return binding{opts: opts.withDefaults()}
}

func (b *binding) bind(repoPath string) {
	b.client = b.opts.ClientFactory(repoPath)
	b.initialized = false
}

func (b *binding) repoPath() string {
	if b.client == nil {
		return ""
	}
	return b.client.RepoPath()
}

// refPresent reports whether ref exists in the repository at repoPath. A path that is
// not a repository simply has no durable structure.
func (b *binding) refPresent(ctx context.Context, repoPath, ref string) (bool, error) {
	client := b.opts.ClientFactory(repoPath)
	if err := client.IsRepository(ctx); err != nil {
		if errors.Is(err, binnacleerrors.ErrNotAGitRepository) {
			return false, nil
		}
		return false, err
	}
	return client.RefExists(ctx, ref)
}

// ready checks the backend may serve reads and writes: either Init succeeded in
// this process, or the durable structure named by ref already exists.
func (b *binding) ready(ctx context.Context, backend, ref string) error {
	if b.client == nil {
		return binnacleerrors.NewNotInitializedError(backend, "no repository bound, call Init first")
	}
	if b.initialized {
		return nil
	}
	exists, err := b.client.RefExists(ctx, ref)
	if err != nil {
		return err
	}
	if !exists {
		return binnacleerrors.NewNotInitializedError(backend, ref+" does not exist in "+b.client.RepoPath())
	}
	b.initialized = true
	return nil
}
