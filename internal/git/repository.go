package git

import (
	"errors"
	"fmt"
	"path/filepath"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"
)

// Repository wraps a go-git repository for read-only inspection.
// All writes go through Client; go-git is only used to look at the result.
type Repository struct {
	*gogit.Repository
	path string
}

// RefInfo describes the tip of a ref and the history behind it.
type RefInfo struct {
	Name        string
	Hash        string
	CommitCount int
	// RootParents is the parent count of the oldest commit reachable by first-parent
	// traversal; zero means the history starts with an orphan commit.
	RootParents int
}

// OpenRepository opens a git repository at the given path
func OpenRepository(path string) (*Repository, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path: %w", err)
	}

	repo, err := gogit.PlainOpenWithOptions(absPath, &gogit.PlainOpenOptions{
		DetectDotGit: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open repository: %w", err)
	}

	return &Repository{
		Repository: repo,
		path:       absPath,
	}, nil
}

// Path returns the path the repository was opened from
func (r *Repository) Path() string {
	return r.path
}

// InspectRef returns the tip of a fully qualified ref and walks its first-parent history.
// A missing ref returns plumbing.ErrReferenceNotFound.
func (r *Repository) InspectRef(name string) (*RefInfo, error) {
	ref, err := r.Reference(plumbing.ReferenceName(name), true)
	if err != nil {
		return nil, err
	}

	info := &RefInfo{Name: name, Hash: ref.Hash().String()}
	commit, err := r.CommitObject(ref.Hash())
	if err != nil {
		return nil, fmt.Errorf("failed to read commit %s: %w", ref.Hash(), err)
	}
	for {
		info.CommitCount++
		info.RootParents = commit.NumParents()
		if commit.NumParents() == 0 {
			break
		}
		parent, err := commit.Parent(0)
		if err != nil {
			return nil, fmt.Errorf("failed to read parent of %s: %w", commit.Hash, err)
		}
		commit = parent
	}
	return info, nil
}

// TreeFileNames lists the file names in the tree of the commit a ref points at.
func (r *Repository) TreeFileNames(name string) ([]string, error) {
	ref, err := r.Reference(plumbing.ReferenceName(name), true)
	if err != nil {
		return nil, err
	}
	commit, err := r.CommitObject(ref.Hash())
	if err != nil {
		return nil, fmt.Errorf("failed to read commit %s: %w", ref.Hash(), err)
	}
	tree, err := commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("failed to read tree: %w", err)
	}

	var names []string
	err = tree.Files().ForEach(func(f *object.File) error {
		names = append(names, f.Name)
		return nil
	})
	if err != nil && !errors.Is(err, storer.ErrStop) {
		return nil, err
	}
	return names, nil
}
