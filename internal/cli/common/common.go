// Package common provides shared helper functions for CLI commands.
package common

import (
	"context"
	"os"
	"slices"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"binnacle.dev/binnacle/internal/git"
	"binnacle.dev/binnacle/internal/runtime"
	"binnacle.dev/binnacle/internal/storage"
)

// Run is a helper that provides a runtime context to a command's execution function
func Run(cmd *cobra.Command, fn func(ctx context.Context, rc *runtime.Context) error) error {
	rc, err := runtime.GetContext(cmd.Context())
	if err != nil {
		return err
	}
	return fn(cmd.Context(), rc)
}

// IsTerminal reports whether stream is a terminal; only files can be.
func IsTerminal(stream any) bool {
	f, ok := stream.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// CompleteCollections is a helper for cobra.ValidArgsFunction that returns the known
// collection names plus any file already on the data branch.
func CompleteCollections(cmd *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	names := slices.Clone(storage.KnownCollections)

	repoPath, _ := cmd.Flags().GetString("repo")
	if repoPath == "" {
		repoPath = "."
	}
	if repo, err := git.OpenRepository(repoPath); err == nil {
		if files, err := repo.TreeFileNames(storage.DataRef); err == nil {
			for _, f := range files {
				if !slices.Contains(names, f) {
					names = append(names, f)
				}
			}
		}
	}
	return names, cobra.ShellCompDirectiveNoFileComp
}
