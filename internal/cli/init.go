package cli

import (
	"context"

	"github.com/spf13/cobra"

	"binnacle.dev/binnacle/internal/cli/common"
	"binnacle.dev/binnacle/internal/config"
	"binnacle.dev/binnacle/internal/runtime"
	"binnacle.dev/binnacle/internal/storage"
)

// newInitCmd creates the init command
func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the storage structure in the repository",
		Long: `Create the storage structure for the selected backend if it does not exist yet,
and remember the backend in .git/.binnacle_config. Running init again is harmless.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return common.Run(cmd, func(ctx context.Context, rc *runtime.Context) error {
				kind, source, err := rc.ResolveBackend()
				if err != nil {
					return err
				}
				b, err := storage.New(kind, rc.StorageOptions())
				if err != nil {
					return err
				}
				if err := b.Init(ctx, rc.RepoRoot); err != nil {
					return err
				}
				rc.Splog.Debug("backend %s selected from %s", kind, source)

				if err := config.SetBackend(rc.RepoRoot, kind); err != nil {
					rc.Splog.Warn("could not save backend choice: %v", err)
				}
				rc.Splog.Print("Initialized %s storage: %s", b.BackendType(), b.Location())
				return nil
			})
		},
	}
}
