package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"binnacle.dev/binnacle/internal/cli/common"
	"binnacle.dev/binnacle/internal/runtime"
)

// newExistsCmd creates the exists command
func newExistsCmd() *cobra.Command {
	var quiet bool

	cmd := &cobra.Command{
		Use:   "exists",
		Short: "Report whether the storage structure exists",
		Long: `Print true or false depending on whether the selected backend's storage
structure exists. Nothing is created. With --quiet, nothing is printed and the
exit status is non-zero when the structure is missing.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return common.Run(cmd, func(ctx context.Context, rc *runtime.Context) error {
				b, err := rc.OpenBackend()
				if err != nil {
					return err
				}
				exists, err := b.Exists(ctx, rc.RepoRoot)
				if err != nil {
					return err
				}
				if quiet {
					if !exists {
						cmd.SilenceErrors = true
						return fmt.Errorf("%s storage does not exist", b.BackendType())
					}
					return nil
				}
				rc.Splog.Print("%t", exists)
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Only set the exit status")

	return cmd
}
