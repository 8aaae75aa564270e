package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"binnacle.dev/binnacle/internal/cli/common"
	"binnacle.dev/binnacle/internal/runtime"
	"binnacle.dev/binnacle/internal/utils"
)

// newWriteCmd creates the write command
func newWriteCmd() *cobra.Command {
	var allowEmpty bool

	cmd := &cobra.Command{
		Use:   "write <file> [records...]",
		Short: "Replace a collection",
		Long: `Replace the whole collection with the given records. With no records on the
command line, records are read from stdin, one per line; blank lines are skipped.
Clearing a collection requires --allow-empty.`,
		Args:              cobra.MinimumNArgs(1),
		ValidArgsFunction: common.CompleteCollections,
		RunE: func(cmd *cobra.Command, args []string) error {
			return common.Run(cmd, func(ctx context.Context, rc *runtime.Context) error {
				filename, lines := args[0], args[1:]
				if len(lines) == 0 {
					var err error
					lines, err = utils.ReadLines(cmd.InOrStdin())
					if err != nil {
						return fmt.Errorf("failed to read records from stdin: %w", err)
					}
				}
				if len(lines) == 0 && !allowEmpty {
					return fmt.Errorf("no records given for %s; pass --allow-empty to clear it", filename)
				}

				b, err := rc.OpenBackend()
				if err != nil {
					return err
				}
				if err := b.WriteJSONL(ctx, filename, lines); err != nil {
					return err
				}
				rc.Splog.Debug("wrote %d records to %s in %s", len(lines), filename, b.Location())
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&allowEmpty, "allow-empty", false, "Allow replacing the collection with nothing")

	return cmd
}
