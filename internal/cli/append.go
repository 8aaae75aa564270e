package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"binnacle.dev/binnacle/internal/cli/common"
	"binnacle.dev/binnacle/internal/runtime"
)

// newAppendCmd creates the append command
func newAppendCmd() *cobra.Command {
	return &cobra.Command{
		Use:               "append <file> <record>",
		Short:             "Add one record to the end of a collection",
		Args:              cobra.ExactArgs(2),
		ValidArgsFunction: common.CompleteCollections,
		RunE: func(cmd *cobra.Command, args []string) error {
			return common.Run(cmd, func(ctx context.Context, rc *runtime.Context) error {
				filename, line := args[0], args[1]
				if strings.TrimSpace(line) == "" {
					return fmt.Errorf("refusing to append a blank record")
				}
				if strings.ContainsAny(line, "\r\n") {
					return fmt.Errorf("a record must be a single line")
				}

				b, err := rc.OpenBackend()
				if err != nil {
					return err
				}
				if err := b.AppendJSONL(ctx, filename, line); err != nil {
					return err
				}
				rc.Splog.Debug("appended to %s in %s", filename, b.Location())
				return nil
			})
		},
	}
}
