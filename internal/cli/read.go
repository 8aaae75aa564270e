package cli

import (
	"context"
	"fmt"
	"strconv"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"binnacle.dev/binnacle/internal/cli/common"
	"binnacle.dev/binnacle/internal/output"
	"binnacle.dev/binnacle/internal/runtime"
)

// newReadCmd creates the read command
func newReadCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "read <file>",
		Short: "Print the records of a collection",
		Long: `Print every record of a collection in write order, one per line.
A collection that was never written prints nothing. On a terminal, records are
numbered. With --json, the collection is printed as a single JSON array.`,
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: common.CompleteCollections,
		RunE: func(cmd *cobra.Command, args []string) error {
			return common.Run(cmd, func(ctx context.Context, rc *runtime.Context) error {
				b, err := rc.OpenBackend()
				if err != nil {
					return err
				}
				lines, err := b.ReadJSONL(ctx, args[0])
				if err != nil {
					return err
				}

				switch {
				case asJSON:
					data, err := encodeRecords(lines)
					if err != nil {
						return err
					}
					rc.Splog.Page(string(data) + "\n")
				case common.IsTerminal(rc.Splog.Out()):
					styler := output.NewStyler(rc.Splog.Out())
					width := len(strconv.Itoa(len(lines)))
					for i, line := range lines {
						rc.Splog.Page(styler.Dim(fmt.Sprintf("%*d", width, i+1)) + " " + line + "\n")
					}
				default:
					for _, line := range lines {
						rc.Splog.Page(line + "\n")
					}
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the collection as a JSON array")

	return cmd
}

// encodeRecords renders lines as a JSON array. Lines holding valid JSON are embedded
// as-is; anything else becomes a JSON string.
func encodeRecords(lines []string) ([]byte, error) {
	records := make([]json.RawMessage, 0, len(lines))
	for _, line := range lines {
		if json.Valid([]byte(line)) {
			records = append(records, json.RawMessage(line))
			continue
		}
		quoted, err := json.Marshal(line)
		if err != nil {
			return nil, fmt.Errorf("failed to encode record: %w", err)
		}
		records = append(records, quoted)
	}
	return json.MarshalIndent(records, "", "  ")
}
