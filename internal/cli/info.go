package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"binnacle.dev/binnacle/internal/cli/common"
	"binnacle.dev/binnacle/internal/git"
	"binnacle.dev/binnacle/internal/output"
	"binnacle.dev/binnacle/internal/runtime"
	"binnacle.dev/binnacle/internal/storage"
)

const infoLabelWidth = 20

// newInfoCmd creates the info command
func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Display the backend, its location and collection sizes",
		Long: `Display which backend is in use and why, where its data lives, the tip and
length of its ref, and how many records each known collection holds.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return common.Run(cmd, func(ctx context.Context, rc *runtime.Context) error {
				kind, source, err := rc.ResolveBackend()
				if err != nil {
					return err
				}
				b, err := storage.Open(kind, rc.RepoRoot, rc.StorageOptions())
				if err != nil {
					return err
				}

				styler := output.NewStyler(rc.Splog.Out())
				field := func(label, value string) {
					rc.Splog.Print(styler.Field(label, infoLabelWidth, value))
				}

				field("backend", fmt.Sprintf("%s (from %s)", kind, source))
				field("location", b.Location())

				exists, err := b.Exists(ctx, rc.RepoRoot)
				if err != nil {
					return err
				}
				if !exists {
					rc.Splog.Print("%s %s", styler.Label(fmt.Sprintf("%-*s", infoLabelWidth, "status:")), styler.Warn("not initialized"))
					return nil
				}

				repo, err := git.OpenRepository(rc.RepoRoot)
				if err != nil {
					return err
				}
				ref, err := repo.InspectRef(storage.RefName(kind))
				if err != nil {
					return fmt.Errorf("failed to inspect %s: %w", storage.RefName(kind), err)
				}
				field("ref", ref.Name)
				field("tip", ref.Hash)
				field("commits", fmt.Sprintf("%d", ref.CommitCount))

				for _, name := range storage.KnownCollections {
					lines, err := b.ReadJSONL(ctx, name)
					if err != nil {
						return err
					}
					field(name, fmt.Sprintf("%d records", len(lines)))
				}
				return nil
			})
		},
	}
}
