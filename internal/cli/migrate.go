package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"

	"binnacle.dev/binnacle/internal/cli/common"
	"binnacle.dev/binnacle/internal/config"
	binnacleerrors "binnacle.dev/binnacle/internal/errors"
	"binnacle.dev/binnacle/internal/runtime"
	"binnacle.dev/binnacle/internal/storage"
)

// newMigrateCmd creates the migrate command
func newMigrateCmd() *cobra.Command {
	var (
		from       string
		to         string
		setDefault bool
		yes        bool
	)

	cmd := &cobra.Command{
		Use:   "migrate --to <backend> [files...]",
		Short: "Copy collections from one backend to the other",
		Long: `Copy collections from one backend to the other, replacing what the target holds.
The source defaults to the backend currently in use; the target is initialized if
needed. With no files, the known collections are copied. The source is left as is.
On a terminal, replacing non-empty target collections asks for confirmation first.`,
		ValidArgsFunction: common.CompleteCollections,
		RunE: func(cmd *cobra.Command, args []string) error {
			return common.Run(cmd, func(ctx context.Context, rc *runtime.Context) error {
				if from == "" {
					kind, _, err := rc.ResolveBackend()
					if err != nil {
						return err
					}
					from = kind
				}
				srcKind, dstKind := storage.ParseType(from), storage.ParseType(to)
				if srcKind == "" {
					return fmt.Errorf("unknown source backend %q", from)
				}
				if dstKind == "" {
					return fmt.Errorf("unknown target backend %q", to)
				}
				if srcKind == dstKind {
					return fmt.Errorf("source and target are both %s", srcKind)
				}

				src, err := storage.Open(srcKind, rc.RepoRoot, rc.StorageOptions())
				if err != nil {
					return err
				}
				exists, err := src.Exists(ctx, rc.RepoRoot)
				if err != nil {
					return err
				}
				if !exists {
					return binnacleerrors.NewNotInitializedError(srcKind, "nothing to migrate in "+rc.RepoRoot)
				}

				dst, err := storage.New(dstKind, rc.StorageOptions())
				if err != nil {
					return err
				}
				if err := dst.Init(ctx, rc.RepoRoot); err != nil {
					return err
				}

				filenames := args
				if len(filenames) == 0 {
					filenames = storage.KnownCollections
				}
				if !yes && common.IsTerminal(cmd.InOrStdin()) && common.IsTerminal(rc.Splog.Out()) {
					proceed, err := confirmOverwrite(ctx, dst, filenames)
					if err != nil {
						return err
					}
					if !proceed {
						rc.Splog.Info("Nothing migrated")
						return nil
					}
				}

				result, err := storage.Copy(ctx, src, dst, filenames)
				if err != nil {
					return err
				}
				for _, name := range filenames {
					rc.Splog.Print("%s: %d records", name, result.Collections[name])
				}
				rc.Splog.Info("Copied %d records from %s to %s", result.Total(), srcKind, dstKind)

				if setDefault {
					if err := config.SetBackend(rc.RepoRoot, dstKind); err != nil {
						return fmt.Errorf("failed to save backend choice: %w", err)
					}
					rc.Splog.Info("%s is now the default backend", dstKind)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "Source backend (defaults to the backend in use)")
	cmd.Flags().StringVar(&to, "to", "", "Target backend")
	cmd.Flags().BoolVar(&setDefault, "set-default", false, "Make the target the repository's default backend")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Replace target collections without asking")
	_ = cmd.MarkFlagRequired("to")

	return cmd
}

// confirmOverwrite asks before replacing target collections that already hold records.
func confirmOverwrite(ctx context.Context, dst storage.Backend, filenames []string) (bool, error) {
	var nonEmpty []string
	for _, name := range filenames {
		lines, err := dst.ReadJSONL(ctx, name)
		if err != nil {
			return false, err
		}
		if len(lines) > 0 {
			nonEmpty = append(nonEmpty, name)
		}
	}
	if len(nonEmpty) == 0 {
		return true, nil
	}

	proceed := false
	prompt := &survey.Confirm{
		Message: fmt.Sprintf("Replace %s in %s?", strings.Join(nonEmpty, ", "), dst.BackendType()),
		Default: false,
	}
	if err := survey.AskOne(prompt, &proceed); err != nil {
		return false, fmt.Errorf("canceled")
	}
	return proceed, nil
}
