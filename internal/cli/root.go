package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"binnacle.dev/binnacle/internal/output"
	"binnacle.dev/binnacle/internal/runtime"
)

// NewRootCmd creates the root cobra command
func NewRootCmd(version, commit, date string) *cobra.Command {
	var (
		repo    string
		backend string
		debug   bool
		splog   *output.Splog
	)

	rootCmd := &cobra.Command{
		Use:   "binnacle-store",
		Short: "Store JSONL collections inside a git repository",
		Long: `binnacle-store keeps JSONL collections (tasks, commits, test results) inside a
git repository's object database, either as git notes or on an orphan branch.
The working tree, the index and the checked-out branch are never touched.`,
		Version:      fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg := output.Config{
				Out:         cmd.OutOrStdout(),
				Err:         cmd.ErrOrStderr(),
				Debug:       debug,
				LogFilePath: output.GetLogFilePath(),
			}
			s, err := output.NewSplogWithConfig(cfg)
			if err != nil {
				cfg.LogFilePath = ""
				s, _ = output.NewSplogWithConfig(cfg)
				s.Debug("file logging disabled: %v", err)
			}
			splog = s

			rc, err := runtime.NewContext(splog, repo, backend)
			if err != nil {
				return err
			}
			cmd.SetContext(runtime.WithContext(cmd.Context(), rc))
			return nil
		},
		PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
			if splog != nil {
				return splog.Close()
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&repo, "repo", "C", "", "Path to the git repository (defaults to the current directory)")
	rootCmd.PersistentFlags().StringVarP(&backend, "backend", "b", "", "Storage backend: git-notes or orphan-branch (overrides BINNACLE_BACKEND and the repo config)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Print debug output, including every git invocation")

	rootCmd.AddCommand(newInitCmd())
	rootCmd.AddCommand(newExistsCmd())
	rootCmd.AddCommand(newReadCmd())
	rootCmd.AddCommand(newAppendCmd())
	rootCmd.AddCommand(newWriteCmd())
	rootCmd.AddCommand(newInfoCmd())
	rootCmd.AddCommand(newMigrateCmd())

	return rootCmd
}
