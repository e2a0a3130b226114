package main

import (
	"github.com/spf13/cobra"

	"github.com/dshills/learnings-mcp/internal/consolidate"
	"github.com/dshills/learnings-mcp/pkg/types"
)

var (
	flagMode      string
	flagLimit     int
	flagThreshold float64

	flagScope     string
	flagName      string
	flagOutputDir string
	flagDryRun    bool
)

var consolidateCmd = &cobra.Command{
	Use:   "consolidate",
	Short: "Find duplicate, outdated and promotable learnings",
	Long: `Without a subcommand, report consolidation candidates. The subcommands act
on them; every file they remove is first backed up under the archive directory.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		mode, err := consolidate.ParseMode(flagMode)
		if err != nil {
			return err
		}

		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer func() { _ = a.Close() }()

		report, err := a.Consolidate(cmd.Context(), mode, flagLimit, flagThreshold)
		if err != nil {
			return err
		}
		return writeJSON(cmd.OutOrStdout(), report)
	},
}

var consolidateGetCmd = &cobra.Command{
	Use:   "get <id>...",
	Short: "Print the full learnings",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAction(consolidate.ActionGet),
}

var consolidateDeleteCmd = &cobra.Command{
	Use:   "delete <id>...",
	Short: "Back up and delete learnings",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAction(consolidate.ActionDelete),
}

var consolidateArchiveCmd = &cobra.Command{
	Use:   "archive <id>...",
	Short: "Move learnings into the dated archive directory",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAction(consolidate.ActionArchive),
}

var consolidateRescopeCmd = &cobra.Command{
	Use:   "rescope <id>",
	Short: "Move a repository learning to the global directory",
	Args:  cobra.ExactArgs(1),
	RunE:  runAction(consolidate.ActionRescope),
}

var consolidateMergeCmd = &cobra.Command{
	Use:   "merge <id> <id>...",
	Short: "Merge learnings into one file and remove the sources",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runAction(consolidate.ActionMerge),
}

// runAction returns a RunE that applies action to the ids given as arguments
func runAction(action consolidate.Action) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer func() { _ = a.Close() }()

		result, err := a.Actions.Do(cmd.Context(), consolidate.ActionRequest{
			Action:    action,
			IDs:       args,
			Scope:     types.Scope(flagScope),
			Name:      flagName,
			OutputDir: flagOutputDir,
			DryRun:    flagDryRun,
		})
		if result != nil {
			if werr := writeJSON(cmd.OutOrStdout(), result); werr != nil && err == nil {
				err = werr
			}
		}
		return err
	}
}

func init() {
	consolidateCmd.Flags().StringVar(&flagMode, "mode", string(consolidate.ModeAll), "all, duplicates, outdated or scope")
	consolidateCmd.Flags().IntVar(&flagLimit, "limit", consolidate.DefaultLimit, "maximum items per category")
	consolidateCmd.Flags().Float64Var(&flagThreshold, "threshold", 0, "duplicate distance threshold (default from configuration)")

	consolidateRescopeCmd.Flags().StringVar(&flagScope, "scope", string(types.ScopeGlobal), "target scope")
	consolidateMergeCmd.Flags().StringVar(&flagName, "name", "", "kebab-case name of the merged learning")
	consolidateMergeCmd.Flags().StringVar(&flagOutputDir, "output-dir", "", "directory for the merged learning (default chosen from the sources' scope)")
	consolidateMergeCmd.Flags().BoolVar(&flagDryRun, "dry-run", false, "show what would happen without changing anything")
	_ = consolidateMergeCmd.MarkFlagRequired("name")

	consolidateCmd.AddCommand(consolidateGetCmd, consolidateDeleteCmd, consolidateArchiveCmd,
		consolidateRescopeCmd, consolidateMergeCmd)
	rootCmd.AddCommand(consolidateCmd)
}
