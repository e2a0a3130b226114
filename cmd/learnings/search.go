package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/dshills/learnings-mcp/internal/searcher"
)

var (
	flagWorkingDir    string
	flagMaxResults    int
	flagPeek          bool
	flagExclude       []string
	flagHighThreshold float64
)

var searchCmd = &cobra.Command{
	Use:   "search <keyword>...",
	Short: "Search learnings, one parallel sub-query per keyword",
	Long: `Search learnings visible from the working directory. Each argument is a
separate keyword; the first may carry tag:<name> and category:<topic> filters.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().StringVar(&flagWorkingDir, "working-dir", "", "directory whose repositories are in scope (default: current directory)")
	searchCmd.Flags().IntVarP(&flagMaxResults, "max-results", "n", searcher.DefaultMaxResults, "maximum learnings to return")
	searchCmd.Flags().BoolVar(&flagPeek, "peek", false, "return a single list, high-confidence first")
	searchCmd.Flags().StringSliceVar(&flagExclude, "exclude", nil, "learning ids to leave out")
	searchCmd.Flags().Float64Var(&flagHighThreshold, "high-threshold", 0, "override the high-confidence threshold")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	req := searcher.Request{
		Keywords:   args,
		MaxResults: flagMaxResults,
		ExcludeIDs: flagExclude,
		Peek:       flagPeek,
	}
	if cmd.Flags().Changed("high-threshold") {
		req.HighThreshold = &flagHighThreshold
	}

	resp := search(cmd.Context(), req)
	if err := writeJSON(cmd.OutOrStdout(), resp); err != nil {
		return err
	}
	if resp.Status == searcher.StatusError {
		return resp.Err
	}
	return nil
}

// search runs req against the configured store. Failures to open the
// application are reported as an error response like any other.
func search(ctx context.Context, req searcher.Request) *searcher.Response {
	a, err := openApp(ctx)
	if err != nil {
		return searcher.ErrorResponse(req, err)
	}
	defer func() { _ = a.Close() }()

	repos, err := a.ScopeRepos(flagWorkingDir)
	if err != nil {
		return searcher.ErrorResponse(req, err)
	}
	req.ScopeRepos = repos
	return a.Searcher.Search(ctx, req)
}
