package main

import (
	"context"
	"errors"

	"github.com/phuslu/log"
	"github.com/spf13/cobra"
)

var flagWatch bool

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Index every global and repository learning",
	Args:  cobra.NoArgs,
	RunE:  runIndex,
}

var indexFileCmd = &cobra.Command{
	Use:   "index-file <path>",
	Short: "Index or remove a single learning file",
	Args:  cobra.ExactArgs(1),
	RunE:  runIndexFile,
}

func init() {
	indexCmd.Flags().BoolVarP(&flagWatch, "watch", "w", false, "keep running and re-index learnings as they change")
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(indexFileCmd)
}

func runIndex(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	stats, err := a.Indexer.IndexAll(ctx)
	if err != nil {
		return err
	}
	if err := writeJSON(cmd.OutOrStdout(), stats); err != nil {
		return err
	}
	if !flagWatch {
		return nil
	}

	changes, err := a.Indexer.Watch(ctx)
	if err != nil {
		return err
	}
	for change := range changes {
		if err := a.Indexer.Apply(ctx, change); err != nil {
			log.Warn().Str("file", change.Path).Str("change", string(change.Type)).Err(err).Msg("failed to apply change")
			continue
		}
		log.Info().Str("file", change.Path).Str("change", string(change.Type)).Msg("learning updated")
	}
	if err := ctx.Err(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func runIndexFile(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	learning, err := a.Indexer.IndexFile(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if learning == nil {
		return writeJSON(cmd.OutOrStdout(), map[string]string{"status": "removed", "path": args[0]})
	}
	return writeJSON(cmd.OutOrStdout(), map[string]interface{}{
		"status":   "indexed",
		"id":       learning.ID,
		"metadata": learning.Metadata,
	})
}
