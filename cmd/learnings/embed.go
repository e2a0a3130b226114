package main

import (
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/learnings-mcp/internal/embedder"
)

var embedCmd = &cobra.Command{
	Use:   "embed <text>...",
	Short: "Embed text with the configured provider to check that the model is reachable",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		emb := embedder.New(embedder.Config{
			Provider:  cfg.Embedding.Provider,
			Model:     cfg.Embedding.Model,
			BaseURL:   cfg.Embedding.BaseURL,
			APIKey:    cfg.Embedding.APIKey,
			CacheSize: cfg.Embedding.CacheSize,
		})
		defer func() { _ = emb.Close() }()

		start := time.Now()
		e, err := emb.GenerateEmbedding(cmd.Context(), embedder.EmbeddingRequest{Text: strings.Join(args, " ")})
		if err != nil {
			return err
		}

		preview := e.Vector
		if len(preview) > 5 {
			preview = preview[:5]
		}
		return writeJSON(cmd.OutOrStdout(), map[string]interface{}{
			"provider":   e.Provider,
			"model":      e.Model,
			"dimension":  e.Dimension,
			"preview":    preview,
			"elapsed_ms": time.Since(start).Milliseconds(),
		})
	},
}

func init() {
	rootCmd.AddCommand(embedCmd)
}
