// Command learnings indexes and searches markdown learnings, either from the
// command line or as an MCP server on stdio.
package main

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/phuslu/log"
	"github.com/spf13/cobra"

	"github.com/dshills/learnings-mcp/internal/app"
	"github.com/dshills/learnings-mcp/internal/config"
	"github.com/dshills/learnings-mcp/internal/logging"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

var (
	flagConfig   string
	flagLogLevel string
)

var rootCmd = &cobra.Command{
	Use:           "learnings",
	Short:         "Semantic search over global and repository learnings",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "config file (default $CLAUDE_PLUGIN_ROOT/.claude-plugin/config.json)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level: trace, debug, info, warn, error")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Error().Err(err).Msg("command failed")
		stop()
		os.Exit(1)
	}
}

// loadConfig layers defaults, the config file, the environment and the
// --log-level flag, then installs the logger
func loadConfig() (*config.Config, error) {
	logging.Setup(flagLogLevel, os.Stderr)

	cfg, err := config.Load(config.LoadOptions{File: flagConfig})
	if err != nil {
		return nil, err
	}
	if flagLogLevel != "" {
		cfg.LogLevel = flagLogLevel
	}
	logging.Setup(cfg.LogLevel, os.Stderr)
	return cfg, nil
}

// openApp loads the configuration and opens the application
func openApp(ctx context.Context) (*app.App, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return app.New(ctx, cfg)
}

// writeJSON prints v as indented JSON
func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
