// Package commands implements the threadrouter CLI commands using cobra.
package commands

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jholhewres/threadrouter/pkg/threadrouter/service"
)

// NewRootCmd creates the root command with every subcommand registered.
func NewRootCmd(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "threadrouter",
		Short: "threadrouter - category menus for modmail threads",
		Long: `threadrouter offers the recipient of a new modmail thread a category menu
and moves the thread under the chosen category.

Examples:
  threadrouter serve
  threadrouter config category 123456789012345678 Billing
  threadrouter config preview
  threadrouter health
  threadrouter migrate --status`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		newServeCmd(),
		newConfigCmd(),
		newHealthCmd(),
		newMigrateCmd(),
	)

	rootCmd.PersistentFlags().StringP("config", "c", "", "path to the configuration file")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "enable debug logs")

	return rootCmd
}

// resolveConfig loads --config, a discovered file or the defaults.
func resolveConfig(cmd *cobra.Command) (*service.Config, error) {
	path, _ := cmd.Root().PersistentFlags().GetString("config")
	cfg, found, err := service.LoadOrDefault(path)
	if err != nil {
		return nil, err
	}
	if found != "" {
		slog.Debug("config loaded", "path", found)
	}
	return cfg, nil
}

// newLogger builds the process logger from the logging section and --verbose.
func newLogger(cmd *cobra.Command, cfg *service.Config, w io.Writer) *slog.Logger {
	verbose, _ := cmd.Root().PersistentFlags().GetBool("verbose")

	level := slog.LevelInfo
	switch strings.ToLower(cfg.Logging.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if verbose {
		level = slog.LevelDebug
	}

	if w == nil {
		w = os.Stdout
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Logging.Format == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}
