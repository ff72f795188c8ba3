package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/RuliLG/docc/internal/config"
)

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "docc",
	Short: "Narrated code walkthroughs from repository questions",
	Long: `docc asks a local CLI agent (Claude Code or OpenCode) a question about a
repository, turns the answer into a block-by-block presentation script,
narrates it with text-to-speech and plays it back in the terminal.

Examples:
  docc generate ./myrepo "How does authentication work?"
  docc present myrepo_20250115_143012
  docc sessions`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(presentCmd)
	rootCmd.AddCommand(sessionsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (config.Config, *slog.Logger, error) {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logger, nil
}
