package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"cinebot/internal/config"
	logx "cinebot/pkg/logx"
)

var (
	cfgPath string
	verbose bool
	timeout time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "cinebot",
	Short: "Movie discovery and broadcast Telegram bot",
	Long: `cinebot answers movie title lookups in Telegram chats and periodically
broadcasts a sampled title to the configured channels.

Run without a subcommand to start the bot.`,
	SilenceUsage: true,
	RunE:         runBot,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the bot (default)",
	Args:  cobra.NoArgs,
	RunE:  runBot,
}

var resolveCmd = &cobra.Command{
	Use:   "resolve <title>",
	Short: "Resolve one title and print the result",
	Long: `Runs a single lookup through the same chain the bot uses: exact lookup,
search and details, trending correction, AI fallback. Telegram is not
contacted and the token is not required.`,
	Args: cobra.MinimumNArgs(1),
	RunE: resolveTitle,
}

var seedCmd = &cobra.Command{
	Use:   "seed <file>",
	Short: "Import broadcast entries into the content store",
	Long: `Reads a YAML or JSON list of entries, or a plain text file with one title
per line, and upserts them into the configured store.

Example entry:
  - title: Inception
    category: movies
    tmdb_id: 27205`,
	Args: cobra.ExactArgs(1),
	RunE: seedStore,
}

var trendingCmd = &cobra.Command{
	Use:   "trending",
	Short: "Print the aggregated trending titles",
	Args:  cobra.NoArgs,
	RunE:  printTrending,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "./config.json", "path to config json or yaml")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging for one-shot commands")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", time.Minute, "deadline for one-shot commands")

	resolveCmd.Flags().Bool("trace", false, "print the engine states visited")
	seedCmd.Flags().String("category", "movies", "category for entries that do not set one")

	rootCmd.AddCommand(runCmd, resolveCmd, seedCmd, trendingCmd)
}

// loadConfig parses without the full validation run requires, so one-shot
// commands work without a Telegram token.
func loadConfig() (*config.Config, error) {
	return config.NewConfigManager(cfgPath).Parse()
}

func cliLogger() logx.Logger {
	if verbose {
		return logx.NewConsole("DEBUG")
	}
	return logx.NewConsole("WARN")
}

func oneShotContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), timeout)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", strings.TrimSpace(err.Error()))
		os.Exit(1)
	}
}
