// Command rumormill runs a social prediction-market game: a cast of NPCs
// drips clues about a hidden YES/NO outcome while agents trade, talk, and
// try to out-read one another before the reveal.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var version = "0.1.0-dev"

func main() {
	// Best effort; a missing .env is fine.
	godotenv.Load()

	rootCmd := &cobra.Command{
		Use:   "rumormill",
		Short: "Rumormill - a social prediction-market game",
		Long: `rumormill orchestrates a multi-day prediction-market game. NPCs seed a
social feed with clues of varying reliability, agents bet against an
automated market maker, and the hidden outcome settles everything on the
final day.`,
	}

	rootCmd.PersistentFlags().String("config", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().String("scenario", "", "Path to a YAML scenario file (overrides config)")

	rootCmd.AddCommand(
		newVersionCmd(),
		newRunCmd(),
		newSimulateCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("rumormill version %s\n", version)
		},
	}
}

func setupLogging(level string) {
	lvl := slog.LevelInfo
	if level == "debug" {
		lvl = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: lvl,
	}))
	slog.SetDefault(logger)
}
