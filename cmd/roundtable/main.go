package main

import (
	"fmt"
	"os"

	"github.com/biodoia/roundtable/cmd/roundtable/commands"
	"github.com/spf13/cobra"
)

var (
	version = "1.0.0"
	commit  = "dev"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "roundtable",
		Short: "Roundtable - multi-persona discussions on an OpenAI-compatible model",
		Long: `Roundtable - multi-persona discussions

Several characters take turns discussing a topic for a fixed number of
rounds. Every character is an agent on an OpenAI-compatible endpoint
(vLLM, llama.cpp, OpenAI); transcripts are stored per session and each
turn is traced to Langfuse.

Features:
  • Characters from a JSON file, with built-in defaults
  • Streamed or batch output, in the terminal or a live TUI
  • HTTP API with Server-Sent Events
  • SQLite, PostgreSQL or Redis session store`,
		Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to config file")
	rootCmd.PersistentFlags().StringP("log-level", "l", "", "Log level (debug, info, warn, error); overrides logging.level")
	rootCmd.PersistentFlags().String("log-format", "", "Log format (console, json); overrides logging.format")

	// Add all commands
	rootCmd.AddCommand(commands.ChatCmd)
	rootCmd.AddCommand(commands.AskCmd)
	rootCmd.AddCommand(commands.CharactersCmd)
	rootCmd.AddCommand(commands.SessionsCmd)
	rootCmd.AddCommand(commands.ServeCmd)
	rootCmd.AddCommand(commands.DoctorCmd)
	rootCmd.AddCommand(commands.InitCmd)
	rootCmd.AddCommand(commands.ConfigCmd)

	// Add version command
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("roundtable version %s\n", version)
			fmt.Printf("Commit: %s\n", commit)
		},
	})

	// Execute
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
