package commands

import (
	"encoding/json"
	"fmt"

	"github.com/biodoia/roundtable/internal/console"
	"github.com/biodoia/roundtable/internal/persona"
	"github.com/spf13/cobra"
)

// CharactersCmd rappresenta il comando characters
var CharactersCmd = &cobra.Command{
	Use:   "characters [file]",
	Short: "List and validate discussion characters",
	Long: `Load a characters file the same way a discussion does and print the
resolved characters, the entries that were skipped and whether the
built-in defaults were used instead.`,
	Example: `  # Characters from chat.characters_file
  roundtable characters

  # Validate a specific file, failing if it cannot be used
  roundtable characters team.json --strict

  # Machine-readable output
  roundtable characters --json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCharacters,
}

var (
	charactersStrict  bool
	charactersJSON    bool
	charactersNoColor bool
)

func init() {
	CharactersCmd.Flags().BoolVar(&charactersStrict, "strict", false, "Fail on skipped entries or fallback to defaults")
	CharactersCmd.Flags().BoolVar(&charactersJSON, "json", false, "Print the resolved characters as JSON")
	CharactersCmd.Flags().BoolVar(&charactersNoColor, "no-color", false, "Disable colored output")
}

func runCharacters(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	path := cfg.Chat.CharactersFile
	if len(args) == 1 {
		path = args[0]
	}

	result := persona.Load(path)

	if charactersJSON {
		data, err := json.MarshalIndent(map[string]any{"characters": result.Personas}, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
	} else {
		renderer := console.NewRenderer(cmd.OutOrStdout())
		if charactersNoColor {
			renderer.DisableColor()
		}
		renderer.Personas(result)
	}

	if charactersStrict {
		if result.FallbackReason != nil {
			return fmt.Errorf("characters file %s not usable: %w", path, result.FallbackReason)
		}
		if len(result.Warnings) > 0 {
			return fmt.Errorf("characters file %s: %d entries skipped", path, len(result.Warnings))
		}
	}
	return nil
}
