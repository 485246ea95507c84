package commands

import (
	"fmt"

	"github.com/biodoia/roundtable/internal/scaffold"
	"github.com/spf13/cobra"
)

// InitCmd rappresenta il comando init
var InitCmd = &cobra.Command{
	Use:   "init [dir]",
	Short: "Create .env, configuration and characters files",
	Long: `Create the starter files of a roundtable project:

  .env                    Langfuse keys, model endpoint and server address
  configs/config.yaml     full configuration with default values
  characters_config.json  the four built-in characters

Existing files are left untouched unless --force is given.`,
	Example: `  # Scaffold the current directory
  roundtable init

  # Regenerate everything
  roundtable init --force`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

var initForce bool

func init() {
	InitCmd.Flags().BoolVarP(&initForce, "force", "f", false, "Overwrite existing files")
}

func runInit(cmd *cobra.Command, args []string) error {
	dir := "."
	if len(args) == 1 {
		dir = args[0]
	}

	outcomes, err := scaffold.Write(dir, initForce)
	for _, o := range outcomes {
		mark := "✓"
		if o.Status == scaffold.StatusSkipped {
			mark = "-"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %-30s %s\n", mark, o.Path, o.Status)
	}
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout())
	fmt.Fprintln(cmd.OutOrStdout(), "Next steps:")
	fmt.Fprintln(cmd.OutOrStdout(), "  1. Fill in the Langfuse keys and the model endpoint in .env")
	fmt.Fprintln(cmd.OutOrStdout(), "  2. roundtable doctor")
	fmt.Fprintln(cmd.OutOrStdout(), `  3. roundtable chat --topic "AI 会取代程序员吗？"`)
	return nil
}
