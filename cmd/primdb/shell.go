package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func init() {
	rootCmd.AddCommand(shellCmd)
}

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Start an interactive session",
	Long: `Read commands one line at a time until "exit" or end of input.

The prompt is shown only when stdin is a terminal, so a script can be piped in:
  printf 'list_tables\nexit\n' | primdb shell`,
	Args: cobra.NoArgs,
	RunE: runShell,
}

func runShell(cmd *cobra.Command, args []string) error {
	a := mustSetup()
	interactive := term.IsTerminal(int(os.Stdin.Fd()))

	if interactive && !jsonOutput {
		fmt.Printf("primdb %s (%s)\nType \"help\" for the list of commands.\n", Version, a.dir)
	}

	if err := a.newSession(interactive).Run(cmd.Context()); err != nil {
		exitWithError(ExitError, "%v", err)
	}
	return nil
}
