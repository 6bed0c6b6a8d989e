package main

import (
	"os"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(execCmd)
}

var execCmd = &cobra.Command{
	Use:   "exec <command>...",
	Short: "Run commands without an interactive session",
	Long: `Run each argument as one command line, in order, stopping at the first
failure. The exit code reflects the failing command.

Destructive commands still ask for confirmation on stdin unless --yes is given.

Example:
  primdb exec 'create_table users name:str age:int' 'insert into users values ("Ann", 30)'
  primdb exec --json 'select from users where age = 30'
  primdb exec --yes 'drop_table users'`,
	Args: cobra.MinimumNArgs(1),
	RunE: runExec,
}

func runExec(cmd *cobra.Command, args []string) error {
	a := mustSetup()
	s := a.newSession(false)

	for _, line := range args {
		exit, err := s.Exec(line)
		if err != nil {
			// Already rendered by the session.
			a.logger.Debug("exec stopped", "command", line, "error", err)
			os.Exit(exitCodeFor(err))
		}
		if exit {
			break
		}
	}
	return nil
}
