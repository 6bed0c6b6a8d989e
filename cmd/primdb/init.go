package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/matsen/primdb/internal/config"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(initCmd)
}

var initCmd = &cobra.Command{
	Use:   "init [dir]",
	Short: "Create a .primdb data directory",
	Long: `Create an empty .primdb data directory in dir (default: the current directory).

Commands run anywhere below dir will then use it.

Example:
  primdb init
  primdb init ~/projects/inventory`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	root := "."
	if len(args) == 1 {
		root = config.ExpandPath(args[0])
	}

	dir, err := config.Init(root)
	if err != nil {
		if errors.Is(err, config.ErrAlreadyInitialized) {
			exitWithError(ExitConfigError, "%s is already a primdb directory", dir)
		}
		exitWithError(ExitError, "%v", err)
	}

	if jsonOutput {
		outputJSON(StatusResponse{Status: "initialized", Path: dir})
	} else {
		fmt.Fprintf(os.Stdout, "Initialized empty primdb data directory in %s\n", dir)
	}
	return nil
}
