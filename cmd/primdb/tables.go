package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matsen/primdb/internal/render"
)

func init() {
	rootCmd.AddCommand(tablesCmd)
}

var tablesCmd = &cobra.Command{
	Use:   "tables",
	Short: "List tables with record counts and mirror status",
	Long: `List every table with its record count, JSONL size, and whether its
SQLite mirror is current.

Example:
  primdb tables
  primdb tables --json`,
	Args: cobra.NoArgs,
	RunE: runTables,
}

func runTables(cmd *cobra.Command, args []string) error {
	a := mustSetup()

	tables, err := a.backend.ListTables()
	if err != nil {
		exitWithError(ExitError, "listing tables: %v", err)
	}

	if jsonOutput {
		outputJSON(tables)
		return nil
	}
	if len(tables) == 0 {
		fmt.Println("No tables.")
		return nil
	}

	// Calculate column widths
	nameWidth := 4    // "NAME"
	recordsWidth := 7 // "RECORDS"
	for _, t := range tables {
		nameWidth = max(nameWidth, len(t.Name))
		recordsWidth = max(recordsWidth, len(fmt.Sprint(t.Records)))
	}

	fmt.Printf("%s  %s  %s  %s\n",
		render.PadRight("NAME", nameWidth),
		render.PadLeft("RECORDS", recordsWidth),
		render.PadLeft("SIZE", 9),
		"MIRROR")

	for _, t := range tables {
		mirror := "stale"
		switch {
		case t.Error != "":
			mirror = "error: " + t.Error
		case t.InSync:
			mirror = "current"
			if !t.LastSync.IsZero() {
				mirror += " (synced " + t.LastSync.Format("2006-01-02 15:04") + ")"
			}
		}
		fmt.Printf("%s  %s  %s  %s\n",
			render.PadRight(t.Name, nameWidth),
			render.PadLeft(fmt.Sprint(t.Records), recordsWidth),
			render.PadLeft(formatBytes(t.JSONLSize), 9),
			mirror)
	}
	return nil
}
