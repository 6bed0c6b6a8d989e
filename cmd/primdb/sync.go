package main

import (
	"fmt"

	"github.com/matsen/primdb/internal/store"
	"github.com/spf13/cobra"
)

var syncForce bool

// SyncResult is the response for one table in the sync command.
type SyncResult struct {
	Table   string `json:"table"`
	Records int    `json:"records"`
	Action  string `json:"action"` // "rebuilt" or "skipped"
}

func init() {
	rootCmd.AddCommand(syncCmd)
	syncCmd.Flags().BoolVarP(&syncForce, "force", "f", false, "Rebuild even if the mirror is current")
}

var syncCmd = &cobra.Command{
	Use:   "sync [table...]",
	Short: "Rebuild SQLite mirrors of tables",
	Long: `Rebuild the read-only SQLite mirror (mirror/<table>.db) of each table from
its JSONL file. Mirrors whose source is unchanged are skipped.

Columns are typed in the mirror (int and bool as INTEGER, str as TEXT), so
external tools can query them:
  sqlite3 .primdb/mirror/users.db 'SELECT name FROM users WHERE age > 30'

Example:
  primdb sync           # all tables
  primdb sync users     # one table`,
	RunE: runSync,
}

func runSync(cmd *cobra.Command, args []string) error {
	a := mustSetup()

	reg, err := a.backend.LoadSchema()
	if err != nil {
		exitWithError(ExitError, "loading schema: %v", err)
	}

	names := args
	if len(names) == 0 {
		names = reg.Names()
	}

	results := make([]SyncResult, 0, len(names))
	for _, name := range names {
		schema, ok := reg.Get(name)
		if !ok {
			exitWithError(ExitError, "table %q %v", name, store.ErrNoSuchTable)
		}

		needsSync, err := a.backend.NeedsSync(name)
		if err != nil {
			a.logger.Warn("checking mirror, rebuilding", "table", name, "error", err)
			needsSync = true
		}

		result := SyncResult{Table: name, Action: "skipped"}
		if needsSync || syncForce {
			count, err := a.backend.Sync(schema)
			if err != nil {
				exitWithError(ExitDataError, "syncing %s: %v", name, err)
			}
			result.Records = count
			result.Action = "rebuilt"
		} else {
			records, err := a.backend.LoadRecords(name)
			if err != nil {
				exitWithError(ExitError, "counting %s: %v", name, err)
			}
			result.Records = len(records)
		}
		results = append(results, result)
	}

	if jsonOutput {
		outputJSON(results)
		return nil
	}
	if len(results) == 0 {
		fmt.Println("No tables.")
		return nil
	}
	for _, r := range results {
		fmt.Printf("%s: %s (%d records)\n", r.Table, r.Action, r.Records)
	}
	return nil
}
