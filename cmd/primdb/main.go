// Package main provides the primdb CLI entry point.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/matsen/primdb/internal/config"
	"github.com/matsen/primdb/internal/engine"
	"github.com/matsen/primdb/internal/render"
	"github.com/matsen/primdb/internal/shell"
	"github.com/matsen/primdb/internal/store"
)

// Version is set at build time via ldflags
var Version = "dev"

var (
	dataDirFlag string
	jsonOutput  bool
	assumeYes   bool
	timingFlag  bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		// Print the error since we have SilenceErrors: true
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(ExitError)
	}
}

var rootCmd = &cobra.Command{
	Use:   "primdb",
	Short: "A tiny table store driven by a line-oriented command language",
	Long: `primdb stores typed tables as plain files and edits them with a small
command language:

  create_table users name:str age:int active:bool
  insert into users values ("Ann", 30, true)
  select from users where age = 30
  update users set age = 31 where name = "Ann"
  delete from users where ID = 1

Run without arguments for an interactive session. Data lives in the nearest
.primdb directory (tables.json plus one JSONL file per table).`,
	Args:          cobra.NoArgs,
	RunE:          runShell,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	_ = godotenv.Load()

	rootCmd.PersistentFlags().StringVar(&dataDirFlag, "dir", "", "Data directory (default: nearest .primdb)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output JSON instead of text")
	rootCmd.PersistentFlags().BoolVarP(&assumeYes, "yes", "y", false, "Do not ask before destructive commands")
	rootCmd.PersistentFlags().BoolVar(&timingFlag, "timing", false, "Print how long each command took")
	rootCmd.Version = Version
}

// app holds what every subcommand needs once configuration is resolved.
type app struct {
	cfg     *config.GlobalConfig
	dir     string
	logger  *slog.Logger
	backend *store.FileBackend
}

// mustSetup loads configuration and opens the data directory, exits on error.
func mustSetup() *app {
	cfg, err := config.LoadGlobalConfig()
	if err != nil {
		exitWithError(ExitConfigError, "loading config: %v", err)
	}

	cwd, err := os.Getwd()
	if err != nil {
		exitWithError(ExitError, "getting current directory: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	dir := config.ResolveDataDir(dataDirFlag, cwd, cfg)
	logger.Debug("using data directory", "dir", dir)

	return &app{
		cfg:     cfg,
		dir:     dir,
		logger:  logger,
		backend: store.NewFileBackend(dir, logger),
	}
}

// newSession wires the engine, renderer and session for stdin/stdout.
func (a *app) newSession(interactive bool) *shell.Session {
	styled := !jsonOutput && term.IsTerminal(int(os.Stdout.Fd()))
	r := render.New(os.Stdout, render.JSON(jsonOutput), render.Styled(styled))
	eng := engine.New(a.backend, engine.WithLogger(a.logger))

	return shell.New(eng, os.Stdin, os.Stdout, r, shell.Options{
		Prompt:      a.cfg.Prompt,
		Interactive: interactive,
		AssumeYes:   assumeYes || a.cfg.AssumeYes,
		Timing:      timingFlag || a.cfg.Timing,
		Logger:      a.logger,
	})
}
