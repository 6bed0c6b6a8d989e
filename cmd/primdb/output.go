package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/matsen/primdb/internal/command"
	"github.com/matsen/primdb/internal/engine"
	"github.com/matsen/primdb/internal/render"
	"github.com/matsen/primdb/internal/store"
)

// outputJSON writes a value as formatted JSON to stdout.
func outputJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// exitWithError outputs an error in the appropriate format (human or JSON) and exits.
func exitWithError(code int, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if jsonOutput {
		outputJSON(render.ErrorResponse{Error: msg})
	} else {
		fmt.Fprintf(os.Stderr, "error: %s\n", msg)
	}
	os.Exit(code)
}

// exitCodeFor maps a command error to an exit code.
func exitCodeFor(err error) int {
	var pe *command.ParseError
	var tm *engine.TypeMismatchError
	switch {
	case err == nil:
		return ExitSuccess
	case errors.As(err, &pe), errors.As(err, &tm),
		errors.Is(err, engine.ErrArityMismatch),
		errors.Is(err, engine.ErrReadOnlyColumn),
		errors.Is(err, store.ErrInvalidType),
		errors.Is(err, store.ErrInvalidName):
		return ExitDataError
	default:
		return ExitError
	}
}

// StatusResponse is a generic response for commands that return status.
type StatusResponse struct {
	Status string `json:"status"`
	Path   string `json:"path,omitempty"`
}

// formatBytes formats bytes in a human-readable way.
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
