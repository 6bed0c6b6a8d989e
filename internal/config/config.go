// Package config locates the data directory and loads user configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const (
	// DataDirName is the directory holding tables.json and the table files.
	DataDirName = ".primdb"
	// DirEnv overrides the data directory.
	DirEnv = "PRIMDB_DIR"
)

var (
	// ErrNoRepository is returned when no .primdb directory is found.
	ErrNoRepository = errors.New("no .primdb directory found")
	// ErrAlreadyInitialized is returned by Init when the data directory exists.
	ErrAlreadyInitialized = errors.New("already initialized")
)

// DataPath returns the path to the .primdb directory from a root path.
func DataPath(root string) string {
	return filepath.Join(root, DataDirName)
}

// IsRepository checks if the given path contains a .primdb directory.
func IsRepository(root string) bool {
	info, err := os.Stat(DataPath(root))
	return err == nil && info.IsDir()
}

// FindRepository walks up from the given path to find a .primdb directory.
// Returns the root containing it.
func FindRepository(start string) (string, error) {
	abs, err := filepath.Abs(start)
	if err != nil {
		return "", fmt.Errorf("resolving path: %w", err)
	}

	for {
		if IsRepository(abs) {
			return abs, nil
		}

		parent := filepath.Dir(abs)
		if parent == abs {
			return "", fmt.Errorf("%w above %s", ErrNoRepository, start)
		}
		abs = parent
	}
}

// Init creates the data directory under root and returns its path.
func Init(root string) (string, error) {
	dir := DataPath(root)
	if IsRepository(root) {
		return dir, fmt.Errorf("%s: %w", dir, ErrAlreadyInitialized)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating data directory: %w", err)
	}
	return dir, nil
}

// ResolveDataDir picks the data directory, first match wins: flag, the
// PRIMDB_DIR environment variable, data_dir from the global config, the
// nearest .primdb above cwd, and finally cwd/.primdb.
func ResolveDataDir(flag, cwd string, global *GlobalConfig) string {
	if flag != "" {
		return ExpandPath(flag)
	}
	if env := os.Getenv(DirEnv); env != "" {
		return ExpandPath(env)
	}
	if global != nil && global.DataDir != "" {
		return global.DataDir
	}
	if root, err := FindRepository(cwd); err == nil {
		return DataPath(root)
	}
	return DataPath(cwd)
}

// ExpandPath expands ~ to the user's home directory.
// Returns the original path unchanged if it doesn't start with ~.
func ExpandPath(path string) string {
	if len(path) == 0 || path[0] != '~' {
		return path
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return path // Return original if we can't get home directory
	}

	return filepath.Join(home, path[1:])
}
