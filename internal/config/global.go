package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// GlobalConfig represents configuration stored in ~/.config/primdb/config.yml.
type GlobalConfig struct {
	DataDir   string `yaml:"data_dir,omitempty"`
	LogLevel  string `yaml:"log_level,omitempty"` // debug, info, warn, error
	Timing    bool   `yaml:"timing,omitempty"`
	AssumeYes bool   `yaml:"assume_yes,omitempty"`
	Prompt    string `yaml:"prompt,omitempty"`
}

const (
	// GlobalConfigDir is the directory name under XDG_CONFIG_HOME.
	GlobalConfigDir = "primdb"
	// GlobalConfigFile is the config file name.
	GlobalConfigFile = "config.yml"
	// LogLevelEnv overrides log_level.
	LogLevelEnv = "PRIMDB_LOG_LEVEL"
	// DefaultLogLevel keeps the session quiet unless something is wrong.
	DefaultLogLevel = "warn"
)

// globalConfigCache caches the loaded global config.
var globalConfigCache *GlobalConfig

// GlobalConfigPath returns the path to the global config file.
// Respects XDG_CONFIG_HOME, defaults to ~/.config/primdb/config.yml.
func GlobalConfigPath() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, GlobalConfigDir, GlobalConfigFile)
}

// LoadGlobalConfig loads the global configuration file and applies
// environment overrides. Returns defaults (not an error) if the file
// doesn't exist.
func LoadGlobalConfig() (*GlobalConfig, error) {
	if globalConfigCache != nil {
		return globalConfigCache, nil
	}

	cfg := GlobalConfig{}
	if path := GlobalConfigPath(); path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parsing global config: %w", err)
			}
		case !os.IsNotExist(err):
			return nil, fmt.Errorf("reading global config: %w", err)
		}
	}

	if cfg.DataDir != "" {
		cfg.DataDir = ExpandPath(cfg.DataDir)
	}
	if env := os.Getenv(LogLevelEnv); env != "" {
		cfg.LogLevel = env
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = DefaultLogLevel
	}
	if err := validateLogLevel(cfg.LogLevel); err != nil {
		return nil, err
	}

	globalConfigCache = &cfg
	return &cfg, nil
}

// ResetGlobalConfigCache clears the cached global config.
// Useful for testing.
func ResetGlobalConfigCache() {
	globalConfigCache = nil
}

// SlogLevel maps the LogLevel string to an slog.Level.
func (c *GlobalConfig) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "error":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}

func validateLogLevel(level string) error {
	switch strings.ToLower(level) {
	case "debug", "info", "warn", "warning", "error":
		return nil
	}
	return fmt.Errorf("invalid log_level: %s (valid: debug, info, warn, error)", level)
}
