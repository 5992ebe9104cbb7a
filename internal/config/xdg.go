package config

import (
	"os"
	"path/filepath"
)

const (
	appName      = "spaces"
	databaseName = "spaces.sqlite"
)

// GetConfigDir returns the configuration directory, creating nothing.
// Default: $XDG_CONFIG_HOME/spaces (~/.config/spaces).
func GetConfigDir() (string, error) {
	if dir := os.Getenv("SPACES_CONFIG_DIR"); dir != "" {
		return dir, nil
	}

	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, appName), nil
}

// GetDataDir returns the data directory.
// Default: $XDG_DATA_HOME/spaces (~/.local/share/spaces).
func GetDataDir() (string, error) {
	if dir := os.Getenv("SPACES_DATA_DIR"); dir != "" {
		return dir, nil
	}

	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dataHome = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataHome, appName), nil
}

// GetDatabaseFile returns the default SQLite database path.
func GetDatabaseFile() (string, error) {
	dataDir, err := GetDataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dataDir, databaseName), nil
}

// GetConfigFile returns the path of the primary config file.
func GetConfigFile() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.yaml"), nil
}

// EnsureDirectories creates the config and data directories if missing.
func EnsureDirectories() error {
	configDir, err := GetConfigDir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(configDir, dirPerm); err != nil {
		return err
	}

	dataDir, err := GetDataDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dataDir, dirPerm)
}
