package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Defaults returns the default configuration.
func Defaults() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path: "", // resolved against XDG data dir at load time
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Spaces: SpacesConfig{
			AutoRestore:         true,
			DebounceMs:          400,
			RestoreTimeoutMs:    5000,
			TabEventGraceMs:     2000,
			MaxArchivedSpaces:   25,
			WriteRetryAttempts:  3,
			WriteRetryBackoffMs: 250,
		},
		Bridge: BridgeConfig{
			ListenAddr:       "127.0.0.1:7624",
			RequestTimeoutMs: 3000,
		},
		API: APIConfig{
			Enabled:    true,
			ListenAddr: "127.0.0.1:7625",
		},
	}
}

func (m *Manager) setDefaults() {
	d := Defaults()

	m.viper.SetDefault("logging.level", d.Logging.Level)
	m.viper.SetDefault("logging.format", d.Logging.Format)

	m.viper.SetDefault("spaces.auto_restore", d.Spaces.AutoRestore)
	m.viper.SetDefault("spaces.debounce_ms", d.Spaces.DebounceMs)
	m.viper.SetDefault("spaces.restore_timeout_ms", d.Spaces.RestoreTimeoutMs)
	m.viper.SetDefault("spaces.tab_event_grace_ms", d.Spaces.TabEventGraceMs)
	m.viper.SetDefault("spaces.max_archived_spaces", d.Spaces.MaxArchivedSpaces)
	m.viper.SetDefault("spaces.write_retry_attempts", d.Spaces.WriteRetryAttempts)
	m.viper.SetDefault("spaces.write_retry_backoff_ms", d.Spaces.WriteRetryBackoffMs)

	m.viper.SetDefault("bridge.listen_addr", d.Bridge.ListenAddr)
	m.viper.SetDefault("bridge.request_timeout_ms", d.Bridge.RequestTimeoutMs)

	m.viper.SetDefault("api.enabled", d.API.Enabled)
	m.viper.SetDefault("api.listen_addr", d.API.ListenAddr)
}

// createDefaultConfig writes a commented default config file and the JSON
// schema next to it.
func (m *Manager) createDefaultConfig() error {
	configDir, err := GetConfigDir()
	if err != nil {
		return err
	}

	configFile := filepath.Join(configDir, "config.yaml")

	data, err := yaml.Marshal(Defaults())
	if err != nil {
		return fmt.Errorf("failed to marshal default config: %w", err)
	}

	if err := os.WriteFile(configFile, data, filePerm); err != nil {
		return fmt.Errorf("failed to write default config: %w", err)
	}

	m.viper.SetConfigFile(configFile)
	if err := m.viper.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read default config: %w", err)
	}

	// Best effort; the schema is a editor aid, not required at runtime
	_ = GenerateSchemaFile()

	return nil
}
