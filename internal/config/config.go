// Package config provides configuration management for spaces with Viper integration.
package config

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// File permission constants
const (
	dirPerm  = 0o755
	filePerm = 0o644
)

// Config represents the complete configuration for the spaces daemon.
type Config struct {
	Database DatabaseConfig `mapstructure:"database" yaml:"database" json:"database"`
	Logging  LoggingConfig  `mapstructure:"logging" yaml:"logging" json:"logging"`
	Spaces   SpacesConfig   `mapstructure:"spaces" yaml:"spaces" json:"spaces"`
	Bridge   BridgeConfig   `mapstructure:"bridge" yaml:"bridge" json:"bridge"`
	API      APIConfig      `mapstructure:"api" yaml:"api" json:"api"`
}

// DatabaseConfig holds database-related configuration.
type DatabaseConfig struct {
	Path string `mapstructure:"path" yaml:"path" json:"path"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level" json:"level"`
	Format string `mapstructure:"format" yaml:"format" json:"format"`
}

// SpacesConfig holds the lifecycle engine tunables. The grace periods are
// deliberately configuration rather than constants: no single value is
// correct for every machine.
type SpacesConfig struct {
	// AutoRestore re-creates windows for persisted spaces at startup.
	AutoRestore bool `mapstructure:"auto_restore" yaml:"auto_restore" json:"auto_restore"`

	// DebounceMs is the quiescence window before a mutated space is written
	// to the store. A burst of tab events inside this window coalesces into
	// one durable write.
	DebounceMs int `mapstructure:"debounce_ms" yaml:"debounce_ms" json:"debounce_ms"`

	// RestoreTimeoutMs bounds how long a restored space waits to be matched
	// with its newly created window.
	RestoreTimeoutMs int `mapstructure:"restore_timeout_ms" yaml:"restore_timeout_ms" json:"restore_timeout_ms"`

	// TabEventGraceMs bounds how long tab events for a not-yet-announced
	// window are buffered before being dropped.
	TabEventGraceMs int `mapstructure:"tab_event_grace_ms" yaml:"tab_event_grace_ms" json:"tab_event_grace_ms"`

	// MaxArchivedSpaces is the archive retention bound K.
	MaxArchivedSpaces int `mapstructure:"max_archived_spaces" yaml:"max_archived_spaces" json:"max_archived_spaces"`

	// WriteRetryAttempts bounds retries for a failed durable write.
	WriteRetryAttempts int `mapstructure:"write_retry_attempts" yaml:"write_retry_attempts" json:"write_retry_attempts"`

	// WriteRetryBackoffMs is the base backoff between write retries.
	WriteRetryBackoffMs int `mapstructure:"write_retry_backoff_ms" yaml:"write_retry_backoff_ms" json:"write_retry_backoff_ms"`
}

// BridgeConfig holds the extension WebSocket bridge configuration.
type BridgeConfig struct {
	ListenAddr string `mapstructure:"listen_addr" yaml:"listen_addr" json:"listen_addr"`

	// RequestTimeoutMs bounds command round-trips to the extension.
	RequestTimeoutMs int `mapstructure:"request_timeout_ms" yaml:"request_timeout_ms" json:"request_timeout_ms"`
}

// APIConfig holds the HTTP control API configuration.
type APIConfig struct {
	Enabled    bool   `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	ListenAddr string `mapstructure:"listen_addr" yaml:"listen_addr" json:"listen_addr"`
}

// Manager handles configuration loading, watching, and reloading.
type Manager struct {
	config    *Config
	viper     *viper.Viper
	mu        sync.RWMutex
	callbacks []func(*Config)
	watching  bool
}

// NewManager creates a new configuration manager.
func NewManager() (*Manager, error) {
	v := viper.New()

	// Supports config.yaml, config.json, config.toml automatically
	v.SetConfigName("config")

	configDir, err := GetConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config directory: %w", err)
	}
	v.AddConfigPath(configDir)
	v.AddConfigPath(".") // Current directory for development

	v.SetEnvPrefix("SPACES")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return &Manager{
		viper:     v,
		callbacks: make([]func(*Config), 0),
	}, nil
}

// Load loads the configuration from file and environment variables.
func (m *Manager) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := EnsureDirectories(); err != nil {
		return fmt.Errorf("failed to ensure directories: %w", err)
	}

	m.setDefaults()

	if err := m.viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			if err := m.createDefaultConfig(); err != nil {
				return fmt.Errorf("failed to create default config: %w", err)
			}
		} else {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}

	config := &Config{}
	if err := m.viper.Unmarshal(config); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if config.Database.Path == "" {
		dbPath, err := GetDatabaseFile()
		if err != nil {
			return fmt.Errorf("failed to get database path: %w", err)
		}
		config.Database.Path = dbPath
	}

	normalize(config)

	m.config = config
	return nil
}

// Get returns the current configuration.
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// Watch starts watching the config file for changes and reloads on write.
func (m *Manager) Watch() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.watching {
		return
	}
	m.watching = true

	m.viper.WatchConfig()
	m.viper.OnConfigChange(func(_ fsnotify.Event) {
		config := &Config{}
		if err := m.viper.Unmarshal(config); err != nil {
			return
		}
		normalize(config)

		m.mu.Lock()
		m.config = config
		callbacks := append(([]func(*Config))(nil), m.callbacks...)
		m.mu.Unlock()

		for _, cb := range callbacks {
			cb(config)
		}
	})
}

// OnConfigChange registers a callback invoked after each successful reload.
func (m *Manager) OnConfigChange(callback func(*Config)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbacks = append(m.callbacks, callback)
}

// normalize clamps out-of-range values back to defaults.
func normalize(c *Config) {
	d := Defaults()
	if c.Spaces.DebounceMs <= 0 {
		c.Spaces.DebounceMs = d.Spaces.DebounceMs
	}
	if c.Spaces.RestoreTimeoutMs <= 0 {
		c.Spaces.RestoreTimeoutMs = d.Spaces.RestoreTimeoutMs
	}
	if c.Spaces.TabEventGraceMs <= 0 {
		c.Spaces.TabEventGraceMs = d.Spaces.TabEventGraceMs
	}
	if c.Spaces.MaxArchivedSpaces <= 0 {
		c.Spaces.MaxArchivedSpaces = d.Spaces.MaxArchivedSpaces
	}
	if c.Spaces.WriteRetryAttempts < 0 {
		c.Spaces.WriteRetryAttempts = d.Spaces.WriteRetryAttempts
	}
	if c.Spaces.WriteRetryBackoffMs <= 0 {
		c.Spaces.WriteRetryBackoffMs = d.Spaces.WriteRetryBackoffMs
	}
	if c.Bridge.RequestTimeoutMs <= 0 {
		c.Bridge.RequestTimeoutMs = d.Bridge.RequestTimeoutMs
	}
	if c.Logging.Level == "" {
		c.Logging.Level = d.Logging.Level
	}
	if c.Logging.Format == "" {
		c.Logging.Format = d.Logging.Format
	}
}
