// Package config provides configuration management for weft with Viper integration.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// File permission constants
const (
	dirPerm  = 0755 // Standard directory permissions (rwxr-xr-x)
	filePerm = 0644 // Standard file permissions (rw-r--r--)
)

// Config represents the complete configuration for weft.
type Config struct {
	Browsing BrowsingConfig `mapstructure:"browsing" yaml:"browsing" json:"browsing"`
	History  HistoryConfig  `mapstructure:"history" yaml:"history" json:"history"`
	Logging  LoggingConfig  `mapstructure:"logging" yaml:"logging" json:"logging"`
	Database DatabaseConfig `mapstructure:"database" yaml:"database" json:"database"`
}

// BrowsingConfig holds webview behavior configuration.
type BrowsingConfig struct {
	Homepage    string  `mapstructure:"homepage" yaml:"homepage" json:"homepage"`
	UserAgent   string  `mapstructure:"user_agent" yaml:"user_agent" json:"user_agent"`
	DefaultZoom float64 `mapstructure:"default_zoom" yaml:"default_zoom" json:"default_zoom"`
	DevTools    bool    `mapstructure:"devtools" yaml:"devtools" json:"devtools"`
	Incognito   bool    `mapstructure:"incognito" yaml:"incognito" json:"incognito"`
	DataDir     string  `mapstructure:"data_dir" yaml:"data_dir" json:"data_dir"`
}

// HistoryConfig holds history-related configuration.
type HistoryConfig struct {
	Enabled             bool `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	MaxEntries          int  `mapstructure:"max_entries" yaml:"max_entries" json:"max_entries"`
	RetentionPeriodDays int  `mapstructure:"retention_period_days" yaml:"retention_period_days" json:"retention_period_days"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level" json:"level"`
	Format string `mapstructure:"format" yaml:"format" json:"format"`
}

// DatabaseConfig holds database-related configuration.
type DatabaseConfig struct {
	Path string `mapstructure:"path" yaml:"path" json:"path"`
}

// Manager wraps Viper with file watching and change callbacks.
type Manager struct {
	viper     *viper.Viper
	config    *Config
	callbacks []func(*Config)
	watching  bool
	mu        sync.RWMutex
}

// NewManager creates a configuration manager rooted at the XDG config dir.
func NewManager() (*Manager, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("json")
	v.AddConfigPath(configDir)

	v.SetEnvPrefix("WEFT")
	for key, env := range map[string]string{
		"browsing.homepage":  "WEFT_HOMEPAGE",
		"browsing.incognito": "WEFT_INCOGNITO",
		"browsing.devtools":  "WEFT_DEVTOOLS",
		"logging.level":      "WEFT_LOG_LEVEL",
		"logging.format":     "WEFT_LOG_FORMAT",
	} {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind environment variable %s: %w", env, err)
		}
	}

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

	if err := m.finalize(config); err != nil {
		return err
	}
	m.config = config
	return nil
}

// finalize fills derived fields and validates. Must be called with the lock.
func (m *Manager) finalize(config *Config) error {
	if config.Database.Path == "" {
		dbPath, err := GetDatabaseFile()
		if err != nil {
			return fmt.Errorf("failed to get database path: %w", err)
		}
		config.Database.Path = dbPath
	}
	if config.Browsing.DataDir == "" {
		dataDir, err := GetWebViewDataDir()
		if err != nil {
			return fmt.Errorf("failed to get webview data directory: %w", err)
		}
		config.Browsing.DataDir = dataDir
	}
	return Validate(config)
}

// Get returns the current configuration (thread-safe).
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()

	// Return a copy to prevent external modification
	configCopy := *m.config
	return &configCopy
}

// Watch starts watching the config file for changes and reloads automatically.
func (m *Manager) Watch() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.watching {
		return nil // Already watching
	}

	m.viper.WatchConfig()
	m.viper.OnConfigChange(func(_ fsnotify.Event) {
		if err := m.reload(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to reload config: %v\n", err)
			return
		}

		m.mu.RLock()
		config := m.config
		callbacks := make([]func(*Config), len(m.callbacks))
		copy(callbacks, m.callbacks)
		m.mu.RUnlock()

		for _, callback := range callbacks {
			callback(config)
		}
	})

	m.watching = true
	return nil
}

// OnConfigChange registers a callback function to be called when config changes.
func (m *Manager) OnConfigChange(callback func(*Config)) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.callbacks = append(m.callbacks, callback)
}

func (m *Manager) reload() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.viper.ReadInConfig(); err != nil {
		return err
	}

	config := &Config{}
	if err := m.viper.Unmarshal(config); err != nil {
		return err
	}
	if err := m.finalize(config); err != nil {
		return err
	}
	m.config = config
	return nil
}

// setDefaults sets default configuration values in Viper.
func (m *Manager) setDefaults() {
	defaults := DefaultConfig()

	m.viper.SetDefault("browsing.homepage", defaults.Browsing.Homepage)
	m.viper.SetDefault("browsing.user_agent", defaults.Browsing.UserAgent)
	m.viper.SetDefault("browsing.default_zoom", defaults.Browsing.DefaultZoom)
	m.viper.SetDefault("browsing.devtools", defaults.Browsing.DevTools)
	m.viper.SetDefault("browsing.incognito", defaults.Browsing.Incognito)

	m.viper.SetDefault("history.enabled", defaults.History.Enabled)
	m.viper.SetDefault("history.max_entries", defaults.History.MaxEntries)
	m.viper.SetDefault("history.retention_period_days", defaults.History.RetentionPeriodDays)

	m.viper.SetDefault("logging.level", defaults.Logging.Level)
	m.viper.SetDefault("logging.format", defaults.Logging.Format)
}

// createDefaultConfig creates a default configuration file.
func (m *Manager) createDefaultConfig() error {
	configFile, err := GetConfigFile()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(configFile), dirPerm); err != nil {
		return err
	}

	configData, err := json.MarshalIndent(DefaultConfig(), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal default config: %w", err)
	}

	if err := os.WriteFile(configFile, configData, filePerm); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	if err := GenerateSchemaFile(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to generate config schema: %v\n", err)
	}
	return nil
}

// GetConfigFile returns the path to the configuration file being used.
func (m *Manager) GetConfigFile() string {
	return m.viper.ConfigFileUsed()
}

// Global configuration manager instance
var globalManager *Manager
var globalManagerOnce sync.Once

// Init initializes the global configuration manager.
func Init() error {
	var err error
	globalManagerOnce.Do(func() {
		globalManager, err = NewManager()
		if err != nil {
			return
		}
		err = globalManager.Load()
	})
	return err
}

// Get returns the global configuration.
func Get() *Config {
	if globalManager == nil {
		// Return defaults if not initialized
		return DefaultConfig()
	}
	return globalManager.Get()
}

// Watch starts watching the global configuration for changes.
func Watch() error {
	if globalManager == nil {
		return fmt.Errorf("configuration not initialized")
	}
	return globalManager.Watch()
}

// OnConfigChange registers a callback for global configuration changes.
func OnConfigChange(callback func(*Config)) {
	if globalManager == nil {
		return
	}
	globalManager.OnConfigChange(callback)
}
