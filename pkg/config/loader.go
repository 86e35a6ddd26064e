package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Loader provides methods for loading configuration from various sources.
type Loader interface {
	// Load loads configuration with the following precedence:
	// 1. Environment variables
	// 2. Configuration file
	// 3. Default values
	//
	// Returns the merged configuration or an error if validation fails.
	Load() (*Config, error)

	// LoadFromFile reads a single file without defaults or validation.
	LoadFromFile(path string) (*Config, error)
}

type loader struct {
	configPath string
}

// NewLoader creates a new configuration loader.
//
// If configPath is empty, searches for config file in:
// 1. ./metalite.yaml (current directory)
// 2. ~/.config/metalite/config.yaml.
func NewLoader(configPath string) Loader {
	return &loader{
		configPath: configPath,
	}
}

// Load implements Loader.Load.
func (l *loader) Load() (*Config, error) {
	cfg := Default()

	configPath := l.configPath
	if configPath == "" {
		configPath = l.findConfigFile()
	}

	if configPath != "" {
		fileCfg, err := l.LoadFromFile(configPath)
		if err != nil {
			// An explicitly requested file must load; a discovered one may not.
			if l.configPath != "" {
				return nil, fmt.Errorf("failed to load config from %s: %w", configPath, err)
			}
		} else {
			cfg = l.mergeConfigs(cfg, fileCfg)
		}
	}

	cfg = l.applyEnvVars(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// LoadFromFile implements Loader.LoadFromFile.
func (l *loader) LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path) // nolint:gosec
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}

	return &cfg, nil
}

// findConfigFile returns the first existing candidate, or "".
func (l *loader) findConfigFile() string {
	candidates := []string{
		"./metalite.yaml",
		DefaultConfigPath(),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// mergeConfigs overlays the non-zero values of override onto base.
func (l *loader) mergeConfigs(base, override *Config) *Config {
	result := *base

	if override.SSH.Port > 0 {
		result.SSH.Port = override.SSH.Port
	}
	if override.SSH.ConnectTimeout > 0 {
		result.SSH.ConnectTimeout = override.SSH.ConnectTimeout
	}
	if override.SSH.KeepAliveTimeout > 0 {
		result.SSH.KeepAliveTimeout = override.SSH.KeepAliveTimeout
	}
	if override.SSH.HostKeyPolicy != "" {
		result.SSH.HostKeyPolicy = override.SSH.HostKeyPolicy
	}
	if override.SSH.KnownHostsPath != "" {
		result.SSH.KnownHostsPath = override.SSH.KnownHostsPath
	}

	if override.Query.Tool != "" {
		result.Query.Tool = override.Query.Tool
	}
	if override.Query.Timeout > 0 {
		result.Query.Timeout = override.Query.Timeout
	}
	if override.Query.BusyPolicy != "" {
		result.Query.BusyPolicy = override.Query.BusyPolicy
	}
	result.Query.SafeMode = override.Query.SafeMode

	if override.Storage.DBPath != "" {
		result.Storage.DBPath = override.Storage.DBPath
	}
	if override.Storage.LegacyPath != "" {
		result.Storage.LegacyPath = override.Storage.LegacyPath
	}
	if override.Storage.LockTimeout > 0 {
		result.Storage.LockTimeout = override.Storage.LockTimeout
	}

	if override.Display.Format != "" {
		result.Display.Format = override.Display.Format
	}
	result.Display.Compact = override.Display.Compact

	if override.Watch.Debounce > 0 {
		result.Watch.Debounce = override.Watch.Debounce
	}

	if override.Logging.Level != "" {
		result.Logging.Level = override.Logging.Level
	}
	if override.Logging.Output != "" {
		result.Logging.Output = override.Logging.Output
	}
	if override.Logging.Format != "" {
		result.Logging.Format = override.Logging.Format
	}

	return &result
}

// applyEnvVars applies environment variable overrides to the configuration.
//
// Supported environment variables:
//   - METALITE_DB: catalog database path
//   - METALITE_LOG_LEVEL: log level
//   - METALITE_KNOWN_HOSTS: known_hosts file
//   - METALITE_HOST_KEY_POLICY: strict or tofu
//   - METALITE_QUERY_TIMEOUT: Go duration, e.g. 45s
//
// An unparsable METALITE_QUERY_TIMEOUT is ignored.
func (l *loader) applyEnvVars(cfg *Config) *Config {
	result := *cfg

	if dbPath := os.Getenv("METALITE_DB"); dbPath != "" {
		result.Storage.DBPath = dbPath
	}

	if logLevel := os.Getenv("METALITE_LOG_LEVEL"); logLevel != "" {
		result.Logging.Level = strings.ToLower(logLevel)
	}

	if knownHosts := os.Getenv("METALITE_KNOWN_HOSTS"); knownHosts != "" {
		result.SSH.KnownHostsPath = knownHosts
	}

	if policy := os.Getenv("METALITE_HOST_KEY_POLICY"); policy != "" {
		result.SSH.HostKeyPolicy = strings.ToLower(policy)
	}

	if timeout := os.Getenv("METALITE_QUERY_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil {
			result.Query.Timeout = d
		}
	}

	return &result
}

// Load is a convenience function equivalent to NewLoader("").Load().
func Load() (*Config, error) {
	return NewLoader("").Load()
}

// LoadFromFile is a convenience function equivalent to NewLoader(path).Load().
func LoadFromFile(path string) (*Config, error) {
	return NewLoader(path).Load()
}

// Save writes the configuration to a YAML file.
//
// Creates parent directories if they don't exist.
// File is created with 0600 permissions (read/write for owner only).
func Save(cfg *Config, path string) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
