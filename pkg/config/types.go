// Package config provides configuration management for metalite.
//
// Configuration is loaded from multiple sources with the following precedence:
// 1. Command-line flags (highest priority)
// 2. Environment variables
// 3. Configuration file
// 4. Default values (lowest priority)
//
// Example usage:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("catalog: %s\n", cfg.Storage.DBPath)
package config

import (
	"time"
)

// Host key policies.
const (
	HostKeyStrict = "strict"
	HostKeyTOFU   = "tofu"
)

// Busy policies for a session that already runs a query.
const (
	BusyQueue = "queue"
	BusyFail  = "fail"
)

// Config represents the complete application configuration.
//
// Invariants:
// - SSH.Port is in 1..65535
// - all timeouts are > 0
// - SSH.HostKeyPolicy is strict or tofu
// - Query.Tool is not empty
// - Query.BusyPolicy is queue or fail.
type Config struct {
	// SSH transport settings
	SSH SSHConfig `yaml:"ssh"`

	// Remote query settings
	Query QueryConfig `yaml:"query"`

	// Connection catalog settings
	Storage StorageConfig `yaml:"storage"`

	// CLI output settings
	Display DisplayConfig `yaml:"display"`

	// Query file watching settings
	Watch WatchConfig `yaml:"watch"`

	// Logging settings
	Logging LoggingConfig `yaml:"logging"`
}

// SSHConfig contains session manager settings.
type SSHConfig struct {
	// Default port when the host carries none
	Port int `yaml:"port"`

	// Bound on TCP dial plus SSH handshake
	ConnectTimeout time.Duration `yaml:"connect_timeout"`

	// Bound on a liveness check
	KeepAliveTimeout time.Duration `yaml:"keepalive_timeout"`

	// strict or tofu
	HostKeyPolicy string `yaml:"host_key_policy"`

	// known_hosts file consulted (and extended in tofu mode)
	KnownHostsPath string `yaml:"known_hosts_path"`
}

// QueryConfig contains remote executor settings.
type QueryConfig struct {
	// Remote query tool binary
	Tool string `yaml:"tool"`

	// Bound on a single execution
	Timeout time.Duration `yaml:"timeout"`

	// queue or fail
	BusyPolicy string `yaml:"busy_policy"`

	// Pass -safe to the query tool
	SafeMode bool `yaml:"safe_mode"`
}

// StorageConfig contains catalog storage settings.
type StorageConfig struct {
	// Path to BoltDB database file
	DBPath string `yaml:"db_path"`

	// connections.json written by the desktop app, used by import
	LegacyPath string `yaml:"legacy_path"`

	// How long to wait for the database file lock
	LockTimeout time.Duration `yaml:"lock_timeout"`
}

// DisplayConfig contains output settings.
type DisplayConfig struct {
	// Default output format (table, json, simple)
	Format string `yaml:"format"`

	// Compact output
	Compact bool `yaml:"compact"`
}

// WatchConfig contains watch command settings.
type WatchConfig struct {
	// Quiet period before a changed query file is re-run
	Debounce time.Duration `yaml:"debounce"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	// Log level (debug, info, warn, error)
	Level string `yaml:"level"`

	// Log output destination (stdout, stderr, file path)
	Output string `yaml:"output"`

	// Log format (text, json)
	Format string `yaml:"format"`
}

// Validate checks if the configuration satisfies all invariants.
//
// Thread-safety: This method is read-only and thread-safe.
func (c *Config) Validate() error {
	if c.SSH.Port <= 0 || c.SSH.Port > 65535 {
		return ErrInvalidPort
	}
	if c.SSH.ConnectTimeout <= 0 {
		return ErrInvalidConnectTimeout
	}
	if c.SSH.KeepAliveTimeout <= 0 {
		return ErrInvalidKeepAliveTimeout
	}
	if c.SSH.HostKeyPolicy != HostKeyStrict && c.SSH.HostKeyPolicy != HostKeyTOFU {
		return ErrInvalidHostKeyPolicy
	}

	if c.Query.Tool == "" {
		return ErrEmptyQueryTool
	}
	if c.Query.Timeout <= 0 {
		return ErrInvalidQueryTimeout
	}
	if c.Query.BusyPolicy != BusyQueue && c.Query.BusyPolicy != BusyFail {
		return ErrInvalidBusyPolicy
	}

	if c.Storage.DBPath == "" {
		return ErrEmptyDBPath
	}
	if c.Storage.LockTimeout <= 0 {
		return ErrInvalidLockTimeout
	}

	validFormats := map[string]bool{
		"table":  true,
		"json":   true,
		"simple": true,
	}
	if !validFormats[c.Display.Format] {
		return ErrInvalidDisplayFormat
	}

	if c.Watch.Debounce <= 0 {
		return ErrInvalidDebounce
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[c.Logging.Level] {
		return ErrInvalidLogLevel
	}

	if c.Logging.Format != "text" && c.Logging.Format != "json" {
		return ErrInvalidLogFormat
	}

	return nil
}

// Default returns a configuration with default values.
func Default() *Config {
	return &Config{
		SSH: SSHConfig{
			Port:             22,
			ConnectTimeout:   10 * time.Second,
			KeepAliveTimeout: 5 * time.Second,
			HostKeyPolicy:    HostKeyTOFU,
			KnownHostsPath:   defaultKnownHostsPath(),
		},
		Query: QueryConfig{
			Tool:       "sqlite3",
			Timeout:    30 * time.Second,
			BusyPolicy: BusyQueue,
		},
		Storage: StorageConfig{
			DBPath:      defaultDBPath(),
			LegacyPath:  defaultLegacyPath(),
			LockTimeout: time.Second,
		},
		Display: DisplayConfig{
			Format: "table",
		},
		Watch: WatchConfig{
			Debounce: 300 * time.Millisecond,
		},
		Logging: LoggingConfig{
			Level:  "warn",
			Output: "stderr",
			Format: "text",
		},
	}
}
