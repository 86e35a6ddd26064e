package config

import (
	"os"
	"path/filepath"
)

// baseDir returns ~/.config/metalite, honoring XDG_CONFIG_HOME.
func baseDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "metalite")
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(homeDir, ".config", "metalite")
}

// defaultDBPath returns the default catalog file: ~/.config/metalite/connections.db.
func defaultDBPath() string {
	return filepath.Join(baseDir(), "connections.db")
}

// defaultKnownHostsPath returns ~/.config/metalite/known_hosts.
func defaultKnownHostsPath() string {
	return filepath.Join(baseDir(), "known_hosts")
}

// defaultLegacyPath returns the catalog file of the desktop app:
// ~/.metalite/connections.json.
func defaultLegacyPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "connections.json"
	}
	return filepath.Join(homeDir, ".metalite", "connections.json")
}

// DefaultConfigPath returns ~/.config/metalite/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(baseDir(), "config.yaml")
}
