// Package discovery finds SSH private keys that can be offered for a
// connection.
//
// It scans configured directories (normally ~/.ssh) for PEM-encoded private
// keys and reports their type, fingerprint and whether they need a
// passphrase. Key bytes are only held while being inspected and are zeroed
// afterwards.
//
// Example usage:
//
//	d := discovery.New([]string{"~/.ssh"}, logger.Default())
//	keys, err := d.Discover()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, k := range keys {
//	    fmt.Printf("%s %s %s\n", k.Path, k.Type, k.Fingerprint)
//	}
package discovery

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/crypto/ssh"
)

// maxKeySize bounds how much of a file is read. Private keys are far smaller.
const maxKeySize = 64 * 1024

var (
	pemBegin      = []byte("-----BEGIN ")
	privateKeyTag = []byte("PRIVATE KEY-----")
)

// Logger defines the logging interface used by the discovery package.
type Logger interface {
	Debug(msg string, keysAndValues ...interface{})
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// KeyFile describes a discovered private key.
type KeyFile struct {
	// Path is the absolute path to the key file.
	Path string

	// Type is the public key algorithm, e.g. "ssh-ed25519". Empty when it
	// could not be determined without the passphrase.
	Type string

	// Fingerprint is the SHA256 fingerprint of the public key, when known.
	Fingerprint string

	// Encrypted reports whether the key needs a passphrase.
	Encrypted bool

	// ModTime is the last modification time.
	ModTime int64 // Unix timestamp
}

// Discoverer finds private keys.
type Discoverer interface {
	// Discover scans the configured directories and returns the keys found,
	// sorted by path. Missing directories are skipped.
	Discover() ([]KeyFile, error)

	// Inspect examines one file.
	//
	// Returns ErrNotPrivateKey when the file holds no PEM private key.
	Inspect(path string) (*KeyFile, error)
}

// discoverer implements the Discoverer interface.
type discoverer struct {
	dirs   []string
	logger Logger
}

// New creates a new Discoverer instance.
func New(dirs []string, logger Logger) Discoverer {
	return &discoverer{
		dirs:   dirs,
		logger: logger,
	}
}

// Discover implements Discoverer.Discover.
func (d *discoverer) Discover() ([]KeyFile, error) {
	keys := make([]KeyFile, 0, 4)

	for _, dir := range d.dirs {
		expandedDir := expandHome(dir)

		entries, err := os.ReadDir(expandedDir)
		if err != nil {
			if os.IsNotExist(err) {
				d.logger.Debug("key directory not found, skipping", "path", expandedDir)
				continue
			}
			return nil, fmt.Errorf("failed to read directory %s: %w", expandedDir, err)
		}

		for _, entry := range entries {
			if !entry.Type().IsRegular() || skipName(entry.Name()) {
				continue
			}

			path := filepath.Join(expandedDir, entry.Name())
			key, err := d.Inspect(path)
			if err != nil {
				if !errors.Is(err, ErrNotPrivateKey) {
					d.logger.Warn("failed to inspect key file", "path", path, "error", err)
				}
				continue
			}

			keys = append(keys, *key)
		}
	}

	sort.Slice(keys, func(i, j int) bool {
		return keys[i].Path < keys[j].Path
	})

	d.logger.Debug("key discovery complete", "keys_found", len(keys))
	return keys, nil
}

// Inspect implements Discoverer.Inspect.
func (d *discoverer) Inspect(path string) (*KeyFile, error) {
	abs, err := filepath.Abs(expandHome(path))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", path, err)
	}

	f, err := os.Open(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to open key: %w", err)
	}
	defer f.Close() //nolint:errcheck // read-only

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat key: %w", err)
	}

	data, err := io.ReadAll(io.LimitReader(f, maxKeySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read key: %w", err)
	}
	defer clear(data)

	if !looksLikePrivateKey(data) {
		return nil, fmt.Errorf("%w: %s", ErrNotPrivateKey, abs)
	}

	key := &KeyFile{
		Path:    abs,
		ModTime: info.ModTime().Unix(),
	}

	var pub ssh.PublicKey
	signer, parseErr := ssh.ParsePrivateKey(data)
	var missing *ssh.PassphraseMissingError
	switch {
	case parseErr == nil:
		pub = signer.PublicKey()
	case errors.As(parseErr, &missing):
		key.Encrypted = true
		pub = missing.PublicKey
	default:
		d.logger.Debug("unsupported private key", "path", abs, "error", parseErr)
	}

	if pub == nil {
		pub = d.companionPublicKey(abs)
	}

	if pub != nil {
		key.Type = pub.Type()
		key.Fingerprint = ssh.FingerprintSHA256(pub)
	}

	return key, nil
}

// companionPublicKey reads path.pub, if present.
func (d *discoverer) companionPublicKey(path string) ssh.PublicKey {
	data, err := os.ReadFile(path + ".pub")
	if err != nil {
		return nil
	}

	pub, _, _, _, err := ssh.ParseAuthorizedKey(data)
	if err != nil {
		d.logger.Debug("unreadable public key", "path", path+".pub", "error", err)
		return nil
	}
	return pub
}

func looksLikePrivateKey(data []byte) bool {
	start := bytes.Index(data, pemBegin)
	if start < 0 {
		return false
	}
	line := data[start:]
	if end := bytes.IndexByte(line, '\n'); end >= 0 {
		line = line[:end]
	}
	return bytes.Contains(line, privateKeyTag)
}

// skipName filters files that are never private keys.
func skipName(name string) bool {
	switch name {
	case "known_hosts", "known_hosts.old", "authorized_keys", "config", "environment":
		return true
	}
	return strings.HasSuffix(name, ".pub") || strings.HasPrefix(name, ".")
}

// expandHome expands ~ in file paths to the user's home directory.
func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return path
	}

	if path == "~" {
		return homeDir
	}

	return filepath.Join(homeDir, path[2:])
}
