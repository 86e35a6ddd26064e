package discovery

import "errors"

// Common errors returned by the discovery package.
var (
	// ErrNotPrivateKey is returned when a file holds no PEM private key.
	ErrNotPrivateKey = errors.New("not a private key")
)
