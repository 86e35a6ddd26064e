package logger

import (
	"log/slog"
	"regexp"
	"strings"
)

const redacted = "***"

// sensitiveKeys are attribute names whose values are never written.
var sensitiveKeys = map[string]bool{
	"passphrase":   true,
	"password":     true,
	"private_key":  true,
	"key_material": true,
	"secret":       true,
}

var rePrivateKey = regexp.MustCompile(`(?s)-----BEGIN [A-Z0-9 ]*PRIVATE KEY-----.*?-----END [A-Z0-9 ]*PRIVATE KEY-----`)

// Mask hides PEM encoded private keys embedded in s.
func Mask(s string) string {
	if !strings.Contains(s, "PRIVATE KEY-----") {
		return s
	}
	return rePrivateKey.ReplaceAllString(s, "[REDACTED PRIVATE KEY]")
}

func redactAttr(_ []string, a slog.Attr) slog.Attr {
	if sensitiveKeys[strings.ToLower(a.Key)] {
		return slog.String(a.Key, redacted)
	}

	switch a.Value.Kind() {
	case slog.KindString:
		if masked := Mask(a.Value.String()); masked != a.Value.String() {
			return slog.String(a.Key, masked)
		}
	case slog.KindAny:
		if err, ok := a.Value.Any().(error); ok {
			if masked := Mask(err.Error()); masked != err.Error() {
				return slog.String(a.Key, masked)
			}
		}
	}

	return a
}
