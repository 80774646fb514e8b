package logging

import (
	"log/slog"
	"strings"
)

// Redacted replaces the value of any attribute whose key names secret
// material.
const Redacted = "[REDACTED]"

var sensitiveKeys = []string{"password", "secret", "blob", "hash", "response", "challenge", "token", "key"}

// IsSensitiveKey reports whether values logged under key must be hidden.
func IsSensitiveKey(key string) bool {
	k := strings.ToLower(key)
	for _, s := range sensitiveKeys {
		if strings.Contains(k, s) {
			return true
		}
	}
	return false
}

// Redact returns a copy of the key/value list with sensitive values
// replaced.
func Redact(args []any) []any {
	out := make([]any, len(args))
	copy(out, args)
	for i := 0; i+1 < len(out); i += 2 {
		if k, ok := out[i].(string); ok && IsSensitiveKey(k) {
			out[i+1] = Redacted
		}
	}
	return out
}

func redactAttr(_ []string, a slog.Attr) slog.Attr {
	if IsSensitiveKey(a.Key) {
		return slog.String(a.Key, Redacted)
	}
	return a
}
