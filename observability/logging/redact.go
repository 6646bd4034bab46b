package logging

import (
	"log/slog"
	"strings"
)

// RedactedValue replaces sensitive values in emitted log lines.
const RedactedValue = "[REDACTED]"

// sensitiveKeys are masked by the handler itself, so a careless
// logger.Info("...", "passphrase", p) never reaches the sink.
var sensitiveKeys = map[string]struct{}{
	"authorization": {},
	"keystore_pass": {},
	"passphrase":    {},
	"password":      {},
	"private_key":   {},
	"secret":        {},
	"seed":          {},
	"signature":     {},
	"signatures":    {},
}

// publicKeys are identifiers that MaskField lets through unchanged.
var publicKeys = map[string]struct{}{
	"actor":   {},
	"address": {},
	"class":   {},
	"status":  {},
	"tx":      {},
}

func normalizeKey(key string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(key)), "-", "_")
}

// IsSensitive reports whether values logged under key are always masked.
func IsSensitive(key string) bool {
	_, ok := sensitiveKeys[normalizeKey(key)]
	return ok
}

// MaskField masks value unless key names a public identifier. Empty values
// pass through so the line still shows the field was absent.
func MaskField(key, value string) slog.Attr {
	if strings.TrimSpace(value) == "" {
		return slog.String(key, value)
	}
	if _, ok := publicKeys[normalizeKey(key)]; ok && !IsSensitive(key) {
		return slog.String(key, value)
	}
	return slog.String(key, RedactedValue)
}

func redactAttr(attr slog.Attr) slog.Attr {
	if !IsSensitive(attr.Key) || attr.Value.Kind() == slog.KindGroup {
		return attr
	}
	if attr.Value.Kind() == slog.KindString && strings.TrimSpace(attr.Value.String()) == "" {
		return attr
	}
	return slog.String(attr.Key, RedactedValue)
}
