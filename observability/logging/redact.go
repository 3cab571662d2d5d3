package logging

import (
	"log/slog"
	"strings"
)

// Redacted replaces credential values in log output.
const Redacted = "[REDACTED]"

var sensitiveKeys = map[string]struct{}{
	"token":         {},
	"ops_token":     {},
	"authorization": {},
	"bearer":        {},
	"secret":        {},
	"password":      {},
}

func sensitiveKey(key string) bool {
	_, ok := sensitiveKeys[strings.ToLower(strings.TrimSpace(key))]
	return ok
}

// Redact masks the attribute value when its key names a credential. The ops
// token arrives on every authenticated request, so handlers must be able to
// log request context without leaking it.
func Redact(attr slog.Attr) slog.Attr {
	if !sensitiveKey(attr.Key) {
		return attr
	}
	if attr.Value.Kind() == slog.KindString && strings.TrimSpace(attr.Value.String()) == "" {
		return attr
	}
	return slog.String(attr.Key, Redacted)
}
