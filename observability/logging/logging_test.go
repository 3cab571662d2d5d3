package logging

import (
	"log/slog"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"  WARN ": slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"bogus":   slog.LevelInfo,
		"":        slog.LevelInfo,
	}
	for raw, want := range cases {
		if got := ParseLevel(raw); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", raw, got, want)
		}
	}
}

func TestRedactMasksCredentials(t *testing.T) {
	attr := Redact(slog.String("token", "super-secret"))
	if attr.Value.String() != Redacted {
		t.Fatalf("token not masked: %v", attr.Value)
	}
	attr = Redact(slog.String("Authorization", "Bearer abc"))
	if attr.Value.String() != Redacted {
		t.Fatalf("authorization not masked: %v", attr.Value)
	}
}

func TestRedactLeavesOrdinaryAttrs(t *testing.T) {
	attr := Redact(slog.String("bounty_id", "42"))
	if attr.Value.String() != "42" {
		t.Fatalf("ordinary attribute mangled: %v", attr.Value)
	}
	// empty credentials stay empty rather than turning into placeholder noise
	attr = Redact(slog.String("token", ""))
	if attr.Value.String() != "" {
		t.Fatalf("empty credential mangled: %v", attr.Value)
	}
}
