package logging

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSetupWithOptionsWritesFile(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	path := filepath.Join(t.TempDir(), "logs", "faucetd.log")
	logger, closer, err := SetupWithOptions("faucetd", "test", Options{Level: slog.LevelDebug, File: path})
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	logger.Debug("claim processed", "class", "Challenge0", MaskField("signature", "deadbeef"))
	if err := closer.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	var line map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(string(raw))), &line); err != nil {
		t.Fatalf("decode line %q: %v", raw, err)
	}
	want := map[string]any{
		"message":   "claim processed",
		"severity":  "DEBUG",
		"service":   "faucetd",
		"env":       "test",
		"class":     "Challenge0",
		"signature": RedactedValue,
	}
	for key, value := range want {
		if line[key] != value {
			t.Fatalf("%s: got %v want %v", key, line[key], value)
		}
	}
	if _, ok := line["timestamp"]; !ok {
		t.Fatalf("missing timestamp in %v", line)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestHandlerMasksSensitiveKeys(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	path := filepath.Join(t.TempDir(), "faucetd.log")
	logger, closer, err := SetupWithOptions("faucetd", "", Options{File: path})
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	logger.Info("keystore unlocked", "Keystore-Pass", "hunter2", "actor", "4vJ9", "seed", "")
	if err := closer.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if strings.Contains(string(raw), "hunter2") {
		t.Fatalf("passphrase leaked: %s", raw)
	}
	var line map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(string(raw))), &line); err != nil {
		t.Fatalf("decode line %q: %v", raw, err)
	}
	if line["Keystore-Pass"] != RedactedValue || line["actor"] != "4vJ9" || line["seed"] != "" {
		t.Fatalf("unexpected fields: %v", line)
	}
	if _, ok := line["env"]; ok {
		t.Fatalf("empty env should be omitted: %v", line)
	}
}

func TestMaskFieldKeepsPublicKeys(t *testing.T) {
	if attr := MaskField("tx", "abc"); attr.Value.String() != "abc" {
		t.Fatalf("allowlisted key was masked: %v", attr)
	}
	if attr := MaskField("passphrase", "abc"); attr.Value.String() != RedactedValue {
		t.Fatalf("sensitive key leaked: %v", attr)
	}
	if attr := MaskField("passphrase", ""); attr.Value.String() != "" {
		t.Fatalf("empty value should pass through: %v", attr)
	}
}
