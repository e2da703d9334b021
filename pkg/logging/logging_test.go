package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestSetupRejectsUnknownLevel(t *testing.T) {
	if err := Setup(Options{Level: "verbose"}); err == nil {
		t.Fatal("Setup accepted an unknown level")
	}
}

func TestSetupJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	if err := Setup(Options{Level: "info", Format: "json", Output: &buf}); err != nil {
		t.Fatalf("Setup: %v", err)
	}

	slog.Info("session hosted", "bind", ":9000")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, buf.String())
	}
	if entry["msg"] != "session hosted" {
		t.Errorf("msg = %v, want %q", entry["msg"], "session hosted")
	}
	if entry["bind"] != ":9000" {
		t.Errorf("bind = %v, want %q", entry["bind"], ":9000")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
	}
	for _, tt := range tests {
		got, err := parseLevel(tt.input)
		if err != nil {
			t.Errorf("parseLevel(%q): %v", tt.input, err)
			continue
		}
		if got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}
