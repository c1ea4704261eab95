package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"WARN", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"nonsense", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNew_JSONFormat(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("LOG_FORMAT", "")

	var buf bytes.Buffer
	l := New(Config{Level: "info", Format: "json", Output: &buf})
	l.Info("closure computed", "ratio", 12000.0)

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	if rec["msg"] != "closure computed" {
		t.Errorf("msg = %v", rec["msg"])
	}
	if rec["component"] != "survey-engine" {
		t.Errorf("component = %v", rec["component"])
	}
}

func TestNew_EnvOverridesLevel(t *testing.T) {
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("LOG_FORMAT", "text")

	var buf bytes.Buffer
	l := New(Config{Level: "debug", Output: &buf})
	l.Warn("should be dropped")
	l.Error("kept")

	out := buf.String()
	if strings.Contains(out, "should be dropped") {
		t.Errorf("warn record not filtered: %q", out)
	}
	if !strings.Contains(out, "kept") {
		t.Errorf("error record missing: %q", out)
	}
}

func TestOrDiscard(t *testing.T) {
	if OrDiscard(nil) == nil {
		t.Fatal("OrDiscard(nil) returned nil")
	}
	l := Discard()
	if OrDiscard(l) != l {
		t.Error("OrDiscard should return the given logger")
	}
}
