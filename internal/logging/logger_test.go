package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	pi4j "github.com/GeVanCo/pi4j-v2"
	"github.com/GeVanCo/pi4j-v2/config"
	"github.com/GeVanCo/pi4j-v2/digital"
	"github.com/GeVanCo/pi4j-v2/history"
	"github.com/GeVanCo/pi4j-v2/plugins/mqttgpio"
	"github.com/GeVanCo/pi4j-v2/plugins/serialgpio"
	"github.com/GeVanCo/pi4j-v2/registry"
)

// One configured *Logger must plug into every subsystem's logging seam.
var (
	_ pi4j.Logger       = (*Logger)(nil)
	_ registry.Logger   = (*Logger)(nil)
	_ digital.Logger    = (*Logger)(nil)
	_ history.Logger    = (*Logger)(nil)
	_ mqttgpio.Logger   = (*Logger)(nil)
	_ serialgpio.Logger = (*Logger)(nil)
)

// newCaptureLogger builds a Logger over an in-memory JSON handler so tests
// can inspect what was emitted.
func newCaptureLogger() (*Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	handler := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})
	return &Logger{Logger: slog.New(handler)}, &buf
}

func decodeEntry(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("parsing log output %q: %v", buf.String(), err)
	}
	return entry
}

func TestNew(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.LoggingConfig
	}{
		{"json to stdout", config.LoggingConfig{Level: "info", Format: "json", Output: "stdout"}},
		{"text to stderr", config.LoggingConfig{Level: "debug", Format: "text", Output: "stderr"}},
		{"unrecognised values fall back", config.LoggingConfig{Level: "loud", Format: "xml", Output: "lp0"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if logger := New(tt.cfg, "1.0.0"); logger == nil {
				t.Fatal("New() = nil, want logger")
			}
		})
	}
}

func TestDefault(t *testing.T) {
	if logger := Default(); logger == nil {
		t.Fatal("Default() = nil, want logger")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"unknown", slog.LevelInfo},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := parseLevel(tt.input); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestComponent(t *testing.T) {
	logger, buf := newCaptureLogger()

	logger.Component("journal").Info("state change recorded")

	entry := decodeEntry(t, buf)
	if entry["component"] != "journal" {
		t.Errorf("component = %v, want journal", entry["component"])
	}
	if entry["msg"] != "state change recorded" {
		t.Errorf("msg = %v, want state change recorded", entry["msg"])
	}
}

func TestWith(t *testing.T) {
	logger, buf := newCaptureLogger()

	child := logger.With("instance", "led-kitchen")
	if child == logger {
		t.Fatal("With() returned the parent logger")
	}
	child.Info("created")

	entry := decodeEntry(t, buf)
	if entry["instance"] != "led-kitchen" {
		t.Errorf("instance = %v, want led-kitchen", entry["instance"])
	}
}

func TestDefaultFields(t *testing.T) {
	logger, buf := newCaptureLogger()

	logger.With("service", serviceName, "version", "test").Info("test message", "key", "value")

	entry := decodeEntry(t, buf)
	if entry["service"] != "pi4jd" {
		t.Errorf("service = %v, want pi4jd", entry["service"])
	}
	if entry["version"] != "test" {
		t.Errorf("version = %v, want test", entry["version"])
	}
	if entry["key"] != "value" {
		t.Errorf("key = %v, want value", entry["key"])
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	handler := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: parseLevel("warn")})
	logger := &Logger{Logger: slog.New(handler)}

	logger.Debug("hidden")
	logger.Info("hidden too")
	if buf.Len() != 0 {
		t.Fatalf("entries below warn were emitted: %q", buf.String())
	}

	logger.Warn("visible")
	if buf.Len() == 0 {
		t.Fatal("warn entry was filtered out")
	}
}
