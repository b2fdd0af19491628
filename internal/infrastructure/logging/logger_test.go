package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nerrad567/mosquitto-monitor/internal/infrastructure/config"
)

// bufferLogger returns a Logger writing to buf with the given settings.
func bufferLogger(buf *bytes.Buffer, level, format string) *Logger {
	cfg := config.LoggingConfig{Level: level, Format: format}
	return &Logger{Logger: slog.New(newHandler(buf, cfg, "test"))}
}

func decodeLine(t *testing.T, line []byte) map[string]any {
	t.Helper()

	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(line), &entry); err != nil {
		t.Fatalf("failed to parse JSON output %q: %v", line, err)
	}
	return entry
}

func TestNew_Outputs(t *testing.T) {
	for _, output := range []string{"stdout", "stderr", "", "STDERR"} {
		t.Run(output, func(t *testing.T) {
			logger := New(config.LoggingConfig{Level: "info", Format: "json", Output: output}, "1.0.0")
			if logger == nil {
				t.Fatal("expected non-nil logger")
			}
			if logger.closer != nil {
				t.Error("console logger should not own a file")
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"DEBUG", slog.LevelDebug},
		{" error ", slog.LevelError},
		{"verbose", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := parseLevel(tt.input); got != tt.expected {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestHandler_DefaultFields(t *testing.T) {
	var buf bytes.Buffer
	logger := bufferLogger(&buf, "info", "json")

	logger.Info("subscribed", "filter", "$SYS/#")

	entry := decodeLine(t, buf.Bytes())
	if entry["service"] != serviceName {
		t.Errorf("service = %v, want %s", entry["service"], serviceName)
	}
	if entry["version"] != "test" {
		t.Errorf("version = %v, want test", entry["version"])
	}
	if entry["msg"] != "subscribed" || entry["filter"] != "$SYS/#" {
		t.Errorf("entry = %v", entry)
	}
}

func TestHandler_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	logger := bufferLogger(&buf, "warn", "json")

	logger.Info("dropped")
	logger.Warn("kept")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1: %q", len(lines), buf.String())
	}
	if entry := decodeLine(t, []byte(lines[0])); entry["msg"] != "kept" {
		t.Errorf("msg = %v, want kept", entry["msg"])
	}
}

func TestHandler_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := bufferLogger(&buf, "debug", "TEXT")

	logger.Debug("queue drained", "messages", 3)

	out := buf.String()
	for _, want := range []string{"msg=\"queue drained\"", "messages=3", "service=mosquitto-monitor"} {
		if !strings.Contains(out, want) {
			t.Errorf("text output %q missing %q", out, want)
		}
	}
}

func TestHandler_RedactsSecrets(t *testing.T) {
	var buf bytes.Buffer
	logger := bufferLogger(&buf, "info", "json")

	logger.Info("connecting", "username", "monitor", "password", "hunter2", "Token", "abc")

	if strings.Contains(buf.String(), "hunter2") || strings.Contains(buf.String(), "abc") {
		t.Fatalf("secret leaked: %s", buf.String())
	}
	entry := decodeLine(t, buf.Bytes())
	if entry["password"] != redacted || entry["Token"] != redacted {
		t.Errorf("entry = %v, want secrets redacted", entry)
	}
	if entry["username"] != "monitor" {
		t.Errorf("username = %v, want monitor", entry["username"])
	}
}

func TestLogger_With(t *testing.T) {
	var buf bytes.Buffer
	logger := bufferLogger(&buf, "info", "json")
	logger.closer = nopCloser{}

	child := logger.With("component", "dispatcher")
	if child == logger {
		t.Fatal("expected child logger to be different from parent")
	}
	if child.closer != nil {
		t.Error("child logger must not own the parent's file")
	}

	child.Info("gauge emitted")
	if entry := decodeLine(t, buf.Bytes()); entry["component"] != "dispatcher" {
		t.Errorf("component = %v, want dispatcher", entry["component"])
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func TestNew_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "monitor.log")
	cfg := config.LoggingConfig{
		Level:  "debug",
		Format: "json",
		Output: "file",
		File: config.FileLoggingConfig{
			Path:       path,
			MaxSize:    1,
			MaxBackups: 1,
		},
	}

	logger := New(cfg, "1.0.0")
	logger.Info("status message received", "topic", "$SYS/broker/uptime")
	if err := logger.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}

	entry := decodeLine(t, data)
	if entry["service"] != "mosquitto-monitor" {
		t.Errorf("service = %v, want mosquitto-monitor", entry["service"])
	}
	if entry["topic"] != "$SYS/broker/uptime" {
		t.Errorf("topic = %v, want $SYS/broker/uptime", entry["topic"])
	}
}

func TestLogger_CloseConsoleOnly(t *testing.T) {
	if err := Default().Close(); err != nil {
		t.Errorf("Close() on console logger error = %v, want nil", err)
	}
}
