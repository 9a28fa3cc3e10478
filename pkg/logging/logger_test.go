package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestSetup_Level(t *testing.T) {
	tests := []struct {
		level string
		want  zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"bogus", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			Setup(Config{Level: tt.level, Output: &bytes.Buffer{}})
			if got := zerolog.GlobalLevel(); got != tt.want {
				t.Errorf("global level = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSetup_JSONOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup(Config{Level: "info", Output: &buf})

	logger.Info().Str("key", "users:list:all").Msg("test message")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	if entry["message"] != "test message" {
		t.Errorf("message = %v", entry["message"])
	}
	if entry["key"] != "users:list:all" {
		t.Errorf("key field = %v", entry["key"])
	}
	if _, ok := entry["time"]; !ok {
		t.Error("no timestamp in log entry")
	}
}

func TestSetup_PrettyOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup(Config{Level: "info", Pretty: true, Output: &buf})

	logger.Info().Msg("pretty line")

	if json.Valid(buf.Bytes()) {
		t.Error("pretty output should not be raw JSON")
	}
	if !strings.Contains(buf.String(), "pretty line") {
		t.Errorf("output missing message: %q", buf.String())
	}
}

func TestNewLogger_ComponentField(t *testing.T) {
	var buf bytes.Buffer
	Setup(Config{Level: "info", Output: &buf})

	logger := NewLogger("store")
	logger.Info().Msg("component test")

	if !strings.Contains(buf.String(), `"component":"store"`) {
		t.Errorf("output missing component field: %q", buf.String())
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Level != "info" {
		t.Errorf("default level = %q", cfg.Level)
	}
	if cfg.Pretty {
		t.Error("default Pretty = true")
	}
}
