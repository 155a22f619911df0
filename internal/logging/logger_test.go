package logging

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name   string
		config *Config
	}{
		{name: "default config", config: nil},
		{name: "json format", config: &Config{Level: LevelInfo, Format: "json", Output: &bytes.Buffer{}}},
		{name: "text format", config: &Config{Level: LevelDebug, Format: "text", Output: &bytes.Buffer{}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if NewLogger(tt.config) == nil {
				t.Error("NewLogger() returned nil")
			}
		})
	}
}

func syncLogger(buf *bytes.Buffer, level LogLevel) *Logger {
	return NewLogger(&Config{Level: level, Format: "text", Output: buf, Sync: true, NoColor: true})
}

func TestLoggerWithQueue(t *testing.T) {
	var buf bytes.Buffer
	logger := syncLogger(&buf, LevelDebug).WithDevice("dsa0").WithQueue("wq0.1")

	logger.Info("queue opened", "mode", "shared")

	output := buf.String()
	for _, want := range []string{"device=dsa0", "wq=wq0.1", "mode=shared", "queue opened"} {
		if !strings.Contains(output, want) {
			t.Errorf("Expected %q in output, got: %s", want, output)
		}
	}
	if logger.Queue() != "wq0.1" {
		t.Errorf("Queue() = %q, want wq0.1", logger.Queue())
	}
}

func TestLoggerWithOp(t *testing.T) {
	var buf bytes.Buffer
	logger := syncLogger(&buf, LevelDebug).WithOp("cq1b2d3e", "MEMMOVE")
	logger.Debug("submitted", "retries", 3)

	output := buf.String()
	if !strings.Contains(output, "op_id=cq1b2d3e") {
		t.Errorf("Expected op_id in output, got: %s", output)
	}
	if !strings.Contains(output, "op=MEMMOVE") {
		t.Errorf("Expected op=MEMMOVE in output, got: %s", output)
	}
	if !strings.Contains(output, "retries=3") {
		t.Errorf("Expected retries=3 in output, got: %s", output)
	}
}

func TestLoggerWithError(t *testing.T) {
	var buf bytes.Buffer
	logger := syncLogger(&buf, LevelDebug).WithError(errors.New("test error"))
	logger.Error("operation failed")

	if !strings.Contains(buf.String(), "test error") {
		t.Errorf("Expected 'test error' in output, got: %s", buf.String())
	}
}

func TestDebugEnabled(t *testing.T) {
	var buf bytes.Buffer
	if syncLogger(&buf, LevelInfo).DebugEnabled() {
		t.Error("DebugEnabled() = true at info level")
	}
	if !syncLogger(&buf, LevelDebug).DebugEnabled() {
		t.Error("DebugEnabled() = false at debug level")
	}
	if Nop().DebugEnabled() {
		t.Error("Nop logger reports debug enabled")
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := syncLogger(&buf, LevelWarn)
	logger.Info("hidden")
	logger.Warn("shown")

	output := buf.String()
	if strings.Contains(output, "hidden") {
		t.Errorf("info message leaked at warn level: %s", output)
	}
	if !strings.Contains(output, "shown") {
		t.Errorf("warn message missing: %s", output)
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]LogLevel{
		"debug": LevelDebug,
		"warn":  LevelWarn,
		"error": LevelError,
		"":      LevelInfo,
		"bogus": LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestAsyncWriter(t *testing.T) {
	var buf bytes.Buffer
	aw := newAsyncWriter(&buf, 10)
	aw.Write([]byte("line one\n"))
	aw.Write([]byte("line two\n"))
	aw.Close()

	if got := buf.String(); got != "line one\nline two\n" {
		t.Errorf("async output = %q", got)
	}
	if _, err := aw.Write([]byte("late")); err == nil {
		t.Error("Write after Close succeeded")
	}
}

func TestDefaultLogger(t *testing.T) {
	orig := Default()
	defer SetDefault(orig)

	var buf bytes.Buffer
	SetDefault(syncLogger(&buf, LevelInfo))
	Info("global message", "k", "v")

	if !strings.Contains(buf.String(), "k=v") {
		t.Errorf("Expected k=v in output, got: %s", buf.String())
	}
}
