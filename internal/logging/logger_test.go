package logging

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestConsoleHandlerOutput(t *testing.T) {
	var sb strings.Builder
	levelVar := new(slog.LevelVar)
	logger := slog.New(&consoleHandler{writer: &sb, level: levelVar})

	logger = NewComponentLogger(logger, "broker")
	logger.Info("session opened", String(FieldService, "port.echo"), Int("pid", 42))

	line := sb.String()
	if !strings.Contains(line, "INFO broker: session opened") {
		t.Fatalf("unexpected line: %q", line)
	}
	if !strings.Contains(line, "service=port.echo") || !strings.Contains(line, "pid=42") {
		t.Fatalf("missing attributes: %q", line)
	}
}

func TestConsoleHandlerQuotesAwkwardValues(t *testing.T) {
	var sb strings.Builder
	logger := slog.New(&consoleHandler{writer: &sb, level: new(slog.LevelVar)})
	logger.Warn("accept failed", Error(errors.New("socket gone away")))
	if !strings.Contains(sb.String(), `error="socket gone away"`) {
		t.Fatalf("error not quoted: %q", sb.String())
	}
}

func TestLevelFiltering(t *testing.T) {
	var sb strings.Builder
	levelVar := new(slog.LevelVar)
	levelVar.Set(slog.LevelWarn)
	logger := slog.New(&consoleHandler{writer: &sb, level: levelVar})
	logger.Info("dropped")
	logger.Warn("kept")
	out := sb.String()
	if strings.Contains(out, "dropped") || !strings.Contains(out, "kept") {
		t.Fatalf("level filter broken: %q", out)
	}
}

func TestParseLevel(t *testing.T) {
	if parseLevel("DEBUG") != slog.LevelDebug {
		t.Fatal("debug parse")
	}
	if parseLevel("nonsense") != slog.LevelInfo {
		t.Fatal("unknown level should default to info")
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New(Options{Format: "xml"}); err == nil {
		t.Fatal("expected format error")
	}
}

func TestNopLoggerDiscards(t *testing.T) {
	logger := NewNop()
	if logger.Enabled(context.Background(), slog.LevelError) {
		t.Fatal("nop logger must report disabled")
	}
}
