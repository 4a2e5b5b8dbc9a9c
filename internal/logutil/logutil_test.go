package logutil

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestParseSlogLevel(t *testing.T) {
	t.Parallel()

	cases := map[string]slog.Level{
		"":        slog.LevelInfo,
		"debug":   slog.LevelDebug,
		"WARNING": slog.LevelWarn,
		" error ": slog.LevelError,
	}
	for in, want := range cases {
		got, err := parseSlogLevel(in)
		if err != nil {
			t.Fatalf("parseSlogLevel(%q) error = %v", in, err)
		}
		if got != want {
			t.Fatalf("parseSlogLevel(%q) = %v, want %v", in, got, want)
		}
	}
	if _, err := parseSlogLevel("loud"); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}

func TestNewLoggerFromConfigJSON(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger, err := newLoggerFromConfig(&buf, loggerConfig{Level: "info", Format: "json"})
	if err != nil {
		t.Fatalf("newLoggerFromConfig() error = %v", err)
	}
	logger.Info("train_step", "step", 3)
	if !strings.Contains(buf.String(), `"msg":"train_step"`) {
		t.Fatalf("unexpected output: %s", buf.String())
	}
	if _, err := newLoggerFromConfig(&buf, loggerConfig{Format: "xml"}); err == nil {
		t.Fatalf("expected error for unknown format")
	}
}

func TestDiscardDropsEverything(t *testing.T) {
	t.Parallel()

	if Discard().Enabled(context.Background(), slog.LevelError) {
		t.Fatalf("discard logger should not be enabled")
	}
}

func TestTruncate(t *testing.T) {
	t.Parallel()

	if got := Truncate("  hello world ", 5); got != "hello..." {
		t.Fatalf("Truncate() = %q", got)
	}
	if got := Truncate("héllo", 10); got != "héllo" {
		t.Fatalf("Truncate() = %q", got)
	}
}
