package logger

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestNew(t *testing.T) {
	log := New(false)
	if log.GetLevel() != zerolog.InfoLevel {
		t.Errorf("expected info level, got %v", log.GetLevel())
	}

	verbose := New(true)
	if verbose.GetLevel() != zerolog.DebugLevel {
		t.Errorf("expected debug level, got %v", verbose.GetLevel())
	}
}

func TestNewWithWriter(t *testing.T) {
	buf := &bytes.Buffer{}
	log := NewWithWriter(buf)

	log.Info().Msg("test message")

	output := buf.String()
	if output == "" {
		t.Error("Expected log output, got empty string")
	}
	if !strings.Contains(output, "test message") {
		t.Errorf("Expected output to contain 'test message', got: %s", output)
	}
}

func TestWithContext(t *testing.T) {
	log := New(false)
	ctx := WithContext(context.Background(), log)

	if ctx.Value(LoggerKey) == nil {
		t.Error("Expected logger in context, got nil")
	}

	got := FromContext(ctx)
	if got.GetLevel() != log.GetLevel() {
		t.Error("FromContext returned a different logger")
	}
}

func TestFromContextDefault(t *testing.T) {
	got := FromContext(context.Background())
	if got.GetLevel() == zerolog.Disabled {
		t.Error("Expected a usable default logger")
	}
}

func TestForComponent(t *testing.T) {
	buf := &bytes.Buffer{}
	log := ForComponent(NewWithWriter(buf), "matcher")

	log.Info().Msg("scored")

	if !strings.Contains(buf.String(), "matcher") {
		t.Errorf("Expected component tag in output, got: %s", buf.String())
	}
}
