package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestLevelFromString(t *testing.T) {
	t.Parallel()

	cases := map[string]zerolog.Level{
		"error":   zerolog.ErrorLevel,
		" WARN ":  zerolog.WarnLevel,
		"warning": zerolog.WarnLevel,
		"info":    zerolog.InfoLevel,
		"debug":   zerolog.DebugLevel,
		"verbose": zerolog.DebugLevel,
	}
	for in, want := range cases {
		if got := levelFromString(in); got != want {
			t.Fatalf("%q: want %s got %s", in, want, got)
		}
	}
}

func TestComponentLoggerFiltersByLevel(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := Component(NewWithWriter(&buf, "warn"), "quotes")

	logger.Info().Msg("hidden")
	logger.Warn().Str("ticker", "NVDA").Msg("quote unavailable")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info line must be filtered: %s", out)
	}
	if !strings.Contains(out, "quote unavailable") || !strings.Contains(out, "component=quotes") {
		t.Fatalf("expected tagged warning, got %s", out)
	}
}
