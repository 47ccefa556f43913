package observability

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevelFallsBackToInfo(t *testing.T) {
	cases := map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		"INFO":    zerolog.InfoLevel,
		" warn ":  zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"":        zerolog.InfoLevel,
		"verbose": zerolog.InfoLevel,
	}
	for raw, want := range cases {
		if got := parseLevel(raw); got != want {
			t.Fatalf("parseLevel(%q) = %s, want %s", raw, got, want)
		}
	}
}

func TestNewLoggerTagsServiceAndEnvironment(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(LoggerConfig{Level: "info", Service: "spreadscan", Environment: "dev"}, &buf)

	logger.Info().Msg("hello")

	out := buf.String()
	for _, want := range []string{`"service":"spreadscan"`, `"environment":"dev"`, `"message":"hello"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("log line missing %s: %s", want, out)
		}
	}
}

func TestNewLoggerSuppressesBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(LoggerConfig{Level: "warn"}, &buf)

	logger.Info().Msg("quiet")
	logger.Warn().Msg("loud")

	out := buf.String()
	if strings.Contains(out, "quiet") {
		t.Fatalf("info line must be suppressed at warn level: %s", out)
	}
	if !strings.Contains(out, "loud") {
		t.Fatalf("warn line must pass: %s", out)
	}
}

func TestComponentTagsChildLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := Component(newLogger(LoggerConfig{}, &buf), "scanner")

	logger.Info().Msg("cycle")

	if !strings.Contains(buf.String(), `"component":"scanner"`) {
		t.Fatalf("missing component tag: %s", buf.String())
	}
}
