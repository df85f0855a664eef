package utils

import (
	"errors"
	"log/slog"
	"testing"
	"time"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestAppErrorUnwrap(t *testing.T) {
	base := errors.New("boom")
	err := NewAppError("registry.validate", "missing executor", base)
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to match base")
	}
	if OpOf(err) != "registry.validate" {
		t.Fatalf("unexpected op %q", OpOf(err))
	}
}

func TestHourIn(t *testing.T) {
	loc, err := LoadLocation("UTC")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	ts := time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC)
	if HourIn(ts, loc) != 10 {
		t.Fatalf("expected hour 10")
	}
	if _, err := LoadLocation("Not/AZone"); err == nil {
		t.Fatalf("expected error for unknown zone")
	}
}
