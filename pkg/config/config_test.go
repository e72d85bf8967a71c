package config

import (
	"log/slog"
	"testing"
	"time"
)

func TestLoadServerDefaults(t *testing.T) {
	cfg := LoadServer()
	if cfg.Addr != ":8000" {
		t.Errorf("Addr = %q", cfg.Addr)
	}
	if cfg.HistoryLimit != 200 {
		t.Errorf("HistoryLimit = %d", cfg.HistoryLimit)
	}
	if cfg.ClaimTTL != 0 {
		t.Errorf("ClaimTTL = %v, want disabled", cfg.ClaimTTL)
	}
}

func TestLoadServerFromEnv(t *testing.T) {
	t.Setenv("RELAY_ADDR", ":9999")
	t.Setenv("COMMAND_HISTORY_LIMIT", "50")
	t.Setenv("COMMAND_CLAIM_TTL", "90s")
	t.Setenv("LOG_LEVEL", "debug")

	cfg := LoadServer()
	if cfg.Addr != ":9999" {
		t.Errorf("Addr = %q", cfg.Addr)
	}
	if cfg.HistoryLimit != 50 {
		t.Errorf("HistoryLimit = %d", cfg.HistoryLimit)
	}
	if cfg.ClaimTTL != 90*time.Second {
		t.Errorf("ClaimTTL = %v", cfg.ClaimTTL)
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Errorf("LogLevel = %v", cfg.LogLevel)
	}
}

func TestBareSecondsDuration(t *testing.T) {
	// older deployment configs carried intervals as bare seconds
	t.Setenv("POLL_INTERVAL", "2.5")
	cfg := LoadAgent()
	if cfg.PollInterval != 2500*time.Millisecond {
		t.Errorf("PollInterval = %v", cfg.PollInterval)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"bogus":   slog.LevelInfo,
		"":        slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
