// Package config loads process configuration from a .env file (when
// present) and environment variables. Flags defined in the cmd mains
// override these values.
package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Placeholder secrets; the server warns at startup when these are live.
const (
	DefaultAPIKey       = "changeme"
	DefaultCommandToken = "changeme"
)

// Server holds the relay server configuration.
type Server struct {
	Addr         string
	APIKey       string
	CommandToken string
	SchemaPath   string
	HistoryLimit int
	ClaimTTL     time.Duration
	LogLevel     slog.Level
}

// Agent holds the polling agent configuration.
type Agent struct {
	RelayURL        string
	GameURL         string
	APIKey          string
	CommandToken    string
	ClientID        string
	PollInterval    time.Duration
	CommandInterval time.Duration
	HTTPTimeout     time.Duration
	LogLevel        slog.Level
}

// LoadServer reads the relay server configuration from the environment.
func LoadServer() Server {
	_ = godotenv.Load()
	return Server{
		Addr:         getenv("RELAY_ADDR", ":8000"),
		APIKey:       getenv("API_KEY", DefaultAPIKey),
		CommandToken: getenv("COMMAND_TOKEN", DefaultCommandToken),
		SchemaPath:   getenv("SCHEMA_PATH", "variables.json"),
		HistoryLimit: getint("COMMAND_HISTORY_LIMIT", 200),
		ClaimTTL:     getdur("COMMAND_CLAIM_TTL", 0),
		LogLevel:     ParseLevel(getenv("LOG_LEVEL", "info")),
	}
}

// LoadAgent reads the polling agent configuration from the environment.
func LoadAgent() Agent {
	_ = godotenv.Load()
	return Agent{
		RelayURL:        getenv("RELAY_URL", "http://127.0.0.1:8000"),
		GameURL:         getenv("GAME_URL", "http://127.0.0.1:8080"),
		APIKey:          getenv("API_KEY", DefaultAPIKey),
		CommandToken:    getenv("COMMAND_TOKEN", DefaultCommandToken),
		ClientID:        getenv("CLIENT_ID", hostnameOr("agent")),
		PollInterval:    getdur("POLL_INTERVAL", 5*time.Second),
		CommandInterval: getdur("COMMAND_POLL_INTERVAL", 2*time.Second),
		HTTPTimeout:     getdur("HTTP_TIMEOUT", 10*time.Second),
		LogLevel:        ParseLevel(getenv("LOG_LEVEL", "info")),
	}
}

// ParseLevel maps a level name onto slog's levels, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getint(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

// getdur accepts Go durations ("30s") and bare numbers read as seconds,
// so older deployment configs keep working.
func getdur(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.ParseFloat(v, 64); err == nil {
		return time.Duration(secs * float64(time.Second))
	}
	return fallback
}

func hostnameOr(fallback string) string {
	if h, err := os.Hostname(); err == nil && h != "" {
		return h
	}
	return fallback
}
