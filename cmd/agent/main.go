package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"plant-relay/pkg/agent"
	"plant-relay/pkg/config"
	"plant-relay/pkg/version"
)

func main() {
	cfg := config.LoadAgent()

	relay := flag.String("relay", cfg.RelayURL, "relay base URL (env RELAY_URL)")
	game := flag.String("game", cfg.GameURL, "simulator webserver base URL (env GAME_URL)")
	apiKey := flag.String("api-key", cfg.APIKey, "shared key for snapshot signatures (env API_KEY)")
	commandToken := flag.String("command-token", cfg.CommandToken, "shared token for the command API (env COMMAND_TOKEN)")
	clientID := flag.String("id", cfg.ClientID, "claimant id reported to the relay (env CLIENT_ID)")
	pollInterval := flag.Duration("poll-interval", cfg.PollInterval, "snapshot sync interval (env POLL_INTERVAL)")
	commandInterval := flag.Duration("command-interval", cfg.CommandInterval, "command poll interval (env COMMAND_POLL_INTERVAL)")
	httpTimeout := flag.Duration("http-timeout", cfg.HTTPTimeout, "per-request timeout (env HTTP_TIMEOUT)")
	logLevel := flag.String("log-level", "", "debug|info|warn|error (env LOG_LEVEL)")
	showVersion := flag.Bool("v", false, "print version and exit")
	flag.Parse()

	level := cfg.LogLevel
	if *logLevel != "" {
		level = config.ParseLevel(*logLevel)
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if *showVersion {
		log.Info("plant-relay agent", "version", version.Build)
		return
	}

	cfg.RelayURL = *relay
	cfg.GameURL = *game
	cfg.APIKey = *apiKey
	cfg.CommandToken = *commandToken
	cfg.ClientID = *clientID
	cfg.PollInterval = *pollInterval
	cfg.CommandInterval = *commandInterval
	cfg.HTTPTimeout = *httpTimeout

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("agent starting", "version", version.Build, "relay", cfg.RelayURL, "game", cfg.GameURL, "client_id", cfg.ClientID)
	if err := agent.New(log, cfg).Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("agent stopped", "err", err)
		os.Exit(1)
	}
}
