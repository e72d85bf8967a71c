package main

import (
	"flag"
	"log/slog"
	"net/http"
	"os"
	"time"

	"plant-relay/pkg/api"
	"plant-relay/pkg/command"
	"plant-relay/pkg/config"
	"plant-relay/pkg/metrics"
	"plant-relay/pkg/schema"
	"plant-relay/pkg/state"
	"plant-relay/pkg/version"
)

func main() {
	cfg := config.LoadServer()

	addr := flag.String("addr", cfg.Addr, "listen address (env RELAY_ADDR)")
	apiKey := flag.String("api-key", cfg.APIKey, "shared key for snapshot signatures (env API_KEY)")
	commandToken := flag.String("command-token", cfg.CommandToken, "shared token for the command API (env COMMAND_TOKEN)")
	schemaPath := flag.String("schema", cfg.SchemaPath, "variable schema file, JSON or YAML (env SCHEMA_PATH)")
	historyLimit := flag.Int("history-limit", cfg.HistoryLimit, "retained command bound (env COMMAND_HISTORY_LIMIT)")
	claimTTL := flag.Duration("claim-ttl", cfg.ClaimTTL, "reclaim stuck in_progress commands after this long; 0 disables (env COMMAND_CLAIM_TTL)")
	logLevel := flag.String("log-level", "", "debug|info|warn|error (env LOG_LEVEL)")
	showVersion := flag.Bool("v", false, "print version and exit")
	flag.Parse()

	level := cfg.LogLevel
	if *logLevel != "" {
		level = config.ParseLevel(*logLevel)
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if *showVersion {
		log.Info("plant-relay server", "version", version.Build)
		return
	}
	if *apiKey == config.DefaultAPIKey {
		log.Warn("API_KEY is the default value; set a real secret before exposing the relay")
	}
	if *commandToken == config.DefaultCommandToken {
		log.Warn("COMMAND_TOKEN is the default value; set a real secret before exposing the relay")
	}

	ix, err := schema.Load(*schemaPath)
	if err != nil {
		log.Error("schema load failed", "path", *schemaPath, "err", err)
		os.Exit(1)
	}

	m := metrics.New()
	store := state.New(ix)
	queue := command.New(*historyLimit, *claimTTL)
	gateway := api.New(log, store, queue, m, *apiKey, *commandToken)

	mux := http.NewServeMux()
	gateway.Register(mux)

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	log.Info("relay listening", "addr", *addr, "version", version.Build, "schema", *schemaPath)
	if err := srv.ListenAndServe(); err != nil {
		log.Error("server error", "err", err)
		os.Exit(1)
	}
}
