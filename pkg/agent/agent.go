// Package agent implements the polling collaborator: it scrapes the
// simulator's webserver, pushes signed snapshots to the relay, claims
// queued commands, executes their tasks against the simulator and
// reports the outcomes. Every failure is logged and retried on the next
// tick; the agent never stops on a bad poll.
package agent

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"plant-relay/pkg/config"
)

// Runner drives the sync and command loops.
type Runner struct {
	log    *slog.Logger
	client *http.Client
	relay  string
	game   string
	apiKey []byte
	token  string
	id     string

	pollInterval    time.Duration
	commandInterval time.Duration
	claimLimit      int
}

// New builds a runner from the agent configuration.
func New(log *slog.Logger, cfg config.Agent) *Runner {
	return &Runner{
		log:             log,
		client:          &http.Client{Timeout: cfg.HTTPTimeout},
		relay:           strings.TrimRight(cfg.RelayURL, "/"),
		game:            strings.TrimRight(cfg.GameURL, "/"),
		apiKey:          []byte(cfg.APIKey),
		token:           cfg.CommandToken,
		id:              cfg.ClientID,
		pollInterval:    cfg.PollInterval,
		commandInterval: cfg.CommandInterval,
		claimLimit:      5,
	}
}

// Run executes both loops until the context is cancelled.
func (a *Runner) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.loop(ctx, a.pollInterval, "sync", a.syncOnce) })
	g.Go(func() error { return a.loop(ctx, a.commandInterval, "commands", a.commandsOnce) })
	return g.Wait()
}

func (a *Runner) loop(ctx context.Context, interval time.Duration, name string, step func(context.Context) error) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if err := step(ctx); err != nil && ctx.Err() == nil {
			a.log.Warn("tick failed", "loop", name, "err", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// httpError summarizes a non-2xx response, keeping a short body excerpt.
func httpError(resp *http.Response) error {
	excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
	return fmt.Errorf("unexpected status %s: %s", resp.Status, strings.TrimSpace(string(excerpt)))
}
