// Package api is the HTTP gateway: it authenticates inbound telemetry,
// authorizes command-API calls and maps external requests onto the state
// store and command queue.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"plant-relay/pkg/apierr"
	"plant-relay/pkg/command"
	"plant-relay/pkg/metrics"
	"plant-relay/pkg/model"
	"plant-relay/pkg/state"
)

// Server holds the gateway's dependencies. Construct with New.
type Server struct {
	log          *slog.Logger
	store        *state.Store
	queue        *command.Queue
	hub          *Hub
	metrics      *metrics.Metrics
	apiKey       []byte
	commandToken []byte
}

// New wires the gateway to its collaborators and hooks the stream hub
// and gauges into store replacements and queue lifecycle changes.
func New(log *slog.Logger, store *state.Store, queue *command.Queue, m *metrics.Metrics, apiKey, commandToken string) *Server {
	s := &Server{
		log:          log,
		store:        store,
		queue:        queue,
		hub:          newHub(log, m),
		metrics:      m,
		apiKey:       []byte(apiKey),
		commandToken: []byte(commandToken),
	}
	store.OnReplace(func(lastUpdated string, keys []string) {
		m.SnapshotKeys.Set(float64(len(keys)))
		s.hub.broadcastState(lastUpdated, keys)
	})
	queue.OnChange(func(cmd model.Command) {
		s.updateCommandGauges()
		s.hub.broadcastCommand(cmd)
	})
	return s
}

// Register wires the HTTP handlers on the provided mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("plant-relay server"))
	})
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("GET /metrics", s.metrics.Handler())

	mux.HandleFunc("POST /api/state", s.instrument("ingest", s.handleIngest))
	mux.HandleFunc("GET /api/state", s.instrument("state", s.handleState))
	mux.HandleFunc("GET /api/groups", s.instrument("groups", s.handleGroups))
	mux.HandleFunc("GET /api/state/keys/{path...}", s.instrument("state_keys", s.handleKeys))
	mux.HandleFunc("GET /api/state/{group}", s.instrument("state_group", s.handleGroup))

	mux.HandleFunc("POST /api/commands", s.instrument("commands_create", s.handleCreateCommand))
	mux.HandleFunc("GET /api/commands/next", s.instrument("commands_next", s.handleClaimNext))
	mux.HandleFunc("GET /api/commands/{id}", s.instrument("commands_get", s.handleGetCommand))
	mux.HandleFunc("POST /api/commands/{id}/result", s.instrument("commands_result", s.handleReportResult))

	mux.HandleFunc("GET /api/stream", s.handleStream)
}

func (s *Server) updateCommandGauges() {
	counts := s.queue.Counts()
	for _, st := range []model.Status{model.StatusPending, model.StatusInProgress, model.StatusCompleted, model.StatusFailed} {
		s.metrics.CommandsByStatus.WithLabelValues(string(st)).Set(float64(counts[st]))
	}
}

// instrument counts requests per endpoint and response status.
func (s *Server) instrument(endpoint string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		h(rec, r)
		s.metrics.RequestsTotal.WithLabelValues(endpoint, strconv.Itoa(rec.status)).Inc()
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to write response", "err", err)
	}
}

// writeError maps a classified error onto its status and JSON body.
// Unclassified errors are logged in full and surfaced as a generic 500.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := apierr.Status(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		s.log.Error("internal error", "path", r.URL.Path, "err", err)
		msg = "internal server error"
	}
	writeJSON(w, status, map[string]any{"error": msg, "status": status})
}
