package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"plant-relay/pkg/apierr"
	"plant-relay/pkg/schema"
)

// maxIngestBytes bounds the snapshot body a single POST may carry.
const maxIngestBytes = 8 << 20

type ingestRequest struct {
	Timestamp string          `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// handleIngest replaces the snapshot after verifying the body signature.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxIngestBytes))
	if err != nil {
		s.metrics.IngestTotal.WithLabelValues("bad_request").Inc()
		s.writeError(w, r, apierr.New(apierr.ErrBadRequest, "failed to read body: %v", err))
		return
	}
	if err := s.verifySignature(r, body); err != nil {
		if apierr.Status(err) == http.StatusUnauthorized {
			s.metrics.IngestTotal.WithLabelValues("unauthorized").Inc()
		} else {
			s.metrics.IngestTotal.WithLabelValues("forbidden").Inc()
		}
		s.writeError(w, r, err)
		return
	}

	var req ingestRequest
	if err := json.Unmarshal(body, &req); err != nil {
		s.metrics.IngestTotal.WithLabelValues("bad_request").Inc()
		s.writeError(w, r, apierr.New(apierr.ErrBadRequest, "invalid JSON body"))
		return
	}
	var data map[string]any
	if err := json.Unmarshal(req.Data, &data); err != nil || data == nil {
		s.metrics.IngestTotal.WithLabelValues("bad_request").Inc()
		s.writeError(w, r, apierr.New(apierr.ErrBadRequest, "data must be an object"))
		return
	}

	keys := s.store.Replace(data, req.Timestamp)
	s.metrics.IngestTotal.WithLabelValues("accepted").Inc()
	s.metrics.IngestBytes.Observe(float64(len(body)))
	s.log.Info("snapshot replaced", "keys", len(keys), "timestamp", req.Timestamp)
	writeJSON(w, http.StatusOK, map[string]any{"status": "updated", "updated_keys": keys})
}

// handleState serves the full snapshot, flattened on ?flat=true.
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	flat, _ := strconv.ParseBool(r.URL.Query().Get("flat"))
	var (
		data        map[string]any
		lastUpdated string
		err         error
	)
	if flat {
		data, lastUpdated, err = s.store.Flatten()
	} else {
		data, lastUpdated, err = s.store.Snapshot()
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"last_updated": lastUpdated, "data": data})
}

func (s *Server) handleGroups(w http.ResponseWriter, r *http.Request) {
	schemaGroups, inferred, lastUpdated, err := s.store.ListGroups()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"last_updated":    lastUpdated,
		"schema_groups":   schemaGroups,
		"inferred_groups": inferred,
	})
}

// handleGroup serves a group, variable or prefix view. ALL and FULL
// return the raw snapshot.
func (s *Server) handleGroup(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("group")
	if n := schema.Normalize(name); n == "ALL" || n == "FULL" {
		s.handleState(w, r)
		return
	}
	data, lastUpdated, err := s.store.ByGroup(name)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"last_updated": lastUpdated, "data": data})
}

// handleKeys serves an arbitrary nested path, slash-delimited.
func (s *Server) handleKeys(w http.ResponseWriter, r *http.Request) {
	raw := r.PathValue("path")
	segments := make([]string, 0, 4)
	for _, seg := range strings.Split(raw, "/") {
		if seg != "" {
			segments = append(segments, seg)
		}
	}
	value, lastUpdated, err := s.store.ByPath(segments)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"last_updated": lastUpdated,
		"path":         strings.Join(segments, "/"),
		"value":        value,
	})
}
