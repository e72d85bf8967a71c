package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"plant-relay/pkg/apierr"
	"plant-relay/pkg/command"
)

func (s *Server) handleCreateCommand(w http.ResponseWriter, r *http.Request) {
	if err := s.checkToken(r); err != nil {
		s.writeError(w, r, err)
		return
	}
	var req command.CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, apierr.New(apierr.ErrBadRequest, "invalid JSON body"))
		return
	}
	cmd, err := s.queue.Create(req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.log.Info("command queued", "id", cmd.ID, "purpose", cmd.Purpose, "priority", cmd.Priority, "tasks", len(cmd.Tasks))
	writeJSON(w, http.StatusOK, map[string]any{"status": "queued", "command": cmd})
}

// handleClaimNext claims up to limit pending commands for the polling
// agent, highest priority first.
func (s *Server) handleClaimNext(w http.ResponseWriter, r *http.Request) {
	if err := s.checkToken(r); err != nil {
		s.writeError(w, r, err)
		return
	}
	limit := 1
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			s.writeError(w, r, apierr.New(apierr.ErrBadRequest, "limit must be an integer"))
			return
		}
		limit = n
	}
	claimant := r.URL.Query().Get("client_id")
	if claimant == "" {
		claimant = "unknown"
	}
	claimed := s.queue.ClaimNext(limit, claimant)
	if len(claimed) > 0 {
		s.log.Info("commands claimed", "count", len(claimed), "client_id", claimant)
	}
	writeJSON(w, http.StatusOK, map[string]any{"commands": claimed})
}

func (s *Server) handleGetCommand(w http.ResponseWriter, r *http.Request) {
	if err := s.checkToken(r); err != nil {
		s.writeError(w, r, err)
		return
	}
	cmd, err := s.queue.Get(r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"command": cmd})
}

type resultRequest struct {
	Status  string         `json:"status"`
	Detail  string         `json:"detail"`
	Outputs map[string]any `json:"outputs"`
}

func (s *Server) handleReportResult(w http.ResponseWriter, r *http.Request) {
	if err := s.checkToken(r); err != nil {
		s.writeError(w, r, err)
		return
	}
	var req resultRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, apierr.New(apierr.ErrBadRequest, "invalid JSON body"))
		return
	}
	cmd, err := s.queue.ReportResult(r.PathValue("id"), req.Status, req.Detail, req.Outputs)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.log.Info("command resolved", "id", cmd.ID, "status", cmd.Status)
	writeJSON(w, http.StatusOK, map[string]any{"command": cmd})
}
