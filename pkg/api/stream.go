package api

import (
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"plant-relay/pkg/metrics"
	"plant-relay/pkg/model"
)

// streamEvent is the envelope pushed to dashboard subscribers.
type streamEvent struct {
	Type        string         `json:"type"`
	LastUpdated string         `json:"last_updated,omitempty"`
	Keys        []string       `json:"keys,omitempty"`
	Command     *model.Command `json:"command,omitempty"`
}

// Hub fans snapshot replacements and command lifecycle changes out to
// connected websocket subscribers. Writes are serialized under the hub
// lock; the read side only consumes control frames.
type Hub struct {
	upgrader websocket.Upgrader
	log      *slog.Logger
	metrics  *metrics.Metrics
	mu       sync.Mutex
	subs     map[*websocket.Conn]struct{}
}

func newHub(log *slog.Logger, m *metrics.Metrics) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		log:     log,
		metrics: m,
		subs:    map[*websocket.Conn]struct{}{},
	}
}

// handleStream upgrades an authorized request and registers the
// subscriber until its connection drops.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if err := s.checkToken(r); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.hub.handle(w, r)
}

func (h *Hub) handle(w http.ResponseWriter, r *http.Request) {
	c, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("stream upgrade failed", "err", err)
		return
	}
	h.mu.Lock()
	h.subs[c] = struct{}{}
	n := len(h.subs)
	_ = c.WriteJSON(streamEvent{Type: "hello"})
	h.mu.Unlock()
	h.metrics.StreamSubscribers.Set(float64(n))
	h.log.Info("stream subscriber connected", "subscribers", n)
	go h.readLoop(c)
}

func (h *Hub) readLoop(c *websocket.Conn) {
	defer h.drop(c)
	for {
		if _, _, err := c.NextReader(); err != nil {
			return
		}
	}
}

func (h *Hub) drop(c *websocket.Conn) {
	_ = c.Close()
	h.mu.Lock()
	delete(h.subs, c)
	n := len(h.subs)
	h.mu.Unlock()
	h.metrics.StreamSubscribers.Set(float64(n))
	h.log.Info("stream subscriber disconnected", "subscribers", n)
}

func (h *Hub) broadcastState(lastUpdated string, keys []string) {
	h.broadcast(streamEvent{Type: "state", LastUpdated: lastUpdated, Keys: keys})
}

func (h *Hub) broadcastCommand(cmd model.Command) {
	h.broadcast(streamEvent{Type: "command", Command: &cmd})
}

func (h *Hub) broadcast(ev streamEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.subs {
		if err := c.WriteJSON(ev); err != nil {
			go h.drop(c)
		}
	}
}
