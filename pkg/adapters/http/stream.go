package http

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/aretw0/blueprint/pkg/domain"
	"github.com/go-chi/chi/v5"
)

// ChangeEvent is pushed to SSE subscribers after a graph write.
type ChangeEvent struct {
	BlueprintID string           `json:"blueprint_id"`
	Version     uint64           `json:"version,omitempty"`
	Diff        domain.GraphDiff `json:"diff"`
}

// StreamManager handles active SSE connections, keyed by blueprint id.
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan ChangeEvent]struct{}
	logger      *slog.Logger
}

// NewStreamManager creates an empty StreamManager.
func NewStreamManager(logger *slog.Logger) *StreamManager {
	return &StreamManager{
		subscribers: make(map[string]map[chan ChangeEvent]struct{}),
		logger:      logger,
	}
}

// Subscribe registers a listener for id. The returned func unregisters it.
func (sm *StreamManager) Subscribe(id string) (<-chan ChangeEvent, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan ChangeEvent, 10)
	if _, ok := sm.subscribers[id]; !ok {
		sm.subscribers[id] = make(map[chan ChangeEvent]struct{})
	}
	sm.subscribers[id][ch] = struct{}{}

	return ch, func() {
		sm.mu.Lock()
		defer sm.mu.Unlock()
		if subs, ok := sm.subscribers[id]; ok {
			if _, ok := subs[ch]; !ok {
				return
			}
			delete(subs, ch)
			close(ch)
			if len(subs) == 0 {
				delete(sm.subscribers, id)
			}
		}
	}
}

// HasSubscribers reports whether anyone listens to id.
func (sm *StreamManager) HasSubscribers(id string) bool {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.subscribers[id]) > 0
}

// Broadcast delivers ev to every subscriber of id, dropping it for slow clients.
func (sm *StreamManager) Broadcast(id string, ev ChangeEvent) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	for ch := range sm.subscribers[id] {
		select {
		case ch <- ev:
		default:
			sm.logger.Warn("SSE: client buffer full, dropping event", "blueprint_id", id)
		}
	}
}

// SubscribeEvents handles GET /blueprints/{id}/events (SSE).
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeJSON(w, http.StatusInternalServerError, errorBody{Error: "streaming not supported"})
		return
	}

	id := chi.URLParam(r, "id")
	ch, cancel := s.Streams.Subscribe(id)
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()
	s.logger.Info("SSE: client subscribed", "blueprint_id", id)

	for {
		select {
		case <-r.Context().Done():
			s.logger.Info("SSE: client disconnected", "blueprint_id", id)
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				s.logger.Error("SSE: encode failed", "err", err)
				continue
			}
			fmt.Fprintf(w, "event: change\ndata: %s\n\n", data)
			flusher.Flush()
		}
	}
}
