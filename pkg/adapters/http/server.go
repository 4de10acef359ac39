package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/aretw0/blueprint/internal/logging"
	"github.com/aretw0/blueprint/pkg/domain"
	"github.com/aretw0/blueprint/pkg/ports"
	"github.com/go-chi/chi/v5"
)

// Server exposes a ports.Gateway as a JSON REST API.
type Server struct {
	Gateway ports.Gateway
	Streams *StreamManager
	logger  *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewHandler creates a new HTTP handler serving gw.
func NewHandler(gw ports.Gateway, opts ...Option) http.Handler {
	s := &Server{
		Gateway: gw,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.Streams = NewStreamManager(s.logger)

	r := chi.NewRouter()
	r.Get("/health", s.GetHealth)
	r.Route("/blueprints", func(r chi.Router) {
		r.Get("/", s.ListBlueprints)
		r.Post("/graph", s.UpsertGraph)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.GetBlueprint)
			r.Delete("/", s.DeleteBlueprint)
			r.Post("/duplicate", s.DuplicateBlueprint)
			r.Post("/rename", s.RenameBlueprint)
			r.Post("/snapshots", s.CreateSnapshot)
			r.Post("/shares", s.CreateShare)
			r.Get("/events", s.SubscribeEvents)
		})
	})
	return enableCORS(r)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error string `json:"error"`
}

// StatusFor maps gateway errors onto HTTP status codes.
// Fatal errors use 422 so clients can tell them apart from retryable 5xx.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, domain.ErrBlueprintNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrFatal):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("response encode failed", "err", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
	} else {
		s.logger.Debug("request rejected", "method", r.Method, "path", r.URL.Path, "status", status, "err", err)
	}
	s.writeJSON(w, status, errorBody{Error: err.Error()})
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body: " + err.Error()})
		s.logger.Warn("invalid request body", "path", r.URL.Path, "err", err)
		return false
	}
	return true
}

// GetHealth handles GET /health.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ListBlueprints handles GET /blueprints.
func (s *Server) ListBlueprints(w http.ResponseWriter, r *http.Request) {
	list, err := s.Gateway.ListBlueprints(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, list)
}

// UpsertGraph handles POST /blueprints/graph and broadcasts the graph diff to subscribers.
func (s *Server) UpsertGraph(w http.ResponseWriter, r *http.Request) {
	var req ports.UpsertRequest
	if !s.decode(w, r, &req) {
		return
	}

	var previous domain.Graph
	watched := req.BlueprintID != "" && s.Streams.HasSubscribers(req.BlueprintID)
	if watched {
		if h, err := s.Gateway.GetBlueprint(r.Context(), req.BlueprintID); err == nil {
			previous = h.Graph
		}
	}

	res, err := s.Gateway.UpsertGraph(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if watched {
		s.Streams.Broadcast(res.BlueprintID, ChangeEvent{
			BlueprintID: res.BlueprintID,
			Version:     res.Version,
			Diff:        domain.Diff(previous, req.Graph),
		})
	}
	s.writeJSON(w, http.StatusOK, res)
}

// GetBlueprint handles GET /blueprints/{id}.
func (s *Server) GetBlueprint(w http.ResponseWriter, r *http.Request) {
	h, err := s.Gateway.GetBlueprint(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, h)
}

// DeleteBlueprint handles DELETE /blueprints/{id}.
func (s *Server) DeleteBlueprint(w http.ResponseWriter, r *http.Request) {
	if err := s.Gateway.DeleteBlueprint(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type duplicateResponse struct {
	ID string `json:"id"`
}

// DuplicateBlueprint handles POST /blueprints/{id}/duplicate.
func (s *Server) DuplicateBlueprint(w http.ResponseWriter, r *http.Request) {
	id, err := s.Gateway.DuplicateBlueprint(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, duplicateResponse{ID: id})
}

type renameResponse struct {
	Version uint64 `json:"version"`
}

// RenameBlueprint handles POST /blueprints/{id}/rename.
func (s *Server) RenameBlueprint(w http.ResponseWriter, r *http.Request) {
	var req ports.RenameRequest
	if !s.decode(w, r, &req) {
		return
	}
	req.BlueprintID = chi.URLParam(r, "id")

	version, err := s.Gateway.RenameBlueprint(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, renameResponse{Version: version})
}

// CreateSnapshot handles POST /blueprints/{id}/snapshots.
func (s *Server) CreateSnapshot(w http.ResponseWriter, r *http.Request) {
	var opts ports.SnapshotOptions
	if !s.decode(w, r, &opts) {
		return
	}
	snap, err := s.Gateway.CreateSnapshot(r.Context(), chi.URLParam(r, "id"), opts)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, snap)
}

// CreateShare handles POST /blueprints/{id}/shares.
func (s *Server) CreateShare(w http.ResponseWriter, r *http.Request) {
	var opts ports.ShareOptions
	if !s.decode(w, r, &opts) {
		return
	}
	share, err := s.Gateway.CreateShare(r.Context(), chi.URLParam(r, "id"), opts)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, share)
}
