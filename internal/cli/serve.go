package cli

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	bphttp "github.com/aretw0/blueprint/pkg/adapters/http"
	"github.com/aretw0/blueprint/pkg/domain"
	"github.com/aretw0/blueprint/pkg/session"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// releaseTimeout bounds the final flush when a request's session is released.
const releaseTimeout = 10 * time.Second

// ServeHandler routes the gateway REST API, server-side editing sessions and,
// when reg is non-nil, /metrics.
func ServeHandler(gw http.Handler, mgr *session.Manager, reg *prometheus.Registry, logger *slog.Logger) http.Handler {
	api := &sessionAPI{manager: mgr, logger: logger}

	r := chi.NewRouter()
	r.Get("/sessions", api.list)
	r.Post("/sessions/{id}/apply", api.apply)

	mux := http.NewServeMux()
	mux.Handle("/sessions", r)
	mux.Handle("/sessions/", r)
	if reg != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	}
	mux.Handle("/", gw)
	return mux
}

type sessionAPI struct {
	manager *session.Manager
	logger  *slog.Logger
}

// ApplyResponse is returned by POST /sessions/{id}/apply.
type ApplyResponse struct {
	Results []StepResult       `json:"results"`
	State   domain.EditorState `json:"state"`
	Error   string             `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *sessionAPI) list(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.manager.List())
}

// apply runs a YAML script in the blueprint's session and flushes it.
func (a *sessionAPI) apply(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	script, err := ParseScript(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ApplyResponse{Error: err.Error()})
		return
	}

	ctx := r.Context()
	eng, err := a.manager.Open(ctx, id)
	if err != nil {
		writeJSON(w, statusFor(err), ApplyResponse{Error: err.Error()})
		return
	}
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
		defer cancel()
		if err := a.manager.Release(releaseCtx, id); err != nil {
			a.logger.Warn("session release failed", "blueprint_id", id, "err", err)
		}
	}()

	results, err := Apply(ctx, eng, script, a.logger)
	if err == nil {
		err = eng.Flush(ctx)
	}
	if err == nil {
		err = SettledErr(eng.Status())
	}
	resp := ApplyResponse{Results: results, State: eng.Status()}
	if err != nil {
		resp.Error = err.Error()
		writeJSON(w, statusFor(err), resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func statusFor(err error) int {
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}
	return bphttp.StatusFor(err)
}
