package handlers

import (
	"context"
	"net/http"
	"time"

	"service-dispatch/internal/logx"
)

const readinessTimeout = time.Second

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handlers holds the handlers that need no service.
type Handlers struct {
	Logger logx.Logger
	ready  Pinger
}

// New creates a Handlers instance.
func New(logger logx.Logger) *Handlers {
	if logger == nil {
		logger = logx.Nop()
	}
	return &Handlers{Logger: logger}
}

// WithReadiness makes the healthcheck fail while p cannot be reached.
func (h *Handlers) WithReadiness(p Pinger) *Handlers {
	h.ready = p
	return h
}

// Ping handles GET /ping and returns 200 with {"message":"pong"}.
func (h *Handlers) Ping(w http.ResponseWriter, r *http.Request) {
	writeJSON(h.Logger, w, r, http.StatusOK, map[string]string{"message": "pong"})
}

// HealthcheckHead handles HEAD /healthcheck: 204 when storage answers, 503 otherwise.
func (h *Handlers) HealthcheckHead(w http.ResponseWriter, r *http.Request) {
	if h.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()
		if err := h.ready.Ping(ctx); err != nil {
			h.Logger.Warn("readiness check failed", logx.String("request_id", reqID(r.Context())), logx.Err(err))
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

// NotFound returns a JSON 404 error for unknown routes.
func (h *Handlers) NotFound(w http.ResponseWriter, r *http.Request) {
	writeError(h.Logger, w, r, http.StatusNotFound, "route not found")
}
