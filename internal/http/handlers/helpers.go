package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"service-dispatch/internal/apperr"
	"service-dispatch/internal/auth"
	"service-dispatch/internal/domain"
	"service-dispatch/internal/logx"
)

func reqID(ctx context.Context) string {
	if id := middleware.GetReqID(ctx); id != "" {
		return id
	}
	return "-"
}

func writeJSON(logger logx.Logger, w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil && logger != nil {
		logger.Error("json encode error",
			logx.String("request_id", reqID(r.Context())),
			logx.Err(err),
		)
	}
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

func writeError(logger logx.Logger, w http.ResponseWriter, r *http.Request, status int, msg string) {
	if logger != nil {
		logger.Debug("http error",
			logx.String("request_id", reqID(r.Context())),
			logx.Int("status", status),
			logx.String("msg", msg),
		)
	}
	writeJSON(logger, w, r, status, ErrorResponse{Error: msg})
}

const bodyLimit = 1 << 20

func decodeJSON[T any](logger logx.Logger, w http.ResponseWriter, r *http.Request, dst *T) bool {
	r.Body = http.MaxBytesReader(w, r.Body, bodyLimit)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		writeError(logger, w, r, http.StatusBadRequest, "invalid json")
		return false
	}
	if err := dec.Decode(new(struct{})); err != io.EOF {
		writeError(logger, w, r, http.StatusBadRequest, "invalid json: trailing data")
		return false
	}
	return true
}

func idFromURL(r *http.Request, name string) (string, bool) {
	id := strings.TrimSpace(chi.URLParam(r, name))
	return id, id != ""
}

// requireActor returns the authenticated actor or answers 401.
func requireActor(logger logx.Logger, w http.ResponseWriter, r *http.Request) (domain.Actor, bool) {
	a, ok := auth.ActorFrom(r.Context())
	if !ok {
		writeError(logger, w, r, http.StatusUnauthorized, "unauthorized")
	}
	return a, ok
}

// errorStatus maps service errors to a status code and a client-safe message.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, apperr.ErrInvalid):
		return http.StatusBadRequest, "invalid input"
	case errors.Is(err, apperr.ErrUnauthorized):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, apperr.ErrDuplicateRegistration):
		return http.StatusConflict, "registration already exists"
	case errors.Is(err, apperr.ErrConflict):
		return http.StatusConflict, "concurrent update, retry"
	case errors.Is(err, apperr.ErrInvalidTransition):
		return http.StatusConflict, "invalid transition"
	case errors.Is(err, apperr.ErrInvalidState):
		return http.StatusConflict, "invalid state"
	case errors.Is(err, apperr.ErrDriverUnavailable):
		return http.StatusConflict, "driver unavailable"
	case errors.Is(err, apperr.ErrVehicleUnavailable):
		return http.StatusConflict, "vehicle unavailable"
	case errors.Is(err, apperr.ErrNoCandidates):
		return http.StatusConflict, "no candidates"
	case errors.Is(err, apperr.ErrInsufficientBalance):
		return http.StatusUnprocessableEntity, "insufficient balance"
	case errors.Is(err, apperr.ErrGeocodeFailed):
		return http.StatusBadGateway, "geocode failed"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func writeServiceError(logger logx.Logger, w http.ResponseWriter, r *http.Request, err error) {
	status, msg := errorStatus(err)
	if status == http.StatusInternalServerError && logger != nil {
		logger.Error("request failed",
			logx.String("request_id", reqID(r.Context())),
			logx.String("path", r.URL.Path),
			logx.Err(err),
		)
	}
	writeError(logger, w, r, status, msg)
}

