package middleware

import (
	"io"
	"net/http"
	"strings"

	"service-dispatch/internal/auth"
	"service-dispatch/internal/domain"
	"service-dispatch/internal/logx"
)

// AuthMode selects how requests are authenticated.
type AuthMode string

// List of auth modes
const (
	// AuthJWT verifies a bearer token.
	AuthJWT AuthMode = "jwt"
	// AuthDev trusts the X-Actor-ID and X-Actor-Role headers. Local use only.
	AuthDev AuthMode = "dev"
)

// Header names read in dev mode
const (
	HeaderActorID   = "X-Actor-ID"
	HeaderActorRole = "X-Actor-Role"
)

type tokenParser interface {
	Parse(token string) (domain.Actor, error)
}

// Authenticate resolves the actor of every request and stores it in the
// request context. Requests without a valid actor get 401.
//
// Browsers cannot set headers on websocket handshakes, so the token may
// also come in the access_token query parameter.
func Authenticate(mode AuthMode, tokens tokenParser, logger logx.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = logx.Nop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var (
				actor domain.Actor
				err   error
			)
			switch mode {
			case AuthDev:
				actor = domain.Actor{
					ID:   strings.TrimSpace(r.Header.Get(HeaderActorID)),
					Role: domain.Role(strings.ToLower(strings.TrimSpace(r.Header.Get(HeaderActorRole)))),
				}
				if actor.ID == "" || !actor.Role.Valid() {
					unauthorized(w, logger, r, "missing actor headers")
					return
				}
			default:
				token := bearer(r)
				if token == "" || tokens == nil {
					unauthorized(w, logger, r, "missing bearer token")
					return
				}
				if actor, err = tokens.Parse(token); err != nil {
					unauthorized(w, logger, r, err.Error())
					return
				}
			}
			next.ServeHTTP(w, r.WithContext(auth.WithActor(r.Context(), actor)))
		})
	}
}

func bearer(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return strings.TrimSpace(r.URL.Query().Get("access_token"))
}

func unauthorized(w http.ResponseWriter, logger logx.Logger, r *http.Request, reason string) {
	logger.Debug("request not authenticated",
		logx.String("path", r.URL.Path),
		logx.String("reason", reason),
	)
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="dispatch"`)
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = io.WriteString(w, `{"error":"unauthorized"}`)
}
