package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"service-dispatch/internal/auth"
	"service-dispatch/internal/domain"
	"service-dispatch/internal/logx"
)

func echoActor(t *testing.T, want domain.Actor) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, ok := auth.ActorFrom(r.Context())
		require.True(t, ok)
		require.Equal(t, want, got)
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestAuthenticate_JWT(t *testing.T) {
	t.Parallel()

	tokens, err := auth.NewTokenService("0123456789abcdef-test")
	require.NoError(t, err)
	driver := domain.Actor{ID: "d1", Role: domain.RoleDriver}
	tok, err := tokens.Issue(driver, time.Hour)
	require.NoError(t, err)

	h := Authenticate(AuthJWT, tokens, logx.Nop())(echoActor(t, driver))

	req := httptest.NewRequest(http.MethodGet, "/assignments/a1", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)

	// websocket handshakes pass the token in the query
	req = httptest.NewRequest(http.MethodGet, "/ws/events?access_token="+tok, nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/assignments/a1", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.JSONEq(t, `{"error":"unauthorized"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/assignments/a1", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthenticate_Dev(t *testing.T) {
	t.Parallel()

	admin := domain.Actor{ID: "admin-1", Role: domain.RoleAdmin}
	h := Authenticate(AuthDev, nil, nil)(echoActor(t, admin))

	req := httptest.NewRequest(http.MethodPost, "/vehicles", nil)
	req.Header.Set(HeaderActorID, "admin-1")
	req.Header.Set(HeaderActorRole, " Admin ")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/vehicles", nil)
	req.Header.Set(HeaderActorID, "x")
	req.Header.Set(HeaderActorRole, "root")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}
