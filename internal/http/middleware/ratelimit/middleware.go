package ratelimit

import (
	"io"
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"service-dispatch/internal/auth"
	"service-dispatch/internal/logx"
)

// KeyFunc picks the bucket a request is charged to.
type KeyFunc func(*http.Request) string

// Middleware rejects requests whose bucket is empty with 429.
type Middleware struct {
	logger  logx.Logger
	counter prometheus.Counter
	limiter Limiter
	key     KeyFunc
}

// New creates a Middleware keyed by KeyByActor.
func New(logger logx.Logger, counter prometheus.Counter, limiter Limiter) *Middleware {
	if limiter == nil {
		limiter = NopLimiter{}
	}
	if logger == nil {
		logger = logx.Nop()
	}
	return &Middleware{
		logger:  logger,
		counter: counter,
		limiter: limiter,
		key:     KeyByActor,
	}
}

// WithKey replaces the bucket key function.
func (m *Middleware) WithKey(fn KeyFunc) *Middleware {
	if fn != nil {
		m.key = fn
	}
	return m
}

// Handler returns chi-style middleware.
func (m *Middleware) Handler() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := m.key(r)

			if !m.limiter.Allow(key) {
				if m.counter != nil {
					m.counter.Inc()
				}
				m.logger.Warn("rate limit exceeded",
					logx.String("key", key),
					logx.String("method", r.Method),
					logx.String("path", r.URL.Path),
				)
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", "1")
				w.WriteHeader(http.StatusTooManyRequests)
				if _, err := io.WriteString(w, `{"error":"too many requests"}`); err != nil {
					// client went away
					m.logger.Debug("rate limit response write failed",
						logx.String("key", key),
						logx.Err(err),
					)
				}
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// KeyByActor charges authenticated requests to their actor, so drivers
// behind one carrier NAT do not share a bucket. Anonymous requests fall
// back to the client address.
func KeyByActor(r *http.Request) string {
	if a, ok := auth.ActorFrom(r.Context()); ok && a.ID != "" {
		return "actor:" + string(a.Role) + ":" + a.ID
	}
	return KeyByClientIP(r)
}

// KeyByClientIP charges requests to the client address.
func KeyByClientIP(r *http.Request) string {
	return "ip:" + clientIP(r)
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}
	return "unknown"
}
