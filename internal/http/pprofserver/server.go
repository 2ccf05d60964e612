// Package pprofserver exposes runtime profiles on a separate listener.
package pprofserver

import (
	"crypto/subtle"
	"net"
	"net/http"
	"net/http/pprof"
	"strings"
	"time"

	"service-dispatch/internal/logx"
)

// Config stores pprof server settings. An empty Addr disables the server.
type Config struct {
	Addr string
	User string
	Pass string
}

var profiles = []string{"heap", "goroutine", "allocs", "block", "mutex", "threadcreate"}

// NewServer returns the profiling server, or nil when it is disabled.
func NewServer(cfg Config, logger logx.Logger) *http.Server {
	if strings.TrimSpace(cfg.Addr) == "" {
		return nil
	}
	if logger == nil {
		logger = logx.Nop()
	}
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           Handler(cfg, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// Handler returns the pprof routes guarded by basic auth for non-local callers.
func Handler(cfg Config, logger logx.Logger) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	for _, name := range profiles {
		mux.Handle("/debug/pprof/"+name, pprof.Handler(name))
	}
	return guard(mux, cfg, logger)
}

func guard(next http.Handler, cfg Config, logger logx.Logger) http.Handler {
	deny := func(w http.ResponseWriter, r *http.Request, reason string) {
		logger.Warn("pprof access denied",
			logx.String("remote", r.RemoteAddr),
			logx.String("path", r.URL.Path),
			logx.String("reason", reason),
		)
		w.Header().Set("WWW-Authenticate", `Basic realm="pprof"`)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isLoopback(r.RemoteAddr) {
			next.ServeHTTP(w, r)
			return
		}
		if cfg.User == "" || cfg.Pass == "" {
			deny(w, r, "remote access disabled")
			return
		}
		u, p, ok := r.BasicAuth()
		if !ok || !secureEq(u, cfg.User) || !secureEq(p, cfg.Pass) {
			deny(w, r, "bad credentials")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func secureEq(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func isLoopback(remoteAddr string) bool {
	host := strings.TrimSpace(remoteAddr)
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
