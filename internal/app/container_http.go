package app

import (
	"fmt"
	"net/http"
	"time"

	"go.uber.org/dig"

	"service-dispatch/internal/auth"
	"service-dispatch/internal/config"
	"service-dispatch/internal/domain"
	"service-dispatch/internal/http/handlers"
	"service-dispatch/internal/http/middleware"
	"service-dispatch/internal/http/middleware/ratelimit"
	"service-dispatch/internal/http/pprofserver"
	"service-dispatch/internal/http/router"
	"service-dispatch/internal/logx"
	"service-dispatch/internal/ports/dispatchtx"
	"service-dispatch/internal/service/dispatch"
	"service-dispatch/internal/service/driver"
	"service-dispatch/internal/service/fleet"
	"service-dispatch/internal/service/order"
	"service-dispatch/internal/service/wallet"
	"service-dispatch/internal/transport/ws"
)

type authenticator func(http.Handler) http.Handler

// pprofServer is nil when profiling is disabled.
type pprofServer struct {
	*http.Server
}

func newAuthenticator(cfg *config.Config, logger logx.Logger) (authenticator, error) {
	if cfg.Auth.Mode == config.AuthDev {
		logger.Warn("dev auth enabled: actor headers are trusted")
		return middleware.Authenticate(middleware.AuthDev, nil, logger), nil
	}
	tokens, err := auth.NewTokenService(cfg.Auth.JWTSecret)
	if err != nil {
		return nil, fmt.Errorf("token service: %w", err)
	}
	return middleware.Authenticate(middleware.AuthJWT, tokens, logger), nil
}

func newHub(logger logx.Logger) *ws.Hub {
	return ws.NewHub(func(r *http.Request) (domain.Actor, bool) {
		return auth.ActorFrom(r.Context())
	}, nil, logger)
}

type routerIn struct {
	dig.In
	Logger       logx.Logger
	Authenticate authenticator
	RateLimit    *ratelimit.Middleware
	Hub          *ws.Hub
	Fleet        *fleet.Service
	Drivers      *driver.Service
	Orders       *order.Service
	Dispatch     *dispatch.Service
	Wallets      *wallet.Service
	Repo         dispatchtx.Runner
}

func newRouter(in routerIn) http.Handler {
	base := handlers.New(in.Logger)
	if p, ok := in.Repo.(handlers.Pinger); ok {
		base.WithReadiness(p)
	}
	return router.New(router.Deps{
		Logger:       in.Logger,
		Base:         base,
		Vehicles:     handlers.NewVehicleHandler(in.Logger, in.Fleet),
		Drivers:      handlers.NewDriverHandler(in.Logger, in.Drivers),
		Orders:       handlers.NewOrderHandler(in.Logger, in.Orders),
		Assignments:  handlers.NewAssignmentHandler(in.Logger, in.Dispatch),
		Wallets:      handlers.NewWalletHandler(in.Logger, in.Wallets),
		Authenticate: in.Authenticate,
		RateLimit:    in.RateLimit.Handler(),
		Events:       in.Hub,
	})
}

func newHTTPServer(cfg *config.Config, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

func newPprofServer(cfg *config.Config, logger logx.Logger) pprofServer {
	return pprofServer{Server: pprofserver.NewServer(pprofserver.Config{
		Addr: cfg.Pprof.Addr,
		User: cfg.Pprof.User,
		Pass: cfg.Pprof.Pass,
	}, logger)}
}

func registerHTTP(container *dig.Container) error {
	return provideAll(container,
		newAuthenticator,
		newRateLimitClock,
		newRateLimiter,
		newRateLimitMiddleware,
		newHub,
		newRouter,
		newHTTPServer,
		newPprofServer,
	)
}
