package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"service-dispatch/internal/http/handlers"
	"service-dispatch/internal/http/middleware"
	"service-dispatch/internal/logx"
)

// Deps lists everything the router mounts. Optional fields may be nil.
type Deps struct {
	Logger      logx.Logger
	Base        *handlers.Handlers
	Vehicles    *handlers.VehicleHandler
	Drivers     *handlers.DriverHandler
	Orders      *handlers.OrderHandler
	Assignments *handlers.AssignmentHandler
	Wallets     *handlers.WalletHandler

	Authenticate func(http.Handler) http.Handler
	RateLimit    func(http.Handler) http.Handler // optional
	Events       http.Handler                    // websocket push, optional
	Metrics      http.Handler                    // defaults to promhttp.Handler()
}

const requestTimeout = 5 * time.Second

// New constructs a chi-based http.Handler with base middleware and routes.
func New(d Deps) http.Handler {
	logger := d.Logger
	if logger == nil {
		logger = logx.Nop()
	}
	if d.Base == nil {
		d.Base = handlers.New(logger)
	}
	if d.Metrics == nil {
		d.Metrics = promhttp.Handler()
	}

	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(middleware.Observability(logger))

	r.Get("/ping", d.Base.Ping)
	r.Method(http.MethodHead, "/healthcheck", http.HandlerFunc(d.Base.HealthcheckHead))
	r.Method(http.MethodGet, "/metrics", d.Metrics)
	r.NotFound(d.Base.NotFound)

	r.Group(func(r chi.Router) {
		if d.Authenticate != nil {
			r.Use(d.Authenticate)
		}
		if d.RateLimit != nil {
			r.Use(d.RateLimit)
		}

		// websocket connections outlive the request timeout
		if d.Events != nil {
			r.Method(http.MethodGet, "/ws/events", d.Events)
		}

		r.Group(func(r chi.Router) {
			r.Use(chimw.Timeout(requestTimeout))
			mountVehicles(r, d.Vehicles)
			mountDrivers(r, d.Drivers)
			mountOrders(r, d.Orders)
			mountAssignments(r, d.Assignments)
			mountWallets(r, d.Wallets)
		})
	})

	return r
}

func mountVehicles(r chi.Router, h *handlers.VehicleHandler) {
	if h == nil {
		return
	}
	r.Route("/vehicles", func(r chi.Router) {
		r.Post("/", h.Register)
		r.Get("/", h.List)
		r.Get("/available", h.Available)
		r.Get("/{id}", h.Get)
		r.Put("/{id}/status", h.SetStatus)
		r.Put("/{id}/location", h.UpdateLocation)
	})
}

func mountDrivers(r chi.Router, h *handlers.DriverHandler) {
	if h == nil {
		return
	}
	r.Route("/drivers", func(r chi.Router) {
		r.Post("/", h.Register)
		r.Get("/", h.List)
		r.Get("/{id}", h.Get)
		r.Post("/{id}/approve", h.Approve)
		r.Post("/{id}/reject", h.Reject)
	})
}

func mountOrders(r chi.Router, h *handlers.OrderHandler) {
	if h == nil {
		return
	}
	r.Route("/orders", func(r chi.Router) {
		r.Post("/", h.Place)
		r.Get("/", h.List)
		r.Get("/{id}", h.Get)
		r.Get("/{id}/timeline", h.Timeline)
		r.Post("/{id}/transition", h.Transition)
	})
}

func mountAssignments(r chi.Router, h *handlers.AssignmentHandler) {
	if h == nil {
		return
	}
	r.Route("/assignments", func(r chi.Router) {
		r.Post("/", h.Assign)
		r.Get("/", h.List)
		r.Post("/auto", h.AutoAssign)
		r.Get("/{id}", h.Get)
		r.Post("/{id}/accept", h.Accept)
		r.Post("/{id}/reject", h.Reject)
		r.Post("/{id}/pickup", h.PickUp)
		r.Post("/{id}/complete", h.Complete)
		r.Post("/{id}/cancel", h.Cancel)
	})
}

func mountWallets(r chi.Router, h *handlers.WalletHandler) {
	if h == nil {
		return
	}
	r.Route("/wallets/{driverID}", func(r chi.Router) {
		r.Get("/", h.Balance)
		r.Get("/transactions", h.Transactions)
		r.Post("/withdrawals", h.Withdraw)
	})
}
