package app

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"go.uber.org/dig"
	"golang.org/x/sync/errgroup"

	"service-dispatch/internal/config"
	"service-dispatch/internal/logx"
	"service-dispatch/internal/service/dispatch"
	"service-dispatch/internal/transport/ws"
)

const shutdownTimeout = 15 * time.Second

// Runner runs the HTTP service
type Runner struct {
	runFn func(*dig.Container) error
}

// NewRunner returns a new Runner
func NewRunner() *Runner {
	return &Runner{runFn: run}
}

// MustRun starts the HTTP server using the provided DI container
func (r *Runner) MustRun(container *dig.Container) {
	if err := r.runFn(container); err != nil {
		switch {
		case errors.Is(err, context.Canceled):
			log.Println("shutdown requested, exiting")
			return
		case errors.Is(err, context.DeadlineExceeded):
			log.Println("startup aborted: startup timeout exceeded")
			return
		default:
			log.Fatalf("run error: %v", err)
		}
	}
}

func run(container *dig.Container) error {
	return container.Invoke(serve)
}

type serveIn struct {
	dig.In
	Ctx      context.Context
	Cfg      *config.Config
	Logger   logx.Logger
	Server   *http.Server
	Pprof    pprofServer
	Bus      *wiredBus
	Dispatch *dispatch.Service
	Hub      *ws.Hub
	Sinks    *sinks
	Storage  storageCloser
}

func serve(in serveIn) error {
	g, ctx := errgroup.WithContext(in.Ctx)

	g.Go(func() error { return in.Bus.Run(ctx) })
	g.Go(func() error {
		runExpiry(ctx, in.Dispatch, in.Cfg.Dispatch.ExpiryInterval, in.Logger)
		return nil
	})
	g.Go(func() error {
		in.Logger.Info("service-dispatch listening", logx.String("addr", in.Server.Addr))
		return listen(in.Server)
	})
	if in.Pprof.Server != nil {
		g.Go(func() error {
			in.Logger.Info("pprof listening", logx.String("addr", in.Pprof.Addr))
			return listen(in.Pprof.Server)
		})
	}
	g.Go(func() error {
		<-ctx.Done()
		in.Logger.Info("shutting down service-dispatch")
		shCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		in.Hub.Close()
		if err := in.Server.Shutdown(shCtx); err != nil {
			in.Logger.Error("graceful shutdown error", logx.Err(err))
		}
		if in.Pprof.Server != nil {
			_ = in.Pprof.Shutdown(shCtx)
		}
		return nil
	})

	err := g.Wait()
	in.Sinks.close(in.Logger)
	in.Storage()
	_ = in.Logger.Sync()

	if errors.Is(err, context.Canceled) {
		err = nil
	}
	if err != nil {
		return err
	}
	// Report the signal so MustRun can tell a requested shutdown apart.
	return in.Ctx.Err()
}

func listen(srv *http.Server) error {
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// runExpiry releases stale offers every interval until ctx is done.
func runExpiry(ctx context.Context, e expirer, every time.Duration, logger logx.Logger) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := e.ExpireOffers(ctx)
			if err != nil {
				if ctx.Err() == nil {
					logger.Error("offer expiry failed", logx.Err(err))
				}
				continue
			}
			if n > 0 {
				logger.Info("offers expired", logx.Int("count", n))
			}
		}
	}
}
