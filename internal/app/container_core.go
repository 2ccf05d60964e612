package app

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/dig"

	"service-dispatch/internal/config"
	"service-dispatch/internal/logx"
	"service-dispatch/internal/metrics"
	"service-dispatch/internal/ports/dispatchtx"
	"service-dispatch/internal/repository"
	"service-dispatch/internal/repository/memory"
)

// storageCloser releases the storage backend.
type storageCloser func()

func registerCore(container *dig.Container, ctx context.Context, load func() (*config.Config, error)) error {
	return provideAll(container,
		func() context.Context { return ctx },
		load,
		func(cfg *config.Config) logx.Logger { return NewLogger(cfg.Log) },
		func() (*metrics.Set, error) {
			m := metrics.NewSet()
			if err := m.Register(prometheus.DefaultRegisterer); err != nil {
				return nil, err
			}
			return m, nil
		},
	)
}

func registerStorage(container *dig.Container, dbConnect dbConnectFunc) error {
	provider := func(ctx context.Context, cfg *config.Config, logger logx.Logger) (dispatchtx.Runner, storageCloser, error) {
		if cfg.Storage != config.StoragePostgres {
			logger.Info("using in-memory storage")
			return memory.NewStore(), func() {}, nil
		}
		pool, err := dbConnect(ctx, logger, cfg.DB.DSN(), 10, time.Second)
		if err != nil {
			return nil, nil, err
		}
		if err := repository.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("migrate: %w", err)
		}
		return repository.NewDispatchRepo(pool), pool.Close, nil
	}
	return provideAll(container, provider)
}
