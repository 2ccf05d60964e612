package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/dig"
	"golang.org/x/sync/errgroup"

	"service-dispatch/internal/logx"
	"service-dispatch/internal/transport/kafka"
)

// WorkerRunner runs the Kafka auto-match worker
type WorkerRunner struct {
	runFn func(*dig.Container) error
}

// NewWorkerRunner returns a new WorkerRunner
func NewWorkerRunner() *WorkerRunner {
	return &WorkerRunner{runFn: runWorker}
}

// MustRun starts the worker using the provided DI container
func (r *WorkerRunner) MustRun(container *dig.Container) {
	err := r.runFn(container)
	if err == nil || errors.Is(err, context.Canceled) {
		return
	}
	panic(err)
}

func runWorker(container *dig.Container) error {
	return container.Invoke(workerRun)
}

type workerIn struct {
	dig.In
	Ctx      context.Context
	Logger   logx.Logger
	Bus      *wiredBus
	Consumer *kafka.Consumer
	Sinks    *sinks
	Storage  storageCloser
}

func workerRun(in workerIn) error {
	if in.Consumer == nil {
		return fmt.Errorf("kafka consumer is nil: set KAFKA_BROKERS for the worker")
	}
	defer closeWorker(in)

	in.Logger.Info("service-dispatch-worker started")

	g, ctx := errgroup.WithContext(in.Ctx)
	g.Go(func() error { return in.Bus.Run(ctx) })
	g.Go(func() error { return in.Consumer.Run(ctx) })
	return g.Wait()
}

func closeWorker(in workerIn) {
	if err := in.Consumer.Close(); err != nil {
		in.Logger.Error("kafka close error", logx.Err(err))
	}
	in.Sinks.close(in.Logger)
	in.Storage()
	_ = in.Logger.Sync()
}
