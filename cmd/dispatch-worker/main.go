// Command dispatch-worker consumes order events from Kafka and auto-assigns
// pending orders. Run it next to service-dispatch when DISPATCH_AUTO_MATCH is off;
// it shares the Postgres store, so STORAGE_DRIVER must be postgres.
package main

import (
	"context"
	"os/signal"
	"syscall"

	"service-dispatch/internal/app"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app.NewWorkerRunner().MustRun(app.MustBuildWorkerContainer(ctx))
}
