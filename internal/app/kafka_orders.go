package app

import (
	"context"
	"errors"
	"time"

	"service-dispatch/internal/apperr"
	"service-dispatch/internal/events"
	"service-dispatch/internal/logx"
	"service-dispatch/internal/transport/kafka"
)

const orderEventTimeout = 5 * time.Second

type eventHandler interface {
	Handle(ctx context.Context, e events.Event) error
}

// makeOrdersKafka adapts the orders processor to the Kafka consumer. Each
// event id is handled once, even when the broker redelivers it.
func makeOrdersKafka(p eventHandler, d events.Deduper, logger logx.Logger) kafka.HandleFunc {
	h := events.Idempotent("worker-auto-match", d, p.Handle)
	return func(ctx context.Context, e events.Event) error {
		if e.Type != events.OrderStatusChanged {
			return nil
		}
		ctx, cancel := context.WithTimeout(ctx, orderEventTimeout)
		defer cancel()

		if err := h(ctx, e); err != nil {
			logger.Warn("order event failed",
				logx.String("event_id", e.ID),
				logx.String("order_id", e.AggregateID),
				logx.Err(err),
			)
			if errors.Is(err, apperr.ErrInvalid) || errors.Is(err, apperr.ErrUnauthorized) {
				return kafka.Permanent(err)
			}
			return err
		}
		return nil
	}
}
