// Package orders reacts to order events with automatic dispatch.
package orders

import (
	"context"
	"errors"

	"service-dispatch/internal/apperr"
	"service-dispatch/internal/domain"
	"service-dispatch/internal/events"
	"service-dispatch/internal/logx"
	"service-dispatch/internal/service/dispatch"
)

// Processor processes order events
type Processor struct {
	dispatch MatchPort
	logger   logx.Logger
	factory  *actionFactory
}

// NewProcessorWithDeps creates a Processor from interfaces (handy for tests).
func NewProcessorWithDeps(match MatchPort, logger logx.Logger) *Processor {
	return newProcessor(match, logger)
}

// NewProcessor creates a new orders.Processor
func NewProcessor(dispatchSvc *dispatch.Service, logger logx.Logger) *Processor {
	return newProcessor(dispatchSvc, logger)
}

func newProcessor(match MatchPort, logger logx.Logger) *Processor {
	if logger == nil {
		logger = logx.Nop()
	}
	p := &Processor{
		dispatch: match,
		logger:   logger,
	}
	p.factory = newActionFactory(p.onPending)
	return p
}

// Handle processes a single event. Anything but an order status change is ignored.
func (p *Processor) Handle(ctx context.Context, e events.Event) error {
	if p.factory == nil || e.Type != events.OrderStatusChanged {
		return nil
	}
	fn, ok := p.factory.get(e.Field("to"))
	if !ok {
		return nil
	}
	return fn(ctx, e)
}

func (p *Processor) onPending(ctx context.Context, e events.Event) error {
	a, err := p.dispatch.AutoMatch(ctx, domain.SystemActor, e.AggregateID)
	switch {
	case err == nil:
		p.logger.Info("order auto-matched",
			logx.String("event", "order_auto_matched"),
			logx.String("order_id", e.AggregateID),
			logx.String("assignment_id", a.ID),
		)
		return nil
	case isBenign(err):
		p.logger.Debug("auto-match skipped",
			logx.String("order_id", e.AggregateID),
			logx.Any("reason", err),
		)
		return nil
	}
	return err
}

// isBenign reports errors that redelivery cannot fix: nobody is free right
// now, or the order has moved on since the event was published.
func isBenign(err error) bool {
	return errors.Is(err, apperr.ErrNoCandidates) ||
		errors.Is(err, apperr.ErrInvalidState) ||
		errors.Is(err, apperr.ErrNotFound) ||
		errors.Is(err, apperr.ErrVehicleUnavailable) ||
		errors.Is(err, apperr.ErrDriverUnavailable)
}
