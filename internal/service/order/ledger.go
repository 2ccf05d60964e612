package order

import (
	"context"
	"fmt"
	"time"

	"service-dispatch/internal/apperr"
	"service-dispatch/internal/domain"
	"service-dispatch/internal/events"
	"service-dispatch/internal/ports/dispatchtx"
)

// Apply moves o to status to inside tx, appends the timeline entry and saves
// the order. It is the only code path that writes Order.Status; callers are
// responsible for keeping the assignment, driver and vehicle consistent.
func Apply(ctx context.Context, tx dispatchtx.Repository, o *domain.Order, to domain.OrderStatus,
	actor domain.Actor, note string, now time.Time) (events.Event, error) {
	from := o.Status
	if !domain.CanTransition(from, to) && !domain.CanRelease(from, to) {
		return events.Event{}, fmt.Errorf("order %s %s -> %s: %w", o.ID, from, to, apperr.ErrInvalidTransition)
	}

	timeline, err := tx.Timeline(ctx, o.ID)
	if err != nil {
		return events.Event{}, err
	}

	o.Status = to
	o.UpdatedAt = now
	if err := tx.SaveOrder(ctx, o); err != nil {
		return events.Event{}, err
	}
	if err := tx.AppendTimeline(ctx, domain.TimelineEntry{
		OrderID: o.ID,
		Seq:     len(timeline) + 1,
		From:    from,
		To:      to,
		Actor:   actor,
		At:      now,
		Note:    note,
	}); err != nil {
		return events.Event{}, err
	}

	return StatusChanged(o, from, now), nil
}

// StatusChanged builds the order.status_changed event for o.
func StatusChanged(o *domain.Order, from domain.OrderStatus, at time.Time) events.Event {
	return events.New(events.OrderStatusChanged, o.ID, o.Version, at, map[string]any{
		"from":          string(from),
		"to":            string(o.Status),
		"assignment_id": o.AssignmentID,
	}).For(o.DriverID, o.CustomerID)
}

// ownedByCoordinator reports whether the edge binds or releases a vehicle
// and therefore has to go through the dispatch coordinator.
func ownedByCoordinator(o *domain.Order, to domain.OrderStatus) bool {
	switch to {
	case domain.OrderAssigned, domain.OrderOnRoute, domain.OrderDelivered:
		return true
	case domain.OrderCancelled:
		return o.AssignmentID != ""
	}
	return false
}
