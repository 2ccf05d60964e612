// Package events carries state changes from the services to in-process
// subscribers and external sinks.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Type names a kind of event.
type Type string

// List of event types
const (
	OrderStatusChanged     Type = "order.status_changed"
	AssignmentOffered      Type = "assignment.offered"
	AssignmentStateChanged Type = "assignment.state_changed"
	VehicleStatusChanged   Type = "vehicle.status_changed"
	DriverStatusChanged    Type = "driver.status_changed"
	WalletCredited         Type = "wallet.credited"
	WalletDebited          Type = "wallet.debited"
)

// Event is a notification about a committed state change.
type Event struct {
	ID          string         `json:"id"`
	Type        Type           `json:"type"`
	AggregateID string         `json:"aggregate_id"`
	Version     int64          `json:"version"`
	OccurredAt  time.Time      `json:"occurred_at"`
	DriverID    string         `json:"driver_id,omitempty"`
	CustomerID  string         `json:"customer_id,omitempty"`
	Data        map[string]any `json:"data,omitempty"`
}

// New builds an event with a fresh id.
func New(t Type, aggregateID string, version int64, at time.Time, data map[string]any) Event {
	return Event{
		ID:          uuid.NewString(),
		Type:        t,
		AggregateID: aggregateID,
		Version:     version,
		OccurredAt:  at,
		Data:        data,
	}
}

// For sets the driver and customer the event concerns.
func (e Event) For(driverID, customerID string) Event {
	e.DriverID = driverID
	e.CustomerID = customerID
	return e
}

// Field returns a string field of Data, or "".
func (e Event) Field(key string) string {
	s, _ := e.Data[key].(string)
	return s
}

// Handler consumes one event. Returning an error asks for redelivery.
type Handler func(ctx context.Context, e Event) error

// Publisher accepts committed events for delivery.
type Publisher interface {
	Publish(ctx context.Context, evs ...Event)
}

// Outbox collects events inside a transaction closure; they are published
// only after the transaction commits.
type Outbox []Event

// Add appends an event.
func (o *Outbox) Add(e Event) { *o = append(*o, e) }

// Flush publishes the collected events and empties the outbox. It must
// only be called after the transaction committed.
func (o *Outbox) Flush(ctx context.Context, p Publisher) {
	PublishCommitted(ctx, p, (*o)...)
	*o = nil
}

// PublishTimeout bounds how long committed events wait for queue space.
const PublishTimeout = 5 * time.Second

// PublishCommitted hands already committed events to p. Cancellation of ctx
// is ignored so a finished request does not lose them; a full queue gives up
// after PublishTimeout.
func PublishCommitted(ctx context.Context, p Publisher, evs ...Event) {
	if p == nil || len(evs) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), PublishTimeout)
	defer cancel()
	p.Publish(ctx, evs...)
}

// Reset drops collected events, for use before a transaction retry.
func (o *Outbox) Reset() { *o = nil }

type nopPublisher struct{}

// NopPublisher discards every event.
func NopPublisher() Publisher { return nopPublisher{} }

func (nopPublisher) Publish(context.Context, ...Event) {}
