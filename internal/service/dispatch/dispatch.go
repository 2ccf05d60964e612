// Package dispatch is the assignment coordinator. It is the only writer of
// vehicle bindings and keeps order, assignment, driver and vehicle
// consistent inside a single storage transaction.
package dispatch

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"service-dispatch/internal/apperr"
	"service-dispatch/internal/domain"
	"service-dispatch/internal/events"
	"service-dispatch/internal/logx"
	"service-dispatch/internal/ports/dispatchtx"
)

// Config describes coordinator policy.
type Config struct {
	// OfferTTL is how long a driver has to accept an offer.
	OfferTTL         time.Duration
	OperationTimeout time.Duration
}

// Service coordinates assignments.
type Service struct {
	repo             dispatchtx.Runner
	pub              events.Publisher
	offerTTL         time.Duration
	operationTimeout time.Duration
	logger           logx.Logger
	now              func() time.Time
	newID            func() string

	outcomes outcomeVec
	credits  creditObserver
}

// NewService creates and configures a dispatch Service. outcomes and credits may be nil.
func NewService(repo dispatchtx.Runner, pub events.Publisher, cfg Config, logger logx.Logger, outcomes outcomeVec, credits creditObserver) *Service {
	if cfg.OperationTimeout <= 0 {
		cfg.OperationTimeout = 3 * time.Second
	}
	if cfg.OfferTTL <= 0 {
		cfg.OfferTTL = 2 * time.Minute
	}
	if pub == nil {
		pub = events.NopPublisher()
	}
	if logger == nil {
		logger = logx.Nop()
	}
	return &Service{
		repo:             repo,
		pub:              pub,
		offerTTL:         cfg.OfferTTL,
		operationTimeout: cfg.OperationTimeout,
		logger:           logger,
		now:              func() time.Time { return time.Now().UTC() },
		newID:            uuid.NewString,
		outcomes:         outcomes,
		credits:          credits,
	}
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.operationTimeout)
}

// keepWrites fails an operation but still commits what fn wrote.
type keepWrites struct{ err error }

func (k keepWrites) Error() string { return k.err.Error() }
func (k keepWrites) Unwrap() error { return k.err }

// run executes fn in a transaction, publishes what it collected once the
// transaction commits and records the outcome.
func (s *Service) run(ctx context.Context, op string, fn func(tx dispatchtx.Repository, box *events.Outbox) error) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var (
		box  events.Outbox
		kept error
	)
	err := s.repo.WithTx(ctx, func(tx dispatchtx.Repository) error {
		box.Reset()
		kept = nil
		err := fn(tx, &box)
		var k keepWrites
		if errors.As(err, &k) {
			kept = k.err
			return nil
		}
		return err
	})
	committed := err == nil
	if committed {
		err = kept
	}
	s.observe(op, err)
	if committed {
		box.Flush(ctx, s.pub)
	}
	return err
}

func (s *Service) observe(op string, err error) {
	if s.outcomes == nil {
		return
	}
	s.outcomes.WithLabelValues(op, resultLabel(err)).Inc()
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, apperr.ErrNotFound):
		return "not_found"
	case errors.Is(err, apperr.ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, apperr.ErrDriverUnavailable):
		return "driver_unavailable"
	case errors.Is(err, apperr.ErrVehicleUnavailable):
		return "vehicle_unavailable"
	case errors.Is(err, apperr.ErrNoCandidates):
		return "no_candidates"
	case errors.Is(err, apperr.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, apperr.ErrConflict):
		return "conflict"
	case errors.Is(err, apperr.ErrInvalid), errors.Is(err, apperr.ErrInvalidTransition):
		return "invalid"
	default:
		return "error"
	}
}

// binding is an assignment with the aggregates it references.
type binding struct {
	a *domain.Assignment
	o *domain.Order
}

func loadBinding(ctx context.Context, tx dispatchtx.Repository, assignmentID string) (binding, error) {
	a, err := tx.GetAssignment(ctx, assignmentID)
	if err != nil {
		return binding{}, err
	}
	if a == nil {
		return binding{}, apperr.ErrNotFound
	}
	o, err := tx.GetOrder(ctx, a.OrderID)
	if err != nil {
		return binding{}, err
	}
	if o == nil {
		return binding{}, apperr.ErrNotFound
	}
	return binding{a: a, o: o}, nil
}

// releaseVehicle returns a bound vehicle to the available pool.
func releaseVehicle(ctx context.Context, tx dispatchtx.Repository, vehicleID string, now time.Time) (events.Event, error) {
	v, err := tx.GetVehicle(ctx, vehicleID)
	if err != nil {
		return events.Event{}, err
	}
	if v == nil {
		return events.Event{}, apperr.ErrNotFound
	}
	from, driverID := v.Status, v.AssignedDriverID
	v.Status = domain.VehicleAvailable
	v.AssignedDriverID = ""
	v.UpdatedAt = now
	if err := tx.SaveVehicle(ctx, v); err != nil {
		return events.Event{}, err
	}
	return vehicleChanged(v, from, driverID, now), nil
}

func vehicleChanged(v *domain.Vehicle, from domain.VehicleStatus, driverID string, at time.Time) events.Event {
	return events.New(events.VehicleStatusChanged, v.ID, v.Version, at, map[string]any{
		"from":      string(from),
		"to":        string(v.Status),
		"driver_id": driverID,
	}).For(driverID, "")
}

func assignmentChanged(b binding, from domain.AssignmentState, at time.Time) events.Event {
	return events.New(events.AssignmentStateChanged, b.a.ID, b.a.Version, at, map[string]any{
		"from":       string(from),
		"to":         string(b.a.State),
		"order_id":   b.a.OrderID,
		"vehicle_id": b.a.VehicleID,
		"reason":     b.a.Reason,
	}).For(b.a.DriverID, b.o.CustomerID)
}

func isBoundDriver(actor domain.Actor, a *domain.Assignment) bool {
	return actor.Is(domain.RoleDriver) && actor.ID == a.DriverID
}
