// Package order is the order ledger: it owns order status and the append-only
// status timeline.
package order

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"service-dispatch/internal/apperr"
	"service-dispatch/internal/domain"
	"service-dispatch/internal/events"
	"service-dispatch/internal/logx"
	"service-dispatch/internal/ports/dispatchtx"
)

// Service coordinates order ledger logic.
type Service struct {
	repo             dispatchtx.Runner
	pub              events.Publisher
	geocoder         Geocoder
	operationTimeout time.Duration
	logger           logx.Logger
	now              func() time.Time
	newID            func() string
}

// NewService creates and configures an order Service. geocoder may be nil, in
// which case orders must carry coordinates.
func NewService(repo dispatchtx.Runner, pub events.Publisher, geocoder Geocoder, timeout time.Duration, logger logx.Logger) *Service {
	if timeout <= 0 {
		timeout = 3 * time.Second
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
		geocoder:         geocoder,
		operationTimeout: timeout,
		logger:           logger,
		now:              func() time.Time { return time.Now().UTC() },
		newID:            uuid.NewString,
	}
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.operationTimeout)
}

func validateSpec(spec *domain.OrderSpec) error {
	if strings.TrimSpace(spec.CustomerID) == "" {
		return fmt.Errorf("customer is required: %w", apperr.ErrInvalid)
	}
	if spec.Package.WeightKg <= 0 {
		return fmt.Errorf("package weight must be positive: %w", apperr.ErrInvalid)
	}
	if spec.Payment.Amount.Amount < 0 {
		return fmt.Errorf("payment amount must not be negative: %w", apperr.ErrInvalid)
	}
	// wallets hold a single currency, so orders settle in it too
	spec.Payment.Amount.Currency = strings.ToUpper(strings.TrimSpace(spec.Payment.Amount.Currency))
	if spec.Payment.Amount.Currency == "" {
		spec.Payment.Amount.Currency = domain.DefaultCurrency
	}
	if spec.Payment.Amount.Currency != domain.DefaultCurrency {
		return fmt.Errorf("unsupported currency %q: %w", spec.Payment.Amount.Currency, apperr.ErrInvalid)
	}
	if spec.Payment.Method == "" {
		spec.Payment.Method = domain.PaymentCash
	}
	if !spec.Payment.Method.Valid() {
		return fmt.Errorf("unknown payment method %q: %w", spec.Payment.Method, apperr.ErrInvalid)
	}
	for _, loc := range []domain.Location{spec.Pickup, spec.Drop} {
		if !loc.HasCoordinates() && strings.TrimSpace(loc.Address) == "" {
			return fmt.Errorf("location needs coordinates or an address: %w", apperr.ErrInvalid)
		}
		if !loc.Valid() {
			return fmt.Errorf("location out of range: %w", apperr.ErrInvalid)
		}
	}
	return nil
}

// resolve fills in coordinates for a location given only as an address.
func (s *Service) resolve(ctx context.Context, loc domain.Location) (domain.Location, error) {
	if loc.HasCoordinates() {
		return loc, nil
	}
	if s.geocoder == nil {
		return domain.Location{}, fmt.Errorf("no geocoder configured: %w", apperr.ErrGeocodeFailed)
	}
	got, err := s.geocoder.Geocode(ctx, loc.Address)
	if err != nil {
		if errors.Is(err, apperr.ErrGeocodeFailed) {
			return domain.Location{}, err
		}
		return domain.Location{}, fmt.Errorf("%w: %v", apperr.ErrGeocodeFailed, err)
	}
	if got.Address == "" {
		got.Address = loc.Address
	}
	return got, nil
}

// PlaceOrder records a new pending order. Customers always order for themselves.
func (s *Service) PlaceOrder(ctx context.Context, actor domain.Actor, spec domain.OrderSpec) (*domain.Order, error) {
	switch {
	case actor.Is(domain.RoleCustomer):
		spec.CustomerID = actor.ID
	case actor.Is(domain.RoleAdmin):
	default:
		return nil, apperr.ErrUnauthorized
	}
	if err := validateSpec(&spec); err != nil {
		return nil, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	pickup, err := s.resolve(ctx, spec.Pickup)
	if err != nil {
		return nil, err
	}
	drop, err := s.resolve(ctx, spec.Drop)
	if err != nil {
		return nil, err
	}

	now := s.now()
	o := &domain.Order{
		ID:         s.newID(),
		CustomerID: spec.CustomerID,
		Pickup:     pickup,
		Drop:       drop,
		Package:    spec.Package,
		Payment:    spec.Payment,
		Status:     domain.OrderPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	err = s.repo.WithTx(ctx, func(tx dispatchtx.Repository) error {
		if err := tx.SaveOrder(ctx, o); err != nil {
			return err
		}
		return tx.AppendTimeline(ctx, domain.TimelineEntry{
			OrderID: o.ID, Seq: 1, To: domain.OrderPending, Actor: actor, At: now,
		})
	})
	if err != nil {
		return nil, err
	}
	events.PublishCommitted(ctx, s.pub, StatusChanged(o, "", now))

	s.logger.Info("order placed",
		logx.String("event", "order_placed"),
		logx.String("order_id", o.ID),
		logx.String("customer_id", o.CustomerID),
		logx.Int64("amount", o.Payment.Amount.Amount),
	)
	return o, nil
}

// Transition moves an order along an edge that does not touch a vehicle
// binding. Binding and release edges fail with ErrInvalidState and must be
// issued through the dispatch coordinator.
func (s *Service) Transition(ctx context.Context, actor domain.Actor, id string, to domain.OrderStatus, note string) (*domain.Order, error) {
	if !to.Valid() {
		return nil, fmt.Errorf("unknown order status %q: %w", to, apperr.ErrInvalid)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var (
		out *domain.Order
		box events.Outbox
	)
	err := s.repo.WithTx(ctx, func(tx dispatchtx.Repository) error {
		o, err := tx.GetOrder(ctx, id)
		if err != nil {
			return err
		}
		if o == nil {
			return apperr.ErrNotFound
		}
		if !mayIssue(actor, o, to) {
			return apperr.ErrUnauthorized
		}
		if !domain.CanTransition(o.Status, to) {
			return fmt.Errorf("order %s %s -> %s: %w", o.ID, o.Status, to, apperr.ErrInvalidTransition)
		}
		if ownedByCoordinator(o, to) {
			return fmt.Errorf("order %s -> %s requires the assignment flow: %w", o.ID, to, apperr.ErrInvalidState)
		}
		if to == domain.OrderCancelled {
			o.CancelReason = note
		}
		ev, err := Apply(ctx, tx, o, to, actor, note, s.now())
		if err != nil {
			return err
		}
		box.Add(ev)
		out = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	box.Flush(ctx, s.pub)

	s.logger.Info("order transitioned",
		logx.String("event", "order_transitioned"),
		logx.String("order_id", out.ID),
		logx.String("status", string(out.Status)),
		logx.String("actor_id", actor.ID),
	)
	return out, nil
}

// mayIssue: drivers report pickup, customers cancel, admins do both.
func mayIssue(actor domain.Actor, o *domain.Order, to domain.OrderStatus) bool {
	if !canWrite(actor, o) {
		return false
	}
	switch actor.Role {
	case domain.RoleCustomer:
		return to == domain.OrderCancelled
	case domain.RoleDriver:
		return to == domain.OrderPickedUp
	}
	return true
}

// canWrite: admins, the order's customer and its bound driver.
func canWrite(actor domain.Actor, o *domain.Order) bool {
	switch actor.Role {
	case domain.RoleAdmin, domain.RoleSystem:
		return true
	case domain.RoleCustomer:
		return o.CustomerID == actor.ID
	case domain.RoleDriver:
		return o.DriverID != "" && o.DriverID == actor.ID
	}
	return false
}

// Get returns an order visible to the actor.
func (s *Service) Get(ctx context.Context, actor domain.Actor, id string) (*domain.Order, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var out *domain.Order
	err := s.repo.View(ctx, func(tx dispatchtx.Repository) error {
		o, err := tx.GetOrder(ctx, id)
		if err != nil {
			return err
		}
		if o == nil {
			return apperr.ErrNotFound
		}
		if !canWrite(actor, o) {
			return apperr.ErrUnauthorized
		}
		out = o
		return nil
	})
	return out, err
}

// Timeline returns the order's status history oldest first.
func (s *Service) Timeline(ctx context.Context, actor domain.Actor, id string) ([]domain.TimelineEntry, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var out []domain.TimelineEntry
	err := s.repo.View(ctx, func(tx dispatchtx.Repository) error {
		o, err := tx.GetOrder(ctx, id)
		if err != nil {
			return err
		}
		if o == nil {
			return apperr.ErrNotFound
		}
		if !canWrite(actor, o) {
			return apperr.ErrUnauthorized
		}
		out, err = tx.Timeline(ctx, id)
		return err
	})
	return out, err
}

// ListByStatus returns orders in the given status. Customers only see their own.
func (s *Service) ListByStatus(ctx context.Context, actor domain.Actor, status domain.OrderStatus) ([]domain.Order, error) {
	if status != "" && !status.Valid() {
		return nil, fmt.Errorf("unknown order status %q: %w", status, apperr.ErrInvalid)
	}
	f := domain.OrderFilter{Status: status}
	switch actor.Role {
	case domain.RoleAdmin, domain.RoleSystem:
	case domain.RoleCustomer:
		f.CustomerID = actor.ID
	default:
		return nil, apperr.ErrUnauthorized
	}
	return s.list(ctx, f)
}

// ListByCustomer returns a customer's orders.
func (s *Service) ListByCustomer(ctx context.Context, actor domain.Actor, customerID string) ([]domain.Order, error) {
	if !actor.Is(domain.RoleAdmin, domain.RoleSystem) && !(actor.Is(domain.RoleCustomer) && actor.ID == customerID) {
		return nil, apperr.ErrUnauthorized
	}
	if strings.TrimSpace(customerID) == "" {
		return nil, fmt.Errorf("customer is required: %w", apperr.ErrInvalid)
	}
	return s.list(ctx, domain.OrderFilter{CustomerID: customerID})
}

func (s *Service) list(ctx context.Context, f domain.OrderFilter) ([]domain.Order, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var out []domain.Order
	err := s.repo.View(ctx, func(tx dispatchtx.Repository) error {
		var err error
		out, err = tx.ListOrders(ctx, f)
		return err
	})
	return out, err
}
