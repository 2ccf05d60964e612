// Package fleet owns vehicle records. Binding a vehicle to a driver is left
// to the dispatch coordinator; this package only toggles unbound vehicles.
package fleet

import (
	"context"
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

// Service coordinates fleet business logic.
type Service struct {
	repo             dispatchtx.Runner
	pub              events.Publisher
	operationTimeout time.Duration
	logger           logx.Logger
	now              func() time.Time
	newID            func() string
}

// NewService creates and configures a fleet Service.
func NewService(repo dispatchtx.Runner, pub events.Publisher, timeout time.Duration, logger logx.Logger) *Service {
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
		operationTimeout: timeout,
		logger:           logger,
		now:              func() time.Time { return time.Now().UTC() },
		newID:            uuid.NewString,
	}
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.operationTimeout)
}

func validateSpec(spec *domain.VehicleSpec) error {
	spec.Registration = strings.ToUpper(strings.TrimSpace(spec.Registration))
	if spec.Registration == "" {
		return fmt.Errorf("registration is required: %w", apperr.ErrInvalid)
	}
	if !spec.Type.Valid() {
		return fmt.Errorf("unknown vehicle type %q: %w", spec.Type, apperr.ErrInvalid)
	}
	if spec.CapacityKg <= 0 {
		return fmt.Errorf("capacity must be positive: %w", apperr.ErrInvalid)
	}
	if spec.Location != nil && !spec.Location.Valid() {
		return fmt.Errorf("location out of range: %w", apperr.ErrInvalid)
	}
	return nil
}

// RegisterVehicle adds a vehicle to the fleet in available status.
func (s *Service) RegisterVehicle(ctx context.Context, actor domain.Actor, spec domain.VehicleSpec) (*domain.Vehicle, error) {
	if !actor.Is(domain.RoleAdmin) {
		return nil, apperr.ErrUnauthorized
	}
	if err := validateSpec(&spec); err != nil {
		return nil, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	now := s.now()
	v := &domain.Vehicle{
		ID:           s.newID(),
		Registration: spec.Registration,
		Type:         spec.Type,
		CapacityKg:   spec.CapacityKg,
		Status:       domain.VehicleAvailable,
		Location:     spec.Location,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err := s.repo.WithTx(ctx, func(tx dispatchtx.Repository) error {
		existing, err := tx.GetVehicleByRegistration(ctx, v.Registration)
		if err != nil {
			return err
		}
		if existing != nil {
			return apperr.ErrDuplicateRegistration
		}
		return tx.SaveVehicle(ctx, v)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("vehicle registered",
		logx.String("event", "vehicle_registered"),
		logx.String("vehicle_id", v.ID),
		logx.String("registration", v.Registration),
		logx.String("type", string(v.Type)),
	)
	return v, nil
}

// SetStatus changes the operational status of a vehicle. In-use can only
// mirror an existing binding; a bound vehicle cannot be released here.
func (s *Service) SetStatus(ctx context.Context, actor domain.Actor, id string, status domain.VehicleStatus) (*domain.Vehicle, error) {
	if !actor.Is(domain.RoleAdmin) {
		return nil, apperr.ErrUnauthorized
	}
	if !status.Valid() {
		return nil, fmt.Errorf("unknown vehicle status %q: %w", status, apperr.ErrInvalid)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var (
		out *domain.Vehicle
		box events.Outbox
	)
	err := s.repo.WithTx(ctx, func(tx dispatchtx.Repository) error {
		v, err := tx.GetVehicle(ctx, id)
		if err != nil {
			return err
		}
		if v == nil {
			return apperr.ErrNotFound
		}
		active, err := tx.ListAssignments(ctx, domain.AssignmentFilter{VehicleID: id, ActiveOnly: true})
		if err != nil {
			return err
		}
		bound := len(active) > 0

		switch {
		case status == domain.VehicleInUse && !bound:
			return fmt.Errorf("vehicle %s has no active assignment: %w", id, apperr.ErrInvalidTransition)
		case status != domain.VehicleInUse && bound:
			return fmt.Errorf("vehicle %s is bound to assignment %s: %w", id, active[0].ID, apperr.ErrInvalidTransition)
		case v.Status == status:
			out = v
			return nil
		}

		from := v.Status
		v.Status = status
		v.UpdatedAt = s.now()
		if err := tx.SaveVehicle(ctx, v); err != nil {
			return err
		}
		box.Add(StatusChanged(v, from, v.UpdatedAt))
		out = v
		return nil
	})
	if err != nil {
		return nil, err
	}
	box.Flush(ctx, s.pub)

	s.logger.Info("vehicle status set",
		logx.String("event", "vehicle_status_set"),
		logx.String("vehicle_id", out.ID),
		logx.String("status", string(out.Status)),
	)
	return out, nil
}

// UpdateLocation records the current position of a vehicle. Only an admin or
// the driver currently bound to the vehicle may report it.
func (s *Service) UpdateLocation(ctx context.Context, actor domain.Actor, id string, loc domain.Location) (*domain.Vehicle, error) {
	if !loc.Valid() || !loc.HasCoordinates() {
		return nil, fmt.Errorf("location out of range: %w", apperr.ErrInvalid)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var out *domain.Vehicle
	err := s.repo.WithTx(ctx, func(tx dispatchtx.Repository) error {
		v, err := tx.GetVehicle(ctx, id)
		if err != nil {
			return err
		}
		if v == nil {
			return apperr.ErrNotFound
		}
		if !actor.Is(domain.RoleAdmin) && !(actor.Is(domain.RoleDriver) && v.AssignedDriverID == actor.ID) {
			return apperr.ErrUnauthorized
		}
		v.Location = &loc
		v.UpdatedAt = s.now()
		if err := tx.SaveVehicle(ctx, v); err != nil {
			return err
		}
		out = v
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug("vehicle location updated",
		logx.String("event", "vehicle_location_updated"),
		logx.String("vehicle_id", out.ID),
	)
	return out, nil
}

// Get returns a vehicle by id.
func (s *Service) Get(ctx context.Context, id string) (*domain.Vehicle, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var out *domain.Vehicle
	err := s.repo.View(ctx, func(tx dispatchtx.Repository) error {
		v, err := tx.GetVehicle(ctx, id)
		if err != nil {
			return err
		}
		if v == nil {
			return apperr.ErrNotFound
		}
		out = v
		return nil
	})
	return out, err
}

// List returns vehicles matching the filter.
func (s *Service) List(ctx context.Context, f domain.VehicleFilter) ([]domain.Vehicle, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var out []domain.Vehicle
	err := s.repo.View(ctx, func(tx dispatchtx.Repository) error {
		var err error
		out, err = tx.ListVehicles(ctx, f)
		return err
	})
	return out, err
}

// GetAvailable returns available vehicles of the given type (any when empty)
// able to carry at least minCapacityKg.
func (s *Service) GetAvailable(ctx context.Context, t domain.VehicleType, minCapacityKg float64) ([]domain.Vehicle, error) {
	if t != "" && !t.Valid() {
		return nil, fmt.Errorf("unknown vehicle type %q: %w", t, apperr.ErrInvalid)
	}
	if minCapacityKg < 0 {
		return nil, fmt.Errorf("min capacity must not be negative: %w", apperr.ErrInvalid)
	}
	return s.List(ctx, domain.VehicleFilter{Type: t, Status: domain.VehicleAvailable, MinCapacityKg: minCapacityKg})
}

// StatusChanged builds the vehicle.status_changed event for v.
func StatusChanged(v *domain.Vehicle, from domain.VehicleStatus, at time.Time) events.Event {
	return events.New(events.VehicleStatusChanged, v.ID, v.Version, at, map[string]any{
		"from":      string(from),
		"to":        string(v.Status),
		"driver_id": v.AssignedDriverID,
	}).For(v.AssignedDriverID, "")
}
