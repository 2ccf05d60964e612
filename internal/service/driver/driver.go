// Package driver owns driver records and their approval lifecycle.
package driver

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

// Service coordinates driver business logic.
type Service struct {
	repo             dispatchtx.Runner
	pub              events.Publisher
	operationTimeout time.Duration
	logger           logx.Logger
	now              func() time.Time
	newID            func() string
}

// NewService creates and configures a driver Service.
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

func validateSpec(spec *domain.DriverSpec) error {
	spec.Name = strings.TrimSpace(spec.Name)
	spec.Phone = strings.TrimSpace(spec.Phone)
	if spec.Name == "" {
		return fmt.Errorf("name is required: %w", apperr.ErrInvalid)
	}
	if !domain.ValidatePhone(spec.Phone) {
		return fmt.Errorf("phone %q: %w", spec.Phone, apperr.ErrInvalid)
	}
	if spec.Email != "" && !strings.Contains(spec.Email, "@") {
		return fmt.Errorf("email %q: %w", spec.Email, apperr.ErrInvalid)
	}
	return nil
}

// Register creates a driver record awaiting approval.
func (s *Service) Register(ctx context.Context, spec domain.DriverSpec) (*domain.Driver, error) {
	if err := validateSpec(&spec); err != nil {
		return nil, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	now := s.now()
	d := &domain.Driver{
		ID:                  s.newID(),
		Name:                spec.Name,
		Phone:               spec.Phone,
		Email:               spec.Email,
		LicenseNumber:       spec.LicenseNumber,
		VehicleRegistration: spec.VehicleRegistration,
		Status:              domain.DriverPending,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if err := s.repo.WithTx(ctx, func(tx dispatchtx.Repository) error {
		return tx.SaveDriver(ctx, d)
	}); err != nil {
		return nil, err
	}

	s.logger.Info("driver registered",
		logx.String("event", "driver_registered"),
		logx.String("driver_id", d.ID),
	)
	return d, nil
}

// Approve makes a pending driver eligible for assignments.
func (s *Service) Approve(ctx context.Context, actor domain.Actor, id string) (*domain.Driver, error) {
	return s.decide(ctx, actor, id, domain.DriverApproved)
}

// Reject closes a pending driver's application.
func (s *Service) Reject(ctx context.Context, actor domain.Actor, id string) (*domain.Driver, error) {
	return s.decide(ctx, actor, id, domain.DriverRejected)
}

// decide applies a terminal approval decision.
func (s *Service) decide(ctx context.Context, actor domain.Actor, id string, to domain.DriverStatus) (*domain.Driver, error) {
	if !actor.Is(domain.RoleAdmin) {
		return nil, apperr.ErrUnauthorized
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var (
		out *domain.Driver
		box events.Outbox
	)
	err := s.repo.WithTx(ctx, func(tx dispatchtx.Repository) error {
		d, err := tx.GetDriver(ctx, id)
		if err != nil {
			return err
		}
		if d == nil {
			return apperr.ErrNotFound
		}
		if d.Status != domain.DriverPending {
			return fmt.Errorf("driver %s is %s: %w", id, d.Status, apperr.ErrInvalidTransition)
		}
		d.Status = to
		d.UpdatedAt = s.now()
		if err := tx.SaveDriver(ctx, d); err != nil {
			return err
		}
		box.Add(events.New(events.DriverStatusChanged, d.ID, d.Version, d.UpdatedAt, map[string]any{
			"from": string(domain.DriverPending),
			"to":   string(to),
		}).For(d.ID, ""))
		out = d
		return nil
	})
	if err != nil {
		return nil, err
	}
	box.Flush(ctx, s.pub)

	s.logger.Info("driver decision recorded",
		logx.String("event", "driver_"+string(to)),
		logx.String("driver_id", out.ID),
		logx.String("admin_id", actor.ID),
	)
	return out, nil
}

// Get returns a driver by id.
func (s *Service) Get(ctx context.Context, id string) (*domain.Driver, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var out *domain.Driver
	err := s.repo.View(ctx, func(tx dispatchtx.Repository) error {
		d, err := tx.GetDriver(ctx, id)
		if err != nil {
			return err
		}
		if d == nil {
			return apperr.ErrNotFound
		}
		out = d
		return nil
	})
	return out, err
}

// List returns drivers, optionally narrowed to one status.
func (s *Service) List(ctx context.Context, status domain.DriverStatus) ([]domain.Driver, error) {
	if status != "" && !status.Valid() {
		return nil, fmt.Errorf("unknown driver status %q: %w", status, apperr.ErrInvalid)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var out []domain.Driver
	err := s.repo.View(ctx, func(tx dispatchtx.Repository) error {
		var err error
		out, err = tx.ListDrivers(ctx, domain.DriverFilter{Status: status})
		return err
	})
	return out, err
}

// ListApproved returns drivers eligible for assignments.
func (s *Service) ListApproved(ctx context.Context) ([]domain.Driver, error) {
	return s.List(ctx, domain.DriverApproved)
}
