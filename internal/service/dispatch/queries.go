package dispatch

import (
	"context"

	"service-dispatch/internal/apperr"
	"service-dispatch/internal/domain"
	"service-dispatch/internal/ports/dispatchtx"
)

// Get returns an assignment. Drivers and customers only see their own.
func (s *Service) Get(ctx context.Context, actor domain.Actor, id string) (*domain.Assignment, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var a *domain.Assignment
	err := s.repo.View(ctx, func(tx dispatchtx.Repository) error {
		b, err := loadBinding(ctx, tx, id)
		if err != nil {
			return err
		}
		if !canRead(actor, b) {
			return apperr.ErrUnauthorized
		}
		a = b.a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

// ListActive returns every offered or accepted assignment.
func (s *Service) ListActive(ctx context.Context, actor domain.Actor) ([]domain.Assignment, error) {
	if !actor.Is(domain.RoleAdmin, domain.RoleSystem) {
		return nil, apperr.ErrUnauthorized
	}
	return s.list(ctx, domain.AssignmentFilter{ActiveOnly: true})
}

// ListByDriver returns the assignment history of a driver.
func (s *Service) ListByDriver(ctx context.Context, actor domain.Actor, driverID string) ([]domain.Assignment, error) {
	if !actor.Is(domain.RoleAdmin, domain.RoleSystem) && !(actor.Is(domain.RoleDriver) && actor.ID == driverID) {
		return nil, apperr.ErrUnauthorized
	}
	return s.list(ctx, domain.AssignmentFilter{DriverID: driverID})
}

func (s *Service) list(ctx context.Context, f domain.AssignmentFilter) ([]domain.Assignment, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var out []domain.Assignment
	err := s.repo.View(ctx, func(tx dispatchtx.Repository) error {
		var err error
		out, err = tx.ListAssignments(ctx, f)
		return err
	})
	return out, err
}

func canRead(actor domain.Actor, b binding) bool {
	switch actor.Role {
	case domain.RoleAdmin, domain.RoleSystem:
		return true
	case domain.RoleDriver:
		return actor.ID == b.a.DriverID
	case domain.RoleCustomer:
		return actor.ID == b.o.CustomerID
	}
	return false
}
