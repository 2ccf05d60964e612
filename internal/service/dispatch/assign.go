package dispatch

import (
	"context"
	"fmt"
	"math"
	"sort"

	"service-dispatch/internal/apperr"
	"service-dispatch/internal/domain"
	"service-dispatch/internal/events"
	"service-dispatch/internal/logx"
	"service-dispatch/internal/ports/dispatchtx"
	"service-dispatch/internal/service/order"
)

// Assign offers a pending order to a driver with a vehicle. Every
// precondition is checked before the first write; the assignment, vehicle,
// order and driver are committed together.
func (s *Service) Assign(ctx context.Context, actor domain.Actor, orderID, driverID, vehicleID string) (*domain.Assignment, error) {
	if !actor.Is(domain.RoleAdmin) {
		s.observe("assign", apperr.ErrUnauthorized)
		return nil, apperr.ErrUnauthorized
	}

	var out *domain.Assignment
	err := s.run(ctx, "assign", func(tx dispatchtx.Repository, box *events.Outbox) error {
		o, d, v, err := s.checkAssign(ctx, tx, orderID, driverID, vehicleID)
		if err != nil {
			return err
		}
		out, err = s.bind(ctx, tx, box, actor, o, d, v)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logAssigned("assign", out)
	return out, nil
}

// checkAssign loads and validates the three aggregates of an assignment.
func (s *Service) checkAssign(ctx context.Context, tx dispatchtx.Repository, orderID, driverID, vehicleID string) (*domain.Order, *domain.Driver, *domain.Vehicle, error) {
	o, err := tx.GetOrder(ctx, orderID)
	if err != nil {
		return nil, nil, nil, err
	}
	if o == nil {
		return nil, nil, nil, fmt.Errorf("order %s: %w", orderID, apperr.ErrNotFound)
	}
	if o.Status != domain.OrderPending {
		return nil, nil, nil, fmt.Errorf("order %s is %s: %w", o.ID, o.Status, apperr.ErrInvalidState)
	}

	d, err := tx.GetDriver(ctx, driverID)
	if err != nil {
		return nil, nil, nil, err
	}
	if d == nil {
		return nil, nil, nil, fmt.Errorf("driver %s: %w", driverID, apperr.ErrNotFound)
	}
	if d.Status != domain.DriverApproved {
		return nil, nil, nil, fmt.Errorf("driver %s is %s: %w", d.ID, d.Status, apperr.ErrDriverUnavailable)
	}
	active, err := tx.ListAssignments(ctx, domain.AssignmentFilter{DriverID: d.ID, ActiveOnly: true})
	if err != nil {
		return nil, nil, nil, err
	}
	if len(active) > 0 {
		return nil, nil, nil, fmt.Errorf("driver %s is bound to %s: %w", d.ID, active[0].ID, apperr.ErrDriverUnavailable)
	}

	v, err := tx.GetVehicle(ctx, vehicleID)
	if err != nil {
		return nil, nil, nil, err
	}
	if v == nil {
		return nil, nil, nil, fmt.Errorf("vehicle %s: %w", vehicleID, apperr.ErrNotFound)
	}
	if v.Status != domain.VehicleAvailable {
		return nil, nil, nil, fmt.Errorf("vehicle %s is %s: %w", v.ID, v.Status, apperr.ErrVehicleUnavailable)
	}
	if v.CapacityKg < o.Package.WeightKg {
		return nil, nil, nil, fmt.Errorf("vehicle %s carries %.1fkg, package is %.1fkg: %w",
			v.ID, v.CapacityKg, o.Package.WeightKg, apperr.ErrVehicleUnavailable)
	}
	return o, d, v, nil
}

// bind performs the writes of an assignment. Preconditions must hold.
func (s *Service) bind(ctx context.Context, tx dispatchtx.Repository, box *events.Outbox, actor domain.Actor,
	o *domain.Order, d *domain.Driver, v *domain.Vehicle) (*domain.Assignment, error) {
	now := s.now()

	a := &domain.Assignment{
		ID:         s.newID(),
		OrderID:    o.ID,
		DriverID:   d.ID,
		VehicleID:  v.ID,
		State:      domain.AssignmentOffered,
		OfferedAt:  now,
		ExpiresAt:  now.Add(s.offerTTL),
		AssignedBy: actor,
	}
	if err := tx.SaveAssignment(ctx, a); err != nil {
		return nil, err
	}

	from := v.Status
	v.Status = domain.VehicleInUse
	v.AssignedDriverID = d.ID
	v.UpdatedAt = now
	if err := tx.SaveVehicle(ctx, v); err != nil {
		return nil, err
	}

	o.AssignmentID, o.DriverID, o.VehicleID = a.ID, d.ID, v.ID
	orderEv, err := order.Apply(ctx, tx, o, domain.OrderAssigned, actor, "", now)
	if err != nil {
		return nil, err
	}

	d.LastAssignedAt = &now
	d.UpdatedAt = now
	if err := tx.SaveDriver(ctx, d); err != nil {
		return nil, err
	}

	box.Add(events.New(events.AssignmentOffered, a.ID, a.Version, now, map[string]any{
		"order_id":   o.ID,
		"vehicle_id": v.ID,
		"expires_at": a.ExpiresAt,
		"pickup":     o.Pickup.Address,
		"drop":       o.Drop.Address,
	}).For(d.ID, o.CustomerID))
	box.Add(orderEv)
	box.Add(vehicleChanged(v, from, d.ID, now))
	return a, nil
}

// AutoMatch picks a vehicle and a driver for a pending order and offers it.
// The nearest available vehicle able to carry the package wins, ties broken
// by id. Among approved unbound drivers the least recently assigned wins.
// Drivers who rejected the order since the last attempt are skipped once;
// every attempt that picks a driver forgets them, even when none is left.
func (s *Service) AutoMatch(ctx context.Context, actor domain.Actor, orderID string) (*domain.Assignment, error) {
	if !actor.Is(domain.RoleAdmin, domain.RoleSystem) {
		s.observe("auto_match", apperr.ErrUnauthorized)
		return nil, apperr.ErrUnauthorized
	}

	var out *domain.Assignment
	err := s.run(ctx, "auto_match", func(tx dispatchtx.Repository, box *events.Outbox) error {
		o, err := tx.GetOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if o == nil {
			return fmt.Errorf("order %s: %w", orderID, apperr.ErrNotFound)
		}
		if o.Status != domain.OrderPending {
			return fmt.Errorf("order %s is %s: %w", o.ID, o.Status, apperr.ErrInvalidState)
		}

		v, err := nearestVehicle(ctx, tx, o)
		if err != nil {
			return err
		}
		excluded, err := tx.Excluded(ctx, o.ID)
		if err != nil {
			return err
		}
		d, err := fairestDriver(ctx, tx, o.ID, excluded)
		if len(excluded) > 0 {
			if cerr := tx.ClearExclusions(ctx, o.ID); cerr != nil {
				return cerr
			}
			if err != nil {
				return keepWrites{err: err}
			}
		}
		if err != nil {
			return err
		}

		// recheck through the same path as a manual assign
		o, d, v, err = s.checkAssign(ctx, tx, o.ID, d.ID, v.ID)
		if err != nil {
			return err
		}
		out, err = s.bind(ctx, tx, box, actor, o, d, v)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logAssigned("auto_match", out)
	return out, nil
}

func nearestVehicle(ctx context.Context, tx dispatchtx.Repository, o *domain.Order) (*domain.Vehicle, error) {
	vehicles, err := tx.ListVehicles(ctx, domain.VehicleFilter{Status: domain.VehicleAvailable, MinCapacityKg: o.Package.WeightKg})
	if err != nil {
		return nil, err
	}
	if len(vehicles) == 0 {
		return nil, fmt.Errorf("no vehicle for %.1fkg: %w", o.Package.WeightKg, apperr.ErrNoCandidates)
	}

	distance := func(v *domain.Vehicle) float64 {
		if v.Location == nil {
			return math.Inf(1)
		}
		return domain.DistanceKm(*v.Location, o.Pickup)
	}
	sort.SliceStable(vehicles, func(i, j int) bool {
		di, dj := distance(&vehicles[i]), distance(&vehicles[j])
		if di != dj {
			return di < dj
		}
		return vehicles[i].ID < vehicles[j].ID
	})
	return &vehicles[0], nil
}

func fairestDriver(ctx context.Context, tx dispatchtx.Repository, orderID string, excluded map[string]bool) (*domain.Driver, error) {
	drivers, err := tx.ListDrivers(ctx, domain.DriverFilter{Status: domain.DriverApproved})
	if err != nil {
		return nil, err
	}
	active, err := tx.ListAssignments(ctx, domain.AssignmentFilter{ActiveOnly: true})
	if err != nil {
		return nil, err
	}
	bound := make(map[string]bool, len(active))
	for _, a := range active {
		bound[a.DriverID] = true
	}

	candidates := drivers[:0]
	for _, d := range drivers {
		if !excluded[d.ID] && !bound[d.ID] {
			candidates = append(candidates, d)
		}
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("no free driver for order %s: %w", orderID, apperr.ErrNoCandidates)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		li, lj := candidates[i].LastAssignedAt, candidates[j].LastAssignedAt
		switch {
		case li == nil && lj != nil:
			return true
		case li != nil && lj == nil:
			return false
		case li != nil && lj != nil && !li.Equal(*lj):
			return li.Before(*lj)
		}
		return candidates[i].ID < candidates[j].ID
	})
	return &candidates[0], nil
}

func (s *Service) logAssigned(op string, a *domain.Assignment) {
	s.logger.Info("assignment offered",
		logx.String("event", "assignment_offered"),
		logx.String("op", op),
		logx.String("assignment_id", a.ID),
		logx.String("order_id", a.OrderID),
		logx.String("driver_id", a.DriverID),
		logx.String("vehicle_id", a.VehicleID),
		logx.Time("expires_at", a.ExpiresAt),
	)
}

