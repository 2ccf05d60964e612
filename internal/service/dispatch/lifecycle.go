package dispatch

import (
	"context"
	"fmt"

	"service-dispatch/internal/apperr"
	"service-dispatch/internal/domain"
	"service-dispatch/internal/events"
	"service-dispatch/internal/logx"
	"service-dispatch/internal/ports/dispatchtx"
	"service-dispatch/internal/service/order"
	"service-dispatch/internal/service/wallet"
)

// Accept confirms an offer. Only the bound driver may accept; the order goes on route.
func (s *Service) Accept(ctx context.Context, actor domain.Actor, assignmentID string) (*domain.Assignment, error) {
	var out *domain.Assignment
	err := s.run(ctx, "accept", func(tx dispatchtx.Repository, box *events.Outbox) error {
		b, err := loadBinding(ctx, tx, assignmentID)
		if err != nil {
			return err
		}
		if !isBoundDriver(actor, b.a) {
			return apperr.ErrUnauthorized
		}
		now := s.now()
		if b.a.State != domain.AssignmentOffered {
			return fmt.Errorf("assignment %s is %s: %w", b.a.ID, b.a.State, apperr.ErrInvalidState)
		}
		if b.a.Expired(now) {
			return fmt.Errorf("offer %s expired at %s: %w", b.a.ID, b.a.ExpiresAt.Format("15:04:05"), apperr.ErrInvalidState)
		}

		b.a.State = domain.AssignmentAccepted
		b.a.RespondedAt = &now
		if err := tx.SaveAssignment(ctx, b.a); err != nil {
			return err
		}
		ev, err := order.Apply(ctx, tx, b.o, domain.OrderOnRoute, actor, "", now)
		if err != nil {
			return err
		}
		box.Add(assignmentChanged(b, domain.AssignmentOffered, now))
		box.Add(ev)
		out = b.a
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logState("accept", out)
	return out, nil
}

// Reject declines an offer. The vehicle is released, the order is pending
// again and the driver is skipped by the next automatic match of it.
// Admins may reject on the driver's behalf.
func (s *Service) Reject(ctx context.Context, actor domain.Actor, assignmentID, reason string) (*domain.Assignment, error) {
	var out *domain.Assignment
	err := s.run(ctx, "reject", func(tx dispatchtx.Repository, box *events.Outbox) error {
		b, err := loadBinding(ctx, tx, assignmentID)
		if err != nil {
			return err
		}
		if !isBoundDriver(actor, b.a) && !actor.Is(domain.RoleAdmin) {
			return apperr.ErrUnauthorized
		}
		if b.a.State != domain.AssignmentOffered {
			return fmt.Errorf("assignment %s is %s: %w", b.a.ID, b.a.State, apperr.ErrInvalidState)
		}
		if err := tx.AddExclusion(ctx, b.a.OrderID, b.a.DriverID); err != nil {
			return err
		}
		out = b.a
		return s.unbind(ctx, tx, box, b, domain.AssignmentRejected, actor, reason)
	})
	if err != nil {
		return nil, err
	}
	s.logState("reject", out)
	return out, nil
}

// PickUp records that the bound driver has collected the package.
func (s *Service) PickUp(ctx context.Context, actor domain.Actor, assignmentID string) (*domain.Assignment, error) {
	var out *domain.Assignment
	err := s.run(ctx, "pickup", func(tx dispatchtx.Repository, box *events.Outbox) error {
		b, err := loadBinding(ctx, tx, assignmentID)
		if err != nil {
			return err
		}
		if !isBoundDriver(actor, b.a) {
			return apperr.ErrUnauthorized
		}
		if b.a.State != domain.AssignmentAccepted || b.o.Status != domain.OrderOnRoute {
			return fmt.Errorf("assignment %s is %s, order %s: %w", b.a.ID, b.a.State, b.o.Status, apperr.ErrInvalidState)
		}
		ev, err := order.Apply(ctx, tx, b.o, domain.OrderPickedUp, actor, "", s.now())
		if err != nil {
			return err
		}
		box.Add(ev)
		out = b.a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Complete finishes a delivery: the order is delivered, the vehicle freed,
// the driver's delivery count bumped and the wallet credited. Completing an
// already completed assignment returns it without crediting again.
// Rows are locked order, driver, vehicle like in Assign.
func (s *Service) Complete(ctx context.Context, actor domain.Actor, assignmentID string) (*domain.Assignment, error) {
	var (
		out    *domain.Assignment
		credit wallet.CreditResult
	)
	err := s.run(ctx, "complete", func(tx dispatchtx.Repository, box *events.Outbox) error {
		b, err := loadBinding(ctx, tx, assignmentID)
		if err != nil {
			return err
		}
		if !isBoundDriver(actor, b.a) {
			return apperr.ErrUnauthorized
		}
		out = b.a
		if b.a.State == domain.AssignmentCompleted {
			return nil
		}
		if b.a.State != domain.AssignmentAccepted || b.o.Status != domain.OrderPickedUp {
			return fmt.Errorf("assignment %s is %s, order %s: %w", b.a.ID, b.a.State, b.o.Status, apperr.ErrInvalidState)
		}

		d, err := tx.GetDriver(ctx, b.a.DriverID)
		if err != nil {
			return err
		}
		if d == nil {
			return fmt.Errorf("driver %s: %w", b.a.DriverID, apperr.ErrNotFound)
		}

		now := s.now()
		from := b.a.State
		b.a.State = domain.AssignmentCompleted
		b.a.ClosedAt = &now
		if err := tx.SaveAssignment(ctx, b.a); err != nil {
			return err
		}
		orderEv, err := order.Apply(ctx, tx, b.o, domain.OrderDelivered, actor, "", now)
		if err != nil {
			return err
		}
		vehicleEv, err := releaseVehicle(ctx, tx, b.a.VehicleID, now)
		if err != nil {
			return err
		}

		d.Deliveries++
		d.UpdatedAt = now
		if err := tx.SaveDriver(ctx, d); err != nil {
			return err
		}

		credit, err = wallet.CreditInTx(ctx, tx, wallet.Credit{
			DriverID:     b.a.DriverID,
			OrderID:      b.o.ID,
			AssignmentID: b.a.ID,
			Amount:       b.o.Payment.Amount,
		}, s.newID(), now)
		if err != nil {
			return err
		}

		box.Add(assignmentChanged(b, from, now))
		box.Add(orderEv)
		box.Add(vehicleEv)
		if credit.Created {
			box.Add(credit.Event())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if credit.Created && s.credits != nil {
		s.credits.Observe(credit.Transaction)
	}
	s.logState("complete", out)
	return out, nil
}

// Cancel aborts an active assignment and cancels its order. No credit is issued.
func (s *Service) Cancel(ctx context.Context, actor domain.Actor, assignmentID, reason string) (*domain.Assignment, error) {
	var out *domain.Assignment
	err := s.run(ctx, "cancel", func(tx dispatchtx.Repository, box *events.Outbox) error {
		b, err := loadBinding(ctx, tx, assignmentID)
		if err != nil {
			return err
		}
		customer := actor.Is(domain.RoleCustomer) && actor.ID == b.o.CustomerID
		if !isBoundDriver(actor, b.a) && !customer && !actor.Is(domain.RoleAdmin) {
			return apperr.ErrUnauthorized
		}
		if !b.a.State.Active() {
			return fmt.Errorf("assignment %s is %s: %w", b.a.ID, b.a.State, apperr.ErrInvalidState)
		}
		out = b.a
		return s.unbind(ctx, tx, box, b, domain.AssignmentCancelled, actor, reason)
	})
	if err != nil {
		return nil, err
	}
	s.logState("cancel", out)
	return out, nil
}

// ExpireOffers closes every offer whose deadline has passed and returns the
// orders to pending. It reports how many offers were expired.
func (s *Service) ExpireOffers(ctx context.Context) (int, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var offered []domain.Assignment
	err := s.repo.View(ctx, func(tx dispatchtx.Repository) error {
		var err error
		offered, err = tx.ListAssignments(ctx, domain.AssignmentFilter{State: domain.AssignmentOffered})
		return err
	})
	if err != nil {
		return 0, err
	}

	now := s.now()
	expired := 0
	for _, a := range offered {
		if !a.Expired(now) {
			continue
		}
		err := s.run(ctx, "expire", func(tx dispatchtx.Repository, box *events.Outbox) error {
			b, err := loadBinding(ctx, tx, a.ID)
			if err != nil {
				return err
			}
			// accepted or closed since the scan
			if b.a.State != domain.AssignmentOffered || !b.a.Expired(now) {
				return nil
			}
			return s.unbind(ctx, tx, box, b, domain.AssignmentExpired, domain.SystemActor, "offer expired")
		})
		if err != nil {
			s.logger.Warn("offer expiry failed",
				logx.String("assignment_id", a.ID),
				logx.Err(err),
			)
			continue
		}
		expired++
	}

	if expired > 0 {
		s.logger.Info("offers expired",
			logx.String("event", "offers_expired"),
			logx.Int("count", expired),
		)
	}
	return expired, nil
}

// unbind closes an active assignment with state and releases its vehicle.
// Offers that are rejected or expire put the order back to pending,
// everything else cancels it.
func (s *Service) unbind(ctx context.Context, tx dispatchtx.Repository, box *events.Outbox, b binding,
	state domain.AssignmentState, actor domain.Actor, reason string) error {
	now := s.now()
	from := b.a.State

	b.a.State = state
	b.a.Reason = reason
	b.a.ClosedAt = &now
	if from == domain.AssignmentOffered && state != domain.AssignmentCancelled {
		b.a.RespondedAt = &now
	}
	if err := tx.SaveAssignment(ctx, b.a); err != nil {
		return err
	}

	vehicleEv, err := releaseVehicle(ctx, tx, b.a.VehicleID, now)
	if err != nil {
		return err
	}

	target := domain.OrderCancelled
	if state == domain.AssignmentRejected || state == domain.AssignmentExpired {
		target = domain.OrderPending
		b.o.AssignmentID, b.o.DriverID, b.o.VehicleID = "", "", ""
	} else {
		b.o.CancelReason = reason
	}
	orderEv, err := order.Apply(ctx, tx, b.o, target, actor, reason, now)
	if err != nil {
		return err
	}

	box.Add(assignmentChanged(b, from, now))
	box.Add(vehicleEv)
	box.Add(orderEv)
	return nil
}

func (s *Service) logState(op string, a *domain.Assignment) {
	if a == nil {
		return
	}
	s.logger.Info("assignment updated",
		logx.String("event", "assignment_"+op),
		logx.String("assignment_id", a.ID),
		logx.String("order_id", a.OrderID),
		logx.String("driver_id", a.DriverID),
		logx.String("state", string(a.State)),
	)
}
