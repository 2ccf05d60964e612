package memory

import (
	"time"

	"service-dispatch/internal/domain"
)

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

func cloneVehicle(v *domain.Vehicle) *domain.Vehicle {
	c := *v
	if v.Location != nil {
		loc := *v.Location
		c.Location = &loc
	}
	return &c
}

func cloneDriver(d *domain.Driver) *domain.Driver {
	c := *d
	c.LastAssignedAt = cloneTime(d.LastAssignedAt)
	return &c
}

func cloneOrder(o *domain.Order) *domain.Order {
	c := *o
	return &c
}

func cloneAssignment(a *domain.Assignment) *domain.Assignment {
	c := *a
	c.RespondedAt = cloneTime(a.RespondedAt)
	c.ClosedAt = cloneTime(a.ClosedAt)
	return &c
}

func cloneWallet(w *domain.Wallet) *domain.Wallet {
	c := *w
	return &c
}
