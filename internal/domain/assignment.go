package domain

import "time"

// Assignment binds an order to one driver and one vehicle.
type Assignment struct {
	ID          string
	OrderID     string
	DriverID    string
	VehicleID   string
	State       AssignmentState
	OfferedAt   time.Time
	ExpiresAt   time.Time
	RespondedAt *time.Time
	ClosedAt    *time.Time
	AssignedBy  Actor
	Reason      string
	Version     int64
}

// Expired reports whether an offered assignment passed its deadline.
func (a *Assignment) Expired(now time.Time) bool {
	return a.State == AssignmentOffered && !now.Before(a.ExpiresAt)
}
