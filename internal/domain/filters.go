package domain

// VehicleFilter narrows vehicle listings. Zero values match everything.
type VehicleFilter struct {
	Type          VehicleType
	Status        VehicleStatus
	MinCapacityKg float64
}

// Match reports whether v satisfies the filter.
func (f VehicleFilter) Match(v *Vehicle) bool {
	if f.Type != "" && v.Type != f.Type {
		return false
	}
	if f.Status != "" && v.Status != f.Status {
		return false
	}
	return v.CapacityKg >= f.MinCapacityKg
}

// DriverFilter narrows driver listings.
type DriverFilter struct {
	Status DriverStatus
}

// OrderFilter narrows order listings.
type OrderFilter struct {
	Status     OrderStatus
	CustomerID string
}

// AssignmentFilter narrows assignment listings.
type AssignmentFilter struct {
	DriverID   string
	VehicleID  string
	OrderID    string
	ActiveOnly bool
	State      AssignmentState
}

// Match reports whether a satisfies the filter.
func (f AssignmentFilter) Match(a *Assignment) bool {
	if f.DriverID != "" && a.DriverID != f.DriverID {
		return false
	}
	if f.VehicleID != "" && a.VehicleID != f.VehicleID {
		return false
	}
	if f.OrderID != "" && a.OrderID != f.OrderID {
		return false
	}
	if f.State != "" && a.State != f.State {
		return false
	}
	return !f.ActiveOnly || a.State.Active()
}
