package domain

import "time"

// Location is a geographic point with an optional human readable address.
type Location struct {
	Lat     float64
	Lng     float64
	Address string
}

// HasCoordinates reports whether the location carries a usable lat/lng pair.
func (l Location) HasCoordinates() bool {
	return l.Lat != 0 || l.Lng != 0
}

// Vehicle represents a fleet vehicle.
type Vehicle struct {
	ID               string
	Registration     string
	Type             VehicleType
	CapacityKg       float64
	Status           VehicleStatus
	Location         *Location
	AssignedDriverID string
	Version          int64
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// VehicleSpec is the input for registering a vehicle.
type VehicleSpec struct {
	Registration string
	Type         VehicleType
	CapacityKg   float64
	Location     *Location
}

// Valid reports whether the coordinates are within range.
func (l Location) Valid() bool {
	return l.Lat >= -90 && l.Lat <= 90 && l.Lng >= -180 && l.Lng <= 180
}
