package domain

import (
	"regexp"
	"time"
)

// Driver represents a delivery driver.
type Driver struct {
	ID                  string
	Name                string
	Phone               string
	Email               string
	LicenseNumber       string
	VehicleRegistration string
	Status              DriverStatus
	Rating              float64
	Deliveries          int64
	LastAssignedAt      *time.Time
	Version             int64
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// DriverSpec is the input for registering a driver.
type DriverSpec struct {
	Name                string
	Phone               string
	Email               string
	LicenseNumber       string
	VehicleRegistration string
}

// rePhone is a regex to validate phone numbers
var rePhone = regexp.MustCompile(`^\+[0-9]{10,14}$`)

// ValidatePhone validates the phone number format
func ValidatePhone(s string) bool {
	return rePhone.MatchString(s)
}
