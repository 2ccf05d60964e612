package apperr

import "errors"

// ErrInvalid is returned when the input fails domain validation.
var ErrInvalid = errors.New("invalid input")

// ErrConflict indicates that the aggregate was modified concurrently.
var ErrConflict = errors.New("conflict")

// ErrNotFound indicates that the requested resource does not exist.
var ErrNotFound = errors.New("not found")

// ErrInvalidTransition is returned when a status edge is not permitted.
var ErrInvalidTransition = errors.New("invalid transition")

// ErrInvalidState is returned when an aggregate is not in the state the command requires.
var ErrInvalidState = errors.New("invalid state")

// ErrDriverUnavailable is returned when a driver cannot take an assignment.
var ErrDriverUnavailable = errors.New("driver unavailable")

// ErrVehicleUnavailable is returned when a vehicle cannot take an assignment.
var ErrVehicleUnavailable = errors.New("vehicle unavailable")

// ErrInsufficientBalance is returned when a withdrawal exceeds the balance.
var ErrInsufficientBalance = errors.New("insufficient balance")

// ErrGeocodeFailed is returned when an address cannot be resolved.
var ErrGeocodeFailed = errors.New("geocode failed")

// ErrUnauthorized is returned when the actor may not perform the command.
var ErrUnauthorized = errors.New("unauthorized")

// ErrDuplicateRegistration is returned when a vehicle registration is already taken.
var ErrDuplicateRegistration = errors.New("duplicate registration")

// ErrNoCandidates is returned when automatic matching finds no driver or vehicle.
var ErrNoCandidates = errors.New("no candidates")
