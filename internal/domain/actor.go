package domain

// Role is the kind of principal performing a command.
type Role string

// List of roles
const (
	RoleAdmin    Role = "admin"
	RoleDriver   Role = "driver"
	RoleCustomer Role = "customer"
	RoleSystem   Role = "system"
)

// Valid checks if the Role is valid
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleDriver, RoleCustomer, RoleSystem:
		return true
	}
	return false
}

// Actor is the authenticated principal issuing a command.
type Actor struct {
	ID   string
	Role Role
}

// SystemActor is used by background jobs.
var SystemActor = Actor{ID: "system", Role: RoleSystem}

// Is reports whether the actor has one of the given roles.
func (a Actor) Is(roles ...Role) bool {
	for _, r := range roles {
		if a.Role == r {
			return true
		}
	}
	return false
}
