package handlers

import "time"

type locationDTO struct {
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Address string  `json:"address,omitempty"`
}

type moneyDTO struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency,omitempty"`
}

type vehicleDTO struct {
	ID               string       `json:"id"`
	Registration     string       `json:"registration"`
	Type             string       `json:"type"`
	CapacityKg       float64      `json:"capacity_kg"`
	Status           string       `json:"status"`
	Location         *locationDTO `json:"location,omitempty"`
	AssignedDriverID string       `json:"assigned_driver_id,omitempty"`
	Version          int64        `json:"version"`
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at"`
}

type registerVehicleRequest struct {
	Registration string       `json:"registration"`
	Type         string       `json:"type"`
	CapacityKg   float64      `json:"capacity_kg"`
	Location     *locationDTO `json:"location,omitempty"`
}

type vehicleStatusRequest struct {
	Status string `json:"status"`
}

type driverDTO struct {
	ID                  string     `json:"id"`
	Name                string     `json:"name"`
	Phone               string     `json:"phone"`
	Email               string     `json:"email,omitempty"`
	LicenseNumber       string     `json:"license_number,omitempty"`
	VehicleRegistration string     `json:"vehicle_registration,omitempty"`
	Status              string     `json:"status"`
	Rating              float64    `json:"rating"`
	Deliveries          int64      `json:"deliveries"`
	LastAssignedAt      *time.Time `json:"last_assigned_at,omitempty"`
	Version             int64      `json:"version"`
	CreatedAt           time.Time  `json:"created_at"`
}

type registerDriverRequest struct {
	Name                string `json:"name"`
	Phone               string `json:"phone"`
	Email               string `json:"email,omitempty"`
	LicenseNumber       string `json:"license_number,omitempty"`
	VehicleRegistration string `json:"vehicle_registration,omitempty"`
}

type packageDTO struct {
	Description string  `json:"description,omitempty"`
	WeightKg    float64 `json:"weight_kg"`
}

type paymentDTO struct {
	Amount moneyDTO `json:"amount"`
	Method string   `json:"method"`
}

type orderDTO struct {
	ID           string      `json:"id"`
	CustomerID   string      `json:"customer_id"`
	Pickup       locationDTO `json:"pickup"`
	Drop         locationDTO `json:"drop"`
	Package      packageDTO  `json:"package"`
	Payment      paymentDTO  `json:"payment"`
	Status       string      `json:"status"`
	AssignmentID string      `json:"assignment_id,omitempty"`
	DriverID     string      `json:"driver_id,omitempty"`
	VehicleID    string      `json:"vehicle_id,omitempty"`
	CancelReason string      `json:"cancel_reason,omitempty"`
	Version      int64       `json:"version"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

type placeOrderRequest struct {
	CustomerID string      `json:"customer_id,omitempty"`
	Pickup     locationDTO `json:"pickup"`
	Drop       locationDTO `json:"drop"`
	Package    packageDTO  `json:"package"`
	Payment    paymentDTO  `json:"payment"`
}

type transitionRequest struct {
	To   string `json:"to"`
	Note string `json:"note,omitempty"`
}

type timelineEntryDTO struct {
	Seq       int       `json:"seq"`
	From      string    `json:"from,omitempty"`
	To        string    `json:"to"`
	ActorID   string    `json:"actor_id"`
	ActorRole string    `json:"actor_role"`
	At        time.Time `json:"at"`
	Note      string    `json:"note,omitempty"`
}

type assignmentDTO struct {
	ID          string     `json:"id"`
	OrderID     string     `json:"order_id"`
	DriverID    string     `json:"driver_id"`
	VehicleID   string     `json:"vehicle_id"`
	State       string     `json:"state"`
	OfferedAt   time.Time  `json:"offered_at"`
	ExpiresAt   time.Time  `json:"expires_at"`
	RespondedAt *time.Time `json:"responded_at,omitempty"`
	ClosedAt    *time.Time `json:"closed_at,omitempty"`
	AssignedBy  string     `json:"assigned_by"`
	Reason      string     `json:"reason,omitempty"`
	Version     int64      `json:"version"`
}

type assignRequest struct {
	OrderID   string `json:"order_id"`
	DriverID  string `json:"driver_id"`
	VehicleID string `json:"vehicle_id"`
}

type autoAssignRequest struct {
	OrderID string `json:"order_id"`
}

type reasonRequest struct {
	Reason string `json:"reason,omitempty"`
}

type walletDTO struct {
	DriverID string   `json:"driver_id"`
	Balance  moneyDTO `json:"balance"`
	Version  int64    `json:"version"`
}

type transactionDTO struct {
	ID           string    `json:"id"`
	DriverID     string    `json:"driver_id"`
	Kind         string    `json:"kind"`
	Amount       moneyDTO  `json:"amount"`
	OrderID      string    `json:"order_id,omitempty"`
	AssignmentID string    `json:"assignment_id,omitempty"`
	Destination  string    `json:"destination,omitempty"`
	BalanceAfter moneyDTO  `json:"balance_after"`
	CreatedAt    time.Time `json:"created_at"`
}

type withdrawalRequest struct {
	Amount      moneyDTO `json:"amount"`
	Destination string   `json:"destination"`
}
