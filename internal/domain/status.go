package domain

type (
	// VehicleType represents the kind of a fleet vehicle.
	VehicleType string
	// VehicleStatus represents the operational status of a vehicle.
	VehicleStatus string
	// DriverStatus represents the approval status of a driver.
	DriverStatus string
	// OrderStatus represents the delivery progress of an order.
	OrderStatus string
	// AssignmentState represents the acceptance state of an assignment.
	AssignmentState string
	// PaymentMethod represents how the customer pays for an order.
	PaymentMethod string
)

// List of vehicle types
const (
	VehicleTypeBike  VehicleType = "bike"
	VehicleTypeCar   VehicleType = "car"
	VehicleTypeVan   VehicleType = "van"
	VehicleTypeTruck VehicleType = "truck"
)

// List of vehicle statuses
const (
	VehicleAvailable   VehicleStatus = "available"
	VehicleInUse       VehicleStatus = "in_use"
	VehicleMaintenance VehicleStatus = "maintenance"
)

// List of driver approval statuses
const (
	DriverPending  DriverStatus = "pending"
	DriverApproved DriverStatus = "approved"
	DriverRejected DriverStatus = "rejected"
)

// List of order statuses
const (
	OrderPending   OrderStatus = "pending"
	OrderAssigned  OrderStatus = "assigned"
	OrderOnRoute   OrderStatus = "on_route"
	OrderPickedUp  OrderStatus = "picked_up"
	OrderDelivered OrderStatus = "delivered"
	OrderCancelled OrderStatus = "cancelled"
)

// List of assignment states
const (
	AssignmentOffered   AssignmentState = "offered"
	AssignmentAccepted  AssignmentState = "accepted"
	AssignmentRejected  AssignmentState = "rejected"
	AssignmentExpired   AssignmentState = "expired"
	AssignmentCompleted AssignmentState = "completed"
	AssignmentCancelled AssignmentState = "cancelled"
)

// List of payment methods
const (
	PaymentCash   PaymentMethod = "cash"
	PaymentCard   PaymentMethod = "card"
	PaymentUPI    PaymentMethod = "upi"
	PaymentWallet PaymentMethod = "wallet"
)

var allowedVehicleTypes = [...]VehicleType{
	VehicleTypeBike, VehicleTypeCar, VehicleTypeVan, VehicleTypeTruck,
}

var allowedVehicleStatuses = [...]VehicleStatus{
	VehicleAvailable, VehicleInUse, VehicleMaintenance,
}

var allowedDriverStatuses = [...]DriverStatus{
	DriverPending, DriverApproved, DriverRejected,
}

var allowedOrderStatuses = [...]OrderStatus{
	OrderPending, OrderAssigned, OrderOnRoute, OrderPickedUp, OrderDelivered, OrderCancelled,
}

var allowedPaymentMethods = [...]PaymentMethod{
	PaymentCash, PaymentCard, PaymentUPI, PaymentWallet,
}

// Valid checks if the VehicleType is valid
func (t VehicleType) Valid() bool {
	for _, v := range allowedVehicleTypes {
		if t == v {
			return true
		}
	}
	return false
}

// Valid checks if the VehicleStatus is valid
func (s VehicleStatus) Valid() bool {
	for _, v := range allowedVehicleStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// Valid checks if the DriverStatus is valid
func (s DriverStatus) Valid() bool {
	for _, v := range allowedDriverStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// Valid checks if the OrderStatus is valid
func (s OrderStatus) Valid() bool {
	for _, v := range allowedOrderStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// Valid checks if the PaymentMethod is valid
func (m PaymentMethod) Valid() bool {
	for _, v := range allowedPaymentMethods {
		if m == v {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transition is permitted.
func (s OrderStatus) Terminal() bool {
	return s == OrderDelivered || s == OrderCancelled
}

// Rank orders statuses along the delivery flow; cancelled ranks last.
func (s OrderStatus) Rank() int {
	switch s {
	case OrderPending:
		return 0
	case OrderAssigned:
		return 1
	case OrderOnRoute:
		return 2
	case OrderPickedUp:
		return 3
	case OrderDelivered:
		return 4
	case OrderCancelled:
		return 5
	default:
		return -1
	}
}

// Active reports whether the assignment still binds its driver and vehicle.
func (s AssignmentState) Active() bool {
	return s == AssignmentOffered || s == AssignmentAccepted
}

// AllowedOrderTransitions is the order status flow as data.
// Cancellation is reachable from every non-terminal status.
var AllowedOrderTransitions = map[OrderStatus][]OrderStatus{
	OrderPending:  {OrderAssigned, OrderCancelled},
	OrderAssigned: {OrderOnRoute, OrderCancelled},
	OrderOnRoute:  {OrderPickedUp, OrderCancelled},
	OrderPickedUp: {OrderDelivered, OrderCancelled},
}

// CanTransition reports whether the order may move from one status to another.
func CanTransition(from, to OrderStatus) bool {
	next, ok := AllowedOrderTransitions[from]
	if !ok {
		return false
	}
	for _, s := range next {
		if s == to {
			return true
		}
	}
	return false
}

// ReleaseOrderTransitions are the edges that undo a binding when an offer is
// rejected or expires. They are not part of the public status flow.
var ReleaseOrderTransitions = map[OrderStatus][]OrderStatus{
	OrderAssigned: {OrderPending},
}

// CanRelease reports whether the order may fall back along a release edge.
func CanRelease(from, to OrderStatus) bool {
	for _, s := range ReleaseOrderTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
