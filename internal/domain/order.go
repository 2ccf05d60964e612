package domain

import "time"

// Money is an amount in minor units of Currency.
type Money struct {
	Amount   int64
	Currency string
}

// DefaultCurrency is used when an amount arrives without one.
const DefaultCurrency = "INR"

// Package describes the goods being delivered.
type Package struct {
	Description string
	WeightKg    float64
}

// Payment describes what the customer pays for the order.
type Payment struct {
	Amount Money
	Method PaymentMethod
}

// Order represents a customer delivery request.
type Order struct {
	ID           string
	CustomerID   string
	Pickup       Location
	Drop         Location
	Package      Package
	Payment      Payment
	Status       OrderStatus
	AssignmentID string
	DriverID     string
	VehicleID    string
	CancelReason string
	Version      int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// OrderSpec is the input for placing an order.
type OrderSpec struct {
	CustomerID string
	Pickup     Location
	Drop       Location
	Package    Package
	Payment    Payment
}

// TimelineEntry is one immutable record of an order status change.
type TimelineEntry struct {
	OrderID string
	Seq     int
	From    OrderStatus
	To      OrderStatus
	Actor   Actor
	At      time.Time
	Note    string
}
