package handlers

import (
	"context"

	"service-dispatch/internal/domain"
)

type fleetUsecase interface {
	RegisterVehicle(ctx context.Context, actor domain.Actor, spec domain.VehicleSpec) (*domain.Vehicle, error)
	SetStatus(ctx context.Context, actor domain.Actor, id string, status domain.VehicleStatus) (*domain.Vehicle, error)
	UpdateLocation(ctx context.Context, actor domain.Actor, id string, loc domain.Location) (*domain.Vehicle, error)
	Get(ctx context.Context, id string) (*domain.Vehicle, error)
	List(ctx context.Context, f domain.VehicleFilter) ([]domain.Vehicle, error)
	GetAvailable(ctx context.Context, t domain.VehicleType, minCapacityKg float64) ([]domain.Vehicle, error)
}

type driverUsecase interface {
	Register(ctx context.Context, spec domain.DriverSpec) (*domain.Driver, error)
	Approve(ctx context.Context, actor domain.Actor, id string) (*domain.Driver, error)
	Reject(ctx context.Context, actor domain.Actor, id string) (*domain.Driver, error)
	Get(ctx context.Context, id string) (*domain.Driver, error)
	List(ctx context.Context, status domain.DriverStatus) ([]domain.Driver, error)
}

type orderUsecase interface {
	PlaceOrder(ctx context.Context, actor domain.Actor, spec domain.OrderSpec) (*domain.Order, error)
	Transition(ctx context.Context, actor domain.Actor, id string, to domain.OrderStatus, note string) (*domain.Order, error)
	Get(ctx context.Context, actor domain.Actor, id string) (*domain.Order, error)
	Timeline(ctx context.Context, actor domain.Actor, id string) ([]domain.TimelineEntry, error)
	ListByStatus(ctx context.Context, actor domain.Actor, status domain.OrderStatus) ([]domain.Order, error)
	ListByCustomer(ctx context.Context, actor domain.Actor, customerID string) ([]domain.Order, error)
}

type dispatchUsecase interface {
	Assign(ctx context.Context, actor domain.Actor, orderID, driverID, vehicleID string) (*domain.Assignment, error)
	AutoMatch(ctx context.Context, actor domain.Actor, orderID string) (*domain.Assignment, error)
	Accept(ctx context.Context, actor domain.Actor, assignmentID string) (*domain.Assignment, error)
	Reject(ctx context.Context, actor domain.Actor, assignmentID, reason string) (*domain.Assignment, error)
	PickUp(ctx context.Context, actor domain.Actor, assignmentID string) (*domain.Assignment, error)
	Complete(ctx context.Context, actor domain.Actor, assignmentID string) (*domain.Assignment, error)
	Cancel(ctx context.Context, actor domain.Actor, assignmentID, reason string) (*domain.Assignment, error)
	Get(ctx context.Context, actor domain.Actor, id string) (*domain.Assignment, error)
	ListActive(ctx context.Context, actor domain.Actor) ([]domain.Assignment, error)
	ListByDriver(ctx context.Context, actor domain.Actor, driverID string) ([]domain.Assignment, error)
}

type walletUsecase interface {
	Balance(ctx context.Context, actor domain.Actor, driverID string) (*domain.Wallet, error)
	Transactions(ctx context.Context, actor domain.Actor, driverID string) ([]domain.Transaction, error)
	RequestWithdrawal(ctx context.Context, actor domain.Actor, driverID string, amount domain.Money, destination string) (*domain.Transaction, error)
}
