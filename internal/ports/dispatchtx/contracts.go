package dispatchtx

import (
	"context"

	"service-dispatch/internal/domain"
)

// Repository is the transactional view over all dispatch aggregates.
//
// Getters return (nil, nil) when the row does not exist. Save methods insert
// when Version is 0 and otherwise update only if the stored version matches,
// returning apperr.ErrConflict on mismatch. On success the saved value's
// Version is incremented in place.
type Repository interface {
	GetVehicle(ctx context.Context, id string) (*domain.Vehicle, error)
	GetVehicleByRegistration(ctx context.Context, registration string) (*domain.Vehicle, error)
	ListVehicles(ctx context.Context, f domain.VehicleFilter) ([]domain.Vehicle, error)
	SaveVehicle(ctx context.Context, v *domain.Vehicle) error

	GetDriver(ctx context.Context, id string) (*domain.Driver, error)
	ListDrivers(ctx context.Context, f domain.DriverFilter) ([]domain.Driver, error)
	SaveDriver(ctx context.Context, d *domain.Driver) error

	GetOrder(ctx context.Context, id string) (*domain.Order, error)
	ListOrders(ctx context.Context, f domain.OrderFilter) ([]domain.Order, error)
	SaveOrder(ctx context.Context, o *domain.Order) error
	AppendTimeline(ctx context.Context, e domain.TimelineEntry) error
	Timeline(ctx context.Context, orderID string) ([]domain.TimelineEntry, error)

	GetAssignment(ctx context.Context, id string) (*domain.Assignment, error)
	ListAssignments(ctx context.Context, f domain.AssignmentFilter) ([]domain.Assignment, error)
	SaveAssignment(ctx context.Context, a *domain.Assignment) error
	AddExclusion(ctx context.Context, orderID, driverID string) error
	Excluded(ctx context.Context, orderID string) (map[string]bool, error)
	ClearExclusions(ctx context.Context, orderID string) error

	GetWallet(ctx context.Context, driverID string) (*domain.Wallet, error)
	SaveWallet(ctx context.Context, w *domain.Wallet) error
	GetTransactionByKey(ctx context.Context, key string) (*domain.Transaction, error)
	InsertTransaction(ctx context.Context, t *domain.Transaction) error
	ListTransactions(ctx context.Context, driverID string) ([]domain.Transaction, error)
}

// Runner runs a function against the repository atomically.
type Runner interface {
	// WithTx commits every write made by fn together, or none of them.
	WithTx(ctx context.Context, fn func(tx Repository) error) error
	// View runs fn against a consistent snapshot; writes are rejected.
	View(ctx context.Context, fn func(tx Repository) error) error
}
