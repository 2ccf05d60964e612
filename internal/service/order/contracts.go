//go:generate mockgen -source=contracts.go -destination=order_mocks_test.go -package=order

package order

import (
	"context"

	"service-dispatch/internal/domain"
)

// Geocoder resolves a free-form address into coordinates.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (domain.Location, error)
}
