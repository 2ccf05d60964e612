//go:generate mockgen -source=contracts.go -destination=orders_mocks_test.go -package=orders_test

package orders

import (
	"context"

	"service-dispatch/internal/domain"
)

// MatchPort abstracts the subset of dispatch operations
// needed by orders Processor when handling order events
type MatchPort interface {
	AutoMatch(ctx context.Context, actor domain.Actor, orderID string) (*domain.Assignment, error)
}
