package orders

import (
	"context"
	"strings"

	"service-dispatch/internal/events"
)

type actionFunc func(context.Context, events.Event) error

type actionFactory struct {
	byStatus map[string]actionFunc
}

// newActionFactory keys actions by the status an order moved to. An order
// becomes pending when it is placed and again when an offer is rejected or
// expires; both are reasons to look for a driver.
func newActionFactory(onPending actionFunc) *actionFactory {
	return &actionFactory{
		byStatus: map[string]actionFunc{
			"pending": onPending,
		},
	}
}

func (f *actionFactory) get(status string) (actionFunc, bool) {
	status = strings.ToLower(strings.TrimSpace(status))
	fn, ok := f.byStatus[status]
	return fn, ok
}
