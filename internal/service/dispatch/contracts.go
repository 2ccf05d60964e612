package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"

	"service-dispatch/internal/domain"
)

// outcomeVec counts command outcomes by operation and result.
type outcomeVec interface {
	WithLabelValues(lvs ...string) prometheus.Counter
}

// creditObserver records a delivery credit committed by the coordinator.
type creditObserver interface {
	Observe(t *domain.Transaction)
}
