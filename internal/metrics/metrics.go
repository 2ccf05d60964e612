// Package metrics holds the service's Prometheus collectors. Constructors
// do not register; the container registers them once on the default registry.
package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "dispatch"

// NewRateLimitExceededTotal returns a counter of requests rejected by the rate limiter.
func NewRateLimitExceededTotal() prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rate_limit_exceeded_total",
		Help:      "Total number of rejected HTTP requests due to rate limiting",
	})
}

// NewAssignmentOutcomesTotal returns a counter of coordinator commands by operation and result.
func NewAssignmentOutcomesTotal() *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "assignment_outcomes_total",
		Help:      "Assignment coordinator commands by operation and result",
	}, []string{"op", "result"})
}

// NewWalletCreditsTotal returns a counter of delivery credits.
func NewWalletCreditsTotal() prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "wallet_credits_total",
		Help:      "Total number of wallet credits recorded",
	})
}

// NewWalletDebitsTotal returns a counter of withdrawals.
func NewWalletDebitsTotal() prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "wallet_debits_total",
		Help:      "Total number of wallet withdrawals recorded",
	})
}

// NewEventsPublishedTotal returns a counter of events accepted by the bus.
func NewEventsPublishedTotal() prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_published_total",
		Help:      "Total number of events published to the in-process bus",
	})
}

// NewEventsDeadLetteredTotal returns a counter of deliveries abandoned after retries.
func NewEventsDeadLetteredTotal() prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_dead_lettered_total",
		Help:      "Total number of event deliveries given up after all attempts",
	})
}

// NewGeocodeFailuresTotal returns a counter of failed geocoding lookups.
func NewGeocodeFailuresTotal() prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "geocode_failures_total",
		Help:      "Total number of geocoding lookups that failed",
	})
}

// Set bundles every collector the service exports.
type Set struct {
	RateLimitExceeded  prometheus.Counter
	AssignmentOutcomes *prometheus.CounterVec
	WalletCredits      prometheus.Counter
	WalletDebits       prometheus.Counter
	EventsPublished    prometheus.Counter
	EventsDeadLettered prometheus.Counter
	GeocodeFailures    prometheus.Counter
}

// NewSet builds all collectors.
func NewSet() *Set {
	return &Set{
		RateLimitExceeded:  NewRateLimitExceededTotal(),
		AssignmentOutcomes: NewAssignmentOutcomesTotal(),
		WalletCredits:      NewWalletCreditsTotal(),
		WalletDebits:       NewWalletDebitsTotal(),
		EventsPublished:    NewEventsPublishedTotal(),
		EventsDeadLettered: NewEventsDeadLetteredTotal(),
		GeocodeFailures:    NewGeocodeFailuresTotal(),
	}
}

// Register adds the set to reg. Collectors already registered are reused
// silently so tests can build several containers in one process.
func (s *Set) Register(reg prometheus.Registerer) error {
	for _, c := range s.collectors() {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

func (s *Set) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		s.RateLimitExceeded,
		s.AssignmentOutcomes,
		s.WalletCredits,
		s.WalletDebits,
		s.EventsPublished,
		s.EventsDeadLettered,
		s.GeocodeFailures,
	}
}
