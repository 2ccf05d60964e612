package app

import (
	"go.uber.org/dig"

	"service-dispatch/internal/config"
	"service-dispatch/internal/http/middleware/ratelimit"
	"service-dispatch/internal/logx"
	"service-dispatch/internal/metrics"
)

// Prefixes of ratelimit.KeyByActor keys that get the operator budget.
var operatorKeys = []string{"actor:admin:", "actor:system:"}

func newRateLimiter(cfg *config.Config, clock ratelimit.Clock) ratelimit.Limiter {
	rl := cfg.RateLimit
	if !rl.Enabled {
		return ratelimit.NopLimiter{}
	}
	overrides := make([]ratelimit.Override, 0, len(operatorKeys))
	for _, p := range operatorKeys {
		overrides = append(overrides, ratelimit.Override{
			Prefix: p,
			Budget: ratelimit.Budget{Rate: rl.Rate, Burst: rl.AdminBurst},
		})
	}
	return ratelimit.NewTokenBucketLimiter(clock, ratelimit.Config{
		Budget:     ratelimit.Budget{Rate: rl.Rate, Burst: rl.Burst},
		TTL:        rl.TTL,
		MaxBuckets: rl.MaxBuckets,
		Overrides:  overrides,
	})
}

func newRateLimitClock() ratelimit.Clock {
	return ratelimit.RealClock{}
}

type rateLimitIn struct {
	dig.In
	Logger  logx.Logger
	Metrics *metrics.Set
	Limiter ratelimit.Limiter
}

func newRateLimitMiddleware(in rateLimitIn) *ratelimit.Middleware {
	return ratelimit.New(in.Logger, in.Metrics.RateLimitExceeded, in.Limiter)
}
