package ratelimit

import "time"

// Limiter decides whether the bucket behind key may spend one token.
type Limiter interface {
	Allow(key string) bool
}

// Clock lets tests drive bucket refills.
type Clock interface {
	Now() time.Time
}

// RealClock reads the wall clock.
type RealClock struct{}

// Now implements Clock.
func (RealClock) Now() time.Time { return time.Now() }

// NopLimiter admits everything. It is used when rate limiting is switched off.
type NopLimiter struct{}

// Allow implements Limiter.
func (NopLimiter) Allow(string) bool { return true }
