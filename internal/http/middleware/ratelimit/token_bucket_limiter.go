package ratelimit

import (
	"strings"
	"sync"
	"time"
)

// Budget is a refill rate and a bucket capacity.
type Budget struct {
	Rate  float64 // tokens per second
	Burst int     // capacity
}

// Override applies a different budget to keys starting with Prefix.
type Override struct {
	Prefix string
	Budget
}

// Config stores TokenBucketLimiter settings.
type Config struct {
	Budget
	TTL        time.Duration // idle buckets are dropped after TTL; 0 keeps them
	MaxBuckets int           // new keys are denied once reached; 0 means unbounded
	// Overrides are matched in order; the first matching prefix wins.
	Overrides []Override
}

// TokenBucketLimiter is a per-key token bucket limiter.
type TokenBucketLimiter struct {
	cfg   Config
	clock Clock

	mu          sync.Mutex
	buckets     map[string]*bucket
	lastCleanup time.Time
}

type bucket struct {
	budget   Budget
	tokens   float64
	last     time.Time
	lastSeen time.Time
}

// NewTokenBucketLimiter creates a limiter with the given clock.
func NewTokenBucketLimiter(clock Clock, cfg Config) *TokenBucketLimiter {
	if clock == nil {
		clock = RealClock{}
	}
	cfg.Budget = cfg.Budget.normalized()
	for i := range cfg.Overrides {
		cfg.Overrides[i].Budget = cfg.Overrides[i].Budget.normalized()
	}
	if cfg.MaxBuckets < 0 {
		cfg.MaxBuckets = 0
	}
	return &TokenBucketLimiter{
		cfg:     cfg,
		clock:   clock,
		buckets: make(map[string]*bucket),
	}
}

func (b Budget) normalized() Budget {
	if b.Rate <= 0 {
		b.Rate = 1
	}
	if b.Burst <= 0 {
		b.Burst = 1
	}
	return b
}

// Allow takes a token from key's bucket.
func (l *TokenBucketLimiter) Allow(key string) bool {
	now := l.clock.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	l.cleanupLocked(now)

	b, ok := l.buckets[key]
	if !ok {
		if l.cfg.MaxBuckets > 0 && len(l.buckets) >= l.cfg.MaxBuckets {
			return false
		}
		budget := l.budgetFor(key)
		b = &bucket{budget: budget, tokens: float64(budget.Burst), last: now}
		l.buckets[key] = b
	}
	return b.take(now)
}

func (l *TokenBucketLimiter) budgetFor(key string) Budget {
	for _, o := range l.cfg.Overrides {
		if strings.HasPrefix(key, o.Prefix) {
			return o.Budget
		}
	}
	return l.cfg.Budget
}

func (b *bucket) take(now time.Time) bool {
	if dt := now.Sub(b.last); dt > 0 {
		b.tokens = min(b.tokens+dt.Seconds()*b.budget.Rate, float64(b.budget.Burst))
		b.last = now
	}
	b.lastSeen = now
	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// cleanupLocked drops idle buckets at most every max(TTL/2, 1m).
func (l *TokenBucketLimiter) cleanupLocked(now time.Time) {
	if l.cfg.TTL <= 0 {
		return
	}
	interval := max(l.cfg.TTL/2, time.Minute)
	if !l.lastCleanup.IsZero() && now.Sub(l.lastCleanup) < interval {
		return
	}
	l.lastCleanup = now

	for k, b := range l.buckets {
		if now.Sub(b.lastSeen) > l.cfg.TTL {
			delete(l.buckets, k)
		}
	}
}
