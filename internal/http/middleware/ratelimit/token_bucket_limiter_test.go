package ratelimit

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(t time.Time) *fakeClock { return &fakeClock{now: t} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Add(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestTokenBucketLimiter_BurstThenBlocksThenRefills(t *testing.T) {
	t.Parallel()

	clk := newFakeClock(time.Unix(0, 0))
	l := NewTokenBucketLimiter(clk, Config{Budget: Budget{Rate: 1, Burst: 2}})

	require.True(t, l.Allow("ip:1"))
	require.True(t, l.Allow("ip:1"))
	require.False(t, l.Allow("ip:1"), "bucket empty")

	clk.Add(time.Second)
	require.True(t, l.Allow("ip:1"), "one token refilled")
	require.False(t, l.Allow("ip:1"))

	clk.Add(10 * time.Second)
	require.True(t, l.Allow("ip:1"))
	require.True(t, l.Allow("ip:1"))
	require.False(t, l.Allow("ip:1"), "refill is capped by burst")
}

func TestTokenBucketLimiter_IsPerKey(t *testing.T) {
	t.Parallel()

	l := NewTokenBucketLimiter(newFakeClock(time.Unix(0, 0)), Config{Budget: Budget{Rate: 1, Burst: 1}})

	require.True(t, l.Allow("actor:driver:d1"))
	require.False(t, l.Allow("actor:driver:d1"))
	require.True(t, l.Allow("actor:driver:d2"))
}

func TestTokenBucketLimiter_Overrides(t *testing.T) {
	t.Parallel()

	l := NewTokenBucketLimiter(newFakeClock(time.Unix(0, 0)), Config{
		Budget: Budget{Rate: 1, Burst: 1},
		Overrides: []Override{
			{Prefix: "actor:admin:", Budget: Budget{Rate: 10, Burst: 3}},
		},
	})

	for i := 0; i < 3; i++ {
		require.True(t, l.Allow("actor:admin:a1"), "admin request %d", i+1)
	}
	require.False(t, l.Allow("actor:admin:a1"))

	require.True(t, l.Allow("actor:customer:c1"))
	require.False(t, l.Allow("actor:customer:c1"))
}

func TestTokenBucketLimiter_MaxBuckets(t *testing.T) {
	t.Parallel()

	l := NewTokenBucketLimiter(newFakeClock(time.Unix(0, 0)), Config{Budget: Budget{Rate: 1, Burst: 5}, MaxBuckets: 1})

	require.True(t, l.Allow("a"))
	require.False(t, l.Allow("b"), "no room for a new bucket")
	require.True(t, l.Allow("a"))
}

func TestTokenBucketLimiter_TTLCleanupRemovesIdleBuckets(t *testing.T) {
	t.Parallel()

	clk := newFakeClock(time.Unix(0, 0))
	l := NewTokenBucketLimiter(clk, Config{Budget: Budget{Rate: 10, Burst: 1}, TTL: 2 * time.Second})

	_ = l.Allow("A")
	_ = l.Allow("B")
	require.Len(t, l.buckets, 2)

	// cleanup runs at most once a minute
	clk.Add(59 * time.Second)
	_ = l.Allow("B")
	clk.Add(2 * time.Second)
	_ = l.Allow("B")

	require.NotContains(t, l.buckets, "A")
	require.Contains(t, l.buckets, "B")
}
