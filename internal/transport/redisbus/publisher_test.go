package redisbus

import (
	"context"
	"os"
	"testing"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"service-dispatch/internal/events"
)

func TestPublisher_Channels(t *testing.T) {
	t.Parallel()

	p := NewPublisher(nil, "")
	ev := events.New(events.AssignmentOffered, "as-1", 1, time.Now(), nil).For("d1", "c1")

	require.Equal(t, []string{
		"dispatch:events",
		"dispatch:events:driver:d1",
		"dispatch:events:customer:c1",
	}, p.Channels(ev))

	require.Equal(t, []string{"dispatch:events"}, p.Channels(events.New(events.VehicleStatusChanged, "v1", 1, time.Now(), nil)))
}

func TestPublisher_RoundTrip(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}

	rdb := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = rdb.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	channel := "dispatch:test:" + time.Now().Format("150405.000000")
	sub, err := Subscribe(ctx, rdb, channel+":driver:d1")
	require.NoError(t, err)

	p := NewPublisher(rdb, channel)
	ev := events.New(events.WalletCredited, "d1", 4, time.Now().UTC(), map[string]any{"amount": 100}).For("d1", "")
	require.NoError(t, p.Handle(ctx, ev))

	select {
	case got := <-sub:
		require.Equal(t, ev.ID, got.ID)
		require.Equal(t, events.WalletCredited, got.Type)
	case <-ctx.Done():
		t.Fatal("event not received")
	}
}
