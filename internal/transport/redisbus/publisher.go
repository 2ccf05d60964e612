// Package redisbus fans events out over Redis pub/sub.
package redisbus

import (
	"context"
	"encoding/json"
	"fmt"

	redis "github.com/redis/go-redis/v9"

	"service-dispatch/internal/events"
)

// Publisher publishes each event to a shared channel and, when the event
// concerns a driver or a customer, to that principal's own channel too.
type Publisher struct {
	rdb     redis.Cmdable
	channel string
}

// NewPublisher creates a Redis pub/sub sink.
func NewPublisher(rdb redis.Cmdable, channel string) *Publisher {
	if channel == "" {
		channel = "dispatch:events"
	}
	return &Publisher{rdb: rdb, channel: channel}
}

// Channels lists the channels an event is published to.
func (p *Publisher) Channels(e events.Event) []string {
	out := []string{p.channel}
	if e.DriverID != "" {
		out = append(out, p.channel+":driver:"+e.DriverID)
	}
	if e.CustomerID != "" {
		out = append(out, p.channel+":customer:"+e.CustomerID)
	}
	return out
}

// Handle publishes one event.
func (p *Publisher) Handle(ctx context.Context, e events.Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode event %s: %w", e.ID, err)
	}
	pipe := p.rdb.Pipeline()
	for _, ch := range p.Channels(e) {
		pipe.Publish(ctx, ch, data)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis publish %s: %w", e.ID, err)
	}
	return nil
}

// Subscribe decodes events from the given channels until ctx is done.
// Malformed payloads are skipped.
func Subscribe(ctx context.Context, rdb *redis.Client, channels ...string) (<-chan events.Event, error) {
	ps := rdb.Subscribe(ctx, channels...)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}

	out := make(chan events.Event, 16)
	go func() {
		defer close(out)
		defer ps.Close()
		msgs := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var e events.Event
				if err := json.Unmarshal([]byte(msg.Payload), &e); err != nil {
					continue
				}
				select {
				case out <- e:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
