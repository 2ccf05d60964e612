package events

import (
	"context"
	"sync"
	"time"

	"service-dispatch/internal/logx"
)

type counter interface {
	Inc()
}

// Config describes delivery behaviour of the Bus.
type Config struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	QueueSize   int
}

func (c Config) withDefaults() Config {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 5
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = 100 * time.Millisecond
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 5 * time.Second
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 1024
	}
	return c
}

type subscriber struct {
	name  string
	h     Handler
	queue chan Event
}

// Bus is an in-process at-least-once event bus. Every subscriber has its own
// queue and sees events in publish order.
type Bus struct {
	cfg    Config
	logger logx.Logger

	published    counter
	deadLettered counter

	in chan Event

	mu      sync.Mutex
	subs    []*subscriber
	running bool
}

// NewBus creates a Bus. Counters may be nil.
func NewBus(cfg Config, logger logx.Logger, published, deadLettered counter) *Bus {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = logx.Nop()
	}
	return &Bus{
		cfg:          cfg,
		logger:       logger,
		published:    published,
		deadLettered: deadLettered,
		in:           make(chan Event, cfg.QueueSize),
	}
}

// Subscribe registers a handler. Subscribers must be added before Run.
func (b *Bus) Subscribe(name string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.running {
		b.logger.Warn("bus: subscribe after start ignored", logx.String("subscriber", name))
		return
	}
	b.subs = append(b.subs, &subscriber{name: name, h: h, queue: make(chan Event, b.cfg.QueueSize)})
}

// Publish enqueues events. It blocks while the queue is full and drops the
// remaining events when ctx is done. Free queue space always wins over a
// done ctx.
func (b *Bus) Publish(ctx context.Context, evs ...Event) {
	for i, e := range evs {
		select {
		case b.in <- e:
			b.countPublished()
			continue
		default:
		}
		select {
		case b.in <- e:
			b.countPublished()
		case <-ctx.Done():
			b.logger.Warn("bus: publish cancelled, events dropped",
				logx.Int("dropped", len(evs)-i),
				logx.String("type", string(e.Type)),
			)
			return
		}
	}
}

func (b *Bus) countPublished() {
	if b.published != nil {
		b.published.Inc()
	}
}

// Run dispatches events until ctx is cancelled.
func (b *Bus) Run(ctx context.Context) error {
	b.mu.Lock()
	b.running = true
	subs := append([]*subscriber(nil), b.subs...)
	b.mu.Unlock()

	var wg sync.WaitGroup
	defer wg.Wait()
	for _, s := range subs {
		wg.Add(1)
		go func(s *subscriber) {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case e := <-s.queue:
					b.deliver(ctx, s, e)
				}
			}
		}(s)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case e := <-b.in:
			for _, s := range subs {
				select {
				case s.queue <- e:
				case <-ctx.Done():
					return nil
				}
			}
		}
	}
}

func (b *Bus) deliver(ctx context.Context, s *subscriber, e Event) {
	var lastErr error
	for attempt := 1; attempt <= b.cfg.MaxAttempts; attempt++ {
		err := s.h(ctx, e)
		if err == nil {
			return
		}
		lastErr = err
		if ctx.Err() != nil || attempt == b.cfg.MaxAttempts {
			break
		}
		delay := backoff(b.cfg.BaseDelay, b.cfg.MaxDelay, attempt)
		b.logger.Warn("bus: handler failed, retrying",
			logx.String("subscriber", s.name),
			logx.String("event_id", e.ID),
			logx.String("type", string(e.Type)),
			logx.Int("attempt", attempt),
			logx.Duration("delay", delay),
			logx.Err(err),
		)
		if !sleepWithContext(ctx, delay) {
			break
		}
	}

	if b.deadLettered != nil {
		b.deadLettered.Inc()
	}
	b.logger.Error("bus: event dead-lettered",
		logx.String("subscriber", s.name),
		logx.String("event_id", e.ID),
		logx.String("type", string(e.Type)),
		logx.String("aggregate_id", e.AggregateID),
		logx.Err(lastErr),
	)
}

// backoff computes the retry delay
func backoff(base, max time.Duration, attempt int) time.Duration {
	d := base << (attempt - 1)
	if d > max || d <= 0 {
		return max
	}
	return d
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
