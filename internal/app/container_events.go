package app

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/dig"

	"service-dispatch/internal/config"
	"service-dispatch/internal/events"
	"service-dispatch/internal/logx"
	"service-dispatch/internal/metrics"
	"service-dispatch/internal/service/orders"
	"service-dispatch/internal/transport/amqp"
	"service-dispatch/internal/transport/kafka"
	"service-dispatch/internal/transport/redisbus"
	"service-dispatch/internal/transport/ws"
)

const dedupeTTL = 24 * time.Hour

// sinks are the optional outbound transports fed by the bus.
type sinks struct {
	kafka       *kafka.Producer
	amqp        *amqp.Publisher
	redisClient *redis.Client
	redis       *redisbus.Publisher
}

func newSinks(cfg *config.Config, logger logx.Logger) (*sinks, error) {
	s := &sinks{}

	producer, err := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
	if err != nil {
		return nil, err
	}
	s.kafka = producer

	pub, err := amqp.Dial(cfg.AMQP.URL, cfg.AMQP.Exchange)
	if err != nil {
		s.close(logger)
		return nil, err
	}
	s.amqp = pub

	if cfg.Redis.Addr != "" {
		s.redisClient = redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
		s.redis = redisbus.NewPublisher(s.redisClient, cfg.Redis.Channel)
	}

	logger.Info("event sinks configured",
		logx.Bool("kafka", s.kafka != nil),
		logx.Bool("amqp", s.amqp != nil),
		logx.Bool("redis", s.redis != nil),
	)
	return s, nil
}

func (s *sinks) subscribe(bus *events.Bus) {
	if s.kafka != nil {
		bus.Subscribe("kafka", s.kafka.Handle)
	}
	if s.amqp != nil {
		bus.Subscribe("amqp", s.amqp.Handle)
	}
	if s.redis != nil {
		bus.Subscribe("redis", s.redis.Handle)
	}
}

func (s *sinks) close(logger logx.Logger) {
	if s.kafka != nil {
		if err := s.kafka.Close(); err != nil {
			logger.Error("kafka producer close error", logx.Err(err))
		}
	}
	if s.amqp != nil {
		if err := s.amqp.Close(); err != nil {
			logger.Error("amqp close error", logx.Err(err))
		}
	}
	if s.redisClient != nil {
		if err := s.redisClient.Close(); err != nil {
			logger.Error("redis close error", logx.Err(err))
		}
	}
}

func newDeduper(s *sinks) events.Deduper {
	if s.redisClient != nil {
		return events.NewRedisDeduper(s.redisClient, "dispatch:dedupe:", dedupeTTL)
	}
	return events.NewMemoryDeduper(0)
}

func newBus(cfg *config.Config, logger logx.Logger, m *metrics.Set) *events.Bus {
	return events.NewBus(events.Config{
		MaxAttempts: cfg.Events.MaxAttempts,
		QueueSize:   cfg.Events.QueueSize,
	}, logger, m.EventsPublished, m.EventsDeadLettered)
}

func registerEvents(container *dig.Container) error {
	return provideAll(container,
		newSinks,
		newDeduper,
		newBus,
		func(b *events.Bus) events.Publisher { return b },
	)
}

// wiredBus is the bus after every subscriber has been attached.
type wiredBus struct {
	*events.Bus
}

type serverBusIn struct {
	dig.In
	Cfg       *config.Config
	Logger    logx.Logger
	Bus       *events.Bus
	Sinks     *sinks
	Deduper   events.Deduper
	Processor *orders.Processor
	Hub       *ws.Hub
}

func newServerBus(in serverBusIn) *wiredBus {
	in.Sinks.subscribe(in.Bus)
	in.Bus.Subscribe("ws", in.Hub.Handle)
	if in.Cfg.Dispatch.AutoMatch {
		in.Bus.Subscribe("auto-match", events.Idempotent("auto-match", in.Deduper, in.Processor.Handle))
		in.Logger.Info("in-process auto-match enabled")
	}
	return &wiredBus{Bus: in.Bus}
}

func newWorkerBus(bus *events.Bus, s *sinks) *wiredBus {
	s.subscribe(bus)
	return &wiredBus{Bus: bus}
}

func registerAutoMatch(container *dig.Container) error {
	return provideAll(container, newServerBus)
}

func newOrdersConsumer(cfg *config.Config, logger logx.Logger, p *orders.Processor, d events.Deduper) (*kafka.Consumer, error) {
	return kafka.NewConsumer(logger, cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.Topic, makeOrdersKafka(p, d, logger))
}

func registerWorker(container *dig.Container) error {
	return provideAll(container, newWorkerBus, newOrdersConsumer)
}

// expirer is the subset of the coordinator the expiry loop needs.
type expirer interface {
	ExpireOffers(ctx context.Context) (int, error)
}
