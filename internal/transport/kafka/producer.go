package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/IBM/sarama"

	"service-dispatch/internal/events"
)

var newSyncProducer = sarama.NewSyncProducer

// Producer writes events to a topic keyed by aggregate id, so every event of
// one aggregate lands on the same partition in version order.
type Producer struct {
	producer sarama.SyncProducer
	topic    string
}

// NewProducer creates a Kafka event sink. It returns nil, nil when Kafka is not configured.
func NewProducer(brokers []string, topic string) (*Producer, error) {
	if len(brokers) == 0 || strings.TrimSpace(topic) == "" {
		return nil, nil
	}

	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Idempotent = true
	cfg.Producer.Retry.Max = 3
	cfg.Net.MaxOpenRequests = 1

	p, err := newSyncProducer(brokers, cfg)
	if err != nil {
		return nil, err
	}
	return newProducer(p, topic), nil
}

func newProducer(p sarama.SyncProducer, topic string) *Producer {
	return &Producer{producer: p, topic: topic}
}

// Handle sends one event. It is meant to be subscribed to the bus, which retries failures.
func (p *Producer) Handle(_ context.Context, e events.Event) error {
	body, err := json.Marshal(FromDomain(e))
	if err != nil {
		return Permanent(fmt.Errorf("encode event %s: %w", e.ID, err))
	}
	_, _, err = p.producer.SendMessage(&sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(e.AggregateID),
		Value: sarama.ByteEncoder(body),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event_type"), Value: []byte(e.Type)},
			{Key: []byte("event_id"), Value: []byte(e.ID)},
		},
	})
	if err != nil {
		return fmt.Errorf("kafka send %s: %w", e.ID, err)
	}
	return nil
}

// Close flushes and closes the producer
func (p *Producer) Close() error {
	if p == nil {
		return nil
	}
	return p.producer.Close()
}
