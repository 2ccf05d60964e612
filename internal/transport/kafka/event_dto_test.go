package kafka_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"service-dispatch/internal/events"
	"service-dispatch/internal/transport/kafka"
)

func TestToDomain_TrimsAndCopiesFields(t *testing.T) {
	t.Parallel()

	ts := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	dto := kafka.EventDTO{
		ID:          " ev-1 ",
		Type:        "  order.status_changed  ",
		AggregateID: "  order-1  ",
		Version:     3,
		OccurredAt:  ts,
		CustomerID:  "cust-1",
		Data:        map[string]any{"to": "pending"},
	}

	got := kafka.ToDomain(dto)

	require.Equal(t, events.Event{
		ID:          "ev-1",
		Type:        events.OrderStatusChanged,
		AggregateID: "order-1",
		Version:     3,
		OccurredAt:  ts,
		CustomerID:  "cust-1",
		Data:        map[string]any{"to": "pending"},
	}, got)
}
