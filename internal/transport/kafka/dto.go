package kafka

import (
	"strings"
	"time"

	"service-dispatch/internal/events"
)

// EventDTO is the wire form of events.Event on the topic
type EventDTO struct {
	ID          string         `json:"id"`
	Type        string         `json:"type"`
	AggregateID string         `json:"aggregate_id"`
	Version     int64          `json:"version"`
	OccurredAt  time.Time      `json:"occurred_at"`
	DriverID    string         `json:"driver_id,omitempty"`
	CustomerID  string         `json:"customer_id,omitempty"`
	Data        map[string]any `json:"data,omitempty"`
}

// ToDomain converts EventDTO to events.Event
func ToDomain(dto EventDTO) events.Event {
	return events.Event{
		ID:          strings.TrimSpace(dto.ID),
		Type:        events.Type(strings.TrimSpace(dto.Type)),
		AggregateID: strings.TrimSpace(dto.AggregateID),
		Version:     dto.Version,
		OccurredAt:  dto.OccurredAt,
		DriverID:    dto.DriverID,
		CustomerID:  dto.CustomerID,
		Data:        dto.Data,
	}
}

// FromDomain converts events.Event to EventDTO
func FromDomain(e events.Event) EventDTO {
	return EventDTO{
		ID:          e.ID,
		Type:        string(e.Type),
		AggregateID: e.AggregateID,
		Version:     e.Version,
		OccurredAt:  e.OccurredAt,
		DriverID:    e.DriverID,
		CustomerID:  e.CustomerID,
		Data:        e.Data,
	}
}
