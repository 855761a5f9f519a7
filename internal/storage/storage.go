package storage

import (
	"context"
	"encoding/json"
	"time"

	"geyserRelay/internal/event"
)

// Envelope is the stored representation of one event: its kind tag, slot,
// arrival time, and the broker payload encoding.
type Envelope struct {
	Kind       string          `json:"kind"`
	Slot       uint64          `json:"slot"`
	ReceivedAt string          `json:"receivedAt"`
	Payload    json.RawMessage `json:"payload"`
}

// NewEnvelope wraps an event for storage.
func NewEnvelope(ev event.Event, receivedAt time.Time) (Envelope, error) {
	payload, err := event.Marshal(ev)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		Kind:       ev.Kind().String(),
		Slot:       event.SlotOf(ev),
		ReceivedAt: receivedAt.UTC().Format(time.RFC3339Nano),
		Payload:    payload,
	}, nil
}

// Writer defines a sink for event envelopes.
type Writer interface {
	WriteEvents(ctx context.Context, envelopes []Envelope) error
}
