package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Event is the envelope every broker receives.
type Event struct {
	Type      string    `json:"type"`
	Key       string    `json:"key"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

// Encode wraps data in an Event stamped with the current time.
func Encode(eventType, key string, data any) ([]byte, error) {
	body, err := json.Marshal(Event{
		Type:      eventType,
		Key:       key,
		Timestamp: time.Now().UTC(),
		Data:      data,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}
	return body, nil
}

// Nop drops every event. It is used when no broker is configured.
type Nop struct{}

func (Nop) Publish(_ context.Context, _, _ string, _ any) error { return nil }

func (Nop) Close() error { return nil }
