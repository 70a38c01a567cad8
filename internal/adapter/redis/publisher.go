package redis

import (
	"context"
	"fmt"

	"github.com/sm8ta/webike_rental_nikita/internal/adapter/events"

	"github.com/redis/go-redis/v9"
)

const RentalsStream = "webike:rentals"

// StreamPublisher appends events to a redis stream.
type StreamPublisher struct {
	client *redis.Client
	stream string
}

func NewStreamPublisher(client *redis.Client, stream string) *StreamPublisher {
	return &StreamPublisher{client: client, stream: stream}
}

func (p *StreamPublisher) Publish(ctx context.Context, eventType, key string, data any) error {
	eventJSON, err := events.Encode(eventType, key, data)
	if err != nil {
		return err
	}

	args := &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]any{
			"event": eventJSON,
		},
	}
	if _, err := p.client.XAdd(ctx, args).Result(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// Close is a no-op; the client is owned by the app.
func (p *StreamPublisher) Close() error { return nil }
