package ports

import (
	"context"

	"github.com/sm8ta/webike_rental_nikita/internal/core/domain"
)

// ChangeNotifier tells observers that a collection was rewritten.
type ChangeNotifier interface {
	Notify(ctx context.Context, event domain.ChangeEvent)
}

// EventPublisher ships domain events to a broker.
type EventPublisher interface {
	Publish(ctx context.Context, eventType string, key string, data any) error
	Close() error
}
