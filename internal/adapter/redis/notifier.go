package redis

import (
	"context"
	"encoding/json"

	"github.com/sm8ta/webike_rental_nikita/internal/core/domain"
	"github.com/sm8ta/webike_rental_nikita/internal/core/ports"

	"github.com/redis/go-redis/v9"
)

const ChangesChannel = "webike:changes"

// ChangeRelay fans change events out to every instance. Notify publishes on
// the channel; Run delivers what arrives on it to the local notifier.
type ChangeRelay struct {
	client *redis.Client
	local  ports.ChangeNotifier
	logger ports.LoggerPort
}

func NewChangeRelay(client *redis.Client, local ports.ChangeNotifier, logger ports.LoggerPort) *ChangeRelay {
	return &ChangeRelay{client: client, local: local, logger: logger}
}

func (r *ChangeRelay) Notify(ctx context.Context, ev domain.ChangeEvent) {
	body, err := json.Marshal(ev)
	if err != nil {
		return
	}
	if err := r.client.Publish(ctx, ChangesChannel, body).Err(); err != nil {
		r.logger.Warn("Failed to relay change", map[string]interface{}{
			"error":      err.Error(),
			"collection": ev.Collection,
		})
		// Local observers still learn about the change.
		r.local.Notify(ctx, ev)
	}
}

// Run blocks until ctx is done.
func (r *ChangeRelay) Run(ctx context.Context) error {
	sub := r.client.Subscribe(ctx, ChangesChannel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return err
	}
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var ev domain.ChangeEvent
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				r.logger.Warn("Dropping malformed change", map[string]interface{}{
					"error": err.Error(),
				})
				continue
			}
			r.local.Notify(ctx, ev)
		}
	}
}
