package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sm8ta/webike_rental_nikita/internal/core/domain"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the hold only if it still belongs to the caller.
var releaseScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('DEL', KEYS[1])
end
return 0
`)

// Locker holds bikes across every instance sharing the redis. Holds expire
// after ttl so a crashed holder cannot block a bike forever.
type Locker struct {
	client *redis.Client
	ttl    time.Duration
}

func NewLocker(client *redis.Client, ttl time.Duration) *Locker {
	return &Locker{client: client, ttl: ttl}
}

func (l *Locker) Acquire(ctx context.Context, bikeID int64) (func(), error) {
	key := fmt.Sprintf("hold:bike:%d", bikeID)
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to hold bike: %w", err)
	}
	if !ok {
		return nil, domain.ErrBikeUnavailable
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			_ = releaseScript.Run(context.Background(), l.client, []string{key}, token).Err()
		})
	}, nil
}
