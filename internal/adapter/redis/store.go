package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/sm8ta/webike_rental_nikita/internal/core/domain"
	"github.com/sm8ta/webike_rental_nikita/internal/core/ports"

	"github.com/redis/go-redis/v9"
)

const maxTxAttempts = 10

// Store keeps records as plain redis strings under prefix.
type Store struct {
	client *redis.Client
	prefix string
}

func NewStore(client *redis.Client, prefix string) *Store {
	return &Store{client: client, prefix: prefix}
}

func (s *Store) key(k string) string { return s.prefix + k }

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	return get(ctx, s.client, s.key(key))
}

func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	return s.client.Set(ctx, s.key(key), value, 0).Err()
}

func (s *Store) Remove(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.key(key)).Err()
}

// Atomic watches every key, runs fn and commits its writes in MULTI/EXEC. If
// another client touched a watched key in between, fn runs again on fresh data.
func (s *Store) Atomic(ctx context.Context, keys []string, fn func(tx ports.RecordTx) error) error {
	watched := make([]string, len(keys))
	for i, k := range keys {
		watched[i] = s.key(k)
	}

	for attempt := 0; attempt < maxTxAttempts; attempt++ {
		err := s.client.Watch(ctx, func(rtx *redis.Tx) error {
			wtx := &watchTx{store: s, rtx: rtx, staged: map[string][]byte{}, removed: map[string]bool{}}
			if err := fn(wtx); err != nil {
				return err
			}
			if len(wtx.staged) == 0 && len(wtx.removed) == 0 {
				return nil
			}
			_, err := rtx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				for k := range wtx.removed {
					pipe.Del(ctx, s.key(k))
				}
				for k, v := range wtx.staged {
					pipe.Set(ctx, s.key(k), v, 0)
				}
				return nil
			})
			return err
		}, watched...)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("%w: gave up after %d attempts", domain.ErrConflict, maxTxAttempts)
}

type watchTx struct {
	store   *Store
	rtx     *redis.Tx
	staged  map[string][]byte
	removed map[string]bool
}

func (t *watchTx) Get(ctx context.Context, key string) ([]byte, error) {
	if v, ok := t.staged[key]; ok {
		return v, nil
	}
	if t.removed[key] {
		return nil, domain.ErrRecordNotFound
	}
	return get(ctx, t.rtx, t.store.key(key))
}

func (t *watchTx) Set(key string, value []byte) {
	delete(t.removed, key)
	t.staged[key] = append([]byte(nil), value...)
}

func (t *watchTx) Remove(key string) {
	delete(t.staged, key)
	t.removed[key] = true
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func get(ctx context.Context, c getter, key string) ([]byte, error) {
	data, err := c.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrRecordNotFound
	}
	return data, err
}
