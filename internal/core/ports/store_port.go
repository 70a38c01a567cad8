package ports

import "context"

// RecordStore persists serialized values under string keys. Get returns
// domain.ErrRecordNotFound for absent keys.
type RecordStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Remove(ctx context.Context, key string) error
	// Atomic runs fn against a consistent view of keys and applies its writes
	// all at once, or none of them when fn returns an error.
	Atomic(ctx context.Context, keys []string, fn func(tx RecordTx) error) error
}

// RecordTx is the view handed to RecordStore.Atomic. Writes are visible to
// later reads of the same tx.
type RecordTx interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(key string, value []byte)
	Remove(key string)
}

// BikeLocker grants short exclusive holds on a bike while a rental is in flight.
type BikeLocker interface {
	// Acquire returns domain.ErrBikeUnavailable when another holder owns the bike.
	Acquire(ctx context.Context, bikeID int64) (release func(), err error)
}
