package memory

import (
	"context"
	"sync"

	"github.com/sm8ta/webike_rental_nikita/internal/core/domain"
)

// Locker holds bikes for the lifetime of a rental attempt in this process.
type Locker struct {
	mu   sync.Mutex
	held map[int64]struct{}
}

func NewLocker() *Locker {
	return &Locker{held: map[int64]struct{}{}}
}

func (l *Locker) Acquire(ctx context.Context, bikeID int64) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, busy := l.held[bikeID]; busy {
		return nil, domain.ErrBikeUnavailable
	}
	l.held[bikeID] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, bikeID)
			l.mu.Unlock()
		})
	}, nil
}
