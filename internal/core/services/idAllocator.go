package services

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/sm8ta/webike_rental_nikita/internal/core/domain"
)

type IDPolicy string

const (
	// SequentialPolicy hands out max(existing)+1. Unique only for one writer,
	// which the repository unit of work guarantees per store.
	SequentialPolicy IDPolicy = "sequential"
	// TimestampPolicy uses the current time in ms, strictly increasing per
	// allocator.
	TimestampPolicy IDPolicy = "timestamp"
	// RandomPolicy draws a 6 digit code. Callers re-draw on collision.
	RandomPolicy IDPolicy = "random"
)

const (
	RentalIDPrefix      = "RNT"
	TransactionIDPrefix = "TXN"
)

// PolicyFor returns the identifier policy of an entity class.
func PolicyFor(class domain.EntityClass) IDPolicy {
	switch class {
	case domain.BikeEntity:
		return SequentialPolicy
	case domain.TransactionEntity:
		return RandomPolicy
	default:
		return TimestampPolicy
	}
}

type IDAllocator struct {
	mu   sync.Mutex
	now  func() time.Time
	last int64
	rand func(n int) int
}

func NewIDAllocator() *IDAllocator {
	return &IDAllocator{now: time.Now, rand: rand.Intn}
}

// NextSequential returns the next catalog id given the ids already in use.
func (a *IDAllocator) NextSequential(existing []int64) int64 {
	var top int64
	for _, id := range existing {
		top = max(top, id)
	}
	return top + 1
}

// NextTimestamp returns the current time in ms, bumped past the last value it
// handed out.
func (a *IDAllocator) NextTimestamp() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	ts := max(a.now().UnixMilli(), a.last+1)
	a.last = ts
	return ts
}

func (a *IDAllocator) NextRentalID() string {
	return fmt.Sprintf("%s%d", RentalIDPrefix, a.NextTimestamp())
}

// maxTransactionIDDraws bounds the re-draws of NextTransactionID. It runs
// inside a unit of work, so it must give up rather than hold the store.
const maxTransactionIDDraws = 1000

// NextTransactionID draws TXN followed by six digits, retrying while taken
// reports a collision.
func (a *IDAllocator) NextTransactionID(taken func(id string) bool) (string, error) {
	for i := 0; i < maxTransactionIDDraws; i++ {
		a.mu.Lock()
		n := 100000 + a.rand(900000)
		a.mu.Unlock()

		id := fmt.Sprintf("%s%d", TransactionIDPrefix, n)
		if taken == nil || !taken(id) {
			return id, nil
		}
	}
	return "", fmt.Errorf("%w: %d transaction id draws collided", domain.ErrIDsExhausted, maxTransactionIDDraws)
}
