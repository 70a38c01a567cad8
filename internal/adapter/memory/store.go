// Package memory holds process-local adapters: a record store, a cache and a
// bike locker. They back tests and single-instance deployments.
package memory

import (
	"context"
	"sync"

	"github.com/sm8ta/webike_rental_nikita/internal/core/domain"
	"github.com/sm8ta/webike_rental_nikita/internal/core/ports"
)

type Store struct {
	mu      sync.RWMutex
	records map[string][]byte
}

func NewStore() *Store {
	return &Store{records: map[string][]byte{}}
}

func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.records[key]
	if !ok {
		return nil, domain.ErrRecordNotFound
	}
	return append([]byte(nil), v...), nil
}

func (s *Store) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[key] = append([]byte(nil), value...)
	return nil
}

func (s *Store) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, key)
	return nil
}

// Atomic serializes units of work on the store lock. Writes are staged and
// only applied when fn succeeds.
func (s *Store) Atomic(ctx context.Context, _ []string, fn func(tx ports.RecordTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &storeTx{store: s, staged: map[string][]byte{}, removed: map[string]bool{}}
	if err := fn(tx); err != nil {
		return err
	}
	for key := range tx.removed {
		delete(s.records, key)
	}
	for key, v := range tx.staged {
		s.records[key] = v
	}
	return nil
}

type storeTx struct {
	store   *Store
	staged  map[string][]byte
	removed map[string]bool
}

func (tx *storeTx) Get(_ context.Context, key string) ([]byte, error) {
	if v, ok := tx.staged[key]; ok {
		return append([]byte(nil), v...), nil
	}
	if tx.removed[key] {
		return nil, domain.ErrRecordNotFound
	}
	v, ok := tx.store.records[key]
	if !ok {
		return nil, domain.ErrRecordNotFound
	}
	return append([]byte(nil), v...), nil
}

func (tx *storeTx) Set(key string, value []byte) {
	delete(tx.removed, key)
	tx.staged[key] = append([]byte(nil), value...)
}

func (tx *storeTx) Remove(key string) {
	delete(tx.staged, key)
	tx.removed[key] = true
}
