package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"github.com/sm8ta/webike_rental_nikita/internal/core/domain"
	"github.com/sm8ta/webike_rental_nikita/internal/core/ports"

	"github.com/lib/pq"
)

// RecordStore keeps every record in one key/value table.
type RecordStore struct {
	db *sql.DB
}

func NewRecordStore(db *sql.DB) *RecordStore {
	return &RecordStore{
		db,
	}
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (r *RecordStore) Get(ctx context.Context, key string) ([]byte, error) {
	return get(ctx, r.db, key)
}

func (r *RecordStore) Set(ctx context.Context, key string, value []byte) error {
	return set(ctx, r.db, key, value)
}

func (r *RecordStore) Remove(ctx context.Context, key string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM records WHERE key = $1`, key); err != nil {
		return mapError(err)
	}
	return nil
}

// Atomic takes a transaction scoped advisory lock on every key, in sorted
// order, before running fn. Concurrent units of work over overlapping keys are
// therefore serialized.
func (r *RecordStore) Atomic(ctx context.Context, keys []string, fn func(tx ports.RecordTx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	sorted := append([]string(nil), keys...)
	sort.Strings(sorted)
	for _, key := range sorted {
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, key); err != nil {
			return mapError(err)
		}
	}

	rtx := &recordTx{ctx: ctx, tx: tx, staged: map[string][]byte{}, removed: map[string]bool{}}
	if err := fn(rtx); err != nil {
		return err
	}

	for key := range rtx.removed {
		if _, err := tx.ExecContext(ctx, `DELETE FROM records WHERE key = $1`, key); err != nil {
			return mapError(err)
		}
	}
	for key, value := range rtx.staged {
		if err := set(ctx, tx, key, value); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return mapError(err)
	}
	return nil
}

type recordTx struct {
	ctx     context.Context
	tx      *sql.Tx
	staged  map[string][]byte
	removed map[string]bool
}

func (t *recordTx) Get(ctx context.Context, key string) ([]byte, error) {
	if v, ok := t.staged[key]; ok {
		return v, nil
	}
	if t.removed[key] {
		return nil, domain.ErrRecordNotFound
	}
	return get(ctx, t.tx, key)
}

func (t *recordTx) Set(key string, value []byte) {
	delete(t.removed, key)
	t.staged[key] = append([]byte(nil), value...)
}

func (t *recordTx) Remove(key string) {
	delete(t.staged, key)
	t.removed[key] = true
}

func get(ctx context.Context, q querier, key string) ([]byte, error) {
	var value []byte
	err := q.QueryRowContext(ctx, `SELECT value FROM records WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrRecordNotFound
	}
	if err != nil {
		return nil, mapError(err)
	}
	return value, nil
}

func set(ctx context.Context, q querier, key string, value []byte) error {
	query := `INSERT INTO records (key, value, updated_at)
	VALUES ($1, $2, NOW())
	ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`

	if _, err := q.ExecContext(ctx, query, key, string(value)); err != nil {
		return mapError(err)
	}
	return nil
}

func mapError(err error) error {
	if pqErr, ok := err.(*pq.Error); ok {
		switch pqErr.Code {
		case "22P02":
			return fmt.Errorf("record is not valid json: %w", err)
		case "40001", "40P01":
			return fmt.Errorf("%w: %s", domain.ErrConflict, pqErr.Message)
		default:
			return err
		}
	}
	return err
}
