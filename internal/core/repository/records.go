// Package repository gives typed access to the collections kept in a
// ports.RecordStore. Every mutation goes through Update, which applies all
// writes of a unit of work atomically and bumps the change marker of each
// observed collection in the same write.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sm8ta/webike_rental_nikita/internal/core/domain"
	"github.com/sm8ta/webike_rental_nikita/internal/core/ports"
)

type Records struct {
	store    ports.RecordStore
	notifier ports.ChangeNotifier
	logger   ports.LoggerPort
	now      func() time.Time
}

func New(store ports.RecordStore, notifier ports.ChangeNotifier, logger ports.LoggerPort) *Records {
	return &Records{
		store:    store,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

// WithClock replaces the clock used for change markers.
func (r *Records) WithClock(now func() time.Time) *Records {
	r.now = now
	return r
}

// Scope lists the keys a unit of work touches: the collections, their change
// markers and any extra singleton keys.
func Scope(collections []domain.Collection, keys ...string) []string {
	scope := make([]string, 0, len(collections)*2+len(keys))
	for _, c := range collections {
		scope = append(scope, c.Key())
		if marker, ok := c.MarkerKey(); ok {
			scope = append(scope, marker)
		}
	}
	return append(scope, keys...)
}

// Update runs fn as one atomic unit of work over scope. Observers are notified
// of every collection fn rewrote once the write is committed.
func (r *Records) Update(ctx context.Context, scope []string, fn func(u *UnitOfWork) error) error {
	var changed []domain.ChangeEvent
	err := r.store.Atomic(ctx, scope, func(tx ports.RecordTx) error {
		u := &UnitOfWork{ctx: ctx, tx: tx, now: r.now, markers: map[domain.Collection]int64{}}
		if err := fn(u); err != nil {
			return err
		}
		changed = u.changes()
		return nil
	})
	if err != nil {
		return err
	}
	if r.notifier != nil {
		for _, ev := range changed {
			r.notifier.Notify(ctx, ev)
		}
	}
	return nil
}

// View runs fn against a consistent snapshot of scope. Writes made by fn are
// discarded.
func (r *Records) View(ctx context.Context, scope []string, fn func(u *UnitOfWork) error) error {
	errDiscard := errors.New("discard")
	err := r.store.Atomic(ctx, scope, func(tx ports.RecordTx) error {
		u := &UnitOfWork{ctx: ctx, tx: tx, now: r.now, markers: map[domain.Collection]int64{}}
		if err := fn(u); err != nil {
			return err
		}
		return errDiscard
	})
	if errors.Is(err, errDiscard) {
		return nil
	}
	return err
}

func (r *Records) Bikes(ctx context.Context) ([]domain.Bike, error) {
	return loadList[domain.Bike](ctx, r.store, domain.Bikes)
}

func (r *Records) Users(ctx context.Context) ([]domain.User, error) {
	return loadList[domain.User](ctx, r.store, domain.Users)
}

func (r *Records) Admins(ctx context.Context) ([]domain.Admin, error) {
	return loadList[domain.Admin](ctx, r.store, domain.Admins)
}

func (r *Records) Rentals(ctx context.Context) ([]domain.Rental, error) {
	return loadList[domain.Rental](ctx, r.store, domain.Rentals)
}

func (r *Records) Transactions(ctx context.Context) ([]domain.Transaction, error) {
	return loadList[domain.Transaction](ctx, r.store, domain.Transactions)
}

func (r *Records) Messages(ctx context.Context) ([]domain.Message, error) {
	return loadList[domain.Message](ctx, r.store, domain.Messages)
}

// SessionUser returns the currentUser projection of a session, nil when the
// session is logged out.
func (r *Records) SessionUser(ctx context.Context, sessionID string) (*domain.User, error) {
	raw, err := r.store.Get(ctx, domain.SessionKey(domain.CurrentUserKey, sessionID))
	return decode[*domain.User](raw, err, nil)
}

// SessionAdmin returns the currentAdmin projection of a session.
func (r *Records) SessionAdmin(ctx context.Context, sessionID string) (*domain.Admin, error) {
	raw, err := r.store.Get(ctx, domain.SessionKey(domain.CurrentAdminKey, sessionID))
	return decode[*domain.Admin](raw, err, nil)
}

// Markers returns the current change marker of every observed collection.
// Missing markers read as zero.
func (r *Records) Markers(ctx context.Context) (map[domain.Collection]int64, error) {
	markers := map[domain.Collection]int64{}
	for _, c := range ObservedCollections {
		key, _ := c.MarkerKey()
		raw, err := r.store.Get(ctx, key)
		marker, err := decode[int64](raw, err, 0)
		if err != nil {
			return nil, err
		}
		markers[c] = marker
	}
	return markers, nil
}

// ObservedCollections carry change markers.
var ObservedCollections = []domain.Collection{domain.Bikes, domain.Rentals, domain.Messages}

func loadList[T any](ctx context.Context, store ports.RecordStore, c domain.Collection) ([]T, error) {
	raw, err := store.Get(ctx, c.Key())
	list, err := decode[[]T](raw, err, []T{})
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []T{}
	}
	return list, nil
}

// decode unmarshals raw. Absent keys and malformed data yield def; only store
// failures are returned.
func decode[T any](raw []byte, getErr error, def T) (T, error) {
	if getErr != nil {
		if errors.Is(getErr, domain.ErrRecordNotFound) {
			return def, nil
		}
		return def, fmt.Errorf("failed to read record: %w", getErr)
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return def, nil
	}
	return v, nil
}
