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

// UnitOfWork reads and rewrites whole collections inside one atomic store
// write. It is only valid inside the Update or View callback that created it.
type UnitOfWork struct {
	ctx     context.Context
	tx      ports.RecordTx
	now     func() time.Time
	markers map[domain.Collection]int64
	order   []domain.Collection
}

func (u *UnitOfWork) Bikes() ([]domain.Bike, error) { return getList[domain.Bike](u, domain.Bikes) }
func (u *UnitOfWork) SetBikes(v []domain.Bike) error { return setList(u, domain.Bikes, v) }

func (u *UnitOfWork) Users() ([]domain.User, error) { return getList[domain.User](u, domain.Users) }
func (u *UnitOfWork) SetUsers(v []domain.User) error { return setList(u, domain.Users, v) }

func (u *UnitOfWork) Admins() ([]domain.Admin, error) { return getList[domain.Admin](u, domain.Admins) }
func (u *UnitOfWork) SetAdmins(v []domain.Admin) error { return setList(u, domain.Admins, v) }

func (u *UnitOfWork) Rentals() ([]domain.Rental, error) {
	return getList[domain.Rental](u, domain.Rentals)
}
func (u *UnitOfWork) SetRentals(v []domain.Rental) error { return setList(u, domain.Rentals, v) }

func (u *UnitOfWork) Transactions() ([]domain.Transaction, error) {
	return getList[domain.Transaction](u, domain.Transactions)
}
func (u *UnitOfWork) SetTransactions(v []domain.Transaction) error {
	return setList(u, domain.Transactions, v)
}

func (u *UnitOfWork) Messages() ([]domain.Message, error) {
	return getList[domain.Message](u, domain.Messages)
}
func (u *UnitOfWork) SetMessages(v []domain.Message) error { return setList(u, domain.Messages, v) }

// Has reports whether a collection has ever been written.
func (u *UnitOfWork) Has(c domain.Collection) (bool, error) {
	_, err := u.tx.Get(u.ctx, c.Key())
	if errors.Is(err, domain.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read %s: %w", c, err)
	}
	return true, nil
}

func (u *UnitOfWork) SessionUser(sessionID string) (*domain.User, error) {
	raw, err := u.tx.Get(u.ctx, domain.SessionKey(domain.CurrentUserKey, sessionID))
	return decode[*domain.User](raw, err, nil)
}

// SetSessionUser stores the projection of user for the session.
func (u *UnitOfWork) SetSessionUser(sessionID string, user domain.User) error {
	return u.put(domain.SessionKey(domain.CurrentUserKey, sessionID), user.Session())
}

func (u *UnitOfWork) ClearSessionUser(sessionID string) {
	u.tx.Remove(domain.SessionKey(domain.CurrentUserKey, sessionID))
}

func (u *UnitOfWork) SessionAdmin(sessionID string) (*domain.Admin, error) {
	raw, err := u.tx.Get(u.ctx, domain.SessionKey(domain.CurrentAdminKey, sessionID))
	return decode[*domain.Admin](raw, err, nil)
}

func (u *UnitOfWork) SetSessionAdmin(sessionID string, admin domain.Admin) error {
	return u.put(domain.SessionKey(domain.CurrentAdminKey, sessionID), admin.Session())
}

func (u *UnitOfWork) ClearSessionAdmin(sessionID string) {
	u.tx.Remove(domain.SessionKey(domain.CurrentAdminKey, sessionID))
}

func (u *UnitOfWork) put(key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	u.tx.Set(key, data)
	return nil
}

func getList[T any](u *UnitOfWork, c domain.Collection) ([]T, error) {
	raw, err := u.tx.Get(u.ctx, c.Key())
	list, err := decode[[]T](raw, err, []T{})
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []T{}
	}
	return list, nil
}

func setList[T any](u *UnitOfWork, c domain.Collection, list []T) error {
	if list == nil {
		list = []T{}
	}
	if err := u.put(c.Key(), list); err != nil {
		return err
	}
	return u.bump(c)
}

// bump advances the change marker of c. Markers are strictly increasing even
// when the clock stalls or goes backwards.
func (u *UnitOfWork) bump(c domain.Collection) error {
	key, ok := c.MarkerKey()
	if !ok {
		return nil
	}
	if _, seen := u.markers[c]; seen {
		return nil
	}
	raw, err := u.tx.Get(u.ctx, key)
	prev, err := decode[int64](raw, err, 0)
	if err != nil {
		return err
	}
	marker := u.now().UnixMilli()
	if marker <= prev {
		marker = prev + 1
	}
	if err := u.put(key, marker); err != nil {
		return err
	}
	u.markers[c] = marker
	u.order = append(u.order, c)
	return nil
}

func (u *UnitOfWork) changes() []domain.ChangeEvent {
	events := make([]domain.ChangeEvent, 0, len(u.order))
	for _, c := range u.order {
		events = append(events, domain.ChangeEvent{Collection: c, Marker: u.markers[c]})
	}
	return events
}
