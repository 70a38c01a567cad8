package domain

// Collection names a persisted collection in the record store.
type Collection string

const (
	Bikes        Collection = "bikes"
	Users        Collection = "users"
	Admins       Collection = "admins"
	Rentals      Collection = "rentals"
	Transactions Collection = "transactions"
	Messages     Collection = "messages"
)

// Singleton keys holding session projections. They are suffixed with the
// session id, see SessionKey.
const (
	CurrentUserKey  = "currentUser"
	CurrentAdminKey = "currentAdmin"
)

// Key is the record store key of the collection.
func (c Collection) Key() string { return string(c) }

// MarkerKey returns the change marker key of the collection and false when the
// collection is not observed.
func (c Collection) MarkerKey() (string, bool) {
	switch c {
	case Bikes, Rentals, Messages:
		return string(c) + "_update_ts", true
	}
	return "", false
}

// SessionKey scopes a session projection key to one session. An empty id
// yields the bare key.
func SessionKey(base, sessionID string) string {
	if sessionID == "" {
		return base
	}
	return base + ":" + sessionID
}

// ChangeEvent signals that a collection was rewritten.
type ChangeEvent struct {
	Collection Collection `json:"collection"`
	Marker     int64      `json:"marker"`
}

// EntityClass selects the identifier policy of an entity.
type EntityClass string

const (
	BikeEntity        EntityClass = "bike"
	UserEntity        EntityClass = "user"
	AdminEntity       EntityClass = "admin"
	RentalEntity      EntityClass = "rental"
	TransactionEntity EntityClass = "transaction"
	MessageEntity     EntityClass = "message"
)
