package domain

import (
	"github.com/google/uuid"
)

type UserRole string

const (
	AdminRole UserRole = "admin"
	AppUser   UserRole = "appuser"
)

// TokenPayload is what a verified session token carries. SessionID scopes the
// currentUser/currentAdmin projections in the record store.
type TokenPayload struct {
	SessionID uuid.UUID
	Subject   string // email
	Role      UserRole
}
