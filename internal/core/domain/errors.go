package domain

import (
	"errors"
	"fmt"
)

var (
	ErrRecordNotFound = errors.New("record not found")

	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("conflict")
	ErrNotAuthenticated   = errors.New("please login first")
	ErrInvalidCredentials = errors.New("invalid email or password")

	ErrBikeNotFound    = errors.New("bike not found")
	ErrBikeUnavailable = errors.New("bike is not available")

	ErrInvalidInput    = errors.New("invalid input")
	ErrPaymentDeclined = errors.New("invalid PIN, please try again")

	ErrPersistenceInconsistency = errors.New("payment captured but rental could not be recorded")
	ErrIDsExhausted             = errors.New("no free identifier left")
)

// ValidationError reports a malformed or out-of-range input. Reason is safe to
// show to the user.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

func NewValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// InconsistencyError is returned when a charge succeeded but the rental commit
// and its compensation both failed. It needs manual reconciliation.
type InconsistencyError struct {
	TransactionID string
	Err           error
}

func (e *InconsistencyError) Error() string {
	return fmt.Sprintf("%s (transaction %s): %v", ErrPersistenceInconsistency, e.TransactionID, e.Err)
}

func (e *InconsistencyError) Unwrap() []error {
	return []error{ErrPersistenceInconsistency, e.Err}
}
