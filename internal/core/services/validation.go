package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sm8ta/webike_rental_nikita/internal/core/domain"

	"github.com/go-playground/validator/v10"
)

// validationError turns the first failing field of a validator error into a
// domain.ValidationError with a readable reason. messages is keyed by field
// name; unknown fields fall back to a generic reason.
func validationError(err error, messages map[string]string) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	fe := fieldErrs[0]
	if msg, ok := messages[fe.Field()]; ok {
		return domain.NewValidationError(fe.Field(), msg)
	}
	return domain.NewValidationError(fe.Field(), fmt.Sprintf("%s is invalid", strings.ToLower(fe.Field())))
}
