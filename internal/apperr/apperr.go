package apperr

import (
	"errors"
	"fmt"
	"net/http"

	"gorm.io/gorm"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("not enough rights")
	ErrValidation   = errors.New("validation failed")
	ErrDuplicate    = errors.New("must be unique")
)

// Validationf wraps ErrValidation with a user-facing message.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrValidation}, args...)...)
}

// Status maps the error taxonomy to an HTTP status code. Anything outside
// the taxonomy is an unexpected error and maps to 500.
func Status(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrDuplicate), errors.Is(err, gorm.ErrDuplicatedKey):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Message returns the user-facing message for err. Unexpected errors never
// leak their internal text, and store-level duplicate errors surface as the
// taxonomy's own wording.
func Message(err error) string {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicate.Error()
	}
	if Status(err) == http.StatusInternalServerError {
		return "something went wrong"
	}
	return err.Error()
}
