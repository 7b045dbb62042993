package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/nckmackenzie/atarah-api/internal/ledger"
)

// ErrNotFound is returned when a requested document does not exist or has
// been soft-deleted.
var ErrNotFound = errors.New("not found")

// ErrForbidden is returned when the caller lacks the rights for an operation.
var ErrForbidden = errors.New("forbidden")

// ValidationFailedError carries business-rule violations out of a service so
// the handler can render them as a 400 with per-field details.
type ValidationFailedError struct {
	Errors []ledger.ValidationError
}

func (e *ValidationFailedError) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, ve := range e.Errors {
		msgs[i] = ve.Error()
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(msgs, "; "))
}

// NewValidationError wraps a single violation.
func NewValidationError(field, code, message string) *ValidationFailedError {
	return &ValidationFailedError{Errors: []ledger.ValidationError{{Field: field, Code: code, Message: message}}}
}

// AsValidationError unwraps err into a ValidationFailedError if it is one.
func AsValidationError(err error) (*ValidationFailedError, bool) {
	var ve *ValidationFailedError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}
