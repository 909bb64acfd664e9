package shared

import (
	"errors"
	"fmt"
)

// Error kinds. Domain packages wrap these so transports can map failures
// without knowing every sentinel.
var (
	// ErrNotFound indicates resource not found, or not visible to the caller.
	ErrNotFound = errors.New("not found")
	// ErrValidation indicates the request failed a business rule.
	ErrValidation = errors.New("validation failed")
	// ErrConflict indicates a uniqueness or concurrency conflict.
	ErrConflict = errors.New("conflict")
	// ErrForbidden indicates the caller's role may not perform the action.
	ErrForbidden = errors.New("forbidden")
	// ErrUnauthorized indicates no authenticated principal.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrCSRFTokenMissing occurs when CSRF token missing.
	ErrCSRFTokenMissing = fmt.Errorf("%w: csrf token missing", ErrForbidden)
	// ErrCSRFTokenMismatch occurs when CSRF tokens do not match.
	ErrCSRFTokenMismatch = fmt.Errorf("%w: csrf token mismatch", ErrForbidden)
)

// UserSafeMessage returns a message that can be shown to end users.
func UserSafeMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return "The requested record was not found."
	case errors.Is(err, ErrValidation), errors.Is(err, ErrConflict):
		return err.Error()
	case errors.Is(err, ErrForbidden):
		return "You do not have permission to perform this action."
	case errors.Is(err, ErrUnauthorized), errors.Is(err, ErrInvalidCredentials):
		return "Please sign in again."
	default:
		return "Something went wrong. Please try again."
	}
}

// IsClientError reports failures caused by the request rather than the server.
func IsClientError(err error) bool {
	for _, kind := range []error{ErrNotFound, ErrValidation, ErrConflict, ErrForbidden, ErrUnauthorized, ErrInvalidCredentials} {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}
