package shared

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrValidation indicates invalid input (empty required field, non-positive amount).
	ErrValidation = errors.New("validation failed")
	// ErrState indicates a transition attempted from an illegal state.
	ErrState = errors.New("illegal state transition")
	// ErrConflict indicates a duplicate reference or contention on a guarded update.
	ErrConflict = errors.New("conflict")
)

// Validationf wraps ErrValidation with a formatted message.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrValidation}, args...)...)
}

// Statef wraps ErrState with a formatted message.
func Statef(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrState}, args...)...)
}

// UserSafeMessage returns a message safe to surface to callers. Unexpected
// errors collapse to a generic message so internals do not leak.
func UserSafeMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound),
		errors.Is(err, ErrValidation),
		errors.Is(err, ErrState),
		errors.Is(err, ErrConflict):
		return err.Error()
	default:
		return "internal error"
	}
}
