// internal/errors/errors.go
package errors

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by the engine. Concrete errors wrap one of these
// sentinels so callers can branch with errors.Is and Map can pick a status.
var (
	// ErrValidation marks malformed input (coordinates, ages, preferences, ids).
	ErrValidation = errors.New("validation failed")

	// ErrNotFound marks a referenced profile, decision or match that is absent.
	ErrNotFound = errors.New("not found")

	// ErrConflict marks a uniqueness or state conflict that is not idempotent.
	ErrConflict = errors.New("conflict")

	// ErrBlocked marks a pair that was unmatched and can no longer interact.
	ErrBlocked = fmt.Errorf("%w: pair blocked", ErrConflict)

	// ErrDependencyUnavailable marks an unreachable cache or store.
	ErrDependencyUnavailable = errors.New("dependency unavailable")
)

// Validation wraps ErrValidation with a formatted message.
func Validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// NotFound wraps ErrNotFound with a formatted message.
func NotFound(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

// Conflict wraps ErrConflict with a formatted message.
func Conflict(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConflict, fmt.Sprintf(format, args...))
}

// Unavailable wraps a transport/storage failure as ErrDependencyUnavailable
// while keeping the cause in the chain.
func Unavailable(dependency string, cause error) error {
	if cause == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %w", ErrDependencyUnavailable, dependency, cause)
}
