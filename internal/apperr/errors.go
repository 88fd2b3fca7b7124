// Package apperr defines the error taxonomy shared by the dispatch engine,
// the publisher adapters and the AI facade.
package apperr

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned by owner-scoped lookups when the row is absent or
// belongs to another user.
var ErrNotFound = errors.New("not found")

// InvalidInputError is bad caller input. It is never retried.
type InvalidInputError struct {
	Field   string
	Message string
}

func (e *InvalidInputError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("invalid input: %s: %s", e.Field, e.Message)
	}
	return "invalid input: " + e.Message
}

func InvalidInput(field, format string, args ...any) *InvalidInputError {
	return &InvalidInputError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// DecryptionError means a stored secret could not be opened with the
// process key: corrupt, foreign or missing ciphertext.
type DecryptionError struct {
	Cause error
}

func (e *DecryptionError) Error() string {
	if e.Cause == nil {
		return "decryption failed"
	}
	return "decryption failed: " + e.Cause.Error()
}

func (e *DecryptionError) Unwrap() error { return e.Cause }

// PublishError wraps any network, protocol or status failure from a platform.
type PublishError struct {
	Provider string
	Cause    error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("publish to %s failed: %v", e.Provider, e.Cause)
}

func (e *PublishError) Unwrap() error { return e.Cause }

func Publish(provider string, format string, args ...any) *PublishError {
	return &PublishError{Provider: provider, Cause: fmt.Errorf(format, args...)}
}

// UnsupportedProviderError is returned when no adapter is registered for a
// provider name.
type UnsupportedProviderError struct {
	Provider string
}

func (e *UnsupportedProviderError) Error() string {
	return fmt.Sprintf("unsupported provider %q", e.Provider)
}

// Attempt is the outcome of one provider call made by the AI facade.
type Attempt struct {
	Provider string
	Err      error
}

// AllProvidersExhaustedError carries the last failure of every provider
// that was attempted.
type AllProvidersExhaustedError struct {
	Op       string
	Attempts []Attempt
}

func (e *AllProvidersExhaustedError) Error() string {
	if len(e.Attempts) == 0 {
		return fmt.Sprintf("%s: all providers exhausted: no provider credentials available", e.Op)
	}
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, fmt.Sprintf("%s: %v", a.Provider, a.Err))
	}
	return fmt.Sprintf("%s: all providers exhausted: %s", e.Op, strings.Join(parts, "; "))
}

// Unwrap exposes every attempt error to errors.Is / errors.As.
func (e *AllProvidersExhaustedError) Unwrap() []error {
	errs := make([]error, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		errs = append(errs, a.Err)
	}
	return errs
}
