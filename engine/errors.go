/*
errors.go - Centralized error types for the budget engine

PURPOSE:
  All engine error kinds in one place. Every error is synchronous and
  reported to the immediate caller; a failed summary or simulation returns
  no partial result. The engine has no I/O, so nothing here is retryable.

ERROR CATEGORIES:
  1. InvalidInput   - malformed calendar/date input
  2. InvalidRequest - unresolvable offer IDs, bad month windows
  3. Configuration  - missing or invalid org unit configuration
  4. NotFound       - referenced records that do not exist

USAGE:
  Callers translate with errors.Is:

    if errors.Is(err, engine.ErrInvalidRequest) {
        // 400 to the client
    }
*/
package engine

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidInput is returned for malformed calendar or date input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidRequest is returned for requests the engine refuses to
	// compute: unknown offer IDs, non-positive or oversized month windows.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrConfiguration is returned for missing or invalid org unit
	// configuration, such as a negative overhead multiplier.
	ErrConfiguration = errors.New("invalid configuration")

	// ErrNotFound is returned when a referenced record does not exist.
	ErrNotFound = errors.New("not found")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InvalidInputError reports malformed input with the offending field/value.
type InvalidInputError struct {
	Field   string
	Value   string
	Message string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Message)
}

func (e *InvalidInputError) Unwrap() error { return ErrInvalidInput }

// InvalidRequestError reports a request-level problem.
type InvalidRequestError struct {
	Field   string
	Message string
}

func (e *InvalidRequestError) Error() string {
	return fmt.Sprintf("invalid request: %s: %s", e.Field, e.Message)
}

func (e *InvalidRequestError) Unwrap() error { return ErrInvalidRequest }

// UnknownOffersError lists candidate offer IDs that did not resolve.
type UnknownOffersError struct {
	OfferIDs []OfferID
}

func (e *UnknownOffersError) Error() string {
	return fmt.Sprintf("unknown offer ids: %v", e.OfferIDs)
}

func (e *UnknownOffersError) Unwrap() error { return ErrInvalidRequest }

// ConfigurationError reports an org unit misconfiguration.
type ConfigurationError struct {
	OrgUnitID OrgUnitID
	Field     string
	Message   string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("org unit %s: %s: %s", e.OrgUnitID, e.Field, e.Message)
}

func (e *ConfigurationError) Unwrap() error { return ErrConfiguration }

// NotFoundError reports a missing record.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError reports whether the error is due to invalid caller input,
// as opposed to an internal failure.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrConfiguration)
}
