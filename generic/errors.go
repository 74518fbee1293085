/*
errors.go - Centralized error types for the freight engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Domain packages wrap these errors with additional context.

ERROR CATEGORIES:
  1. Lookup errors     - Referenced record does not exist
  2. Validation errors - Malformed input or configuration
  3. Lifecycle errors  - Illegal state transitions (cascade-safety)
  4. Ledger errors     - Edits against locked or engine-owned payables

  Business-rule outcomes of assignment operations (inactive driver, time
  conflict, too few stops) are NOT errors. They are returned as
  dispatch.Result values.

USAGE:
  if errors.Is(err, generic.ErrInvalidTransition) {
      // 409 Conflict
  }

  var te *generic.TransitionError
  if errors.As(err, &te) {
      log.Printf("cannot move %s from %s to %s", te.ID, te.From, te.To)
  }

SEE ALSO:
  - settlement/service.go: Raises TransitionError
  - pay/ledger.go: Raises ErrSettlementLocked / ErrSystemPayableReadOnly
  - api/handlers.go: Maps errors to HTTP status codes
*/
package generic

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNotFound is returned when a referenced record doesn't exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput is returned for malformed requests or configuration.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidTransition is returned when a lifecycle transition is not allowed
	// from the current state. Nothing is mutated when this is returned.
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrSettlementLocked is returned when editing payables or adjustments of a
	// settlement that is no longer DRAFT.
	ErrSettlementLocked = errors.New("settlement is locked")

	// ErrSystemPayableReadOnly is returned when a user tries to edit or delete an
	// engine-owned SYSTEM payable.
	ErrSystemPayableReadOnly = errors.New("system payables are managed by the pay engine")

	// ErrPayableLocked is returned when a locked payable is edited without unlocking it first.
	ErrPayableLocked = errors.New("payable is locked")

	// ErrReasonRequired is returned when voiding without a reason.
	ErrReasonRequired = errors.New("reason is required")

	// ErrDefaultConflict is returned when a second default would be committed
	// for the same scope. Writes normally demote the previous default first.
	ErrDefaultConflict = errors.New("default already exists")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// NotFoundError names the missing record.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Entity, e.ID)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// NewNotFound builds a NotFoundError.
func NewNotFound(entity, id string) error {
	return &NotFoundError{Entity: entity, ID: id}
}

// TransitionError describes a rejected lifecycle transition.
type TransitionError struct {
	Entity string
	ID     string
	From   string
	To     string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s %s cannot move from %s to %s", e.Entity, e.ID, e.From, e.To)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}

// ValidationError provides details about a single invalid field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// NewValidation builds a ValidationError.
func NewValidation(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrReasonRequired)
}

// IsConflict returns true if the request is well-formed but the current
// state of the record forbids it.
func IsConflict(err error) bool {
	return errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrSettlementLocked) ||
		errors.Is(err, ErrSystemPayableReadOnly) ||
		errors.Is(err, ErrPayableLocked) ||
		errors.Is(err, ErrDefaultConflict)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
