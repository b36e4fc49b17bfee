package core

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when an entity is absent or owned by someone else.
	// The two cases are deliberately indistinguishable.
	ErrNotFound = errors.New("not found")

	// ErrConflict signals a lost compare-and-swap on a wallet version.
	ErrConflict = errors.New("concurrent update conflict")

	ErrForbidden = errors.New("forbidden")
)

// Validation sentinels. They are *ValidationError values so callers can use
// either errors.Is or errors.As.
var (
	ErrInvalidAmount      = &ValidationError{Field: "amount", Reason: "must be greater than zero"}
	ErrAmountOutOfRange   = &ValidationError{Field: "amount", Reason: "out of range"}
	ErrInvalidKind        = &ValidationError{Field: "kind", Reason: "must be expense, income or transfer"}
	ErrMissingDate        = &ValidationError{Field: "date", Reason: "cannot be empty"}
	ErrMissingWallet      = &ValidationError{Field: "wallet_id", Reason: "no wallet could be resolved"}
	ErrMissingDestination = &ValidationError{Field: "dest_wallet_id", Reason: "transfers need a destination wallet"}
	ErrSameWallet         = &ValidationError{Field: "dest_wallet_id", Reason: "source and destination must differ"}
	ErrUnknownWallet      = &ValidationError{Field: "wallet_id", Reason: "wallet does not exist"}
	ErrUnknownCategory    = &ValidationError{Field: "category_id", Reason: "category does not exist"}
	ErrDescriptionTooLong = &ValidationError{Field: "description", Reason: "too long (max 500 characters)"}
	ErrEmptyName          = &ValidationError{Field: "name", Reason: "cannot be empty"}
	ErrNameTooLong        = &ValidationError{Field: "name", Reason: "too long (max 100 characters)"}
	ErrInvalidWindow      = &ValidationError{Field: "end_date", Reason: "must not be before start_date"}
	ErrInvalidDirection   = &ValidationError{Field: "direction", Reason: "must be income or expense"}
	ErrCategoryCycle      = &ValidationError{Field: "parent_id", Reason: "would create a cycle"}
	ErrEmailTaken         = &ValidationError{Field: "email", Reason: "already registered"}
	ErrInvalidToken       = &ValidationError{Field: "token", Reason: "invalid or expired"}
	ErrEmptyText          = &ValidationError{Field: "text", Reason: "cannot be empty"}
)

// ValidationError reports malformed input. No state was mutated.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid input: " + e.Reason
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NotFoundError wraps ErrNotFound with the entity name.
func NotFoundError(entity string) error {
	return fmt.Errorf("%s %w", entity, ErrNotFound)
}

// ConsistencyError reports a failed atomic sequence. Everything was rolled back.
type ConsistencyError struct {
	Op  string
	Err error
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *ConsistencyError) Unwrap() error { return e.Err }

// CollaboratorError reports a failing external collaborator. Suggestion and
// chat failures are logged and degraded; only an explicit export surfaces it.
type CollaboratorError struct {
	Collaborator string
	Err          error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("%s collaborator: %v", e.Collaborator, e.Err)
}

func (e *CollaboratorError) Unwrap() error { return e.Err }

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
