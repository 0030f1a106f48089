package models

import (
	"errors"
	"fmt"
)

var (
	ErrValidation           = errors.New("validation failed")
	ErrInsufficientBalance  = errors.New("insufficient available balance")
	ErrInsufficientLocked   = errors.New("insufficient locked balance")
	ErrInvalidUnlock        = errors.New("unlock amount exceeds locked balance")
	ErrDuplicateTransaction = errors.New("transaction already processed")
	ErrNotFound             = errors.New("not found")
	ErrStorage              = errors.New("storage failure")

	// ErrLockNotFound means the trade has no open escrow lock held by the
	// given trader in the given currency.
	ErrLockNotFound = errors.New("no open escrow lock for trade")

	// ErrBalanceConstraint is returned by a store when a conditional balance
	// update would break total/locked/available invariants.
	ErrBalanceConstraint = errors.New("balance constraint violated")
)

// ValidationError describes malformed input. It matches ErrValidation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Invalid is shorthand for a *ValidationError.
func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// StorageError wraps err so that it matches ErrStorage.
func StorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %w", ErrStorage, op, err)
}
