package utils

import (
	"errors"
	"fmt"
)

// Error kinds. Specific errors wrap one of these, callers match with errors.Is.
var (
	ErrNotFound          = errors.New("not found")
	ErrValidation        = errors.New("validation failed")
	ErrConflict          = errors.New("conflict")
	ErrInvalidState      = errors.New("invalid state")
	ErrAmountMismatch    = errors.New("amount mismatch")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInfrastructure    = errors.New("infrastructure failure")
)

var (
	ErrCartNotFound        = fmt.Errorf("cart %w", ErrNotFound)
	ErrTransactionNotFound = fmt.Errorf("transaction %w", ErrNotFound)
	ErrItemNotFound        = fmt.Errorf("item %w", ErrNotFound)
	ErrProductNotFound     = fmt.Errorf("product %w", ErrNotFound)

	ErrProductInactive  = fmt.Errorf("%w: product is inactive", ErrValidation)
	ErrLockNotObtained  = fmt.Errorf("%w: transaction is being settled by another request", ErrConflict)
	ErrCartModified     = fmt.Errorf("%w: cart was modified concurrently", ErrConflict)
	ErrDuplicateReceipt = fmt.Errorf("%w: receipt number already taken", ErrConflict)
)

var kinds = []error{
	ErrNotFound,
	ErrValidation,
	ErrConflict,
	ErrInvalidState,
	ErrAmountMismatch,
	ErrInsufficientStock,
	ErrInfrastructure,
}

func NewValidationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func NewInvalidStateError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidState, fmt.Sprintf(format, args...))
}

// Infrastructure wraps err as ErrInfrastructure unless it already carries a kind.
func Infrastructure(err error) error {
	if err == nil {
		return nil
	}
	if KindOf(err) != nil {
		return err
	}
	return fmt.Errorf("%w: %v", ErrInfrastructure, err)
}

// KindOf returns the error kind err wraps, or nil for unclassified errors.
func KindOf(err error) error {
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}
