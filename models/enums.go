package models

import (
	"encoding/json"
	"fmt"
)

type CartStatus string

const (
	CartStatusActive    CartStatus = "active"
	CartStatusCompleted CartStatus = "completed"
	CartStatusAbandoned CartStatus = "abandoned"
)

type TransactionType string

const (
	TransactionTypeSale   TransactionType = "sale"
	TransactionTypeReturn TransactionType = "return"
	TransactionTypeVoid   TransactionType = "void"
)

func (t TransactionType) IsValid() bool {
	switch t {
	case TransactionTypeSale, TransactionTypeReturn, TransactionTypeVoid:
		return true
	}
	return false
}

// StockSign is the direction settlement moves stock for this type:
// -1 removes stock, +1 puts it back, 0 leaves inventory untouched.
func (t TransactionType) StockSign() int {
	switch t {
	case TransactionTypeSale:
		return -1
	case TransactionTypeReturn:
		return 1
	default:
		return 0
	}
}

func (t *TransactionType) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	v := TransactionType(s)
	if !v.IsValid() {
		return fmt.Errorf("invalid transaction type %q", s)
	}
	*t = v
	return nil
}

type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusFailed    TransactionStatus = "failed"
	TransactionStatusVoided    TransactionStatus = "voided"
)

func (s TransactionStatus) IsValid() bool {
	switch s {
	case TransactionStatusPending, TransactionStatusCompleted, TransactionStatusFailed, TransactionStatusVoided:
		return true
	}
	return false
}

// CanTransitionTo encodes pending -> completed|failed and completed -> voided.
func (s TransactionStatus) CanTransitionTo(next TransactionStatus) bool {
	switch s {
	case TransactionStatusPending:
		return next == TransactionStatusCompleted || next == TransactionStatusFailed
	case TransactionStatusCompleted:
		return next == TransactionStatusVoided
	}
	return false
}

type MovementType string

const (
	MovementTypeSale         MovementType = "sale"
	MovementTypeReturn       MovementType = "return"
	MovementTypeVoidReversal MovementType = "void_reversal"
)
