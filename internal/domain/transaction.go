package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionKind is the lifecycle role of a transaction within a position.
type TransactionKind string

const (
	TxOpen  TransactionKind = "open"
	TxAdd   TransactionKind = "add"
	TxTrim  TransactionKind = "trim"
	TxClose TransactionKind = "close"
)

// Entry reports whether the transaction adds to the open quantity.
func (k TransactionKind) Entry() bool { return k == TxOpen || k == TxAdd }

// Exit reports whether the transaction reduces the open quantity.
func (k TransactionKind) Exit() bool { return k == TxTrim || k == TxClose }

// Valid reports whether k is one of the four known kinds.
func (k TransactionKind) Valid() bool { return k.Entry() || k.Exit() }

// Transaction is an immutable, timestamped event against one position. For
// options strategies Price carries the signed net cost of the combination.
// Quantity is decimal so fractional contracts survive round trips intact.
// Corrections are modelled as explicit delete-and-recreate, never in-place
// edits.
type Transaction struct {
	ID         string          `json:"id"`
	PositionID string          `json:"position_id"`
	Kind       TransactionKind `json:"kind"`
	Price      decimal.Decimal `json:"price"`
	Quantity   decimal.Decimal `json:"quantity"`
	ExecutedAt time.Time       `json:"executed_at"`
	CreatedAt  time.Time       `json:"created_at"`
}

// Validate checks the transaction's own fields; sequencing invariants (first
// must be open, no over-close) are enforced by the ledger reduction.
func (t Transaction) Validate() error {
	if !t.Kind.Valid() {
		return fmt.Errorf("%w: unknown transaction kind %q", ErrInvalidInput, t.Kind)
	}
	if t.Quantity.Sign() <= 0 {
		return fmt.Errorf("%w: quantity must be positive, got %s", ErrInvalidInput, t.Quantity)
	}
	if t.ExecutedAt.IsZero() {
		return fmt.Errorf("%w: executed_at is required", ErrInvalidInput)
	}
	return nil
}
