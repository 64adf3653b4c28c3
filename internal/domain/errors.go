package domain

import "errors"

// Ledger validation errors. These are deterministic failures on malformed or
// logically inconsistent transaction history; retrying cannot change the
// outcome, so callers should surface them rather than swallow them.
var (
	// ErrEmptyHistory indicates a reduction was requested over zero transactions.
	ErrEmptyHistory = errors.New("empty transaction history")

	// ErrInvalidSequence indicates the first transaction of a position is not
	// an opening transaction.
	ErrInvalidSequence = errors.New("first transaction must be an open")

	// ErrOverClose indicates a trim or close requested more quantity than is
	// currently open. This is a data-integrity violation, never clamped.
	ErrOverClose = errors.New("exit quantity exceeds open quantity")

	// ErrDegenerateLedger indicates a reduction would divide by a zero open
	// quantity.
	ErrDegenerateLedger = errors.New("degenerate ledger: zero open quantity")

	// ErrInvalidUnitPrice indicates a non-positive unit price was supplied to
	// position sizing.
	ErrInvalidUnitPrice = errors.New("unit price must be positive")

	// ErrInvalidProfile indicates a risk profile failed its bounds checks.
	ErrInvalidProfile = errors.New("invalid risk profile")

	// ErrInvalidInput indicates a malformed instrument, transaction, or
	// direction supplied by the caller.
	ErrInvalidInput = errors.New("invalid input")
)

// Store and infrastructure errors.
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrRateLimited   = errors.New("rate limited")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrLockHeld      = errors.New("lock already held")
)

// IsValidation reports whether err is one of the ledger/sizing validation
// errors, which map to client errors at the API boundary rather than server
// faults.
func IsValidation(err error) bool {
	return errors.Is(err, ErrEmptyHistory) ||
		errors.Is(err, ErrInvalidSequence) ||
		errors.Is(err, ErrOverClose) ||
		errors.Is(err, ErrDegenerateLedger) ||
		errors.Is(err, ErrInvalidUnitPrice) ||
		errors.Is(err, ErrInvalidProfile) ||
		errors.Is(err, ErrInvalidInput)
}
