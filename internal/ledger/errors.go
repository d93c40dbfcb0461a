package ledger

import "errors"

var (
	// ErrAccountNotFound means no escrow account exists for the operator
	ErrAccountNotFound = errors.New("escrow account not found")

	// ErrInvalidAmount means a zero or negative amount was requested
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrInsufficientHold means the account hold is smaller than the
	// requested transfer or refund. It signals that the hold invariant
	// was violated upstream and is logged as a data-integrity warning.
	ErrInsufficientHold = errors.New("insufficient revenue hold")
)
