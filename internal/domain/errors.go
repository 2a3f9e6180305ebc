package domain

import "errors"

var (
	// ErrAccountNotFound is returned when the source account doesn't exist.
	ErrAccountNotFound = errors.New("account not found")

	// ErrDestinationNotFound is returned when a transfer names a destination
	// account that doesn't exist.
	ErrDestinationNotFound = errors.New("destination account not found")

	// ErrDuplicateAccount is returned when creating an account whose number
	// is already taken.
	ErrDuplicateAccount = errors.New("account number already exists")

	// ErrConcurrencyConflict is returned when a conditional update lost the
	// race against another writer. The retry coordinator re-executes the
	// whole attempt from a fresh read.
	ErrConcurrencyConflict = errors.New("concurrency conflict: account version mismatch")

	// ErrInvariantViolation is returned when caller-supplied balance fields
	// would leave the account in an inconsistent state.
	ErrInvariantViolation = errors.New("account invariant violated: balance + credit limit must cover reserved balance")

	// ErrInvalidAmount is returned when the amount is not strictly positive.
	ErrInvalidAmount = errors.New("invalid amount: must be positive")

	// ErrInvalidCurrency is returned when the currency code is not a
	// 3-letter uppercase ISO 4217 code.
	ErrInvalidCurrency = errors.New("invalid currency code")

	// ErrInvalidOperation is returned for an unknown operation type.
	ErrInvalidOperation = errors.New("invalid operation")

	// ErrMissingReference is returned when the request carries no reference id.
	ErrMissingReference = errors.New("reference id is required")

	// ErrSameAccount is returned when a transfer names the source account as
	// its own destination.
	ErrSameAccount = errors.New("source and destination must be different accounts")

	// ErrMissingDestination is returned when a transfer has no destination.
	ErrMissingDestination = errors.New("destination account id is required for transfers")
)

// terminalErrors never trigger a retry: re-executing the attempt cannot
// change the outcome.
var terminalErrors = []error{
	ErrAccountNotFound,
	ErrDestinationNotFound,
	ErrDuplicateAccount,
	ErrInvariantViolation,
	ErrInvalidAmount,
	ErrInvalidCurrency,
	ErrInvalidOperation,
	ErrMissingReference,
	ErrSameAccount,
	ErrMissingDestination,
}

// IsRetryable reports whether an error may succeed on a re-execution.
// Concurrency conflicts and storage faults are retryable; business and
// validation errors are terminal.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	for _, terminal := range terminalErrors {
		if errors.Is(err, terminal) {
			return false
		}
	}
	return true
}
