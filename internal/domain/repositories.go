package domain

import (
	"context"

	"github.com/google/uuid"
)

// AccountRepository defines data access for accounts. Implementations must
// honour the transaction stored in the context by TransactionManager.
type AccountRepository interface {
	// GetByID retrieves an account by its unique identifier.
	// Returns ErrAccountNotFound if it doesn't exist.
	GetByID(ctx context.Context, id uuid.UUID) (*Account, error)

	// GetByNumber retrieves an account by its external account number.
	// Returns ErrAccountNotFound if it doesn't exist.
	GetByNumber(ctx context.Context, number string) (*Account, error)

	// Create persists a new account. Returns ErrDuplicateAccount if the
	// account number is already taken.
	Create(ctx context.Context, account *Account) error

	// Update persists the account's balance fields and status conditioned on
	// the Version read at load time. A stale version returns
	// ErrConcurrencyConflict without writing anything; on success the stored
	// version is incremented and account.Version is bumped to match.
	Update(ctx context.Context, account *Account) error
}

// TransactionRepository is the append-only transaction log.
type TransactionRepository interface {
	// ExistsByReference reports whether a transaction with the given
	// reference id has already been persisted.
	ExistsByReference(ctx context.Context, referenceID string) (bool, error)

	// GetByReference retrieves the persisted transaction for a reference id.
	GetByReference(ctx context.Context, referenceID string) (*Transaction, error)

	// Append persists a transaction record. The reference id is unique
	// across all persisted transactions.
	Append(ctx context.Context, txn *Transaction) error
}

// IdempotencyRepository maps a client-supplied key to the serialized response
// of the request that first carried it. Records are write-once.
type IdempotencyRepository interface {
	// Get returns the saved response payload for the key, with found=false
	// when the key has never been seen.
	Get(ctx context.Context, key string) (payload []byte, found bool, err error)

	// Put saves the response payload the first time a key is seen. A second
	// Put for an existing key is a no-op.
	Put(ctx context.Context, key string, payload []byte) error
}

// TransactionManager executes a function within a storage transaction: every
// repository write made through the function's context commits or rolls back
// together.
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// AuditPublisher receives fire-and-forget notifications of committed events.
// Failures must never fail the enclosing operation.
type AuditPublisher interface {
	AccountCreated(ctx context.Context, account *Account) error
	TransactionProcessed(ctx context.Context, txn *Transaction) error
}
