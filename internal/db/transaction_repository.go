package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/finledger/ledger-service/internal/domain"
)

// TransactionRepository implements domain.TransactionRepository using
// PostgreSQL. The log is append-only; reference_id carries a unique
// constraint so that a transaction is persisted at most once per reference.
type TransactionRepository struct {
	pool *pgxpool.Pool
}

// NewTransactionRepository creates a new TransactionRepository.
func NewTransactionRepository(pool *pgxpool.Pool) *TransactionRepository {
	return &TransactionRepository{pool: pool}
}

const transactionColumns = `id, operation, account_id, destination_account_id, amount, currency,
	reference_id, status, resulting_balance, resulting_available, message, created_at`

// ExistsByReference reports whether a transaction with the given reference id
// has already been persisted.
func (r *TransactionRepository) ExistsByReference(ctx context.Context, referenceID string) (bool, error) {
	var exists bool
	err := queryTarget(ctx, r.pool).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM transactions WHERE reference_id = $1)`, referenceID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check reference: %w", err)
	}
	return exists, nil
}

// GetByReference retrieves the persisted transaction for a reference id.
func (r *TransactionRepository) GetByReference(ctx context.Context, referenceID string) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE reference_id = $1`

	var txn domain.Transaction
	var operation, status string

	err := queryTarget(ctx, r.pool).QueryRow(ctx, query, referenceID).Scan(
		&txn.ID,
		&operation,
		&txn.AccountID,
		&txn.DestinationAccountID,
		&txn.Amount,
		&txn.Currency,
		&txn.ReferenceID,
		&status,
		&txn.ResultingBalance,
		&txn.ResultingAvailable,
		&txn.Message,
		&txn.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("transaction not found for reference %q", referenceID)
		}
		return nil, fmt.Errorf("failed to get transaction by reference: %w", err)
	}

	txn.Operation = domain.Operation(operation)
	txn.Status = domain.TransactionStatus(status)
	return &txn, nil
}

// Append persists a transaction record. A duplicate reference id violates
// the unique constraint and is reported as a retryable conflict: the retry
// re-enters the dedupe check and returns the winner's result.
func (r *TransactionRepository) Append(ctx context.Context, txn *domain.Transaction) error {
	query := `
		INSERT INTO transactions (` + transactionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := queryTarget(ctx, r.pool).Exec(ctx, query,
		txn.ID,
		string(txn.Operation),
		txn.AccountID,
		txn.DestinationAccountID,
		txn.Amount,
		txn.Currency,
		txn.ReferenceID,
		string(txn.Status),
		txn.ResultingBalance,
		txn.ResultingAvailable,
		txn.Message,
		txn.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("duplicate reference %q: %w", txn.ReferenceID, err)
		}
		return fmt.Errorf("failed to append transaction: %w", err)
	}

	return nil
}
