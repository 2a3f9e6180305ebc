package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/finledger/ledger-service/internal/domain"
)

// AccountRepository implements domain.AccountRepository using PostgreSQL.
// Updates are conditioned on the version column: the account store is the
// single arbiter of concurrent writers, no in-memory locking involved.
type AccountRepository struct {
	pool *pgxpool.Pool
}

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository(pool *pgxpool.Pool) *AccountRepository {
	return &AccountRepository{pool: pool}
}

const accountColumns = `id, number, balance, reserved_balance, credit_limit, status, version, created_at, updated_at`

// GetByID retrieves an account by its unique identifier.
func (r *AccountRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	return r.scanAccount(queryTarget(ctx, r.pool).QueryRow(ctx, query, id))
}

// GetByNumber retrieves an account by its external account number.
func (r *AccountRepository) GetByNumber(ctx context.Context, number string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE number = $1`
	return r.scanAccount(queryTarget(ctx, r.pool).QueryRow(ctx, query, number))
}

// Create persists a new account. A duplicate account number surfaces as
// domain.ErrDuplicateAccount via the unique constraint.
func (r *AccountRepository) Create(ctx context.Context, account *domain.Account) error {
	query := `
		INSERT INTO accounts (` + accountColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := queryTarget(ctx, r.pool).Exec(ctx, query,
		account.ID,
		account.Number,
		account.Balance,
		account.ReservedBalance,
		account.CreditLimit,
		string(account.Status),
		account.Version,
		account.CreatedAt,
		account.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateAccount
		}
		return fmt.Errorf("failed to create account: %w", err)
	}

	return nil
}

// Update persists the account's balance fields and status conditioned on the
// version read at load time. Zero rows affected means another writer
// committed first; that is reported as domain.ErrConcurrencyConflict, and
// domain.ErrAccountNotFound when the row doesn't exist at all.
func (r *AccountRepository) Update(ctx context.Context, account *domain.Account) error {
	query := `
		UPDATE accounts
		SET balance = $2,
		    reserved_balance = $3,
		    credit_limit = $4,
		    status = $5,
		    version = version + 1,
		    updated_at = $6
		WHERE id = $1 AND version = $7
	`

	now := time.Now().UTC()
	tag, err := queryTarget(ctx, r.pool).Exec(ctx, query,
		account.ID,
		account.Balance,
		account.ReservedBalance,
		account.CreditLimit,
		string(account.Status),
		now,
		account.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update account: %w", err)
	}

	if tag.RowsAffected() == 0 {
		var exists bool
		checkErr := queryTarget(ctx, r.pool).QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM accounts WHERE id = $1)`, account.ID).Scan(&exists)
		if checkErr != nil {
			return fmt.Errorf("failed to check account existence: %w", checkErr)
		}
		if !exists {
			return domain.ErrAccountNotFound
		}
		return domain.ErrConcurrencyConflict
	}

	account.Version++
	account.UpdatedAt = now
	return nil
}

func (r *AccountRepository) scanAccount(row pgx.Row) (*domain.Account, error) {
	var account domain.Account
	var status string

	err := row.Scan(
		&account.ID,
		&account.Number,
		&account.Balance,
		&account.ReservedBalance,
		&account.CreditLimit,
		&status,
		&account.Version,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	account.Status = domain.AccountStatus(status)
	return &account, nil
}

// isUniqueViolation checks for PostgreSQL error 23505 (unique_violation).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
