package domain

import (
	"time"

	"github.com/google/uuid"
)

// Account is the core ledger entity. All balance fields are signed 64-bit
// integers in minor currency units (e.g. centavos); floating point is never
// used for money.
type Account struct {
	ID              uuid.UUID     // Unique identifier, immutable after creation
	Number          string        // Externally visible account number, unique, immutable
	Balance         int64         // Available funds in minor units
	ReservedBalance int64         // Funds set aside by open reservations, never negative
	CreditLimit     int64         // Additional funds available beyond Balance, never negative
	Status          AccountStatus // Active, Inactive or Blocked
	Version         int64         // Optimistic-lock token, incremented on every successful update
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// AccountStatus represents the lifecycle state of an account.
// Accounts are never physically deleted; deactivation is a status change.
type AccountStatus string

const (
	AccountStatusActive   AccountStatus = "ACTIVE"
	AccountStatusInactive AccountStatus = "INACTIVE"
	AccountStatusBlocked  AccountStatus = "BLOCKED"
)

// AvailableBalance is the balance minus funds held by open reservations.
func (a *Account) AvailableBalance() int64 {
	return a.Balance - a.ReservedBalance
}

// CheckInvariant verifies the account-level consistency rules that must hold
// after every committed mutation.
func (a *Account) CheckInvariant() error {
	if a.ReservedBalance < 0 {
		return ErrInvariantViolation
	}
	if a.CreditLimit < 0 {
		return ErrInvariantViolation
	}
	if a.Balance+a.CreditLimit < a.ReservedBalance {
		return ErrInvariantViolation
	}
	return nil
}

// NewAccount creates an Active account with the given number and opening
// balances. The caller owns invariant validation before persistence.
func NewAccount(number string, balance, reservedBalance, creditLimit int64) *Account {
	now := time.Now().UTC()
	return &Account{
		ID:              uuid.New(),
		Number:          number,
		Balance:         balance,
		ReservedBalance: reservedBalance,
		CreditLimit:     creditLimit,
		Status:          AccountStatusActive,
		Version:         1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// Operation identifies a financial operation applied to an account.
type Operation string

const (
	OperationCredit   Operation = "CREDIT"
	OperationDebit    Operation = "DEBIT"
	OperationReserve  Operation = "RESERVE"
	OperationCapture  Operation = "CAPTURE"
	OperationReversal Operation = "REVERSAL"
	OperationTransfer Operation = "TRANSFER"
)

// TransactionStatus represents the terminal state of a persisted transaction.
// The engine never leaves a transaction Pending once the unit of work commits.
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "PENDING"
	TransactionStatusCompleted TransactionStatus = "COMPLETED"
	TransactionStatusFailed    TransactionStatus = "FAILED"
)

// Transaction is the persisted record of one processed operation, including
// business failures, which are recorded as FAILED rows rather than errors.
type Transaction struct {
	ID                   uuid.UUID
	Operation            Operation
	AccountID            uuid.UUID
	DestinationAccountID *uuid.UUID // set iff Operation == Transfer
	Amount               int64      // strictly positive, minor units
	Currency             string     // ISO 4217 code, e.g. "BRL"
	ReferenceID          string     // caller-supplied dedupe key, unique across all transactions
	Status               TransactionStatus
	ResultingBalance     int64 // source account balance after the operation
	ResultingAvailable   int64 // balance minus reserved after the operation
	Message              string
	CreatedAt            time.Time
}

// TransactionRequest is the caller's description of an operation to process.
type TransactionRequest struct {
	Operation            Operation
	AccountID            uuid.UUID
	DestinationAccountID *uuid.UUID
	Amount               int64
	Currency             string
	ReferenceID          string
}

// newTransaction builds the persisted record for an attempt against the given
// source account, reflecting the balances after the operation was applied.
func newTransaction(req *TransactionRequest, account *Account, status TransactionStatus, message string) *Transaction {
	return &Transaction{
		ID:                   uuid.New(),
		Operation:            req.Operation,
		AccountID:            req.AccountID,
		DestinationAccountID: req.DestinationAccountID,
		Amount:               req.Amount,
		Currency:             req.Currency,
		ReferenceID:          req.ReferenceID,
		Status:               status,
		ResultingBalance:     account.Balance,
		ResultingAvailable:   account.AvailableBalance(),
		Message:              message,
		CreatedAt:            time.Now().UTC(),
	}
}
