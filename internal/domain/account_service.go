package domain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AccountSpec describes a new account. Number is the externally visible
// identifier; balances are opening values in minor units.
type AccountSpec struct {
	Number          string
	Balance         int64
	ReservedBalance int64
	CreditLimit     int64
}

// AccountService creates accounts and exposes read and explicit
// balance-update operations, enforcing account-level invariants and
// idempotent creation.
type AccountService struct {
	accounts    AccountRepository
	idempotency IdempotencyRepository
	txManager   TransactionManager
	audit       AuditPublisher
	logger      *zap.Logger
}

// NewAccountService creates an AccountService. Pass nil for audit if no
// events should be emitted.
func NewAccountService(
	accounts AccountRepository,
	idempotency IdempotencyRepository,
	txManager TransactionManager,
	audit AuditPublisher,
	logger *zap.Logger,
) *AccountService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccountService{
		accounts:    accounts,
		idempotency: idempotency,
		txManager:   txManager,
		audit:       audit,
		logger:      logger,
	}
}

// CreateAccount persists a new Active account. A replayed idempotency key
// returns the originally created account verbatim, performing no new work.
// A duplicate account number is rejected with ErrDuplicateAccount.
func (s *AccountService) CreateAccount(ctx context.Context, spec AccountSpec, idempotencyKey string) (*Account, error) {
	if idempotencyKey != "" {
		if payload, found, err := s.idempotency.Get(ctx, idempotencyKey); err != nil {
			return nil, fmt.Errorf("idempotency lookup: %w", err)
		} else if found {
			var stored Account
			if err := json.Unmarshal(payload, &stored); err != nil {
				return nil, fmt.Errorf("decode stored response: %w", err)
			}
			s.logger.Info("idempotent replay", zap.String("idempotency_key", idempotencyKey))
			return &stored, nil
		}
	}

	if spec.Number == "" {
		return nil, fmt.Errorf("%w: account number is required", ErrInvalidOperation)
	}

	account := NewAccount(spec.Number, spec.Balance, spec.ReservedBalance, spec.CreditLimit)
	if err := account.CheckInvariant(); err != nil {
		return nil, err
	}

	err := s.txManager.WithTransaction(ctx, func(ctx context.Context) error {
		_, err := s.accounts.GetByNumber(ctx, spec.Number)
		if err == nil {
			return ErrDuplicateAccount
		}
		if !errors.Is(err, ErrAccountNotFound) {
			return err
		}
		return s.accounts.Create(ctx, account)
	})
	if err != nil {
		return nil, err
	}

	if idempotencyKey != "" {
		payload, err := json.Marshal(account)
		if err != nil {
			return nil, fmt.Errorf("encode response: %w", err)
		}
		if err := s.idempotency.Put(ctx, idempotencyKey, payload); err != nil {
			s.logger.Warn("failed to save idempotent response",
				zap.String("idempotency_key", idempotencyKey), zap.Error(err))
		}
	}

	if s.audit != nil {
		go func(a Account) {
			if err := s.audit.AccountCreated(context.Background(), &a); err != nil {
				s.logger.Warn("audit publish failed",
					zap.String("account_id", a.ID.String()), zap.Error(err))
			}
		}(*account)
	}

	s.logger.Info("account created",
		zap.String("account_id", account.ID.String()),
		zap.String("account_number", account.Number),
	)
	return account, nil
}

// GetAccountByID looks up an account by its unique identifier.
func (s *AccountService) GetAccountByID(ctx context.Context, id uuid.UUID) (*Account, error) {
	return s.accounts.GetByID(ctx, id)
}

// GetAccountByNumber looks up an account by its external number.
func (s *AccountService) GetAccountByNumber(ctx context.Context, number string) (*Account, error) {
	return s.accounts.GetByNumber(ctx, number)
}

// UpdateBalances persists caller-supplied balance, reserved balance, credit
// limit and status after re-checking the account invariant. The write is
// conditioned on the version the caller read; a stale version returns
// ErrConcurrencyConflict and the caller must re-read and retry.
func (s *AccountService) UpdateBalances(ctx context.Context, account *Account) (*Account, error) {
	if err := account.CheckInvariant(); err != nil {
		return nil, err
	}

	err := s.txManager.WithTransaction(ctx, func(ctx context.Context) error {
		return s.accounts.Update(ctx, account)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("account balances updated",
		zap.String("account_id", account.ID.String()),
		zap.Int64("version", account.Version),
	)
	return account, nil
}
