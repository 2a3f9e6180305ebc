package domain

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
)

// TransactionEngine is the state machine that turns operation requests into
// committed balance mutations and transaction records. It holds no long-lived
// state: every attempt reads, computes, writes and discards, with the account
// store as the single synchronization point.
type TransactionEngine struct {
	accounts     AccountRepository
	transactions TransactionRepository
	idempotency  IdempotencyRepository
	txManager    TransactionManager
	retry        *RetryCoordinator
	audit        AuditPublisher
	logger       *zap.Logger
}

// NewTransactionEngine creates a TransactionEngine. Pass nil for audit if no
// events should be emitted.
func NewTransactionEngine(
	accounts AccountRepository,
	transactions TransactionRepository,
	idempotency IdempotencyRepository,
	txManager TransactionManager,
	retry *RetryCoordinator,
	audit AuditPublisher,
	logger *zap.Logger,
) *TransactionEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TransactionEngine{
		accounts:     accounts,
		transactions: transactions,
		idempotency:  idempotency,
		txManager:    txManager,
		retry:        retry,
		audit:        audit,
		logger:       logger,
	}
}

// ProcessTransaction executes one operation request under the retry
// coordinator. Replays of the same idempotency key or reference id return the
// originally persisted result without touching any account. Business
// failures come back as a FAILED transaction, not an error; only terminal
// lookups and exhausted infrastructure faults are errors.
func (e *TransactionEngine) ProcessTransaction(ctx context.Context, req *TransactionRequest, idempotencyKey string) (*Transaction, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var result *Transaction
	err := e.retry.Execute(ctx, func(ctx context.Context) error {
		var attemptErr error
		result, attemptErr = e.processOnce(ctx, req, idempotencyKey)
		return attemptErr
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// processOnce is a single attempt: steps 1-6 of the processing algorithm.
// Retries re-enter here from scratch so every attempt sees a fresh read.
func (e *TransactionEngine) processOnce(ctx context.Context, req *TransactionRequest, idempotencyKey string) (*Transaction, error) {
	// Step 1: saved response for the idempotency key wins outright.
	if idempotencyKey != "" {
		if payload, found, err := e.idempotency.Get(ctx, idempotencyKey); err != nil {
			return nil, fmt.Errorf("idempotency lookup: %w", err)
		} else if found {
			var stored Transaction
			if err := json.Unmarshal(payload, &stored); err != nil {
				return nil, fmt.Errorf("decode stored response: %w", err)
			}
			e.logger.Info("idempotent replay", zap.String("idempotency_key", idempotencyKey))
			return &stored, nil
		}
	}

	// Step 2: a persisted reference id is a duplicate even when the retry
	// arrived with a different idempotency key.
	exists, err := e.transactions.ExistsByReference(ctx, req.ReferenceID)
	if err != nil {
		return nil, fmt.Errorf("reference lookup: %w", err)
	}
	if exists {
		stored, err := e.transactions.GetByReference(ctx, req.ReferenceID)
		if err != nil {
			return nil, fmt.Errorf("load duplicate transaction: %w", err)
		}
		e.logger.Info("duplicate reference replay", zap.String("reference_id", req.ReferenceID))
		return stored, nil
	}

	// Steps 3-6: load, apply and persist atomically. The account write and
	// the transaction append share one storage transaction.
	var record *Transaction
	err = e.txManager.WithTransaction(ctx, func(ctx context.Context) error {
		account, err := e.accounts.GetByID(ctx, req.AccountID)
		if err != nil {
			return err
		}

		var destination *Account
		if req.Operation == OperationTransfer {
			destination, err = e.accounts.GetByID(ctx, *req.DestinationAccountID)
			if err != nil {
				if IsRetryable(err) {
					return err
				}
				return ErrDestinationNotFound
			}
		}

		out := applyOperation(req.Operation, account, destination, req.Amount)
		record = newTransaction(req, account, out.status, out.message)

		if out.status == TransactionStatusCompleted {
			if err := e.accounts.Update(ctx, account); err != nil {
				return err
			}
			if destination != nil {
				if err := e.accounts.Update(ctx, destination); err != nil {
					return err
				}
			}
		}

		return e.transactions.Append(ctx, record)
	})
	if err != nil {
		return nil, err
	}

	if idempotencyKey != "" {
		payload, err := json.Marshal(record)
		if err != nil {
			return nil, fmt.Errorf("encode response: %w", err)
		}
		if err := e.idempotency.Put(ctx, idempotencyKey, payload); err != nil {
			// The transaction is committed; a failed save here is recovered
			// by the reference-id dedupe on the next replay.
			e.logger.Warn("failed to save idempotent response",
				zap.String("idempotency_key", idempotencyKey), zap.Error(err))
		}
	}

	e.notifyAudit(record)

	e.logger.Info("transaction processed",
		zap.String("transaction_id", record.ID.String()),
		zap.String("operation", string(record.Operation)),
		zap.String("status", string(record.Status)),
		zap.String("reference_id", record.ReferenceID),
	)
	return record, nil
}

// notifyAudit publishes the committed transaction to the audit sink without
// blocking the caller. Publish failures are logged, never propagated.
func (e *TransactionEngine) notifyAudit(txn *Transaction) {
	if e.audit == nil {
		return
	}
	go func(t Transaction) {
		if err := e.audit.TransactionProcessed(context.Background(), &t); err != nil {
			e.logger.Warn("audit publish failed",
				zap.String("transaction_id", t.ID.String()), zap.Error(err))
		}
	}(*txn)
}
