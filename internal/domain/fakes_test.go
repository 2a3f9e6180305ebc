package domain_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/finledger/ledger-service/internal/domain"
)

// memStore is an in-memory implementation of the storage interfaces. The
// transaction manager snapshots all state before running the unit of work and
// restores it on error, mirroring a database rollback.
type memStore struct {
	mu       sync.Mutex
	accounts map[uuid.UUID]*domain.Account
	txns     map[string]*domain.Transaction
	idem     map[string][]byte

	// Hooks for fault injection; called while processing when set.
	beforeUpdate func(account *domain.Account)
	appendErr    func(txn *domain.Transaction) error

	// Rollback state for the open unit of work.
	snapAccounts map[uuid.UUID]*domain.Account
	snapTxns     map[string]*domain.Transaction
}

func newMemStore() *memStore {
	return &memStore{
		accounts: make(map[uuid.UUID]*domain.Account),
		txns:     make(map[string]*domain.Transaction),
		idem:     make(map[string][]byte),
	}
}

func (s *memStore) seedAccount(number string, balance, reserved, creditLimit int64) *domain.Account {
	account := domain.NewAccount(number, balance, reserved, creditLimit)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[account.ID] = copyAccount(account)
	return account
}

func (s *memStore) storedAccount(id uuid.UUID) *domain.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyAccount(s.accounts[id])
}

func copyAccount(a *domain.Account) *domain.Account {
	if a == nil {
		return nil
	}
	c := *a
	return &c
}

// --- domain.AccountRepository ---

func (s *memStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.accounts[id]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return copyAccount(account), nil
}

func (s *memStore) GetByNumber(_ context.Context, number string) (*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, account := range s.accounts {
		if account.Number == number {
			return copyAccount(account), nil
		}
	}
	return nil, domain.ErrAccountNotFound
}

func (s *memStore) Create(_ context.Context, account *domain.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.accounts {
		if existing.Number == account.Number {
			return domain.ErrDuplicateAccount
		}
	}
	s.accounts[account.ID] = copyAccount(account)
	return nil
}

func (s *memStore) Update(_ context.Context, account *domain.Account) error {
	if s.beforeUpdate != nil {
		s.beforeUpdate(account)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.accounts[account.ID]
	if !ok {
		return domain.ErrAccountNotFound
	}
	if stored.Version != account.Version {
		return domain.ErrConcurrencyConflict
	}
	account.Version++
	account.UpdatedAt = time.Now().UTC()
	s.accounts[account.ID] = copyAccount(account)
	return nil
}

// commitConcurrent applies a balance delta directly to the stored account,
// bumping the version the way a competing committed writer would. The change
// also lands in the open unit of work's rollback state: a real database never
// rolls back another writer's committed transaction.
func (s *memStore) commitConcurrent(id uuid.UUID, delta int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := s.accounts[id]
	stored.Balance += delta
	stored.Version++
	if s.snapAccounts != nil {
		snap := s.snapAccounts[id]
		snap.Balance += delta
		snap.Version++
	}
}

// --- domain.TransactionRepository ---

func (s *memStore) ExistsByReference(_ context.Context, referenceID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.txns[referenceID]
	return ok, nil
}

func (s *memStore) GetByReference(_ context.Context, referenceID string) (*domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	txn, ok := s.txns[referenceID]
	if !ok {
		return nil, errors.New("transaction not found")
	}
	c := *txn
	return &c, nil
}

func (s *memStore) Append(_ context.Context, txn *domain.Transaction) error {
	if s.appendErr != nil {
		if err := s.appendErr(txn); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *txn
	s.txns[txn.ReferenceID] = &c
	return nil
}

// --- domain.IdempotencyRepository ---

func (s *memStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	payload, ok := s.idem[key]
	return payload, ok, nil
}

func (s *memStore) Put(_ context.Context, key string, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.idem[key]; ok {
		return nil
	}
	s.idem[key] = payload
	return nil
}

// --- domain.TransactionManager ---

// WithTransaction snapshots all state and restores it when fn fails, so a
// failed unit of work leaves no partial writes behind.
func (s *memStore) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	s.mu.Lock()
	s.snapAccounts = make(map[uuid.UUID]*domain.Account, len(s.accounts))
	for id, account := range s.accounts {
		s.snapAccounts[id] = copyAccount(account)
	}
	s.snapTxns = make(map[string]*domain.Transaction, len(s.txns))
	for ref, txn := range s.txns {
		c := *txn
		s.snapTxns[ref] = &c
	}
	s.mu.Unlock()

	err := fn(ctx)

	s.mu.Lock()
	if err != nil {
		s.accounts = s.snapAccounts
		s.txns = s.snapTxns
	}
	s.snapAccounts = nil
	s.snapTxns = nil
	s.mu.Unlock()
	return err
}

// recordingAudit captures published events on channels.
type recordingAudit struct {
	accounts chan *domain.Account
	txns     chan *domain.Transaction
}

func newRecordingAudit() *recordingAudit {
	return &recordingAudit{
		accounts: make(chan *domain.Account, 16),
		txns:     make(chan *domain.Transaction, 16),
	}
}

func (a *recordingAudit) AccountCreated(_ context.Context, account *domain.Account) error {
	a.accounts <- account
	return nil
}

func (a *recordingAudit) TransactionProcessed(_ context.Context, txn *domain.Transaction) error {
	a.txns <- txn
	return nil
}

func newTestEngine(store *memStore, audit domain.AuditPublisher) *domain.TransactionEngine {
	retry := domain.NewRetryCoordinator(3, time.Millisecond, zap.NewNop())
	return domain.NewTransactionEngine(store, store, store, store, retry, audit, zap.NewNop())
}
