package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/finledger/ledger-service/internal/domain"
)

// AccountService is the account surface the handlers call.
type AccountService interface {
	CreateAccount(ctx context.Context, spec domain.AccountSpec, idempotencyKey string) (*domain.Account, error)
	GetAccountByID(ctx context.Context, id uuid.UUID) (*domain.Account, error)
	GetAccountByNumber(ctx context.Context, number string) (*domain.Account, error)
	UpdateBalances(ctx context.Context, account *domain.Account) (*domain.Account, error)
}

// TransactionProcessor is the engine surface the handlers call.
type TransactionProcessor interface {
	ProcessTransaction(ctx context.Context, req *domain.TransactionRequest, idempotencyKey string) (*domain.Transaction, error)
}

// Handler serves the ledger HTTP API.
type Handler struct {
	accounts AccountService
	engine   TransactionProcessor
	validate *validator.Validate
	logger   *zap.Logger
}

// NewHandler creates a Handler.
func NewHandler(accounts AccountService, engine TransactionProcessor, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		accounts: accounts,
		engine:   engine,
		validate: validator.New(),
		logger:   logger,
	}
}

// CreateAccount handles POST /api/accounts.
func (h *Handler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if !h.decode(w, r, &req) {
		return
	}

	idempotencyKey := r.Header.Get("Idempotency-Key")
	if idempotencyKey == "" {
		sendError(w, http.StatusBadRequest, "MISSING_IDEMPOTENCY_KEY", "Idempotency-Key header is required")
		return
	}

	spec := domain.AccountSpec{Number: req.Number}
	var err error
	if spec.Balance, err = parseOptionalAmount(req.Balance); err != nil {
		sendError(w, http.StatusBadRequest, "INVALID_AMOUNT", err.Error())
		return
	}
	if spec.ReservedBalance, err = parseOptionalAmount(req.ReservedBalance); err != nil {
		sendError(w, http.StatusBadRequest, "INVALID_AMOUNT", err.Error())
		return
	}
	if spec.CreditLimit, err = parseOptionalAmount(req.CreditLimit); err != nil {
		sendError(w, http.StatusBadRequest, "INVALID_AMOUNT", err.Error())
		return
	}

	account, err := h.accounts.CreateAccount(r.Context(), spec, idempotencyKey)
	if err != nil {
		h.sendDomainError(w, err)
		return
	}

	sendJSON(w, http.StatusCreated, toAccountResponse(account))
}

// GetAccountByID handles GET /api/accounts/{id}.
func (h *Handler) GetAccountByID(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		sendError(w, http.StatusBadRequest, "INVALID_ID", "account id must be a UUID")
		return
	}

	account, err := h.accounts.GetAccountByID(r.Context(), id)
	if err != nil {
		h.sendDomainError(w, err)
		return
	}

	sendJSON(w, http.StatusOK, toAccountResponse(account))
}

// GetAccountByNumber handles GET /api/accounts/number/{number}.
func (h *Handler) GetAccountByNumber(w http.ResponseWriter, r *http.Request) {
	account, err := h.accounts.GetAccountByNumber(r.Context(), chi.URLParam(r, "number"))
	if err != nil {
		h.sendDomainError(w, err)
		return
	}

	sendJSON(w, http.StatusOK, toAccountResponse(account))
}

// UpdateBalances handles PUT /api/accounts/{id}/balances.
func (h *Handler) UpdateBalances(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		sendError(w, http.StatusBadRequest, "INVALID_ID", "account id must be a UUID")
		return
	}

	var req updateBalancesRequest
	if !h.decode(w, r, &req) {
		return
	}

	account, err := h.accounts.GetAccountByID(r.Context(), id)
	if err != nil {
		h.sendDomainError(w, err)
		return
	}
	if account.Version != req.Version {
		h.sendDomainError(w, domain.ErrConcurrencyConflict)
		return
	}

	if account.Balance, err = domain.ParseSignedAmount(req.Balance); err != nil {
		sendError(w, http.StatusBadRequest, "INVALID_AMOUNT", err.Error())
		return
	}
	if account.ReservedBalance, err = domain.ParseSignedAmount(req.ReservedBalance); err != nil {
		sendError(w, http.StatusBadRequest, "INVALID_AMOUNT", err.Error())
		return
	}
	if account.CreditLimit, err = domain.ParseSignedAmount(req.CreditLimit); err != nil {
		sendError(w, http.StatusBadRequest, "INVALID_AMOUNT", err.Error())
		return
	}
	account.Status = domain.AccountStatus(req.Status)

	updated, err := h.accounts.UpdateBalances(r.Context(), account)
	if err != nil {
		h.sendDomainError(w, err)
		return
	}

	sendJSON(w, http.StatusOK, toAccountResponse(updated))
}

// ProcessTransaction handles POST /api/transactions for credit, debit,
// reserve, capture and reversal.
func (h *Handler) ProcessTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if !h.decode(w, r, &req) {
		return
	}

	accountID, err := uuid.Parse(req.AccountID)
	if err != nil {
		sendError(w, http.StatusBadRequest, "INVALID_ID", "accountId must be a UUID")
		return
	}

	amount, err := domain.ParseAmount(req.Amount)
	if err != nil {
		sendError(w, http.StatusBadRequest, "INVALID_AMOUNT", err.Error())
		return
	}

	h.process(w, r, &domain.TransactionRequest{
		Operation:   domain.Operation(req.Operation),
		AccountID:   accountID,
		Amount:      amount,
		Currency:    req.Currency,
		ReferenceID: req.ReferenceID,
	})
}

// Transfer handles POST /api/transactions/transfer.
func (h *Handler) Transfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if !h.decode(w, r, &req) {
		return
	}

	accountID, err := uuid.Parse(req.AccountID)
	if err != nil {
		sendError(w, http.StatusBadRequest, "INVALID_ID", "accountId must be a UUID")
		return
	}
	destinationID, err := uuid.Parse(req.DestinationAccountID)
	if err != nil {
		sendError(w, http.StatusBadRequest, "INVALID_ID", "destinationAccountId must be a UUID")
		return
	}

	amount, err := domain.ParseAmount(req.Amount)
	if err != nil {
		sendError(w, http.StatusBadRequest, "INVALID_AMOUNT", err.Error())
		return
	}

	h.process(w, r, &domain.TransactionRequest{
		Operation:            domain.OperationTransfer,
		AccountID:            accountID,
		DestinationAccountID: &destinationID,
		Amount:               amount,
		Currency:             req.Currency,
		ReferenceID:          req.ReferenceID,
	})
}

func (h *Handler) process(w http.ResponseWriter, r *http.Request, req *domain.TransactionRequest) {
	idempotencyKey := r.Header.Get("Idempotency-Key")
	if idempotencyKey == "" {
		// The reference id doubles as the natural dedupe key.
		idempotencyKey = req.ReferenceID
	}

	txn, err := h.engine.ProcessTransaction(r.Context(), req, idempotencyKey)
	if err != nil {
		h.sendDomainError(w, err)
		return
	}

	// Business failures are completed responses describing why, not HTTP
	// errors.
	sendJSON(w, http.StatusOK, toTransactionResponse(txn))
}

// decode parses and validates a JSON request body, writing the error response
// itself when the body is unusable.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		sendError(w, http.StatusBadRequest, "INVALID_REQUEST", "failed to parse request body")
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		sendError(w, http.StatusBadRequest, "VALIDATION_FAILED", err.Error())
		return false
	}
	return true
}

// sendDomainError maps domain errors to HTTP status codes.
func (h *Handler) sendDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrAccountNotFound):
		sendError(w, http.StatusNotFound, "ACCOUNT_NOT_FOUND", "account not found")
	case errors.Is(err, domain.ErrDestinationNotFound):
		sendError(w, http.StatusNotFound, "DESTINATION_NOT_FOUND", "destination account not found")
	case errors.Is(err, domain.ErrDuplicateAccount):
		sendError(w, http.StatusConflict, "DUPLICATE_ACCOUNT", "account number already exists")
	case errors.Is(err, domain.ErrConcurrencyConflict):
		sendError(w, http.StatusConflict, "CONCURRENCY_CONFLICT", "account was modified concurrently, re-read and retry")
	case errors.Is(err, domain.ErrInvariantViolation),
		errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrInvalidCurrency),
		errors.Is(err, domain.ErrInvalidOperation),
		errors.Is(err, domain.ErrMissingReference),
		errors.Is(err, domain.ErrMissingDestination),
		errors.Is(err, domain.ErrSameAccount):
		sendError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
	default:
		h.logger.Error("internal error", zap.Error(err))
		sendError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal error")
	}
}

func parseOptionalAmount(value string) (int64, error) {
	if value == "" {
		return 0, nil
	}
	return domain.ParseSignedAmount(value)
}

func sendJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func sendError(w http.ResponseWriter, status int, code, message string) {
	sendJSON(w, status, errorResponse{Code: code, Message: message})
}
