package httpapi

import (
	"time"

	"github.com/finledger/ledger-service/internal/domain"
)

// createAccountRequest is the body of POST /api/accounts. Monetary fields are
// decimal strings in major units ("150.00").
type createAccountRequest struct {
	Number          string `json:"number" validate:"required"`
	Balance         string `json:"balance" validate:"omitempty"`
	ReservedBalance string `json:"reservedBalance" validate:"omitempty"`
	CreditLimit     string `json:"creditLimit" validate:"omitempty"`
}

// updateBalancesRequest is the body of PUT /api/accounts/{id}/balances.
// Version must be the version the caller read; a stale version is rejected
// with a conflict.
type updateBalancesRequest struct {
	Balance         string `json:"balance" validate:"required"`
	ReservedBalance string `json:"reservedBalance" validate:"required"`
	CreditLimit     string `json:"creditLimit" validate:"required"`
	Status          string `json:"status" validate:"required,oneof=ACTIVE INACTIVE BLOCKED"`
	Version         int64  `json:"version" validate:"required,gt=0"`
}

// transactionRequest is the body of POST /api/transactions.
type transactionRequest struct {
	Operation   string `json:"operation" validate:"required,oneof=CREDIT DEBIT RESERVE CAPTURE REVERSAL"`
	AccountID   string `json:"accountId" validate:"required,uuid4_rfc4122|uuid_rfc4122"`
	Amount      string `json:"amount" validate:"required"`
	Currency    string `json:"currency" validate:"required,len=3"`
	ReferenceID string `json:"referenceId" validate:"required"`
}

// transferRequest is the body of POST /api/transactions/transfer.
type transferRequest struct {
	AccountID            string `json:"accountId" validate:"required,uuid4_rfc4122|uuid_rfc4122"`
	DestinationAccountID string `json:"destinationAccountId" validate:"required,uuid4_rfc4122|uuid_rfc4122"`
	Amount               string `json:"amount" validate:"required"`
	Currency             string `json:"currency" validate:"required,len=3"`
	ReferenceID          string `json:"referenceId" validate:"required"`
}

// accountResponse renders an account with decimal-string balances.
type accountResponse struct {
	ID               string    `json:"id"`
	Number           string    `json:"number"`
	Balance          string    `json:"balance"`
	ReservedBalance  string    `json:"reservedBalance"`
	CreditLimit      string    `json:"creditLimit"`
	AvailableBalance string    `json:"availableBalance"`
	Status           string    `json:"status"`
	Version          int64     `json:"version"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// transactionResponse renders a processed transaction. Business failures use
// the same shape with status FAILED and an explanatory message.
type transactionResponse struct {
	ID                 string    `json:"id"`
	Operation          string    `json:"operation"`
	AccountID          string    `json:"accountId"`
	DestinationID      string    `json:"destinationAccountId,omitempty"`
	Amount             string    `json:"amount"`
	Currency           string    `json:"currency"`
	ReferenceID        string    `json:"referenceId"`
	Status             string    `json:"status"`
	ResultingBalance   string    `json:"resultingBalance"`
	ResultingAvailable string    `json:"resultingAvailableBalance"`
	Message            string    `json:"message"`
	CreatedAt          time.Time `json:"createdAt"`
}

// errorResponse is the error body shape.
type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func toAccountResponse(a *domain.Account) accountResponse {
	return accountResponse{
		ID:               a.ID.String(),
		Number:           a.Number,
		Balance:          domain.FormatAmount(a.Balance),
		ReservedBalance:  domain.FormatAmount(a.ReservedBalance),
		CreditLimit:      domain.FormatAmount(a.CreditLimit),
		AvailableBalance: domain.FormatAmount(a.AvailableBalance()),
		Status:           string(a.Status),
		Version:          a.Version,
		CreatedAt:        a.CreatedAt,
		UpdatedAt:        a.UpdatedAt,
	}
}

func toTransactionResponse(t *domain.Transaction) transactionResponse {
	resp := transactionResponse{
		ID:                 t.ID.String(),
		Operation:          string(t.Operation),
		AccountID:          t.AccountID.String(),
		Amount:             domain.FormatAmount(t.Amount),
		Currency:           t.Currency,
		ReferenceID:        t.ReferenceID,
		Status:             string(t.Status),
		ResultingBalance:   domain.FormatAmount(t.ResultingBalance),
		ResultingAvailable: domain.FormatAmount(t.ResultingAvailable),
		Message:            t.Message,
		CreatedAt:          t.CreatedAt,
	}
	if t.DestinationAccountID != nil {
		resp.DestinationID = t.DestinationAccountID.String()
	}
	return resp
}
