package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"transaction-engine/internal/auth"
	"transaction-engine/internal/domain"
	"transaction-engine/internal/errors"
)

type AccountReader interface {
	GetAccount(ctx context.Context, principal *domain.Principal, accountNumber string) (*domain.Account, error)
	ListTransactions(ctx context.Context, principal *domain.Principal, accountNumber string, limit int) ([]*domain.Transaction, error)
}

type AccountHandler struct {
	accounts      AccountReader
	authenticator auth.Authenticator
	logger        *slog.Logger
}

func NewAccountHandler(accounts AccountReader, authenticator auth.Authenticator, logger *slog.Logger) *AccountHandler {
	return &AccountHandler{
		accounts:      accounts,
		authenticator: authenticator,
		logger:        logger,
	}
}

type AccountResponse struct {
	AccountNumber string `json:"account_number"`
	Balance       string `json:"balance"`
	Active        bool   `json:"active"`
}

func (h *AccountHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	principal, err := h.authenticator.Authenticate(r)
	if err != nil {
		writeError(w, errors.ErrUnauthorized.WithDetails(err.Error()))
		return
	}

	account, err := h.accounts.GetAccount(r.Context(), principal, mux.Vars(r)["account_number"])
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, AccountResponse{
		AccountNumber: account.AccountNumber,
		Balance:       account.Balance.StringFixed(2),
		Active:        account.Active,
	})
}

func (h *AccountHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	principal, err := h.authenticator.Authenticate(r)
	if err != nil {
		writeError(w, errors.ErrUnauthorized.WithDetails(err.Error()))
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			writeError(w, errors.NewAppError(errors.ValidationFailed, "request validation failed").WithFields(map[string]string{
				"limit": "must be a positive integer",
			}))
			return
		}
	}

	txs, err := h.accounts.ListTransactions(r.Context(), principal, mux.Vars(r)["account_number"], limit)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, toTransactionResponses(txs))
}
