package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"transaction-engine/internal/domain"
	"transaction-engine/internal/errors"
)

type Response struct {
	Data  interface{} `json:"data,omitempty"`
	Error *Error      `json:"error,omitempty"`
}

type Error struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details string            `json:"details,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// TransactionResponse is the wire form of one ledger record.
type TransactionResponse struct {
	ID                        string    `json:"id"`
	AccountNumber             string    `json:"account_number"`
	Amount                    string    `json:"amount"`
	TransactionType           string    `json:"transaction_type"`
	Direction                 string    `json:"direction"`
	Status                    string    `json:"status"`
	RuleID                    *int64    `json:"rule_id"`
	IdempotencyKey            *string   `json:"idempotency_key"`
	CounterpartyAccountNumber *string   `json:"counterparty_account_number,omitempty"`
	CounterpartyRoutingNumber *string   `json:"counterparty_routing_number,omitempty"`
	CreatedAt                 time.Time `json:"created_at"`
}

func toTransactionResponses(txs []*domain.Transaction) []TransactionResponse {
	out := make([]TransactionResponse, 0, len(txs))
	for _, tx := range txs {
		out = append(out, TransactionResponse{
			ID:                        tx.ID.String(),
			AccountNumber:             tx.AccountNumber,
			Amount:                    tx.Amount.StringFixed(2),
			TransactionType:           string(tx.Type),
			Direction:                 string(tx.Direction),
			Status:                    string(tx.Status),
			RuleID:                    tx.RuleID,
			IdempotencyKey:            tx.IdempotencyKey,
			CounterpartyAccountNumber: tx.CounterpartyAccountNumber,
			CounterpartyRoutingNumber: tx.CounterpartyRoutingNumber,
			CreatedAt:                 tx.CreatedAt,
		})
	}
	return out
}

func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := Response{Data: data}
	json.NewEncoder(w).Encode(response)
}

func writeError(w http.ResponseWriter, appErr *errors.AppError) {
	w.Header().Set("Content-Type", "application/json")

	statusCode := appErr.HTTPStatus()
	errResponse := Error{
		Code:    string(appErr.Code),
		Message: appErr.Message,
		Details: appErr.Details,
		Fields:  appErr.Fields,
	}

	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(Response{Error: &errResponse})
}

// respondError writes err. Server-side failures are logged in full and
// answered with the code and message only.
func respondError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	appErr, ok := errors.AsAppError(err)
	if !ok {
		appErr = errors.NewAppError(errors.InternalError, "an unexpected error occurred")
	}
	if appErr.HTTPStatus() >= http.StatusInternalServerError {
		logger.Error("Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		appErr = errors.NewAppError(appErr.Code, appErr.Message)
	}
	writeError(w, appErr)
}
