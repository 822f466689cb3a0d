package handler

import (
	"context"
	"log/slog"
	"net/http"

	"transaction-engine/internal/auth"
	"transaction-engine/internal/domain"
	"transaction-engine/internal/errors"
	"transaction-engine/internal/idempotency"
	"transaction-engine/internal/request"
	"transaction-engine/internal/service"
)

const (
	IdempotencyKeyHeader = "Idempotency-Key"
	maxBodyBytes         = 1 << 20
)

type TransactionExecutor interface {
	Execute(ctx context.Context, cmd service.Command) (*service.Result, error)
}

type TransactionHandler struct {
	executor      TransactionExecutor
	authenticator auth.Authenticator
	logger        *slog.Logger
}

func NewTransactionHandler(executor TransactionExecutor, authenticator auth.Authenticator, logger *slog.Logger) *TransactionHandler {
	return &TransactionHandler{
		executor:      executor,
		authenticator: authenticator,
		logger:        logger,
	}
}

type ExecuteResponse struct {
	Status       string                `json:"status"`
	Message      string                `json:"message"`
	Transactions []TransactionResponse `json:"transactions"`
}

// Execute classifies the body before looking at credentials, so a malformed
// request is a 400 whether or not it is authenticated.
func (h *TransactionHandler) Execute(w http.ResponseWriter, r *http.Request) {
	req, err := request.Classify(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	key := idempotency.NormalizeKey(r.Header.Get(IdempotencyKeyHeader))
	if len(key) > idempotency.MaxKeyLength {
		writeError(w, errors.NewAppError(errors.ValidationFailed, "request validation failed").WithFields(map[string]string{
			IdempotencyKeyHeader: "must be at most 255 characters",
		}))
		return
	}

	var principal *domain.Principal
	if req.RequiresAuth() {
		principal, err = h.authenticator.Authenticate(r)
		if err != nil {
			writeError(w, errors.ErrUnauthorized.WithDetails(err.Error()))
			return
		}
	}

	result, err := h.executor.Execute(r.Context(), service.Command{
		Request:        req,
		Principal:      principal,
		IdempotencyKey: key,
	})
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, ExecuteResponse{
		Status:       string(result.Outcome),
		Message:      result.Message,
		Transactions: toTransactionResponses(result.Transactions),
	})
}
