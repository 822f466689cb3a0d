package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

type ErrorCode string

const (
	InvalidInput         ErrorCode = "invalid_input"
	ValidationFailed     ErrorCode = "validation_failed"
	SameAccountTransfer  ErrorCode = "same_account_transfer"
	Unauthorized         ErrorCode = "unauthorized"
	AccountNotFound      ErrorCode = "account_not_found"
	RuleNotFound         ErrorCode = "rule_not_found"
	SourceInactive       ErrorCode = "source_account_inactive"
	DestinationInactive  ErrorCode = "destination_account_inactive"
	PayeeInactive        ErrorCode = "payee_inactive"
	InsufficientFunds    ErrorCode = "insufficient_funds"
	BalanceLimit         ErrorCode = "balance_limit_exceeded"
	DuplicateTransaction ErrorCode = "duplicate_transaction"
	KeyInUse             ErrorCode = "idempotency_key_in_use"
	GatewayFailure       ErrorCode = "gateway_failure"
	InternalError        ErrorCode = "internal_error"
)

type AppError struct {
	Code    ErrorCode         `json:"code"`
	Message string            `json:"message"`
	Details string            `json:"details,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`

	// cause is kept for logs and never rendered to clients.
	cause error
}

func (e *AppError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.cause
}

func NewAppError(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

func NewAppErrorf(code ErrorCode, format string, args ...interface{}) *AppError {
	return &AppError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// WithDetails returns a copy so the predefined errors below stay untouched.
func (e *AppError) WithDetails(details string) *AppError {
	cp := *e
	cp.Details = details
	return &cp
}

func (e *AppError) WithFields(fields map[string]string) *AppError {
	cp := *e
	cp.Fields = fields
	return &cp
}

// HTTPStatus maps the error code to the response status.
func (e *AppError) HTTPStatus() int {
	switch e.Code {
	case InvalidInput:
		return http.StatusBadRequest
	case ValidationFailed, SameAccountTransfer:
		return http.StatusUnprocessableEntity
	case Unauthorized:
		return http.StatusUnauthorized
	case SourceInactive, DestinationInactive, PayeeInactive:
		return http.StatusForbidden
	case AccountNotFound, RuleNotFound:
		return http.StatusNotFound
	case InsufficientFunds, BalanceLimit, DuplicateTransaction, KeyInUse:
		return http.StatusConflict
	case GatewayFailure:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// IsDenial reports whether the error is a business denial, which is recorded
// as a denied transaction rather than treated as a failure.
func (e *AppError) IsDenial() bool {
	switch e.Code {
	case SourceInactive, DestinationInactive, PayeeInactive, InsufficientFunds, BalanceLimit, GatewayFailure:
		return true
	}
	return false
}

// AsAppError unwraps err into an *AppError.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// Is reports whether err carries the given code.
func Is(err error, code ErrorCode) bool {
	appErr, ok := AsAppError(err)
	return ok && appErr.Code == code
}

// Internal wraps an infrastructure failure. The cause is reachable through
// Unwrap and Error but stays out of Details.
func Internal(message string, err error) *AppError {
	appErr := NewAppError(InternalError, message)
	appErr.cause = err
	return appErr
}

// Predefined errors for common cases
var (
	ErrInvalidBody          = NewAppError(InvalidInput, "invalid request body")
	ErrUnauthorized         = NewAppError(Unauthorized, "authentication required")
	ErrAccountNotFound      = NewAppError(AccountNotFound, "account not found")
	ErrRuleNotFound         = NewAppError(RuleNotFound, "rule not found")
	ErrSameAccountTransfer  = NewAppError(SameAccountTransfer, "source and destination accounts must differ")
	ErrSourceInactive       = NewAppError(SourceInactive, "source account is inactive")
	ErrDestinationInactive  = NewAppError(DestinationInactive, "destination account is inactive")
	ErrPayeeInactive        = NewAppError(PayeeInactive, "payee is inactive or no longer exists")
	ErrInsufficientFunds    = NewAppError(InsufficientFunds, "insufficient funds")
	ErrBalanceLimit         = NewAppError(BalanceLimit, "balance would exceed the account limit")
	ErrDuplicateTransaction = NewAppError(DuplicateTransaction, "transaction already processed")
	ErrKeyInUse             = NewAppError(KeyInUse, "another request with this idempotency key is in progress")
	ErrGatewayFailure       = NewAppError(GatewayFailure, "payment gateway failure")
)

var ErrCannotBeginTransaction = NewAppError(InternalError, "cannot begin transaction on this executor")
